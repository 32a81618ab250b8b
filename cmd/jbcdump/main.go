// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

// jbcdump is a disassemble-only convenience wrapper: it always routes
// input through jbc.Disassemble regardless of extension, the way
// cmd/golc3 is a read-only companion to cmd/golc3-asm.
package main

import (
	"flag"
	"io"
	"log"
	"os"

	"github.com/jbcasm/jbcasm/pkg/jbc"
)

const usage = "jbcdump [input] [output]"

func init() {
	log.SetFlags(0)
	log.SetOutput(os.Stderr)
	flag.Parse()
}

func jbcdump() int {
	args := flag.Args()
	if len(args) > 2 {
		log.Println(usage)
		return 1
	}

	input := io.Reader(os.Stdin)
	if len(args) >= 1 {
		file, err := os.Open(args[0])
		if err != nil {
			log.Println(err)
			return 1
		}
		defer file.Close()
		input = file
	}

	output := io.Writer(os.Stdout)
	if len(args) == 2 {
		file, err := os.Create(args[1])
		if err != nil {
			log.Println(err)
			return 1
		}
		defer file.Close()
		output = file
	}

	if err := jbc.Disassemble(input, output); err != nil {
		log.Println(err)
		return 1
	}

	return 0
}

func main() {
	os.Exit(jbcdump())
}
