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

package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jbcasm/jbcasm/pkg/classfile"
	"github.com/jbcasm/jbcasm/pkg/container"
	"github.com/jbcasm/jbcasm/pkg/jbc"
	"github.com/jbcasm/jbcasm/pkg/preverify"
)

var classpath string

const usage = "jbcasm [-cp classpath] input output"

func init() {
	log.SetFlags(0)
	log.SetOutput(os.Stderr)

	flag.StringVar(
		&classpath, "cp", "",
		"path-separator delimited classpath; when set, a preverifier is "+
			"run against the resulting class after each .jbc is assembled",
	)
	flag.Parse()
}

func jbcasm() int {
	args := flag.Args()
	if len(args) != 2 {
		log.Println(usage)
		return 1
	}
	input, output := args[0], args[1]

	log.SetPrefix(bold(fmt.Sprintf("%s: ", filepath.Base(input))))

	var pv preverify.Preverifier
	var library *classfile.ConstantPool
	if classpath != "" {
		var err error
		library, err = loadLibraryPool(classpath)
		if err != nil {
			log.Println(err)
			return 1
		}
		pv = preverify.NopPreverifier{}
	}

	if err := container.TranslateWithPreverify(input, output, pv, library); err != nil {
		reportError(input, err)
		return 1
	}

	return 0
}

// reportError prints err, adding the offending source line for a
// TokenError against a single input file, mirroring the teacher's
// line-plus-caret diagnostics in cmd/golc3-asm.
func reportError(input string, err error) {
	tokErr, ok := err.(jbc.TokenError)
	if !ok {
		log.Println(err)
		return
	}

	stat, statErr := os.Stat(input)
	if statErr != nil || stat.IsDir() {
		log.Println(err)
		return
	}

	line, readErr := sourceLine(input, tokErr.Line())
	if readErr != nil {
		log.Println(err)
		return
	}

	indent := strings.Repeat(" ", len(line)-len(strings.TrimLeft(line, " \t")))
	log.Printf("%s\n%s\n%s", err, line, red(indent+"^"))
}

func sourceLine(path string, n int) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for i := 1; scanner.Scan(); i++ {
		if i == n {
			return scanner.Text(), nil
		}
	}
	return "", scanner.Err()
}

// loadLibraryPool walks every path-separator-delimited classpath entry,
// reading each .class file it finds and interning its class name into a
// shared pool. The preverifier contract (§6) does not specify a deeper
// structure than "a library class pool"; NopPreverifier never reads it,
// so this is the minimal shape a real implementation could be handed.
func loadLibraryPool(classpath string) (*classfile.ConstantPool, error) {
	pool := classfile.NewConstantPool()

	for _, entry := range strings.Split(classpath, string(os.PathListSeparator)) {
		if entry == "" {
			continue
		}

		err := filepath.Walk(entry, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || strings.ToLower(filepath.Ext(path)) != ".class" {
				return nil
			}

			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()

			cf, err := classfile.Read(file)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}

			name, err := cf.Pool.ClassName(cf.ThisClass)
			if err != nil {
				return err
			}
			pool.AddClass(name)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return pool, nil
}

func main() {
	os.Exit(jbcasm())
}
