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

package jbc

import (
	"io"

	"github.com/jbcasm/jbcasm/pkg/classfile"
)

// Assemble is the assembly half of §2's data flow: Reader → TokenSource →
// ExpectationLayer → ClassParser → CodeComposer → ClassModel. Callers that
// need to run a preverifier against a library pool before the model is
// written out should call Parse directly instead; Assemble is the
// no-preverification convenience used when no classpath was supplied.
func Assemble(r io.Reader, w io.Writer) error {
	cf, err := Parse(r)
	if err != nil {
		return err
	}
	return classfile.Write(w, cf)
}

// Disassemble is the disassembly half of §2's data flow: ClassModel →
// LabelsCollector(pre-pass) → ClassPrinter → Printer → Writer.
func Disassemble(r io.Reader, w io.Writer) error {
	cf, err := classfile.Read(r)
	if err != nil {
		return err
	}
	p := NewPrinter(w)
	if err := PrintClass(p, cf); err != nil {
		return err
	}
	return p.Flush()
}
