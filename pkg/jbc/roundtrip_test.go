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

package jbc_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jbcasm/jbcasm/pkg/classfile"
	"github.com/jbcasm/jbcasm/pkg/jbc"
)

const helloWorldSource = `
public class Hello {
    public void <init> () {
        stack 1
        locals 1
        aload_0
        invokespecial java.lang.Object#void <init> ()
        return
    }
}
`

// S1: a trivial class must survive parse -> write -> disassemble ->
// reparse with the same class name, super class, and method shape.
func TestHelloWorldRoundTrip(t *testing.T) {
	cf1, err := jbc.Parse(strings.NewReader(helloWorldSource))
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}

	var classBuf bytes.Buffer
	if err := classfile.Write(&classBuf, cf1); err != nil {
		t.Fatalf("Write: %s", err)
	}

	var textBuf bytes.Buffer
	if err := jbc.Disassemble(bytes.NewReader(classBuf.Bytes()), &textBuf); err != nil {
		t.Fatalf("Disassemble: %s", err)
	}

	cf2, err := jbc.Parse(&textBuf)
	if err != nil {
		t.Fatalf("reparsing disassembled output: %s\n--- source ---\n%s", err, textBuf.String())
	}

	if cf2.ClassName() != cf1.ClassName() {
		t.Fatalf("class name: want %s, have %s", cf1.ClassName(), cf2.ClassName())
	}
	if cf2.SuperClassName() != cf1.SuperClassName() {
		t.Fatalf("super class: want %s, have %s", cf1.SuperClassName(), cf2.SuperClassName())
	}
	if len(cf2.Methods) != len(cf1.Methods) {
		t.Fatalf("want %d methods, have %d", len(cf1.Methods), len(cf2.Methods))
	}

	for i, m1 := range cf1.Methods {
		m2 := cf2.Methods[i]
		if m2.Name(cf2.Pool) != m1.Name(cf1.Pool) {
			t.Fatalf("method %d name: want %s, have %s", i, m1.Name(cf1.Pool), m2.Name(cf2.Pool))
		}
		if !bytes.Equal(m2.Code().Code, m1.Code().Code) {
			t.Fatalf(
				"method %d code bytes differ\nwant:%v\nhave:%v",
				i, m1.Code().Code, m2.Code().Code,
			)
		}
	}
}

// S2: every label in the disassembled text is renamed to the
// offset-ordered label1/label2/... scheme regardless of its source name.
func TestBranchLabelRenaming(t *testing.T) {
	src := `
public class Branch {
    public void m () {
        stack 0
        locals 1
        target:
        goto target
        return
    }
}
`
	cf, err := jbc.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}

	var classBuf bytes.Buffer
	if err := classfile.Write(&classBuf, cf); err != nil {
		t.Fatalf("Write: %s", err)
	}

	var textBuf bytes.Buffer
	if err := jbc.Disassemble(bytes.NewReader(classBuf.Bytes()), &textBuf); err != nil {
		t.Fatalf("Disassemble: %s", err)
	}
	text := textBuf.String()

	if !strings.Contains(text, "label1") {
		t.Fatalf("want label1 in disassembled output, have:\n%s", text)
	}
	if strings.Contains(text, "target") {
		t.Fatalf("source label name leaked into disassembled output:\n%s", text)
	}

	// The renamed text must reparse to the same bytecode.
	cf2, err := jbc.Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("reparsing renamed output: %s\n--- source ---\n%s", err, text)
	}
	if !bytes.Equal(cf2.Methods[0].Code().Code, cf.Methods[0].Code().Code) {
		t.Fatalf(
			"code bytes differ after label renaming\nwant:%v\nhave:%v",
			cf.Methods[0].Code().Code, cf2.Methods[0].Code().Code,
		)
	}
}

func TestAssembleDisassembleEntryPoints(t *testing.T) {
	var classBuf bytes.Buffer
	if err := jbc.Assemble(strings.NewReader(helloWorldSource), &classBuf); err != nil {
		t.Fatalf("Assemble: %s", err)
	}

	var textBuf bytes.Buffer
	if err := jbc.Disassemble(bytes.NewReader(classBuf.Bytes()), &textBuf); err != nil {
		t.Fatalf("Disassemble: %s", err)
	}

	if !strings.Contains(textBuf.String(), "Hello") {
		t.Fatalf("want disassembled text to mention Hello, have:\n%s", textBuf.String())
	}
}
