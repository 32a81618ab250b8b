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

// A MethodType loadable constant reads its return type before its
// argument list (`(MethodType) RetType (ArgType, ...)`), the reverse of
// the order it is interned in — this must survive parse -> write ->
// disassemble -> reparse with the descriptor unchanged.
func TestMethodTypeConstantRoundTrip(t *testing.T) {
	src := `
public class MethodTypeUser {
    public void m () {
        stack 1
        locals 1
        ldc (MethodType) int (int, int)
        pop
        return
    }
}
`
	cf1, err := jbc.Parse(strings.NewReader(src))
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
	text := textBuf.String()

	if !strings.Contains(text, "(MethodType) int (int, int)") {
		t.Fatalf("want the MethodType constant rendered return-type-first, have:\n%s", text)
	}

	cf2, err := jbc.Parse(&textBuf)
	if err != nil {
		t.Fatalf("reparsing disassembled output: %s\n--- source ---\n%s", err, text)
	}
	if !bytes.Equal(cf2.Methods[0].Code().Code, cf1.Methods[0].Code().Code) {
		t.Fatalf(
			"code bytes differ after round trip\nwant:%v\nhave:%v",
			cf1.Methods[0].Code().Code, cf2.Methods[0].Code().Code,
		)
	}
}

// A field-targeted TypeAnnotation must survive parse -> write ->
// disassemble -> reparse: the base annotation comes before the
// target_info keyword, and the type path is a brace-delimited list even
// when, as here, it is empty.
func TestFieldTypeAnnotationRoundTrip(t *testing.T) {
	src := `
public class AnnotatedField {
    public int x
    [
        RuntimeVisibleTypeAnnotations {
            Foo {} field {}
        }
    ];
}
`
	cf1, err := jbc.Parse(strings.NewReader(src))
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
	text := textBuf.String()
	if !strings.Contains(text, "Foo") || !strings.Contains(text, "field") {
		t.Fatalf("want a field-targeted Foo type annotation, have:\n%s", text)
	}

	cf2, err := jbc.Parse(&textBuf)
	if err != nil {
		t.Fatalf("reparsing disassembled output: %s\n--- source ---\n%s", err, text)
	}

	var tas *classfile.TypeAnnotationsAttribute
	for _, f := range cf2.Fields {
		for _, a := range f.Attributes {
			if v, ok := a.(*classfile.TypeAnnotationsAttribute); ok {
				tas = v
			}
		}
	}
	if tas == nil || len(tas.Annotations) != 1 {
		t.Fatalf("want one field type annotation after reparse, have %+v", tas)
	}
	if tas.Annotations[0].TargetType != 0x13 {
		t.Fatalf("want target_type 0x13 (field), have %#02x", tas.Annotations[0].TargetType)
	}
	if len(tas.Annotations[0].Path) != 0 {
		t.Fatalf("want an empty type path, have %+v", tas.Annotations[0].Path)
	}
}
