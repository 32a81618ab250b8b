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

package classfile_test

import (
	"bytes"
	"testing"

	"github.com/jbcasm/jbcasm/pkg/classfile"
)

// buildHelloWorld constructs a minimal class with one method carrying a
// Code attribute and a LineNumberTable, exercising nested-attribute
// encode/decode and the long/double wide-slot layout via an added double
// constant nobody references (still must round-trip).
func buildHelloWorld() *classfile.ClassFile {
	pool := classfile.NewConstantPool()

	cf := &classfile.ClassFile{
		MinorVersion: 0,
		MajorVersion: classfile.Java8,
		Pool:         pool,
		AccessFlags:  classfile.AccPublic | classfile.AccSuper,
		ThisClass:    pool.AddClass("Hello"),
		SuperClass:   pool.AddClass("java/lang/Object"),
	}

	pool.AddDouble(3.14) // unreferenced, exercises the wide-slot path

	ctor := &classfile.Member{
		AccessFlags: classfile.AccPublic,
		NameIndex:   pool.AddUtf8("<init>"),
		DescIndex:   pool.AddUtf8("()V"),
		Attributes: []classfile.Attribute{
			&classfile.CodeAttribute{
				MaxStack:  1,
				MaxLocals: 1,
				Code: []byte{
					0x2a,       // aload_0
					0xb7, 0, 0, // invokespecial (index patched below)
					0xb1, // return
				},
				Attributes: []classfile.Attribute{
					&classfile.LineNumberTableAttribute{
						Lines: []classfile.LineNumberEntry{{StartPC: 0, Line: 1}},
					},
				},
			},
		},
	}
	superInit := pool.AddMethodref("java/lang/Object", "<init>", "()V")
	ctor.Attributes[0].(*classfile.CodeAttribute).Code[2] = byte(superInit >> 8)
	ctor.Attributes[0].(*classfile.CodeAttribute).Code[3] = byte(superInit)

	cf.Methods = []*classfile.Member{ctor}
	cf.Attributes = []classfile.Attribute{
		&classfile.SourceFileAttribute{NameIndex: pool.AddUtf8("Hello.java")},
	}

	return cf
}

func TestReadWriteRoundTrip(t *testing.T) {
	want := buildHelloWorld()

	var buf bytes.Buffer
	if err := classfile.Write(&buf, want); err != nil {
		t.Fatalf("Write: %s", err)
	}

	have, err := classfile.Read(&buf)
	if err != nil {
		t.Fatalf("Read: %s", err)
	}

	if have.MajorVersion != want.MajorVersion {
		t.Fatalf("major version: want %d, have %d", want.MajorVersion, have.MajorVersion)
	}
	if have.ClassName() != "Hello" {
		t.Fatalf("class name: want Hello, have %s", have.ClassName())
	}
	if have.SuperClassName() != "java/lang/Object" {
		t.Fatalf("super class name: want java/lang/Object, have %s", have.SuperClassName())
	}
	if len(have.Methods) != 1 {
		t.Fatalf("want 1 method, have %d", len(have.Methods))
	}

	m := have.Methods[0]
	if m.Name(have.Pool) != "<init>" {
		t.Fatalf("method name: want <init>, have %s", m.Name(have.Pool))
	}

	code := m.Code()
	if code == nil {
		t.Fatalf("want a Code attribute on <init>")
	}
	if !bytes.Equal(code.Code, want.Methods[0].Code().Code) {
		t.Fatalf(
			"code bytes differ\nwant:%v\nhave:%v",
			want.Methods[0].Code().Code, code.Code,
		)
	}

	var lnt *classfile.LineNumberTableAttribute
	for _, a := range code.Attributes {
		if l, ok := a.(*classfile.LineNumberTableAttribute); ok {
			lnt = l
		}
	}
	if lnt == nil {
		t.Fatalf("want a LineNumberTable nested attribute")
	}
	if len(lnt.Lines) != 1 || lnt.Lines[0].Line != 1 {
		t.Fatalf("want one line entry mapping to source line 1, have %+v", lnt.Lines)
	}

	var sourceFile *classfile.SourceFileAttribute
	for _, a := range have.Attributes {
		if s, ok := a.(*classfile.SourceFileAttribute); ok {
			sourceFile = s
		}
	}
	if sourceFile == nil {
		t.Fatalf("want a SourceFile class attribute")
	}
	name, err := have.Pool.Utf8(sourceFile.NameIndex)
	if err != nil || name != "Hello.java" {
		t.Fatalf("want Hello.java, have %s (err %v)", name, err)
	}
}

func TestReadBadMagic(t *testing.T) {
	_, err := classfile.Read(bytes.NewReader([]byte{0, 0, 0, 0}))
	if err == nil {
		t.Fatalf("want error on bad magic number")
	}
}

func TestReadTruncated(t *testing.T) {
	want := buildHelloWorld()

	var buf bytes.Buffer
	if err := classfile.Write(&buf, want); err != nil {
		t.Fatalf("Write: %s", err)
	}

	truncated := buf.Bytes()[:buf.Len()-4]
	if _, err := classfile.Read(bytes.NewReader(truncated)); err == nil {
		t.Fatalf("want error reading a truncated class file")
	}
}
