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

// S3: a lookupswitch whose match values are not strictly increasing must
// fail to parse, before any label even needs resolving.
func TestLookupSwitchRequiresIncreasingMatches(t *testing.T) {
	src := `
public class Switch {
    public int m (int x) {
        stack 1
        locals 2
        iload_1
        lookupswitch
            3 : a
            1 : b
            default : c
        a:
        iconst_0
        ireturn
        b:
        iconst_1
        ireturn
        c:
        iconst_2
        ireturn
    }
}
`
	_, err := jbc.Parse(strings.NewReader(src))
	if err == nil {
		t.Fatalf("want error for non-increasing lookupswitch match values")
	}
	if !strings.Contains(err.Error(), "strictly increasing") {
		t.Fatalf("want a strictly-increasing error, have: %s", err)
	}
}

// S4: annotation element values infer their tag from the literal form,
// and array element values use the `(Array){ elementValue* }` form. The
// source text is spec.md §8's own S4 example verbatim; a nested
// annotation element value is the one ElementValue shape that carries a
// leading '@' in this grammar, so AnnotationDefault (whose value is a
// single bare ElementValue) is what lets the literal text parse as-is.
func TestAnnotationElementValueInference(t *testing.T) {
	src := `
public class Annotated
[
    AnnotationDefault @Foo { x = 3.14d; y = "s"; z = (Array){ 1; 2; 3; }; }
]
{
}
`
	cf, err := jbc.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}

	var def *classfile.AnnotationDefaultAttribute
	for _, a := range cf.Attributes {
		if v, ok := a.(*classfile.AnnotationDefaultAttribute); ok {
			def = v
		}
	}
	if def == nil {
		t.Fatalf("want an AnnotationDefault attribute, have %+v", cf.Attributes)
	}
	if def.Value.Tag != '@' || def.Value.Annotation == nil {
		t.Fatalf("want tag @, have %q", def.Value.Tag)
	}

	elems := def.Value.Annotation.Elements
	if len(elems) != 3 {
		t.Fatalf("want 3 element-value pairs, have %d", len(elems))
	}

	if elems[0].Value.Tag != 'D' {
		t.Fatalf("x: want tag D, have %q", elems[0].Value.Tag)
	}
	if elems[1].Value.Tag != 's' {
		t.Fatalf("y: want tag s, have %q", elems[1].Value.Tag)
	}
	if elems[2].Value.Tag != '[' {
		t.Fatalf("z: want tag [, have %q", elems[2].Value.Tag)
	}
	if len(elems[2].Value.Array) != 3 {
		t.Fatalf("z: want 3 array elements, have %d", len(elems[2].Value.Array))
	}
	for i, v := range elems[2].Value.Array {
		if v.Tag != 'I' {
			t.Fatalf("z[%d]: want tag I, have %q", i, v.Tag)
		}
	}
}

// S5: an enum with no explicit extends defaults to java.lang.Enum, and
// carries ACC_ENUM|ACC_SUPER|ACC_PUBLIC.
func TestEnumDefaultSuper(t *testing.T) {
	cf, err := jbc.Parse(strings.NewReader("public enum E;\n"))
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}

	if cf.SuperClassName() != "java/lang/Enum" {
		t.Fatalf("want super java/lang/Enum, have %s", cf.SuperClassName())
	}

	want := uint16(classfile.AccPublic | classfile.AccSuper | classfile.AccEnum)
	if cf.AccessFlags != want {
		t.Fatalf("want flags %#x, have %#x", want, cf.AccessFlags)
	}
}

// An interface-kind declaration's `extends` lists super-interfaces, not
// a superclass: multiple comma-separated supertypes must all land in the
// interfaces table, and the interface's superclass must still be the
// implicit java.lang.Object. `implements` is forbidden on an interface.
func TestInterfaceExtendsListsInterfaces(t *testing.T) {
	cf, err := jbc.Parse(strings.NewReader("public interface Foo extends Bar, Baz {\n}\n"))
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}

	if cf.SuperClassName() != "java/lang/Object" {
		t.Fatalf("want super java/lang/Object, have %s", cf.SuperClassName())
	}
	if len(cf.Interfaces) != 2 {
		t.Fatalf("want 2 super-interfaces, have %d", len(cf.Interfaces))
	}
	name0, err := cf.Pool.ClassName(cf.Interfaces[0])
	if err != nil {
		t.Fatalf("ClassName: %s", err)
	}
	if name0 != "Bar" {
		t.Fatalf("want first super-interface Bar, have %s", name0)
	}
	name1, err := cf.Pool.ClassName(cf.Interfaces[1])
	if err != nil {
		t.Fatalf("ClassName: %s", err)
	}
	if name1 != "Baz" {
		t.Fatalf("want second super-interface Baz, have %s", name1)
	}

	if _, err := jbc.Parse(strings.NewReader("public interface Foo implements Bar {\n}\n")); err == nil {
		t.Fatalf("want error for interface using implements")
	}
}

// A plain interface with no explicit `extends` must round-trip without
// ever printing the nonsensical `extends java.lang.Object`.
func TestInterfaceNoExtendsRoundTrip(t *testing.T) {
	cf1, err := jbc.Parse(strings.NewReader("public interface Foo {\n}\n"))
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

	if strings.Contains(text, "extends") {
		t.Fatalf("want no extends clause for a plain interface, have:\n%s", text)
	}

	cf2, err := jbc.Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("reparsing disassembled output: %s\n--- source ---\n%s", err, text)
	}
	if cf2.SuperClassName() != "java/lang/Object" {
		t.Fatalf("want super java/lang/Object, have %s", cf2.SuperClassName())
	}
}

// A module-info declaration has no super class at all.
func TestModuleHasNoSuper(t *testing.T) {
	cf, err := jbc.Parse(strings.NewReader("module module-info;\n"))
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	if cf.SuperClass != 0 {
		t.Fatalf("want no super class reference, have pool index %d", cf.SuperClass)
	}
}

// A narrow variable instruction whose index does not fit a byte must
// fail to compose instead of silently truncating (the `_w` suffix exists
// for exactly this case).
func TestNarrowVarIndexOverflowFails(t *testing.T) {
	src := `
public class Bad {
    public void m () {
        stack 1
        locals 301
        iload 300
        pop
        return
    }
}
`
	_, err := jbc.Parse(strings.NewReader(src))
	if err == nil {
		t.Fatalf("want error for an out-of-range narrow variable index")
	}
	if !strings.Contains(err.Error(), "too large") {
		t.Fatalf("want a too-large error, have: %s", err)
	}
}

// A narrow iinc whose delta does not fit a signed byte must fail to
// compose instead of silently truncating.
func TestNarrowIincDeltaOverflowFails(t *testing.T) {
	src := `
public class Bad {
    public void m () {
        stack 0
        locals 1
        iinc 0 200
        return
    }
}
`
	_, err := jbc.Parse(strings.NewReader(src))
	if err == nil {
		t.Fatalf("want error for an out-of-range narrow iinc delta")
	}
	if !strings.Contains(err.Error(), "does not fit") {
		t.Fatalf("want a does-not-fit error, have: %s", err)
	}
}

// S6: an unrecognised mnemonic inside a method body fails to parse,
// naming the offending word.
func TestUnknownInstructionFails(t *testing.T) {
	src := `
public class Bad {
    public void m () {
        stack 0
        locals 1
        apples
        return
    }
}
`
	_, err := jbc.Parse(strings.NewReader(src))
	if err == nil {
		t.Fatalf("want error for unknown instruction")
	}
	if !strings.Contains(err.Error(), "apples") {
		t.Fatalf("want error naming the offending word, have: %s", err)
	}
}
