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
	"fmt"
	"strings"

	"github.com/jbcasm/jbcasm/pkg/classfile"
)

// TypeHint is the companion "expected field type" parameter of §4.3's
// print direction: it controls whether an integer constant is rendered as
// true/false, a quoted char, or a plain integer with an optional cast.
// HintNone means "no hint" — the rule then requires an explicit cast
// whenever the bare inferred form would be ambiguous.
type TypeHint byte

const (
	HintNone    TypeHint = 0
	HintBoolean TypeHint = 'Z'
	HintByte    TypeHint = 'B'
	HintChar    TypeHint = 'C'
	HintShort   TypeHint = 'S'
	HintInt     TypeHint = 'I'
)

// PrintConstant renders a constant pool entry as its unambiguous JBC
// textual form (§4.3 print direction). fullType selects the explicit-cast
// rendering of integer and class constants; a boolean, char, byte, short
// or int hint still takes precedence for an integer constant. This is the
// "printFullType" mode carried over from the original implementation
// (a SUPPLEMENTED FEATURE; see SPEC_FULL.md), used for constants with no
// field-type context (ldc operands and bootstrap method arguments).
func (p *Printer) PrintConstant(pool *classfile.ConstantPool, index uint16, hint TypeHint, fullType bool) error {
	entry, err := pool.Get(index)
	if err != nil {
		return NewPrintError(0, "%s", err)
	}

	switch c := entry.(type) {
	case *classfile.IntegerEntry:
		return p.printInteger(c.Value, hint, fullType)

	case *classfile.LongEntry:
		p.Word(fmt.Sprintf("%dL", c.Value))
		return nil

	case *classfile.FloatEntry:
		p.Word(formatFloat(float64(c.Value)) + "F")
		return nil

	case *classfile.DoubleEntry:
		p.Word(formatFloat(c.Value) + "D")
		return nil

	case *classfile.StringEntry:
		s, err := pool.Utf8(c.StringIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		p.QuotedString(s)
		return nil

	case *classfile.ClassEntry:
		name, err := pool.Utf8(c.NameIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		if fullType {
			p.Word("(Class) ")
		}
		p.Word(externalType(name))
		return nil

	case *classfile.MethodHandleEntry:
		p.Word("(MethodHandle) ")
		kindName, ok := referenceKindNames[c.ReferenceKind]
		if !ok {
			return NewPrintError(0, "unknown reference kind %d", c.ReferenceKind)
		}
		p.Word(kindName)
		p.Word(" ")
		return p.printHandleRef(pool, c)

	case *classfile.MethodTypeEntry:
		desc, err := pool.Utf8(c.DescriptorIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		p.Word("(MethodType) ")
		p.Word(methodTypeString(desc))
		return nil

	case *classfile.DynamicEntry:
		name, desc, err := pool.NameAndType(c.NameAndTypeIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		p.Word(fmt.Sprintf("(Dynamic) %d %s : %s", c.BootstrapMethodAttrIndex, name, externalType(desc)))
		return nil

	default:
		return NewPrintError(0, "unsupported loadable constant kind %T", c)
	}
}

func (p *Printer) printInteger(v int32, hint TypeHint, fullType bool) error {
	switch hint {
	case HintBoolean:
		if v != 0 {
			p.Word("true")
		} else {
			p.Word("false")
		}
		return nil

	case HintChar:
		p.QuotedChar(rune(v))
		return nil

	case HintByte, HintShort, HintInt:
		p.Word(fmt.Sprintf("%d", v))
		return nil

	default:
		if fullType {
			p.Word(fmt.Sprintf("(int) %d", v))
		} else {
			p.Word(fmt.Sprintf("%d", v))
		}
		return nil
	}
}

func (p *Printer) printHandleRef(pool *classfile.ConstantPool, c *classfile.MethodHandleEntry) error {
	entry, err := pool.Get(c.ReferenceIndex)
	if err != nil {
		return NewPrintError(0, "%s", err)
	}

	var classIndex, ntIndex uint16
	switch r := entry.(type) {
	case *classfile.FieldrefEntry:
		classIndex, ntIndex = r.ClassIndex, r.NameAndTypeIndex
	case *classfile.MethodrefEntry:
		classIndex, ntIndex = r.ClassIndex, r.NameAndTypeIndex
	case *classfile.InterfaceMethodrefEntry:
		classIndex, ntIndex = r.ClassIndex, r.NameAndTypeIndex
	default:
		return NewPrintError(0, "method handle referenced a non-reference constant")
	}

	class, err := pool.ClassName(classIndex)
	if err != nil {
		return NewPrintError(0, "%s", err)
	}
	name, desc, err := pool.NameAndType(ntIndex)
	if err != nil {
		return NewPrintError(0, "%s", err)
	}

	switch c.ReferenceKind {
	case classfile.RefGetField, classfile.RefGetStatic, classfile.RefPutField, classfile.RefPutStatic:
		p.Word(fmt.Sprintf("%s#%s %s", externalType(class), externalType(desc), name))
	default:
		p.Word(fmt.Sprintf("%s#%s %s%s", externalType(class), returnType(desc), name, argTypes(desc)))
	}
	return nil
}

// formatFloat renders a double with up to 340 fractional digits and no
// scientific notation; round-tripping through strconv.ParseFloat must
// reproduce the exact same bits (§4.10, §8.8).
func formatFloat(v float64) string {
	s := strings.TrimRight(fmt.Sprintf("%.340f", v), "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

// externalType converts an internal descriptor to external dotted form;
// arrays become T[] (§4.10).
func externalType(internal string) string {
	dims := 0
	for strings.HasPrefix(internal, "[") {
		internal = internal[1:]
		dims++
	}

	var base string
	switch {
	case len(internal) == 1:
		base = map[byte]string{
			'Z': "boolean", 'B': "byte", 'C': "char", 'S': "short",
			'I': "int", 'J': "long", 'F': "float", 'D': "double", 'V': "void",
		}[internal[0]]
	case strings.HasPrefix(internal, "L") && strings.HasSuffix(internal, ";"):
		base = strings.ReplaceAll(internal[1:len(internal)-1], "/", ".")
	default:
		// A bare internal class name (no L...; wrapper), e.g. from
		// ConstantPool.ClassName: still slash-separated, still needs
		// dotting for the external syntax to re-lex as one word.
		base = strings.ReplaceAll(internal, "/", ".")
	}

	return base + strings.Repeat("[]", dims)
}

func returnType(descriptor string) string {
	idx := strings.IndexByte(descriptor, ')')
	if idx < 0 {
		return descriptor
	}
	return externalType(descriptor[idx+1:])
}

func argTypes(descriptor string) string {
	idx := strings.IndexByte(descriptor, ')')
	if idx < 0 {
		return "()"
	}
	args := descriptor[1:idx]

	var parts []string
	for len(args) > 0 {
		t, rest := splitOneDescriptor(args)
		parts = append(parts, externalType(t))
		args = rest
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// methodTypeString renders a MethodType constant's descriptor as
// `RetType (ArgType, ...)`, the same return-type-first order
// parseExplicitConstant's "MethodType" case reads it in.
func methodTypeString(descriptor string) string {
	return returnType(descriptor) + " " + argTypes(descriptor)
}

// splitOneDescriptor peels one field descriptor off the front of s,
// returning it and the remainder.
func splitOneDescriptor(s string) (head, rest string) {
	i := 0
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i >= len(s) {
		return s, ""
	}
	if s[i] == 'L' {
		j := strings.IndexByte(s[i:], ';')
		return s[:i+j+1], s[i+j+2:]
	}
	return s[:i+1], s[i+1:]
}
