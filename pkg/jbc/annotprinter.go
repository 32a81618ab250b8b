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
	"github.com/jbcasm/jbcasm/pkg/classfile"
)

// AnnotationsPrinter is the mirror of the Annotations Parser (§4.6): it
// renders an Annotation/TypeAnnotation/ElementValue back to the textual
// form AnnotationsParser accepts.
type AnnotationsPrinter struct {
	p    *Printer
	pool *classfile.ConstantPool
}

// PrintAnnotation renders `type { name = value ... }` (§4.6) — element
// values run directly together with no separator, each terminating
// itself the way ParseAnnotation expects to read it back.
func (ap *AnnotationsPrinter) PrintAnnotation(ann classfile.Annotation) error {
	typ, err := ap.pool.Utf8(ann.TypeIndex)
	if err != nil {
		return NewPrintError(0, "%s", err)
	}
	ap.p.Word(externalType(typ))
	ap.p.Space()
	ap.p.Word("{")
	for _, el := range ann.Elements {
		ap.p.Space()
		name, err := ap.pool.Utf8(el.NameIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		ap.p.Word(name)
		ap.p.Word(" = ")
		if err := ap.PrintElementValue(el.Value); err != nil {
			return err
		}
	}
	if len(ann.Elements) > 0 {
		ap.p.Space()
	}
	ap.p.Word("}")
	return nil
}

// PrintElementValue renders one element_value by its tag (§4.6). byte and
// short always carry an explicit cast since a bare number re-parses as
// int. Primitive/string/enum/class values end with a `;`; a nested
// annotation or array self-terminates via `}` and takes none.
func (ap *AnnotationsPrinter) PrintElementValue(v classfile.ElementValue) error {
	switch v.Tag {
	case 'Z':
		n, err := ap.intValue(v.ConstIndex)
		if err != nil {
			return err
		}
		if n != 0 {
			ap.p.Word("true;")
		} else {
			ap.p.Word("false;")
		}
		return nil

	case 'B':
		n, err := ap.intValue(v.ConstIndex)
		if err != nil {
			return err
		}
		ap.p.Printf("(byte) %d;", n)
		return nil

	case 'S':
		n, err := ap.intValue(v.ConstIndex)
		if err != nil {
			return err
		}
		ap.p.Printf("(short) %d;", n)
		return nil

	case 'I':
		n, err := ap.intValue(v.ConstIndex)
		if err != nil {
			return err
		}
		ap.p.Printf("%d;", n)
		return nil

	case 'C':
		n, err := ap.intValue(v.ConstIndex)
		if err != nil {
			return err
		}
		ap.p.QuotedChar(rune(n))
		ap.p.Word(";")
		return nil

	case 'J':
		entry, err := ap.pool.Get(v.ConstIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		le, ok := entry.(*classfile.LongEntry)
		if !ok {
			return NewPrintError(0, "element value tag 'J' did not reference a long constant")
		}
		ap.p.Printf("%dL;", le.Value)
		return nil

	case 'F':
		entry, err := ap.pool.Get(v.ConstIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		fe, ok := entry.(*classfile.FloatEntry)
		if !ok {
			return NewPrintError(0, "element value tag 'F' did not reference a float constant")
		}
		ap.p.Word(formatFloat(float64(fe.Value)) + "F;")
		return nil

	case 'D':
		entry, err := ap.pool.Get(v.ConstIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		de, ok := entry.(*classfile.DoubleEntry)
		if !ok {
			return NewPrintError(0, "element value tag 'D' did not reference a double constant")
		}
		ap.p.Word(formatFloat(de.Value) + "D;")
		return nil

	case 's':
		s, err := ap.pool.Utf8(v.ConstIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		ap.p.QuotedString(s)
		ap.p.Word(";")
		return nil

	case 'c':
		s, err := ap.pool.Utf8(v.TypeIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		ap.p.Word("(Class) ")
		ap.p.Word(externalType(s))
		ap.p.Word(";")
		return nil

	case 'e':
		typ, err := ap.pool.Utf8(v.TypeIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		name, err := ap.pool.Utf8(v.ConstName)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		ap.p.Word(externalType(typ))
		ap.p.Word("#")
		ap.p.Word(name)
		ap.p.Word(";")
		return nil

	case '@':
		ap.p.Word("@")
		return ap.PrintAnnotation(*v.Annotation)

	case '[':
		ap.p.Word("{")
		for _, el := range v.Array {
			ap.p.Space()
			if err := ap.PrintElementValue(el); err != nil {
				return err
			}
		}
		if len(v.Array) > 0 {
			ap.p.Space()
		}
		ap.p.Word("}")
		return nil

	default:
		return NewPrintError(0, "unknown element value tag %q", v.Tag)
	}
}

func (ap *AnnotationsPrinter) intValue(idx uint16) (int32, error) {
	entry, err := ap.pool.Get(idx)
	if err != nil {
		return 0, NewPrintError(0, "%s", err)
	}
	ie, ok := entry.(*classfile.IntegerEntry)
	if !ok {
		return 0, NewPrintError(0, "element value did not reference an integer constant")
	}
	return ie.Value, nil
}

// PrintTypeAnnotation renders a TypeAnnotation: `annotation targetInfo {
// typePath* }` (§4.6) — the base annotation first, then the target_info
// keyword and operand, then the brace-delimited type path. Code-relative
// target_infos (local_variable ranges, instanceof/new/cast/method-
// reference offsets) must already have their OffsetLabel/StartLabel/
// EndLabel fields populated by the caller before this is reached; see
// ClassPrinter.mergeCodeAnnotations.
func (ap *AnnotationsPrinter) PrintTypeAnnotation(ta classfile.TypeAnnotation) error {
	if err := ap.PrintAnnotation(ta.Annotation); err != nil {
		return err
	}
	ap.p.Space()

	kindWord, ok := targetInfoNames[ta.TargetType]
	if !ok {
		return NewPrintError(0, "unknown type annotation target_type %#02x", ta.TargetType)
	}
	ap.p.Word(kindWord)
	ap.p.Space()

	if err := ap.printTargetInfo(ta.TargetType, ta.Target); err != nil {
		return err
	}
	ap.printTypePath(ta.Path)
	return nil
}

func (ap *AnnotationsPrinter) printTargetInfo(targetType byte, t classfile.TargetInfo) error {
	switch targetType {
	case 0x00, 0x01:
		ap.p.Printf("%d", t.TypeParameterIdx)
		ap.p.Space()

	case 0x10:
		ap.p.Printf("%d", t.SupertypeIndex)
		ap.p.Space()

	case 0x11, 0x12:
		ap.p.Printf("%d", t.TypeParameterIdx)
		ap.p.Space()
		ap.p.Printf("%d", t.BoundIndex)
		ap.p.Space()

	case 0x13, 0x14, 0x15:

	case 0x16:
		ap.p.Printf("%d", t.FormalParameterIdx)
		ap.p.Space()

	case 0x17:
		ap.p.Printf("%d", t.ThrowsTypeIndex)
		ap.p.Space()

	case 0x40, 0x41:
		for i, lv := range t.LocalVarTable {
			if i > 0 {
				ap.p.Word(", ")
			}
			ap.p.Word(lv.StartLabel)
			ap.p.Word(" -> ")
			ap.p.Word(lv.EndLabel)
			ap.p.Space()
			ap.p.Printf("%d", lv.Index)
		}
		ap.p.Space()

	case 0x42:
		ap.p.Printf("%d", t.CatchTypeIndex)
		ap.p.Space()

	case 0x43, 0x44, 0x45, 0x46:
		ap.p.Word(t.OffsetLabel)
		ap.p.Space()

	case 0x47, 0x48, 0x49, 0x4A, 0x4B:
		ap.p.Word(t.OffsetLabel)
		ap.p.Space()
		ap.p.Printf("%d", t.ArgumentIndex)
		ap.p.Space()

	default:
		return NewPrintError(0, "unknown type annotation target_type %#02x", targetType)
	}
	return nil
}

// printTypePath renders `{ kind [number] ; ... }` (§4.6); the number is
// only emitted for type_argument entries.
func (ap *AnnotationsPrinter) printTypePath(path []classfile.TypePathEntry) {
	ap.p.Word("{")
	for _, entry := range path {
		ap.p.Space()
		kindWord := typePathNames[entry.Kind]
		ap.p.Word(kindWord)
		if entry.Kind == 3 {
			ap.p.Space()
			ap.p.Printf("%d", entry.TypeArgumentIndex)
		}
		ap.p.Word(";")
	}
	if len(path) > 0 {
		ap.p.Space()
	}
	ap.p.Word("}")
}
