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

package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// decodeAttribute decodes a raw attribute body into its typed form. Names
// this module does not recognise come back as *RawAttribute, per spec §1/§9
// ("does not preserve attributes unknown to it" — those are dropped later,
// by the printer, not here; the reader keeps the bytes in case a caller
// wants to re-encode a class file unseen by the JBC layer at all).
func decodeAttribute(name string, body []byte, pool *ConstantPool) (Attribute, error) {
	r := bytes.NewReader(body)
	be := binary.BigEndian

	switch name {
	case "Code":
		return decodeCode(r, pool)

	case "ConstantValue":
		var a ConstantValueAttribute
		err := binary.Read(r, be, &a.ValueIndex)
		return &a, err

	case "Exceptions":
		var count uint16
		if err := binary.Read(r, be, &count); err != nil {
			return nil, err
		}
		a := &ExceptionsAttribute{Exceptions: make([]uint16, count)}
		for i := range a.Exceptions {
			if err := binary.Read(r, be, &a.Exceptions[i]); err != nil {
				return nil, err
			}
		}
		return a, nil

	case "SourceFile":
		var a SourceFileAttribute
		err := binary.Read(r, be, &a.NameIndex)
		return &a, err

	case "SourceDir":
		var a SourceDirAttribute
		err := binary.Read(r, be, &a.NameIndex)
		return &a, err

	case "Signature":
		var a SignatureAttribute
		err := binary.Read(r, be, &a.SignatureIndex)
		return &a, err

	case "Deprecated":
		return &DeprecatedAttribute{}, nil

	case "Synthetic":
		return &SyntheticAttribute{}, nil

	case "LineNumberTable":
		var count uint16
		if err := binary.Read(r, be, &count); err != nil {
			return nil, err
		}
		a := &LineNumberTableAttribute{Lines: make([]LineNumberEntry, count)}
		for i := range a.Lines {
			if err := binary.Read(r, be, &a.Lines[i]); err != nil {
				return nil, err
			}
		}
		return a, nil

	case "LocalVariableTable":
		var count uint16
		if err := binary.Read(r, be, &count); err != nil {
			return nil, err
		}
		a := &LocalVariableTableAttribute{Locals: make([]LocalVariableEntry, count)}
		for i := range a.Locals {
			if err := binary.Read(r, be, &a.Locals[i]); err != nil {
				return nil, err
			}
		}
		return a, nil

	case "LocalVariableTypeTable":
		var count uint16
		if err := binary.Read(r, be, &count); err != nil {
			return nil, err
		}
		a := &LocalVariableTypeTableAttribute{Locals: make([]LocalVariableTypeEntry, count)}
		for i := range a.Locals {
			if err := binary.Read(r, be, &a.Locals[i]); err != nil {
				return nil, err
			}
		}
		return a, nil

	case "InnerClasses":
		var count uint16
		if err := binary.Read(r, be, &count); err != nil {
			return nil, err
		}
		a := &InnerClassesAttribute{Classes: make([]InnerClassEntry, count)}
		for i := range a.Classes {
			if err := binary.Read(r, be, &a.Classes[i]); err != nil {
				return nil, err
			}
		}
		return a, nil

	case "EnclosingMethod":
		var a EnclosingMethodAttribute
		if err := binary.Read(r, be, &a.ClassIndex); err != nil {
			return nil, err
		}
		err := binary.Read(r, be, &a.MethodIndex)
		return &a, err

	case "NestHost":
		var a NestHostAttribute
		err := binary.Read(r, be, &a.HostClassIndex)
		return &a, err

	case "NestMembers":
		var count uint16
		if err := binary.Read(r, be, &count); err != nil {
			return nil, err
		}
		a := &NestMembersAttribute{Classes: make([]uint16, count)}
		for i := range a.Classes {
			if err := binary.Read(r, be, &a.Classes[i]); err != nil {
				return nil, err
			}
		}
		return a, nil

	case "BootstrapMethods":
		var count uint16
		if err := binary.Read(r, be, &count); err != nil {
			return nil, err
		}
		a := &BootstrapMethodsAttribute{Methods: make([]BootstrapMethod, count)}
		for i := range a.Methods {
			if err := binary.Read(r, be, &a.Methods[i].MethodRefIndex); err != nil {
				return nil, err
			}
			var argCount uint16
			if err := binary.Read(r, be, &argCount); err != nil {
				return nil, err
			}
			a.Methods[i].Arguments = make([]uint16, argCount)
			for j := range a.Methods[i].Arguments {
				if err := binary.Read(r, be, &a.Methods[i].Arguments[j]); err != nil {
					return nil, err
				}
			}
		}
		return a, nil

	case "MethodParameters":
		var count byte
		if err := binary.Read(r, be, &count); err != nil {
			return nil, err
		}
		a := &MethodParametersAttribute{Parameters: make([]MethodParameter, count)}
		for i := range a.Parameters {
			if err := binary.Read(r, be, &a.Parameters[i]); err != nil {
				return nil, err
			}
		}
		return a, nil

	case "AnnotationDefault":
		ev, err := decodeElementValue(r)
		return &AnnotationDefaultAttribute{Value: ev}, err

	case "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations":
		anns, err := decodeAnnotations(r)
		return &AnnotationsAttribute{Kind: name, Annotations: anns}, err

	case "RuntimeVisibleParameterAnnotations", "RuntimeInvisibleParameterAnnotations":
		var count byte
		if err := binary.Read(r, be, &count); err != nil {
			return nil, err
		}
		a := &ParameterAnnotationsAttribute{Kind: name, Parameters: make([][]Annotation, count)}
		for i := range a.Parameters {
			anns, err := decodeAnnotations(r)
			if err != nil {
				return nil, err
			}
			a.Parameters[i] = anns
		}
		return a, nil

	case "RuntimeVisibleTypeAnnotations", "RuntimeInvisibleTypeAnnotations":
		tanns, err := decodeTypeAnnotations(r)
		return &TypeAnnotationsAttribute{Kind: name, Annotations: tanns}, err

	case "Module":
		return decodeModule(r)

	case "ModuleMainClass":
		var a ModuleMainClassAttribute
		err := binary.Read(r, be, &a.MainClassIndex)
		return &a, err

	case "ModulePackages":
		var count uint16
		if err := binary.Read(r, be, &count); err != nil {
			return nil, err
		}
		a := &ModulePackagesAttribute{Packages: make([]uint16, count)}
		for i := range a.Packages {
			if err := binary.Read(r, be, &a.Packages[i]); err != nil {
				return nil, err
			}
		}
		return a, nil

	default:
		return &RawAttribute{Name: name, Data: body}, nil
	}
}

func decodeCode(r *bytes.Reader, pool *ConstantPool) (*CodeAttribute, error) {
	be := binary.BigEndian
	a := &CodeAttribute{}

	if err := binary.Read(r, be, &a.MaxStack); err != nil {
		return nil, err
	}
	if err := binary.Read(r, be, &a.MaxLocals); err != nil {
		return nil, err
	}

	var codeLength uint32
	if err := binary.Read(r, be, &codeLength); err != nil {
		return nil, err
	}
	a.Code = make([]byte, codeLength)
	if _, err := io.ReadFull(r, a.Code); err != nil {
		return nil, err
	}

	var excCount uint16
	if err := binary.Read(r, be, &excCount); err != nil {
		return nil, err
	}
	a.Exceptions = make([]ExceptionHandler, excCount)
	for i := range a.Exceptions {
		if err := binary.Read(r, be, &a.Exceptions[i]); err != nil {
			return nil, err
		}
	}

	attrs, err := readAttributes(r, pool)
	if err != nil {
		return nil, fmt.Errorf("code attributes: %w", err)
	}
	a.Attributes = attrs

	return a, nil
}

func decodeAnnotations(r *bytes.Reader) ([]Annotation, error) {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	anns := make([]Annotation, count)
	for i := range anns {
		a, err := decodeAnnotation(r)
		if err != nil {
			return nil, err
		}
		anns[i] = a
	}
	return anns, nil
}

func decodeAnnotation(r *bytes.Reader) (Annotation, error) {
	be := binary.BigEndian
	var a Annotation
	if err := binary.Read(r, be, &a.TypeIndex); err != nil {
		return a, err
	}
	var count uint16
	if err := binary.Read(r, be, &count); err != nil {
		return a, err
	}
	a.Elements = make([]ElementValuePair, count)
	for i := range a.Elements {
		if err := binary.Read(r, be, &a.Elements[i].NameIndex); err != nil {
			return a, err
		}
		ev, err := decodeElementValue(r)
		if err != nil {
			return a, err
		}
		a.Elements[i].Value = ev
	}
	return a, nil
}

func decodeElementValue(r *bytes.Reader) (ElementValue, error) {
	be := binary.BigEndian
	var ev ElementValue
	if err := binary.Read(r, be, &ev.Tag); err != nil {
		return ev, err
	}

	switch ev.Tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		return ev, binary.Read(r, be, &ev.ConstIndex)

	case 'e':
		if err := binary.Read(r, be, &ev.TypeIndex); err != nil {
			return ev, err
		}
		return ev, binary.Read(r, be, &ev.ConstName)

	case 'c':
		return ev, binary.Read(r, be, &ev.ConstIndex)

	case '@':
		ann, err := decodeAnnotation(r)
		ev.Annotation = &ann
		return ev, err

	case '[':
		var count uint16
		if err := binary.Read(r, be, &count); err != nil {
			return ev, err
		}
		ev.Array = make([]ElementValue, count)
		for i := range ev.Array {
			child, err := decodeElementValue(r)
			if err != nil {
				return ev, err
			}
			ev.Array[i] = child
		}
		return ev, nil

	default:
		return ev, fmt.Errorf("unknown element value tag %q", ev.Tag)
	}
}

func decodeTypeAnnotations(r *bytes.Reader) ([]TypeAnnotation, error) {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	tanns := make([]TypeAnnotation, count)
	for i := range tanns {
		ta, err := decodeTypeAnnotation(r)
		if err != nil {
			return nil, err
		}
		tanns[i] = ta
	}
	return tanns, nil
}

func decodeTypeAnnotation(r *bytes.Reader) (TypeAnnotation, error) {
	be := binary.BigEndian
	var ta TypeAnnotation

	if err := binary.Read(r, be, &ta.TargetType); err != nil {
		return ta, err
	}

	var err error
	ta.Target, err = decodeTargetInfo(r, ta.TargetType)
	if err != nil {
		return ta, err
	}

	var pathLen byte
	if err := binary.Read(r, be, &pathLen); err != nil {
		return ta, err
	}
	ta.Path = make([]TypePathEntry, pathLen)
	for i := range ta.Path {
		if err := binary.Read(r, be, &ta.Path[i]); err != nil {
			return ta, err
		}
	}

	ta.Annotation, err = decodeAnnotation(r)
	return ta, err
}

// decodeTargetInfo decodes the target_info union by target_type, per JVM
// spec §4.7.20.1. Offsets that in the binary format name a bytecode index
// are left as raw uint16s here; pkg/jbc's printer resolves them to label
// names via the Labels Collector before emission.
func decodeTargetInfo(r *bytes.Reader, targetType byte) (TargetInfo, error) {
	be := binary.BigEndian
	var t TargetInfo

	switch targetType {
	case 0x00, 0x01: // type parameter of generic class/method
		t.Kind = "type_parameter"
		return t, binary.Read(r, be, &t.TypeParameterIdx)

	case 0x10: // supertype
		t.Kind = "supertype"
		return t, binary.Read(r, be, &t.SupertypeIndex)

	case 0x11, 0x12: // type parameter bound
		t.Kind = "type_parameter_bound"
		if err := binary.Read(r, be, &t.TypeParameterIdx); err != nil {
			return t, err
		}
		return t, binary.Read(r, be, &t.BoundIndex)

	case 0x13, 0x14, 0x15: // field / return / receiver
		t.Kind = "empty"
		return t, nil

	case 0x16: // formal parameter
		t.Kind = "formal_parameter"
		return t, binary.Read(r, be, &t.FormalParameterIdx)

	case 0x17: // throws
		t.Kind = "throws"
		return t, binary.Read(r, be, &t.ThrowsTypeIndex)

	case 0x40, 0x41: // local variable / resource variable
		t.Kind = "localvar"
		var tableLen uint16
		if err := binary.Read(r, be, &tableLen); err != nil {
			return t, err
		}
		t.LocalVarTable = make([]TypeAnnotationLocalVar, tableLen)
		for i := range t.LocalVarTable {
			var startPC, length, index uint16
			if err := binary.Read(r, be, &startPC); err != nil {
				return t, err
			}
			if err := binary.Read(r, be, &length); err != nil {
				return t, err
			}
			if err := binary.Read(r, be, &index); err != nil {
				return t, err
			}
			t.LocalVarTable[i] = TypeAnnotationLocalVar{Index: index, StartPC: startPC, Length: length}
		}
		return t, nil

	case 0x42: // exception table entry (catch)
		t.Kind = "catch"
		return t, binary.Read(r, be, &t.CatchTypeIndex)

	case 0x43, 0x44, 0x45, 0x46: // offset-based (instanceof/new/method ref)
		t.Kind = "offset"
		return t, binary.Read(r, be, &t.Offset)

	case 0x47, 0x48, 0x49, 0x4A, 0x4B: // type argument of cast/generic call
		t.Kind = "type_argument"
		if err := binary.Read(r, be, &t.Offset); err != nil {
			return t, err
		}
		return t, binary.Read(r, be, &t.ArgumentIndex)

	default:
		return t, fmt.Errorf("unknown type annotation target_type %#02x", targetType)
	}
}

func decodeModule(r *bytes.Reader) (*ModuleAttribute, error) {
	be := binary.BigEndian
	a := &ModuleAttribute{}

	if err := binary.Read(r, be, &a.NameIndex); err != nil {
		return nil, err
	}
	if err := binary.Read(r, be, &a.Flags); err != nil {
		return nil, err
	}
	if err := binary.Read(r, be, &a.VersionIdx); err != nil {
		return nil, err
	}

	var requiresCount uint16
	if err := binary.Read(r, be, &requiresCount); err != nil {
		return nil, err
	}
	a.Requires = make([]ModuleRequires, requiresCount)
	for i := range a.Requires {
		if err := binary.Read(r, be, &a.Requires[i]); err != nil {
			return nil, err
		}
	}

	var exportsCount uint16
	if err := binary.Read(r, be, &exportsCount); err != nil {
		return nil, err
	}
	a.Exports = make([]ModuleExports, exportsCount)
	for i := range a.Exports {
		if err := binary.Read(r, be, &a.Exports[i].Index); err != nil {
			return nil, err
		}
		if err := binary.Read(r, be, &a.Exports[i].Flags); err != nil {
			return nil, err
		}
		var toCount uint16
		if err := binary.Read(r, be, &toCount); err != nil {
			return nil, err
		}
		a.Exports[i].To = make([]uint16, toCount)
		for j := range a.Exports[i].To {
			if err := binary.Read(r, be, &a.Exports[i].To[j]); err != nil {
				return nil, err
			}
		}
	}

	var opensCount uint16
	if err := binary.Read(r, be, &opensCount); err != nil {
		return nil, err
	}
	a.Opens = make([]ModuleOpens, opensCount)
	for i := range a.Opens {
		if err := binary.Read(r, be, &a.Opens[i].Index); err != nil {
			return nil, err
		}
		if err := binary.Read(r, be, &a.Opens[i].Flags); err != nil {
			return nil, err
		}
		var toCount uint16
		if err := binary.Read(r, be, &toCount); err != nil {
			return nil, err
		}
		a.Opens[i].To = make([]uint16, toCount)
		for j := range a.Opens[i].To {
			if err := binary.Read(r, be, &a.Opens[i].To[j]); err != nil {
				return nil, err
			}
		}
	}

	var usesCount uint16
	if err := binary.Read(r, be, &usesCount); err != nil {
		return nil, err
	}
	a.Uses = make([]uint16, usesCount)
	for i := range a.Uses {
		if err := binary.Read(r, be, &a.Uses[i]); err != nil {
			return nil, err
		}
	}

	var providesCount uint16
	if err := binary.Read(r, be, &providesCount); err != nil {
		return nil, err
	}
	a.Provides = make([]ModuleProvides, providesCount)
	for i := range a.Provides {
		if err := binary.Read(r, be, &a.Provides[i].Index); err != nil {
			return nil, err
		}
		var withCount uint16
		if err := binary.Read(r, be, &withCount); err != nil {
			return nil, err
		}
		a.Provides[i].WithIdx = make([]uint16, withCount)
		for j := range a.Provides[i].WithIdx {
			if err := binary.Read(r, be, &a.Provides[i].WithIdx[j]); err != nil {
				return nil, err
			}
		}
	}

	return a, nil
}
