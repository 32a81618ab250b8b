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
	"math"
)

// Write serializes cf to its binary .class wire format.
func Write(w io.Writer, cf *ClassFile) error {
	be := binary.BigEndian

	if err := binary.Write(w, be, uint32(magic)); err != nil {
		return fmt.Errorf("writing magic: %w", err)
	}
	if err := binary.Write(w, be, cf.MinorVersion); err != nil {
		return fmt.Errorf("writing minor version: %w", err)
	}
	if err := binary.Write(w, be, cf.MajorVersion); err != nil {
		return fmt.Errorf("writing major version: %w", err)
	}

	internAttributeNames(cf.Attributes, cf.Pool)
	for _, m := range cf.Fields {
		internAttributeNames(m.Attributes, cf.Pool)
	}
	for _, m := range cf.Methods {
		internAttributeNames(m.Attributes, cf.Pool)
	}

	if err := writeConstantPool(w, cf.Pool); err != nil {
		return fmt.Errorf("writing constant pool: %w", err)
	}

	if err := binary.Write(w, be, cf.AccessFlags); err != nil {
		return fmt.Errorf("writing access flags: %w", err)
	}
	if err := binary.Write(w, be, cf.ThisClass); err != nil {
		return fmt.Errorf("writing this_class: %w", err)
	}
	if err := binary.Write(w, be, cf.SuperClass); err != nil {
		return fmt.Errorf("writing super_class: %w", err)
	}

	if err := binary.Write(w, be, uint16(len(cf.Interfaces))); err != nil {
		return fmt.Errorf("writing interfaces count: %w", err)
	}
	for i, iface := range cf.Interfaces {
		if err := binary.Write(w, be, iface); err != nil {
			return fmt.Errorf("writing interface %d: %w", i, err)
		}
	}

	if err := writeMembers(w, cf.Fields, cf.Pool); err != nil {
		return fmt.Errorf("writing fields: %w", err)
	}
	if err := writeMembers(w, cf.Methods, cf.Pool); err != nil {
		return fmt.Errorf("writing methods: %w", err)
	}
	if err := writeAttributes(w, cf.Attributes, cf.Pool); err != nil {
		return fmt.Errorf("writing class attributes: %w", err)
	}

	return nil
}

// internAttributeNames walks attrs, interning each one's name Utf8 entry
// ahead of writeConstantPool, since encodeAttribute's only pool mutation
// (the attribute name itself) otherwise happens after the pool's length
// has already gone out on the wire.
func internAttributeNames(attrs []Attribute, pool *ConstantPool) {
	for _, a := range attrs {
		pool.AddUtf8(a.AttributeName())
		if code, ok := a.(*CodeAttribute); ok {
			internAttributeNames(code.Attributes, pool)
		}
	}
}

func writeConstantPool(w io.Writer, pool *ConstantPool) error {
	be := binary.BigEndian

	if err := binary.Write(w, be, uint16(pool.Len())); err != nil {
		return err
	}

	for i := 1; i < len(pool.entries); i++ {
		entry := pool.entries[i]
		if entry == nil {
			continue // second slot of a long/double
		}
		if err := writeConstantEntry(w, entry); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}

	return nil
}

func writeConstantEntry(w io.Writer, e Entry) error {
	be := binary.BigEndian

	if err := binary.Write(w, be, e.Tag()); err != nil {
		return err
	}

	switch c := e.(type) {
	case *Utf8Entry:
		buf := []byte(c.Value)
		if err := binary.Write(w, be, uint16(len(buf))); err != nil {
			return err
		}
		_, err := w.Write(buf)
		return err

	case *IntegerEntry:
		return binary.Write(w, be, c.Value)

	case *FloatEntry:
		return binary.Write(w, be, math.Float32bits(c.Value))

	case *LongEntry:
		return binary.Write(w, be, c.Value)

	case *DoubleEntry:
		return binary.Write(w, be, math.Float64bits(c.Value))

	case *ClassEntry:
		return binary.Write(w, be, c.NameIndex)

	case *StringEntry:
		return binary.Write(w, be, c.StringIndex)

	case *FieldrefEntry:
		if err := binary.Write(w, be, c.ClassIndex); err != nil {
			return err
		}
		return binary.Write(w, be, c.NameAndTypeIndex)

	case *MethodrefEntry:
		if err := binary.Write(w, be, c.ClassIndex); err != nil {
			return err
		}
		return binary.Write(w, be, c.NameAndTypeIndex)

	case *InterfaceMethodrefEntry:
		if err := binary.Write(w, be, c.ClassIndex); err != nil {
			return err
		}
		return binary.Write(w, be, c.NameAndTypeIndex)

	case *NameAndTypeEntry:
		if err := binary.Write(w, be, c.NameIndex); err != nil {
			return err
		}
		return binary.Write(w, be, c.DescriptorIndex)

	case *MethodHandleEntry:
		if err := binary.Write(w, be, c.ReferenceKind); err != nil {
			return err
		}
		return binary.Write(w, be, c.ReferenceIndex)

	case *MethodTypeEntry:
		return binary.Write(w, be, c.DescriptorIndex)

	case *DynamicEntry:
		if err := binary.Write(w, be, c.BootstrapMethodAttrIndex); err != nil {
			return err
		}
		return binary.Write(w, be, c.NameAndTypeIndex)

	case *InvokeDynamicEntry:
		if err := binary.Write(w, be, c.BootstrapMethodAttrIndex); err != nil {
			return err
		}
		return binary.Write(w, be, c.NameAndTypeIndex)

	case *ModuleEntry:
		return binary.Write(w, be, c.NameIndex)

	case *PackageEntry:
		return binary.Write(w, be, c.NameIndex)

	default:
		return fmt.Errorf("unknown constant pool entry type %T", e)
	}
}

func writeMembers(w io.Writer, members []*Member, pool *ConstantPool) error {
	be := binary.BigEndian

	if err := binary.Write(w, be, uint16(len(members))); err != nil {
		return err
	}

	for i, m := range members {
		if err := binary.Write(w, be, m.AccessFlags); err != nil {
			return fmt.Errorf("member %d access flags: %w", i, err)
		}
		if err := binary.Write(w, be, m.NameIndex); err != nil {
			return fmt.Errorf("member %d name index: %w", i, err)
		}
		if err := binary.Write(w, be, m.DescIndex); err != nil {
			return fmt.Errorf("member %d descriptor index: %w", i, err)
		}
		if err := writeAttributes(w, m.Attributes, pool); err != nil {
			return fmt.Errorf("member %d attributes: %w", i, err)
		}
	}

	return nil
}

func writeAttributes(w io.Writer, attrs []Attribute, pool *ConstantPool) error {
	be := binary.BigEndian

	if err := binary.Write(w, be, uint16(len(attrs))); err != nil {
		return err
	}

	for i, a := range attrs {
		body, err := encodeAttribute(a, pool)
		if err != nil {
			return fmt.Errorf("attribute %d (%s): %w", i, a.AttributeName(), err)
		}

		nameIndex := pool.AddUtf8(a.AttributeName())
		if err := binary.Write(w, be, nameIndex); err != nil {
			return fmt.Errorf("attribute %d name index: %w", i, err)
		}
		if err := binary.Write(w, be, uint32(len(body))); err != nil {
			return fmt.Errorf("attribute %d length: %w", i, err)
		}
		if _, err := w.Write(body); err != nil {
			return fmt.Errorf("attribute %d body: %w", i, err)
		}
	}

	return nil
}

// encodeAttribute serializes a typed attribute's body.
func encodeAttribute(a Attribute, pool *ConstantPool) (body []byte, err error) {
	buf := new(bytes.Buffer)
	be := binary.BigEndian

	switch v := a.(type) {
	case *RawAttribute:
		return v.Data, nil

	case *CodeAttribute:
		err = encodeCode(buf, v, pool)

	case *ConstantValueAttribute:
		err = binary.Write(buf, be, v.ValueIndex)

	case *ExceptionsAttribute:
		binary.Write(buf, be, uint16(len(v.Exceptions)))
		for _, idx := range v.Exceptions {
			binary.Write(buf, be, idx)
		}

	case *SourceFileAttribute:
		err = binary.Write(buf, be, v.NameIndex)

	case *SourceDirAttribute:
		err = binary.Write(buf, be, v.NameIndex)

	case *SignatureAttribute:
		err = binary.Write(buf, be, v.SignatureIndex)

	case *DeprecatedAttribute, *SyntheticAttribute:
		// no body

	case *LineNumberTableAttribute:
		binary.Write(buf, be, uint16(len(v.Lines)))
		for _, l := range v.Lines {
			binary.Write(buf, be, l)
		}

	case *LocalVariableTableAttribute:
		binary.Write(buf, be, uint16(len(v.Locals)))
		for _, l := range v.Locals {
			binary.Write(buf, be, l)
		}

	case *LocalVariableTypeTableAttribute:
		binary.Write(buf, be, uint16(len(v.Locals)))
		for _, l := range v.Locals {
			binary.Write(buf, be, l)
		}

	case *InnerClassesAttribute:
		binary.Write(buf, be, uint16(len(v.Classes)))
		for _, c := range v.Classes {
			binary.Write(buf, be, c)
		}

	case *EnclosingMethodAttribute:
		binary.Write(buf, be, v.ClassIndex)
		err = binary.Write(buf, be, v.MethodIndex)

	case *NestHostAttribute:
		err = binary.Write(buf, be, v.HostClassIndex)

	case *NestMembersAttribute:
		binary.Write(buf, be, uint16(len(v.Classes)))
		for _, c := range v.Classes {
			binary.Write(buf, be, c)
		}

	case *BootstrapMethodsAttribute:
		binary.Write(buf, be, uint16(len(v.Methods)))
		for _, m := range v.Methods {
			binary.Write(buf, be, m.MethodRefIndex)
			binary.Write(buf, be, uint16(len(m.Arguments)))
			for _, arg := range m.Arguments {
				binary.Write(buf, be, arg)
			}
		}

	case *MethodParametersAttribute:
		binary.Write(buf, be, byte(len(v.Parameters)))
		for _, p := range v.Parameters {
			binary.Write(buf, be, p)
		}

	case *AnnotationDefaultAttribute:
		err = encodeElementValue(buf, v.Value)

	case *AnnotationsAttribute:
		err = encodeAnnotations(buf, v.Annotations)

	case *ParameterAnnotationsAttribute:
		binary.Write(buf, be, byte(len(v.Parameters)))
		for _, p := range v.Parameters {
			if err = encodeAnnotations(buf, p); err != nil {
				break
			}
		}

	case *TypeAnnotationsAttribute:
		err = encodeTypeAnnotations(buf, v.Annotations)

	case *ModuleAttribute:
		err = encodeModule(buf, v)

	case *ModuleMainClassAttribute:
		err = binary.Write(buf, be, v.MainClassIndex)

	case *ModulePackagesAttribute:
		binary.Write(buf, be, uint16(len(v.Packages)))
		for _, p := range v.Packages {
			binary.Write(buf, be, p)
		}

	default:
		return nil, fmt.Errorf("unknown attribute type %T", a)
	}

	return buf.Bytes(), err
}

func encodeCode(buf *bytes.Buffer, a *CodeAttribute, pool *ConstantPool) error {
	be := binary.BigEndian

	if err := binary.Write(buf, be, a.MaxStack); err != nil {
		return err
	}
	if err := binary.Write(buf, be, a.MaxLocals); err != nil {
		return err
	}
	if err := binary.Write(buf, be, uint32(len(a.Code))); err != nil {
		return err
	}
	if _, err := buf.Write(a.Code); err != nil {
		return err
	}

	if err := binary.Write(buf, be, uint16(len(a.Exceptions))); err != nil {
		return err
	}
	for _, e := range a.Exceptions {
		if err := binary.Write(buf, be, e); err != nil {
			return err
		}
	}

	return writeAttributes(buf, a.Attributes, pool)
}

func encodeAnnotations(buf *bytes.Buffer, anns []Annotation) error {
	if err := binary.Write(buf, binary.BigEndian, uint16(len(anns))); err != nil {
		return err
	}
	for _, a := range anns {
		if err := encodeAnnotation(buf, a); err != nil {
			return err
		}
	}
	return nil
}

func encodeAnnotation(buf *bytes.Buffer, a Annotation) error {
	be := binary.BigEndian
	if err := binary.Write(buf, be, a.TypeIndex); err != nil {
		return err
	}
	if err := binary.Write(buf, be, uint16(len(a.Elements))); err != nil {
		return err
	}
	for _, pair := range a.Elements {
		if err := binary.Write(buf, be, pair.NameIndex); err != nil {
			return err
		}
		if err := encodeElementValue(buf, pair.Value); err != nil {
			return err
		}
	}
	return nil
}

func encodeElementValue(buf *bytes.Buffer, ev ElementValue) error {
	be := binary.BigEndian
	if err := binary.Write(buf, be, ev.Tag); err != nil {
		return err
	}

	switch ev.Tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		return binary.Write(buf, be, ev.ConstIndex)

	case 'e':
		if err := binary.Write(buf, be, ev.TypeIndex); err != nil {
			return err
		}
		return binary.Write(buf, be, ev.ConstName)

	case 'c':
		return binary.Write(buf, be, ev.ConstIndex)

	case '@':
		return encodeAnnotation(buf, *ev.Annotation)

	case '[':
		if err := binary.Write(buf, be, uint16(len(ev.Array))); err != nil {
			return err
		}
		for _, child := range ev.Array {
			if err := encodeElementValue(buf, child); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown element value tag %q", ev.Tag)
	}
}

func encodeTypeAnnotations(buf *bytes.Buffer, tanns []TypeAnnotation) error {
	if err := binary.Write(buf, binary.BigEndian, uint16(len(tanns))); err != nil {
		return err
	}
	for _, ta := range tanns {
		if err := encodeTypeAnnotation(buf, ta); err != nil {
			return err
		}
	}
	return nil
}

func encodeTypeAnnotation(buf *bytes.Buffer, ta TypeAnnotation) error {
	be := binary.BigEndian
	if err := binary.Write(buf, be, ta.TargetType); err != nil {
		return err
	}
	if err := encodeTargetInfo(buf, ta.TargetType, ta.Target); err != nil {
		return err
	}
	if err := binary.Write(buf, be, byte(len(ta.Path))); err != nil {
		return err
	}
	for _, p := range ta.Path {
		if err := binary.Write(buf, be, p); err != nil {
			return err
		}
	}
	return encodeAnnotation(buf, ta.Annotation)
}

func encodeTargetInfo(buf *bytes.Buffer, targetType byte, t TargetInfo) error {
	be := binary.BigEndian

	switch targetType {
	case 0x00, 0x01:
		return binary.Write(buf, be, t.TypeParameterIdx)

	case 0x10:
		return binary.Write(buf, be, t.SupertypeIndex)

	case 0x11, 0x12:
		if err := binary.Write(buf, be, t.TypeParameterIdx); err != nil {
			return err
		}
		return binary.Write(buf, be, t.BoundIndex)

	case 0x13, 0x14, 0x15:
		return nil

	case 0x16:
		return binary.Write(buf, be, t.FormalParameterIdx)

	case 0x17:
		return binary.Write(buf, be, t.ThrowsTypeIndex)

	case 0x40, 0x41:
		if err := binary.Write(buf, be, uint16(len(t.LocalVarTable))); err != nil {
			return err
		}
		for _, lv := range t.LocalVarTable {
			if err := binary.Write(buf, be, lv.StartPC); err != nil {
				return err
			}
			if err := binary.Write(buf, be, lv.Length); err != nil {
				return err
			}
			if err := binary.Write(buf, be, lv.Index); err != nil {
				return err
			}
		}
		return nil

	case 0x42:
		return binary.Write(buf, be, t.CatchTypeIndex)

	case 0x43, 0x44, 0x45, 0x46:
		return binary.Write(buf, be, t.Offset)

	case 0x47, 0x48, 0x49, 0x4A, 0x4B:
		if err := binary.Write(buf, be, t.Offset); err != nil {
			return err
		}
		return binary.Write(buf, be, t.ArgumentIndex)

	default:
		return fmt.Errorf("unknown type annotation target_type %#02x", targetType)
	}
}

func encodeModule(buf *bytes.Buffer, a *ModuleAttribute) error {
	be := binary.BigEndian

	if err := binary.Write(buf, be, a.NameIndex); err != nil {
		return err
	}
	if err := binary.Write(buf, be, a.Flags); err != nil {
		return err
	}
	if err := binary.Write(buf, be, a.VersionIdx); err != nil {
		return err
	}

	binary.Write(buf, be, uint16(len(a.Requires)))
	for _, r := range a.Requires {
		binary.Write(buf, be, r)
	}

	binary.Write(buf, be, uint16(len(a.Exports)))
	for _, e := range a.Exports {
		binary.Write(buf, be, e.Index)
		binary.Write(buf, be, e.Flags)
		binary.Write(buf, be, uint16(len(e.To)))
		for _, t := range e.To {
			binary.Write(buf, be, t)
		}
	}

	binary.Write(buf, be, uint16(len(a.Opens)))
	for _, o := range a.Opens {
		binary.Write(buf, be, o.Index)
		binary.Write(buf, be, o.Flags)
		binary.Write(buf, be, uint16(len(o.To)))
		for _, t := range o.To {
			binary.Write(buf, be, t)
		}
	}

	binary.Write(buf, be, uint16(len(a.Uses)))
	for _, u := range a.Uses {
		binary.Write(buf, be, u)
	}

	binary.Write(buf, be, uint16(len(a.Provides)))
	for _, p := range a.Provides {
		binary.Write(buf, be, p.Index)
		binary.Write(buf, be, uint16(len(p.WithIdx)))
		for _, w := range p.WithIdx {
			binary.Write(buf, be, w)
		}
	}

	return nil
}
