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
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Read parses a binary .class file from r.
func Read(r io.Reader) (*ClassFile, error) {
	var got uint32
	if err := binary.Read(r, binary.BigEndian, &got); err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if got != magic {
		return nil, fmt.Errorf("bad magic number: %#08x", got)
	}

	cf := &ClassFile{}

	if err := binary.Read(r, binary.BigEndian, &cf.MinorVersion); err != nil {
		return nil, fmt.Errorf("reading minor version: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.MajorVersion); err != nil {
		return nil, fmt.Errorf("reading major version: %w", err)
	}

	var poolCount uint16
	if err := binary.Read(r, binary.BigEndian, &poolCount); err != nil {
		return nil, fmt.Errorf("reading constant pool count: %w", err)
	}

	pool, err := readConstantPool(r, poolCount)
	if err != nil {
		return nil, fmt.Errorf("reading constant pool: %w", err)
	}
	cf.Pool = pool

	if err := binary.Read(r, binary.BigEndian, &cf.AccessFlags); err != nil {
		return nil, fmt.Errorf("reading access flags: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.ThisClass); err != nil {
		return nil, fmt.Errorf("reading this_class: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.SuperClass); err != nil {
		return nil, fmt.Errorf("reading super_class: %w", err)
	}

	var interfacesCount uint16
	if err := binary.Read(r, binary.BigEndian, &interfacesCount); err != nil {
		return nil, fmt.Errorf("reading interfaces count: %w", err)
	}
	cf.Interfaces = make([]uint16, interfacesCount)
	for i := range cf.Interfaces {
		if err := binary.Read(r, binary.BigEndian, &cf.Interfaces[i]); err != nil {
			return nil, fmt.Errorf("reading interface %d: %w", i, err)
		}
	}

	if cf.Fields, err = readMembers(r, pool); err != nil {
		return nil, fmt.Errorf("reading fields: %w", err)
	}
	if cf.Methods, err = readMembers(r, pool); err != nil {
		return nil, fmt.Errorf("reading methods: %w", err)
	}
	if cf.Attributes, err = readAttributes(r, pool); err != nil {
		return nil, fmt.Errorf("reading class attributes: %w", err)
	}

	return cf, nil
}

func readConstantPool(r io.Reader, count uint16) (*ConstantPool, error) {
	pool := NewConstantPool()
	pool.entries = make([]Entry, count)

	for i := uint16(1); i < count; i++ {
		var tag byte
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, fmt.Errorf("reading tag for entry %d: %w", i, err)
		}

		entry, wide, err := readConstantEntry(r, tag)
		if err != nil {
			return nil, fmt.Errorf("reading entry %d: %w", i, err)
		}

		pool.entries[i] = entry
		if wide {
			i++
		}
	}

	return pool, nil
}

// readConstantEntry reads one pool entry. wide reports whether the entry
// consumes the following slot too (long/double).
func readConstantEntry(r io.Reader, tag byte) (Entry, bool, error) {
	be := binary.BigEndian

	switch tag {
	case TagUtf8:
		var length uint16
		if err := binary.Read(r, be, &length); err != nil {
			return nil, false, err
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, false, err
		}
		return &Utf8Entry{Value: string(buf)}, false, nil

	case TagInteger:
		var v int32
		err := binary.Read(r, be, &v)
		return &IntegerEntry{v}, false, err

	case TagFloat:
		var bits uint32
		if err := binary.Read(r, be, &bits); err != nil {
			return nil, false, err
		}
		return &FloatEntry{math.Float32frombits(bits)}, false, nil

	case TagLong:
		var v int64
		err := binary.Read(r, be, &v)
		return &LongEntry{v}, true, err

	case TagDouble:
		var bits uint64
		if err := binary.Read(r, be, &bits); err != nil {
			return nil, false, err
		}
		return &DoubleEntry{math.Float64frombits(bits)}, true, nil

	case TagClass:
		var v ClassEntry
		err := binary.Read(r, be, &v.NameIndex)
		return &v, false, err

	case TagString:
		var v StringEntry
		err := binary.Read(r, be, &v.StringIndex)
		return &v, false, err

	case TagFieldref:
		var v FieldrefEntry
		if err := binary.Read(r, be, &v.ClassIndex); err != nil {
			return nil, false, err
		}
		err := binary.Read(r, be, &v.NameAndTypeIndex)
		return &v, false, err

	case TagMethodref:
		var v MethodrefEntry
		if err := binary.Read(r, be, &v.ClassIndex); err != nil {
			return nil, false, err
		}
		err := binary.Read(r, be, &v.NameAndTypeIndex)
		return &v, false, err

	case TagInterfaceMethodref:
		var v InterfaceMethodrefEntry
		if err := binary.Read(r, be, &v.ClassIndex); err != nil {
			return nil, false, err
		}
		err := binary.Read(r, be, &v.NameAndTypeIndex)
		return &v, false, err

	case TagNameAndType:
		var v NameAndTypeEntry
		if err := binary.Read(r, be, &v.NameIndex); err != nil {
			return nil, false, err
		}
		err := binary.Read(r, be, &v.DescriptorIndex)
		return &v, false, err

	case TagMethodHandle:
		var v MethodHandleEntry
		if err := binary.Read(r, be, &v.ReferenceKind); err != nil {
			return nil, false, err
		}
		err := binary.Read(r, be, &v.ReferenceIndex)
		return &v, false, err

	case TagMethodType:
		var v MethodTypeEntry
		err := binary.Read(r, be, &v.DescriptorIndex)
		return &v, false, err

	case TagDynamic:
		var v DynamicEntry
		if err := binary.Read(r, be, &v.BootstrapMethodAttrIndex); err != nil {
			return nil, false, err
		}
		err := binary.Read(r, be, &v.NameAndTypeIndex)
		return &v, false, err

	case TagInvokeDynamic:
		var v InvokeDynamicEntry
		if err := binary.Read(r, be, &v.BootstrapMethodAttrIndex); err != nil {
			return nil, false, err
		}
		err := binary.Read(r, be, &v.NameAndTypeIndex)
		return &v, false, err

	case TagModule:
		var v ModuleEntry
		err := binary.Read(r, be, &v.NameIndex)
		return &v, false, err

	case TagPackage:
		var v PackageEntry
		err := binary.Read(r, be, &v.NameIndex)
		return &v, false, err

	default:
		return nil, false, fmt.Errorf("unknown constant pool tag %d", tag)
	}
}

func readMembers(r io.Reader, pool *ConstantPool) ([]*Member, error) {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("reading count: %w", err)
	}

	members := make([]*Member, count)
	for i := range members {
		m := &Member{}
		if err := binary.Read(r, binary.BigEndian, &m.AccessFlags); err != nil {
			return nil, fmt.Errorf("member %d access flags: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &m.NameIndex); err != nil {
			return nil, fmt.Errorf("member %d name index: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &m.DescIndex); err != nil {
			return nil, fmt.Errorf("member %d descriptor index: %w", i, err)
		}

		attrs, err := readAttributes(r, pool)
		if err != nil {
			return nil, fmt.Errorf("member %d attributes: %w", i, err)
		}
		m.Attributes = attrs
		members[i] = m
	}

	return members, nil
}

func readAttributes(r io.Reader, pool *ConstantPool) ([]Attribute, error) {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("reading count: %w", err)
	}

	attrs := make([]Attribute, 0, count)
	for i := uint16(0); i < count; i++ {
		var nameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("attribute %d name index: %w", i, err)
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("attribute %d length: %w", i, err)
		}

		body := make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("attribute %d body: %w", i, err)
		}

		name, err := pool.Utf8(nameIndex)
		if err != nil {
			return nil, fmt.Errorf("attribute %d: %w", i, err)
		}

		attr, err := decodeAttribute(name, body, pool)
		if err != nil {
			return nil, fmt.Errorf("attribute %d (%s): %w", i, name, err)
		}
		attrs = append(attrs, attr)
	}

	return attrs, nil
}
