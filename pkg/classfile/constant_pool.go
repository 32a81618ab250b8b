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

import "fmt"

// Constant pool tags, JVM spec table 4.4-A.
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
	TagModule             = 19
	TagPackage            = 20
)

// Reference kinds for CONSTANT_MethodHandle, JVM spec table 5.4.3.5-A.
const (
	RefGetField         = 1
	RefGetStatic        = 2
	RefPutField         = 3
	RefPutStatic        = 4
	RefInvokeVirtual    = 5
	RefInvokeStatic     = 6
	RefInvokeSpecial    = 7
	RefNewInvokeSpecial = 8
	RefInvokeInterface  = 9
)

// Entry is implemented by every constant pool tag.
type Entry interface {
	Tag() byte
}

type Utf8Entry struct{ Value string }

func (e *Utf8Entry) Tag() byte { return TagUtf8 }

type IntegerEntry struct{ Value int32 }

func (e *IntegerEntry) Tag() byte { return TagInteger }

type FloatEntry struct{ Value float32 }

func (e *FloatEntry) Tag() byte { return TagFloat }

type LongEntry struct{ Value int64 }

func (e *LongEntry) Tag() byte { return TagLong }

type DoubleEntry struct{ Value float64 }

func (e *DoubleEntry) Tag() byte { return TagDouble }

type ClassEntry struct{ NameIndex uint16 }

func (e *ClassEntry) Tag() byte { return TagClass }

type StringEntry struct{ StringIndex uint16 }

func (e *StringEntry) Tag() byte { return TagString }

type FieldrefEntry struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (e *FieldrefEntry) Tag() byte { return TagFieldref }

type MethodrefEntry struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (e *MethodrefEntry) Tag() byte { return TagMethodref }

type InterfaceMethodrefEntry struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (e *InterfaceMethodrefEntry) Tag() byte { return TagInterfaceMethodref }

type NameAndTypeEntry struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (e *NameAndTypeEntry) Tag() byte { return TagNameAndType }

type MethodHandleEntry struct {
	ReferenceKind  byte
	ReferenceIndex uint16
}

func (e *MethodHandleEntry) Tag() byte { return TagMethodHandle }

type MethodTypeEntry struct{ DescriptorIndex uint16 }

func (e *MethodTypeEntry) Tag() byte { return TagMethodType }

type DynamicEntry struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (e *DynamicEntry) Tag() byte { return TagDynamic }

type InvokeDynamicEntry struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (e *InvokeDynamicEntry) Tag() byte { return TagInvokeDynamic }

type ModuleEntry struct{ NameIndex uint16 }

func (e *ModuleEntry) Tag() byte { return TagModule }

type PackageEntry struct{ NameIndex uint16 }

func (e *PackageEntry) Tag() byte { return TagPackage }

// ConstantPool is the 1-based, dedup-on-insert constant pool editor the
// translator consumes per spec §3/§4.3. Index 0 is reserved; long and
// double entries consume two slots, with the second slot left nil.
type ConstantPool struct {
	entries []Entry // entries[0] is always nil (the reserved slot)
	index   map[string]uint16
}

// NewConstantPool returns an empty pool with the reserved slot 0 in place.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{
		entries: []Entry{nil},
		index:   make(map[string]uint16),
	}
}

// Len returns the JVM constant_pool_count (highest index + 1).
func (p *ConstantPool) Len() int { return len(p.entries) }

// Get returns the raw entry at a 1-based index.
func (p *ConstantPool) Get(i uint16) (Entry, error) {
	if int(i) <= 0 || int(i) >= len(p.entries) || p.entries[i] == nil {
		return nil, fmt.Errorf("constant pool index %d out of range", i)
	}
	return p.entries[i], nil
}

// append adds a raw entry without deduplication and returns its index.
// Long/double entries additionally occupy the following slot.
func (p *ConstantPool) append(e Entry) uint16 {
	index := uint16(len(p.entries))
	p.entries = append(p.entries, e)

	switch e.(type) {
	case *LongEntry, *DoubleEntry:
		p.entries = append(p.entries, nil)
	}

	return index
}

// dedupKey builds a key used to deduplicate the scalar constant kinds
// (everything but array-ish entries, which there are none of).
func dedupKey(e Entry) string {
	switch c := e.(type) {
	case *Utf8Entry:
		return fmt.Sprintf("u:%s", c.Value)
	case *IntegerEntry:
		return fmt.Sprintf("i:%d", c.Value)
	case *FloatEntry:
		return fmt.Sprintf("f:%g", c.Value)
	case *LongEntry:
		return fmt.Sprintf("l:%d", c.Value)
	case *DoubleEntry:
		return fmt.Sprintf("d:%g", c.Value)
	case *ClassEntry:
		return fmt.Sprintf("c:%d", c.NameIndex)
	case *StringEntry:
		return fmt.Sprintf("s:%d", c.StringIndex)
	case *FieldrefEntry:
		return fmt.Sprintf("F:%d:%d", c.ClassIndex, c.NameAndTypeIndex)
	case *MethodrefEntry:
		return fmt.Sprintf("M:%d:%d", c.ClassIndex, c.NameAndTypeIndex)
	case *InterfaceMethodrefEntry:
		return fmt.Sprintf("I:%d:%d", c.ClassIndex, c.NameAndTypeIndex)
	case *NameAndTypeEntry:
		return fmt.Sprintf("N:%d:%d", c.NameIndex, c.DescriptorIndex)
	case *MethodHandleEntry:
		return fmt.Sprintf("H:%d:%d", c.ReferenceKind, c.ReferenceIndex)
	case *MethodTypeEntry:
		return fmt.Sprintf("T:%d", c.DescriptorIndex)
	case *ModuleEntry:
		return fmt.Sprintf("m:%d", c.NameIndex)
	case *PackageEntry:
		return fmt.Sprintf("p:%d", c.NameIndex)
	default:
		// Dynamic/InvokeDynamic are deliberately never deduplicated: the
		// bootstrap attr index alone does not uniquely identify the call
		// site's semantics across separate loadable-constant sites.
		return ""
	}
}

// intern deduplicates e against previously-added entries of the same kind
// and returns its 1-based index, adding a fresh entry on first sight.
func (p *ConstantPool) intern(e Entry) uint16 {
	if key := dedupKey(e); key != "" {
		if idx, ok := p.index[key]; ok {
			return idx
		}
		idx := p.append(e)
		p.index[key] = idx
		return idx
	}
	return p.append(e)
}

func (p *ConstantPool) Utf8(index uint16) (string, error) {
	e, err := p.Get(index)
	if err != nil {
		return "", err
	}
	u, ok := e.(*Utf8Entry)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Utf8", index)
	}
	return u.Value, nil
}

func (p *ConstantPool) ClassName(index uint16) (string, error) {
	e, err := p.Get(index)
	if err != nil {
		return "", err
	}
	c, ok := e.(*ClassEntry)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Class", index)
	}
	return p.Utf8(c.NameIndex)
}

func (p *ConstantPool) NameAndType(index uint16) (name, desc string, err error) {
	e, err := p.Get(index)
	if err != nil {
		return "", "", err
	}
	nt, ok := e.(*NameAndTypeEntry)
	if !ok {
		return "", "", fmt.Errorf("constant pool index %d is not NameAndType", index)
	}
	name, err = p.Utf8(nt.NameIndex)
	if err != nil {
		return "", "", err
	}
	desc, err = p.Utf8(nt.DescriptorIndex)
	return name, desc, err
}

// AddUtf8 interns a UTF-8 string and returns its index.
func (p *ConstantPool) AddUtf8(s string) uint16 {
	return p.intern(&Utf8Entry{Value: s})
}

// AddInteger, AddFloat, AddLong, AddDouble intern a numeric constant.
func (p *ConstantPool) AddInteger(v int32) uint16   { return p.intern(&IntegerEntry{v}) }
func (p *ConstantPool) AddFloat(v float32) uint16   { return p.intern(&FloatEntry{v}) }
func (p *ConstantPool) AddLong(v int64) uint16      { return p.intern(&LongEntry{v}) }
func (p *ConstantPool) AddDouble(v float64) uint16  { return p.intern(&DoubleEntry{v}) }

// AddClass interns a class (or array, per JVM spec's internal name rules)
// constant for an already-internal-form name.
func (p *ConstantPool) AddClass(internalName string) uint16 {
	return p.intern(&ClassEntry{NameIndex: p.AddUtf8(internalName)})
}

func (p *ConstantPool) AddString(s string) uint16 {
	return p.intern(&StringEntry{StringIndex: p.AddUtf8(s)})
}

func (p *ConstantPool) AddNameAndType(name, descriptor string) uint16 {
	return p.intern(&NameAndTypeEntry{
		NameIndex:       p.AddUtf8(name),
		DescriptorIndex: p.AddUtf8(descriptor),
	})
}

func (p *ConstantPool) AddFieldref(class, name, descriptor string) uint16 {
	return p.intern(&FieldrefEntry{
		ClassIndex:       p.AddClass(class),
		NameAndTypeIndex: p.AddNameAndType(name, descriptor),
	})
}

func (p *ConstantPool) AddMethodref(class, name, descriptor string) uint16 {
	return p.intern(&MethodrefEntry{
		ClassIndex:       p.AddClass(class),
		NameAndTypeIndex: p.AddNameAndType(name, descriptor),
	})
}

func (p *ConstantPool) AddInterfaceMethodref(class, name, descriptor string) uint16 {
	return p.intern(&InterfaceMethodrefEntry{
		ClassIndex:       p.AddClass(class),
		NameAndTypeIndex: p.AddNameAndType(name, descriptor),
	})
}

func (p *ConstantPool) AddMethodHandle(kind byte, refIndex uint16) uint16 {
	return p.intern(&MethodHandleEntry{ReferenceKind: kind, ReferenceIndex: refIndex})
}

func (p *ConstantPool) AddMethodType(descriptor string) uint16 {
	return p.intern(&MethodTypeEntry{DescriptorIndex: p.AddUtf8(descriptor)})
}

// AddDynamic and AddInvokeDynamic are never deduplicated against existing
// entries (see dedupKey); each call appends a fresh entry.
func (p *ConstantPool) AddDynamic(bootstrapIndex uint16, name, descriptor string) uint16 {
	return p.intern(&DynamicEntry{
		BootstrapMethodAttrIndex: bootstrapIndex,
		NameAndTypeIndex:         p.AddNameAndType(name, descriptor),
	})
}

func (p *ConstantPool) AddInvokeDynamic(bootstrapIndex uint16, name, descriptor string) uint16 {
	return p.intern(&InvokeDynamicEntry{
		BootstrapMethodAttrIndex: bootstrapIndex,
		NameAndTypeIndex:         p.AddNameAndType(name, descriptor),
	})
}

func (p *ConstantPool) AddModule(name string) uint16 {
	return p.intern(&ModuleEntry{NameIndex: p.AddUtf8(name)})
}

func (p *ConstantPool) AddPackage(name string) uint16 {
	return p.intern(&PackageEntry{NameIndex: p.AddUtf8(name)})
}
