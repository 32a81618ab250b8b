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

// Package classfile reads and writes the binary .class wire format defined
// by the JVM specification. It owns no translation surface syntax; pkg/jbc
// builds a ClassFile through this package's types and the ConstantPool
// editor below.
package classfile

// Class access flags, JVM spec table 4.1-A.
const (
	AccPublic     = 0x0001
	AccPrivate    = 0x0002
	AccProtected  = 0x0004
	AccStatic     = 0x0008
	AccFinal      = 0x0010
	AccSuper      = 0x0020
	AccSynchronized = 0x0020
	AccVolatile   = 0x0040
	AccBridge     = 0x0040
	AccTransient  = 0x0080
	AccVarargs    = 0x0080
	AccNative     = 0x0100
	AccInterface  = 0x0200
	AccAbstract   = 0x0400
	AccStrict     = 0x0800
	AccSynthetic  = 0x1000
	AccAnnotation = 0x2000
	AccEnum       = 0x4000
	AccMandated   = 0x8000
	AccModule     = 0x8000
	AccOpen          = 0x0020
	AccTransitive    = 0x0020
	AccStaticPhase   = 0x0040
)

// Major version numbers, JVM spec table 4.1-B, from 45 (Java 1.0.2) to 57
// (Java 13). Neither the reader nor the parser checks a class file's
// version against this range.
const (
	Java1_0_2 = 45
	Java1_1   = 45
	Java5     = 49
	Java6     = 50
	Java7     = 51
	Java8     = 52
	Java9     = 53
	Java10    = 54
	Java11    = 55
	Java12    = 56
	Java13    = 57
)

const magic = 0xCAFEBABE

// ClassFile is the in-memory class model this module translates against.
// It owns its constant pool and every field/method/attribute reachable from
// it; callers do not share one ClassFile across translation units (§5).
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	Pool         *ConstantPool
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []*Member
	Methods      []*Member
	Attributes   []Attribute
}

// ClassName returns the internal (slash-separated) name of this class.
func (cf *ClassFile) ClassName() string {
	name, _ := cf.Pool.ClassName(cf.ThisClass)
	return name
}

// SuperClassName returns the internal name of the super class, or "" if
// this class has none (java/lang/Object, or a module-info class).
func (cf *ClassFile) SuperClassName() string {
	if cf.SuperClass == 0 {
		return ""
	}
	name, _ := cf.Pool.ClassName(cf.SuperClass)
	return name
}

// Member is a field or a method. Methods additionally carry a Code
// attribute when they are not abstract/native.
type Member struct {
	AccessFlags uint16
	NameIndex   uint16
	DescIndex   uint16
	Attributes  []Attribute
}

func (m *Member) Name(pool *ConstantPool) string {
	s, _ := pool.Utf8(m.NameIndex)
	return s
}

func (m *Member) Descriptor(pool *ConstantPool) string {
	s, _ := pool.Utf8(m.DescIndex)
	return s
}

// Code finds this member's Code attribute, if any.
func (m *Member) Code() *CodeAttribute {
	for _, a := range m.Attributes {
		if c, ok := a.(*CodeAttribute); ok {
			return c
		}
	}
	return nil
}

// Attribute is implemented by every recognised attribute kind. Unknown
// attributes are represented as RawAttribute and dropped on disassembly
// per spec §1/§9 ("does not preserve attributes unknown to it").
type Attribute interface {
	AttributeName() string
}

// RawAttribute carries an attribute this module did not parse into a typed
// form: either genuinely unknown, or a kind (StackMapTable) that is opaque
// bytes regenerated by an external preverifier.
type RawAttribute struct {
	Name string
	Data []byte
}

func (a *RawAttribute) AttributeName() string { return a.Name }

// CodeAttribute is the Code attribute of a method: bytecode, exception
// table, and nested attributes (line numbers, local variables, type
// annotations; StackMapTable is external and kept as RawAttribute inside
// this list when present).
type CodeAttribute struct {
	MaxStack   uint16
	MaxLocals  uint16
	Code       []byte
	Exceptions []ExceptionHandler
	Attributes []Attribute
}

func (a *CodeAttribute) AttributeName() string { return "Code" }

// ExceptionHandler is one entry of a Code attribute's exception table.
// CatchType == 0 means "any" (a finally block).
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

// LineNumberTableAttribute maps bytecode offsets to source line numbers.
type LineNumberTableAttribute struct {
	Lines []LineNumberEntry
}

func (a *LineNumberTableAttribute) AttributeName() string { return "LineNumberTable" }

type LineNumberEntry struct {
	StartPC uint16
	Line    uint16
}

// LocalVariableTableAttribute describes the local variable slots live over
// a range of bytecode offsets.
type LocalVariableTableAttribute struct {
	Locals []LocalVariableEntry
}

func (a *LocalVariableTableAttribute) AttributeName() string { return "LocalVariableTable" }

type LocalVariableEntry struct {
	StartPC   uint16
	Length    uint16
	NameIndex uint16
	DescIndex uint16
	Index     uint16
}

// LocalVariableTypeTableAttribute is the Signature-attribute analogue of
// LocalVariableTableAttribute.
type LocalVariableTypeTableAttribute struct {
	Locals []LocalVariableTypeEntry
}

func (a *LocalVariableTypeTableAttribute) AttributeName() string { return "LocalVariableTypeTable" }

type LocalVariableTypeEntry struct {
	StartPC    uint16
	Length     uint16
	NameIndex  uint16
	SigIndex   uint16
	Index      uint16
}

// ConstantValueAttribute is a field's compile-time constant initializer.
type ConstantValueAttribute struct {
	ValueIndex uint16
}

func (a *ConstantValueAttribute) AttributeName() string { return "ConstantValue" }

// ExceptionsAttribute lists a method's declared throws clause.
type ExceptionsAttribute struct {
	Exceptions []uint16
}

func (a *ExceptionsAttribute) AttributeName() string { return "Exceptions" }

// SourceFileAttribute names the source file a class was compiled from.
type SourceFileAttribute struct {
	NameIndex uint16
}

func (a *SourceFileAttribute) AttributeName() string { return "SourceFile" }

// SourceDirAttribute names the source directory a class was compiled
// from, the legacy JDK 1.0.2-era sibling of SourceFile.
type SourceDirAttribute struct {
	NameIndex uint16
}

func (a *SourceDirAttribute) AttributeName() string { return "SourceDir" }

// SignatureAttribute carries a generic-type signature.
type SignatureAttribute struct {
	SignatureIndex uint16
}

func (a *SignatureAttribute) AttributeName() string { return "Signature" }

// DeprecatedAttribute and SyntheticAttribute are markers with no body.
type DeprecatedAttribute struct{}

func (a *DeprecatedAttribute) AttributeName() string { return "Deprecated" }

type SyntheticAttribute struct{}

func (a *SyntheticAttribute) AttributeName() string { return "Synthetic" }

// InnerClassesAttribute lists nested-class relationships.
type InnerClassesAttribute struct {
	Classes []InnerClassEntry
}

func (a *InnerClassesAttribute) AttributeName() string { return "InnerClasses" }

type InnerClassEntry struct {
	InnerClassInfoIndex   uint16
	OuterClassInfoIndex   uint16
	InnerNameIndex        uint16
	InnerClassAccessFlags uint16
}

// EnclosingMethodAttribute names the lexically enclosing method of a local
// or anonymous class.
type EnclosingMethodAttribute struct {
	ClassIndex      uint16
	MethodIndex     uint16
}

func (a *EnclosingMethodAttribute) AttributeName() string { return "EnclosingMethod" }

// NestHostAttribute and NestMembersAttribute implement JEP 181 nestmates.
type NestHostAttribute struct {
	HostClassIndex uint16
}

func (a *NestHostAttribute) AttributeName() string { return "NestHost" }

type NestMembersAttribute struct {
	Classes []uint16
}

func (a *NestMembersAttribute) AttributeName() string { return "NestMembers" }

// BootstrapMethodsAttribute backs invokedynamic call sites.
type BootstrapMethodsAttribute struct {
	Methods []BootstrapMethod
}

func (a *BootstrapMethodsAttribute) AttributeName() string { return "BootstrapMethods" }

type BootstrapMethod struct {
	MethodRefIndex uint16
	Arguments      []uint16
}

// MethodParametersAttribute names formal parameters. Per spec §4.4 it is
// attached only when at least one parameter has a name or non-zero flags.
type MethodParametersAttribute struct {
	Parameters []MethodParameter
}

func (a *MethodParametersAttribute) AttributeName() string { return "MethodParameters" }

type MethodParameter struct {
	NameIndex   uint16
	AccessFlags uint16
}

// AnnotationDefaultAttribute carries an annotation interface element's
// default value.
type AnnotationDefaultAttribute struct {
	Value ElementValue
}

func (a *AnnotationDefaultAttribute) AttributeName() string { return "AnnotationDefault" }

// AnnotationsAttribute covers the two Runtime(In)?VisibleAnnotations
// kinds; Kind distinguishes them for the printer.
type AnnotationsAttribute struct {
	Kind        string
	Annotations []Annotation
}

func (a *AnnotationsAttribute) AttributeName() string { return a.Kind }

// ParameterAnnotationsAttribute covers the two parameter-annotation kinds.
type ParameterAnnotationsAttribute struct {
	Kind       string
	Parameters [][]Annotation
}

func (a *ParameterAnnotationsAttribute) AttributeName() string { return a.Kind }

// TypeAnnotationsAttribute covers the two type-annotation kinds.
type TypeAnnotationsAttribute struct {
	Kind        string
	Annotations []TypeAnnotation
}

func (a *TypeAnnotationsAttribute) AttributeName() string { return a.Kind }

// Annotation is `type { name = value ... }`, with no separator between
// pairs.
type Annotation struct {
	TypeIndex uint16
	Elements  []ElementValuePair
}

type ElementValuePair struct {
	NameIndex uint16
	Value     ElementValue
}

// ElementValue is a tagged union over the element-value shapes of §4.6:
// primitive/string constant, enum constant, class, annotation, array.
type ElementValue struct {
	Tag         byte
	ConstIndex  uint16
	TypeIndex   uint16
	ConstName   uint16
	Annotation  *Annotation
	Array       []ElementValue
}

// TypeAnnotation is an Annotation plus a TargetInfo and TypePath, per JVM
// spec §4.7.20.
type TypeAnnotation struct {
	TargetType byte
	Target     TargetInfo
	Path       []TypePathEntry
	Annotation Annotation
}

// TargetInfo is a tagged union over the target_info shapes of JVM spec
// §4.7.20.1. OffsetLabel names the code label the assembler resolves to
// Offset once the enclosing method's body has been composed; Offset is
// what gets written to the class file.
type TargetInfo struct {
	Kind              string
	TypeParameterIdx  byte
	BoundIndex        byte
	SupertypeIndex    uint16
	FormalParameterIdx byte
	ThrowsTypeIndex   uint16
	LocalVarTable     []TypeAnnotationLocalVar
	CatchTypeIndex    uint16
	OffsetLabel       string
	Offset            uint16
	ArgumentIndex     byte
}

// TypeAnnotationLocalVar is one local_variable_table entry of a
// local_variable or resource_variable target_info. StartLabel/EndLabel
// are resolved to StartPC/Length by the assembler after the method body
// is composed.
type TypeAnnotationLocalVar struct {
	StartLabel string
	EndLabel   string
	StartPC    uint16
	Length     uint16
	Index      uint16
}

// CodeRelativeTarget reports whether a target_type's target_info is resolved
// against byte offsets within a Code attribute, per JVM spec table
// 4.7.20-C (0x40-0x4B), rather than against the class/member declaring
// it.
func CodeRelativeTarget(targetType byte) bool {
	return targetType >= 0x40 && targetType <= 0x4B
}

type TypePathEntry struct {
	Kind           byte
	TypeArgumentIndex byte
}

// ModuleAttribute, ModuleMainClassAttribute, ModulePackagesAttribute back
// the Java 9 module system.
type ModuleAttribute struct {
	NameIndex  uint16
	Flags      uint16
	VersionIdx uint16
	Requires   []ModuleRequires
	Exports    []ModuleExports
	Opens      []ModuleOpens
	Uses       []uint16
	Provides   []ModuleProvides
}

func (a *ModuleAttribute) AttributeName() string { return "Module" }

type ModuleRequires struct {
	Index      uint16
	Flags      uint16
	VersionIdx uint16
}

type ModuleExports struct {
	Index uint16
	Flags uint16
	To    []uint16
}

type ModuleOpens struct {
	Index uint16
	Flags uint16
	To    []uint16
}

type ModuleProvides struct {
	Index  uint16
	WithIdx []uint16
}

type ModuleMainClassAttribute struct {
	MainClassIndex uint16
}

func (a *ModuleMainClassAttribute) AttributeName() string { return "ModuleMainClass" }

type ModulePackagesAttribute struct {
	Packages []uint16
}

func (a *ModulePackagesAttribute) AttributeName() string { return "ModulePackages" }
