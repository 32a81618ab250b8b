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
	"strings"

	"github.com/jbcasm/jbcasm/pkg/classfile"
)

// ClassPrinter is the mirror of the Class/Member Parser (§4.10): it walks a
// decoded ClassFile and calls into a Printer to emit the canonical JBC
// form, attribute block by attribute block.
type ClassPrinter struct {
	p    *Printer
	pool *classfile.ConstantPool
	self string
}

// PrintClass renders cf as JBC source text.
func PrintClass(p *Printer, cf *classfile.ClassFile) error {
	cp := &ClassPrinter{p: p, pool: cf.Pool, self: cf.ClassName()}
	return cp.printClassFile(cf)
}

func (cp *ClassPrinter) printClassFile(cf *classfile.ClassFile) error {
	cp.p.Printf("version %d", cf.MajorVersion)
	if cf.MinorVersion != 0 {
		cp.p.Printf(":%d", cf.MinorVersion)
	}
	cp.p.Word(";")
	cp.p.NewLine()
	cp.p.NewLine()

	if err := cp.printClassDecl(cf); err != nil {
		return err
	}
	return nil
}

// printClassDecl prints classAccessFlags name [extends] [implements]
// [attributes] '{' member* '}'.
func (cp *ClassPrinter) printClassDecl(cf *classfile.ClassFile) error {
	for _, name := range FlagNames(cf.AccessFlags) {
		if classKindFlags[name] {
			continue
		}
		cp.p.Word(name)
		cp.p.Space()
	}
	cp.p.Word(classKindWord(cf.AccessFlags))
	cp.p.Space()
	cp.p.Word(externalType(cf.ClassName()))

	ifaces := cf.Interfaces
	if cf.AccessFlags&classfile.AccAnnotation != 0 && len(ifaces) == 1 {
		name, err := cp.pool.ClassName(ifaces[0])
		if err == nil && name == "java/lang/annotation/Annotation" {
			ifaces = nil
		}
	}

	// Syntactic sugar (§4.4): an interface-kind declaration's superclass
	// is always the implicit java.lang.Object and is never printed; its
	// `extends` instead lists super-interfaces. A class-kind declaration
	// prints its superclass via `extends` (unless it is the default
	// java.lang.Object) and its interfaces via `implements`.
	if cf.AccessFlags&classfile.AccInterface != 0 {
		if len(ifaces) > 0 {
			cp.p.Space()
			cp.p.Word("extends")
			cp.p.Space()
			if err := cp.printClassList(ifaces); err != nil {
				return err
			}
		}
	} else {
		if cf.SuperClass != 0 && cf.SuperClassName() != "java/lang/Object" {
			cp.p.Space()
			cp.p.Word("extends")
			cp.p.Space()
			cp.p.Word(externalType(cf.SuperClassName()))
		}
		if len(ifaces) > 0 {
			cp.p.Space()
			cp.p.Word("implements")
			cp.p.Space()
			if err := cp.printClassList(ifaces); err != nil {
				return err
			}
		}
	}

	if err := cp.printAttributeBlock(cf.Attributes); err != nil {
		return err
	}

	cp.p.Space()
	cp.p.Line("{")
	cp.p.Indent()
	cp.p.NewLine()

	for _, f := range cf.Fields {
		if err := cp.printField(f); err != nil {
			return err
		}
		cp.p.NewLine()
	}
	for _, m := range cf.Methods {
		if err := cp.printMethod(m); err != nil {
			return err
		}
		cp.p.NewLine()
	}

	cp.p.Unindent()
	cp.p.Line("}")
	return nil
}

// printClassList renders a comma-separated list of class constant pool
// references, shared by the `extends`/`implements` super-interface lists.
func (cp *ClassPrinter) printClassList(idxs []uint16) error {
	for i, idx := range idxs {
		if i > 0 {
			cp.p.Word(", ")
		}
		name, err := cp.pool.ClassName(idx)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		cp.p.Word(externalType(name))
	}
	return nil
}

// classKindFlags are the access flags folded into the class-kind word
// rather than printed individually (§4.2/§6 sugar).
var classKindFlags = map[string]bool{
	"super": true, "abstract": true, "interface": true,
	"enum": true, "module": true,
}

func classKindWord(flags uint16) string {
	switch {
	case flags&classfile.AccAnnotation != 0:
		return "@interface"
	case flags&classfile.AccModule != 0:
		return "module"
	case flags&classfile.AccEnum != 0:
		return "enum"
	case flags&classfile.AccInterface != 0:
		return "interface"
	default:
		return "class"
	}
}

func (cp *ClassPrinter) printField(f *classfile.Member) error {
	for _, name := range FlagNames(f.AccessFlags) {
		cp.p.Word(name)
		cp.p.Space()
	}
	cp.p.Word(externalType(f.Descriptor(cp.pool)))
	cp.p.Space()
	cp.p.Word(f.Name(cp.pool))

	var attrs []classfile.Attribute
	for _, a := range f.Attributes {
		if cv, ok := a.(*classfile.ConstantValueAttribute); ok {
			cp.p.Word(" = ")
			hint := TypeHint(0)
			if len(f.Descriptor(cp.pool)) == 1 {
				hint = TypeHint(f.Descriptor(cp.pool)[0])
			}
			if err := cp.p.PrintConstant(cp.pool, cv.ValueIndex, hint, false); err != nil {
				return err
			}
			continue
		}
		attrs = append(attrs, a)
	}

	if err := cp.printAttributeBlock(attrs); err != nil {
		return err
	}
	cp.p.Line(";")
	return nil
}

func (cp *ClassPrinter) printMethod(m *classfile.Member) error {
	descriptor := m.Descriptor(cp.pool)
	argTypesStr, retType := splitMethodDescriptor(descriptor)

	for _, name := range FlagNames(m.AccessFlags) {
		cp.p.Word(name)
		cp.p.Space()
	}
	cp.p.Word(externalType(retType))
	cp.p.Space()
	cp.p.Word(m.Name(cp.pool))
	cp.p.Word("(")

	var params *classfile.MethodParametersAttribute
	var exceptions *classfile.ExceptionsAttribute
	var code *classfile.CodeAttribute
	var rest []classfile.Attribute

	for _, a := range m.Attributes {
		switch v := a.(type) {
		case *classfile.MethodParametersAttribute:
			params = v
		case *classfile.ExceptionsAttribute:
			exceptions = v
		case *classfile.CodeAttribute:
			code = v
		default:
			rest = append(rest, a)
		}
	}

	types := splitDescriptorList(argTypesStr)
	for i, t := range types {
		if i > 0 {
			cp.p.Word(", ")
		}
		if params != nil && i < len(params.Parameters) {
			for _, name := range paramFlagNames(params.Parameters[i].AccessFlags) {
				cp.p.Word(name)
				cp.p.Space()
			}
		}
		cp.p.Word(externalType(t))
		if params != nil && i < len(params.Parameters) && params.Parameters[i].NameIndex != 0 {
			cp.p.Space()
			name, err := cp.pool.Utf8(params.Parameters[i].NameIndex)
			if err != nil {
				return NewPrintError(0, "%s", err)
			}
			cp.p.Word(name)
		}
	}
	cp.p.Word(")")

	if exceptions != nil {
		cp.p.Space()
		cp.p.Word("throws")
		cp.p.Space()
		for i, idx := range exceptions.Exceptions {
			if i > 0 {
				cp.p.Word(", ")
			}
			name, err := cp.pool.ClassName(idx)
			if err != nil {
				return NewPrintError(0, "%s", err)
			}
			cp.p.Word(externalType(name))
		}
	}

	var labels *Labels
	if code != nil {
		var err error
		labels, err = CollectLabels(code)
		if err != nil {
			return err
		}
		rest = cp.mergeCodeAnnotations(rest, code, labels)
	}

	if err := cp.printAttributeBlock(rest); err != nil {
		return err
	}

	if code == nil {
		cp.p.Line(";")
		return nil
	}

	cp.p.Space()
	cp.p.Line("{")
	cp.p.Indent()
	if err := cp.printCode(code, labels); err != nil {
		return err
	}
	cp.p.Unindent()
	cp.p.Line("}")
	return nil
}

// mergeCodeAnnotations folds the code-relative type annotations physically
// stored on code's own attribute table back into the method-level view,
// so a RuntimeVisible/InvisibleTypeAnnotations attribute that mixes
// declaration- and code-relative target_types prints as one block (the
// inverse of resolveCodeRelativeAnnotations on the parse side). Each
// folded entry's offset(s) are resolved to label names against labels
// before printing.
func (cp *ClassPrinter) mergeCodeAnnotations(rest []classfile.Attribute, code *classfile.CodeAttribute, labels *Labels) []classfile.Attribute {
	merged := make([]classfile.Attribute, len(rest))
	copy(merged, rest)

	for _, a := range code.Attributes {
		ta, ok := a.(*classfile.TypeAnnotationsAttribute)
		if !ok {
			continue
		}

		resolved := make([]classfile.TypeAnnotation, len(ta.Annotations))
		for i, ann := range ta.Annotations {
			ann.Target = resolveTargetInfoOffsets(ann.TargetType, ann.Target, labels)
			resolved[i] = ann
		}

		var dest *classfile.TypeAnnotationsAttribute
		for _, m := range merged {
			if existing, ok := m.(*classfile.TypeAnnotationsAttribute); ok && existing.Kind == ta.Kind {
				dest = existing
				break
			}
		}
		if dest != nil {
			dest.Annotations = append(dest.Annotations, resolved...)
		} else {
			merged = append(merged, &classfile.TypeAnnotationsAttribute{Kind: ta.Kind, Annotations: resolved})
		}
	}
	return merged
}

// resolveTargetInfoOffsets is the print-side inverse of
// resolveTargetInfoLabels: it fills in the label-name fields a
// code-relative target_info needs for text rendering from its resolved
// numeric offsets, marking them in labels so they get a name even if
// nothing in the bytecode itself referenced that offset.
func resolveTargetInfoOffsets(targetType byte, t classfile.TargetInfo, labels *Labels) classfile.TargetInfo {
	switch targetType {
	case 0x40, 0x41:
		table := make([]classfile.TypeAnnotationLocalVar, len(t.LocalVarTable))
		for i, lv := range t.LocalVarTable {
			end := int(lv.StartPC) + int(lv.Length)
			labels.Mark(int(lv.StartPC))
			labels.Mark(end)
			lv.StartLabel = labels.Name(int(lv.StartPC))
			lv.EndLabel = labels.Name(end)
			table[i] = lv
		}
		t.LocalVarTable = table

	case 0x43, 0x44, 0x45, 0x46, 0x47, 0x48, 0x49, 0x4A, 0x4B:
		labels.Mark(int(t.Offset))
		t.OffsetLabel = labels.Name(int(t.Offset))
	}
	return t
}

func paramFlagNames(flags uint16) []string {
	var names []string
	for _, kw := range []string{"final", "synthetic", "mandated"} {
		if flags&paramFlagKeywords[kw] != 0 {
			names = append(names, kw)
		}
	}
	return names
}

func splitMethodDescriptor(descriptor string) (args, ret string) {
	idx := strings.IndexByte(descriptor, ')')
	return descriptor[1:idx], descriptor[idx+1:]
}

func splitDescriptorList(s string) []string {
	var parts []string
	for len(s) > 0 {
		head, rest := splitOneDescriptor(s)
		parts = append(parts, head)
		s = rest
	}
	return parts
}

// printAttributeBlock renders the `[ ... ]` block for attrs, dropping any
// attribute this printer does not recognise (the disassembly validity
// filter of §4.10). An empty result after filtering omits the block
// entirely.
func (cp *ClassPrinter) printAttributeBlock(attrs []classfile.Attribute) error {
	var recognised []classfile.Attribute
	for _, a := range attrs {
		if attributeKeywords[a.AttributeName()] {
			recognised = append(recognised, a)
		}
	}
	if len(recognised) == 0 {
		return nil
	}

	cp.p.Space()
	cp.p.Word("[")
	cp.p.NewLine()
	cp.p.Indent()
	for _, a := range recognised {
		if err := cp.printAttribute(a); err != nil {
			return err
		}
	}
	cp.p.Unindent()
	cp.p.Word("]")
	return nil
}

func (cp *ClassPrinter) printAttribute(a classfile.Attribute) error {
	switch v := a.(type) {
	case *classfile.SourceFileAttribute:
		s, err := cp.pool.Utf8(v.NameIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		cp.p.Word("SourceFile")
		cp.p.Space()
		cp.p.QuotedString(s)
		cp.p.Line(";")

	case *classfile.SourceDirAttribute:
		s, err := cp.pool.Utf8(v.NameIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		cp.p.Word("SourceDir")
		cp.p.Space()
		cp.p.QuotedString(s)
		cp.p.Line(";")

	case *classfile.SignatureAttribute:
		s, err := cp.pool.Utf8(v.SignatureIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		cp.p.Word("Signature")
		cp.p.Space()
		cp.p.QuotedString(s)
		cp.p.Line(";")

	case *classfile.DeprecatedAttribute:
		cp.p.Line("Deprecated;")

	case *classfile.SyntheticAttribute:
		cp.p.Line("Synthetic;")

	case *classfile.NestHostAttribute:
		name, err := cp.pool.ClassName(v.HostClassIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		cp.p.Word("NestHost")
		cp.p.Space()
		cp.p.Word(externalType(name))
		cp.p.Line(";")

	case *classfile.NestMembersAttribute:
		cp.p.Word("NestMembers")
		cp.p.Space()
		if err := cp.printTypeList(v.Classes); err != nil {
			return err
		}
		cp.p.Line(";")

	case *classfile.InnerClassesAttribute:
		return cp.printInnerClasses(v)

	case *classfile.EnclosingMethodAttribute:
		return cp.printEnclosingMethod(v)

	case *classfile.BootstrapMethodsAttribute:
		return cp.printBootstrapMethods(v)

	case *classfile.AnnotationDefaultAttribute:
		cp.p.Word("AnnotationDefault")
		cp.p.Space()
		ap := &AnnotationsPrinter{p: cp.p, pool: cp.pool}
		if err := ap.PrintElementValue(v.Value); err != nil {
			return err
		}
		cp.p.NewLine()

	case *classfile.AnnotationsAttribute:
		cp.p.Line(v.Kind + " {")
		cp.p.Indent()
		ap := &AnnotationsPrinter{p: cp.p, pool: cp.pool}
		for _, ann := range v.Annotations {
			if err := ap.PrintAnnotation(ann); err != nil {
				return err
			}
			cp.p.Line(";")
		}
		cp.p.Unindent()
		cp.p.Line("}")

	case *classfile.ParameterAnnotationsAttribute:
		cp.p.Line(v.Kind + " {")
		cp.p.Indent()
		ap := &AnnotationsPrinter{p: cp.p, pool: cp.pool}
		for _, anns := range v.Parameters {
			cp.p.Line("{")
			cp.p.Indent()
			for _, ann := range anns {
				if err := ap.PrintAnnotation(ann); err != nil {
					return err
				}
				cp.p.Line(";")
			}
			cp.p.Unindent()
			cp.p.Line("}")
		}
		cp.p.Unindent()
		cp.p.Line("}")

	case *classfile.TypeAnnotationsAttribute:
		cp.p.Line(v.Kind + " {")
		cp.p.Indent()
		ap := &AnnotationsPrinter{p: cp.p, pool: cp.pool}
		for _, ann := range v.Annotations {
			if err := ap.PrintTypeAnnotation(ann); err != nil {
				return err
			}
			cp.p.Line(";")
		}
		cp.p.Unindent()
		cp.p.Line("}")

	case *classfile.ModuleAttribute:
		return cp.printModule(v)

	case *classfile.ModuleMainClassAttribute:
		name, err := cp.pool.ClassName(v.MainClassIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		cp.p.Word("ModuleMainClass")
		cp.p.Space()
		cp.p.Word(externalType(name))
		cp.p.Line(";")

	case *classfile.ModulePackagesAttribute:
		cp.p.Word("ModulePackages")
		cp.p.Space()
		for i, idx := range v.Packages {
			if i > 0 {
				cp.p.Word(", ")
			}
			name, err := cp.pool.Utf8(idx)
			if err != nil {
				return NewPrintError(0, "%s", err)
			}
			cp.p.Word(strings.ReplaceAll(name, "/", "."))
		}
		cp.p.Line(";")

	default:
		return NewPrintError(0, "unsupported attribute kind %T", a)
	}
	return nil
}

func (cp *ClassPrinter) printTypeList(classes []uint16) error {
	cp.p.Word("{")
	for _, idx := range classes {
		name, err := cp.pool.ClassName(idx)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		cp.p.Space()
		cp.p.Word(externalType(name))
		cp.p.Word(";")
	}
	cp.p.Space()
	cp.p.Word("}")
	return nil
}

func (cp *ClassPrinter) printInnerClasses(v *classfile.InnerClassesAttribute) error {
	cp.p.Line("InnerClasses")
	cp.p.Indent()
	for _, e := range v.Classes {
		inner, err := cp.pool.ClassName(e.InnerClassInfoIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		for _, name := range FlagNames(e.InnerClassAccessFlags) {
			cp.p.Word(name)
			cp.p.Space()
		}
		cp.p.Word(externalType(inner))
		if e.OuterClassInfoIndex != 0 {
			outer, err := cp.pool.ClassName(e.OuterClassInfoIndex)
			if err != nil {
				return NewPrintError(0, "%s", err)
			}
			cp.p.Space()
			cp.p.Word("outer")
			cp.p.Space()
			cp.p.Word(externalType(outer))
		}
		if e.InnerNameIndex != 0 {
			name, err := cp.pool.Utf8(e.InnerNameIndex)
			if err != nil {
				return NewPrintError(0, "%s", err)
			}
			cp.p.Space()
			cp.p.Word("as")
			cp.p.Space()
			cp.p.Word(name)
		}
		cp.p.Line(";")
	}
	cp.p.Unindent()
	return nil
}

func (cp *ClassPrinter) printEnclosingMethod(v *classfile.EnclosingMethodAttribute) error {
	name, err := cp.pool.ClassName(v.ClassIndex)
	if err != nil {
		return NewPrintError(0, "%s", err)
	}
	cp.p.Word("EnclosingMethod")
	cp.p.Space()
	cp.p.Word("class")
	cp.p.Space()
	cp.p.Word(externalType(name))
	if v.MethodIndex != 0 {
		mname, desc, err := cp.pool.NameAndType(v.MethodIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		cp.p.Space()
		cp.p.Word("method")
		cp.p.Space()
		cp.p.Word(returnType(desc))
		cp.p.Space()
		cp.p.Word(mname)
		cp.p.Word(argTypes(desc))
	}
	cp.p.Line(";")
	return nil
}

func (cp *ClassPrinter) printBootstrapMethods(v *classfile.BootstrapMethodsAttribute) error {
	cp.p.Line("BootstrapMethods {")
	cp.p.Indent()
	for _, m := range v.Methods {
		if err := cp.p.PrintConstant(cp.pool, m.MethodRefIndex, HintNone, false); err != nil {
			return err
		}
		for _, arg := range m.Arguments {
			cp.p.Space()
			if err := cp.p.PrintConstant(cp.pool, arg, HintNone, true); err != nil {
				return err
			}
		}
		cp.p.Line(";")
	}
	cp.p.Unindent()
	cp.p.Line("}")
	return nil
}

func (cp *ClassPrinter) printModule(v *classfile.ModuleAttribute) error {
	name, err := cp.pool.Utf8(v.NameIndex)
	if err != nil {
		return NewPrintError(0, "%s", err)
	}
	cp.p.Word("Module")
	cp.p.Space()
	for _, kw := range []string{"open"} {
		if v.Flags&flagFor(kw) != 0 {
			cp.p.Word(kw)
			cp.p.Space()
		}
	}
	cp.p.Word(strings.ReplaceAll(name, "/", "."))
	if v.VersionIdx != 0 {
		ver, err := cp.pool.Utf8(v.VersionIdx)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		cp.p.Space()
		cp.p.QuotedString(ver)
	}
	cp.p.Space()
	cp.p.Line("{")
	cp.p.Indent()

	for _, r := range v.Requires {
		pkg, err := cp.pool.Utf8(r.Index)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		cp.p.Word("requires")
		cp.p.Space()
		for _, kw := range []string{"transitive", "static_phase", "synthetic", "mandated"} {
			if r.Flags&flagFor(kw) != 0 {
				cp.p.Word(kw)
				cp.p.Space()
			}
		}
		cp.p.Word(strings.ReplaceAll(pkg, "/", "."))
		cp.p.Line(";")
	}
	for _, ex := range v.Exports {
		if err := cp.printExportsOpens(ex.Index, ex.Flags, ex.To, "exports"); err != nil {
			return err
		}
	}
	for _, op := range v.Opens {
		if err := cp.printExportsOpens(op.Index, op.Flags, op.To, "opens"); err != nil {
			return err
		}
	}
	for _, idx := range v.Uses {
		name, err := cp.pool.ClassName(idx)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		cp.p.Word("uses")
		cp.p.Space()
		cp.p.Word(externalType(name))
		cp.p.Line(";")
	}
	for _, pr := range v.Provides {
		if err := cp.printProvides(pr); err != nil {
			return err
		}
	}

	cp.p.Unindent()
	cp.p.Line("}")
	return nil
}

func (cp *ClassPrinter) printExportsOpens(pkgIdx, flags uint16, to []uint16, kw string) error {
	pkg, err := cp.pool.Utf8(pkgIdx)
	if err != nil {
		return NewPrintError(0, "%s", err)
	}
	cp.p.Word(kw)
	cp.p.Space()
	for _, f := range []string{"synthetic", "mandated"} {
		if flags&flagFor(f) != 0 {
			cp.p.Word(f)
			cp.p.Space()
		}
	}
	cp.p.Word(strings.ReplaceAll(pkg, "/", "."))
	if len(to) > 0 {
		cp.p.Space()
		cp.p.Word("to")
		cp.p.Space()
		for i, idx := range to {
			if i > 0 {
				cp.p.Word(", ")
			}
			name, err := cp.pool.ClassName(idx)
			if err != nil {
				return NewPrintError(0, "%s", err)
			}
			cp.p.Word(externalType(name))
		}
	}
	cp.p.Line(";")
	return nil
}

func (cp *ClassPrinter) printProvides(pr classfile.ModuleProvides) error {
	name, err := cp.pool.ClassName(pr.Index)
	if err != nil {
		return NewPrintError(0, "%s", err)
	}
	cp.p.Word("provides")
	cp.p.Space()
	cp.p.Word(externalType(name))
	cp.p.Space()
	cp.p.Word("with")
	cp.p.Space()
	for i, idx := range pr.WithIdx {
		if i > 0 {
			cp.p.Word(", ")
		}
		wname, err := cp.pool.ClassName(idx)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		cp.p.Word(externalType(wname))
	}
	cp.p.Line(";")
	return nil
}

func flagFor(kw string) uint16 { return accessKeywords[kw] }
