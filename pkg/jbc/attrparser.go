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

// AttributeParser reads the `[ Keyword ... Keyword ... ]` attribute block
// grammar of §4.5: each keyword of attributeKeywords introduces its own
// trailing syntax, parsed by a dedicated method below.
type AttributeParser struct {
	e  *Expect
	t  *Translator
	ap *AnnotationsParser
}

func NewAttributeParser(e *Expect, t *Translator) *AttributeParser {
	return &AttributeParser{e: e, t: t, ap: NewAnnotationsParser(e, t)}
}

// ParseBlock reads an optional `[ ... ]` attribute block, returning nil
// if none is present.
func (p *AttributeParser) ParseBlock() ([]classfile.Attribute, error) {
	if !p.e.AcceptPunct('[') {
		return nil, nil
	}

	var attrs []classfile.Attribute
	for !p.e.AcceptPunct(']') {
		kw, err := p.e.ExpectKeyword(attributeKeywords, "attribute")
		if err != nil {
			return nil, err
		}
		a, err := p.parseOne(kw)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
		p.e.AcceptPunct(';')
	}
	return attrs, nil
}

func (p *AttributeParser) parseOne(kw string) (classfile.Attribute, error) {
	switch kw {
	case "SourceFile":
		s, err := p.e.ExpectString("source file name")
		if err != nil {
			return nil, err
		}
		return &classfile.SourceFileAttribute{NameIndex: p.t.pool.AddUtf8(s)}, nil

	case "SourceDir":
		s, err := p.e.ExpectString("source directory")
		if err != nil {
			return nil, err
		}
		return &classfile.SourceDirAttribute{NameIndex: p.t.pool.AddUtf8(s)}, nil

	case "Signature":
		s, err := p.e.ExpectString("signature")
		if err != nil {
			return nil, err
		}
		return &classfile.SignatureAttribute{SignatureIndex: p.t.pool.AddUtf8(s)}, nil

	case "Deprecated":
		return &classfile.DeprecatedAttribute{}, nil

	case "Synthetic":
		return &classfile.SyntheticAttribute{}, nil

	case "InnerClasses":
		return p.parseInnerClasses()

	case "EnclosingMethod":
		return p.parseEnclosingMethod()

	case "NestHost":
		typ, err := p.e.ExpectType(p.t.imports)
		if err != nil {
			return nil, err
		}
		return &classfile.NestHostAttribute{HostClassIndex: p.t.pool.AddClass(strings.Trim(typ, "L;"))}, nil

	case "NestMembers":
		classes, err := p.parseTypeList()
		if err != nil {
			return nil, err
		}
		return &classfile.NestMembersAttribute{Classes: classes}, nil

	case "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations":
		anns, err := p.parseAnnotationList()
		if err != nil {
			return nil, err
		}
		return &classfile.AnnotationsAttribute{Kind: kw, Annotations: anns}, nil

	case "RuntimeVisibleParameterAnnotations", "RuntimeInvisibleParameterAnnotations":
		params, err := p.parseParameterAnnotationList()
		if err != nil {
			return nil, err
		}
		return &classfile.ParameterAnnotationsAttribute{Kind: kw, Parameters: params}, nil

	case "RuntimeVisibleTypeAnnotations", "RuntimeInvisibleTypeAnnotations":
		anns, err := p.parseTypeAnnotationList()
		if err != nil {
			return nil, err
		}
		return &classfile.TypeAnnotationsAttribute{Kind: kw, Annotations: anns}, nil

	case "AnnotationDefault":
		v, err := p.ap.ParseElementValue()
		if err != nil {
			return nil, err
		}
		return &classfile.AnnotationDefaultAttribute{Value: v}, nil

	case "BootstrapMethods":
		return p.parseBootstrapMethods()

	case "Module":
		return p.parseModule()

	case "ModuleMainClass":
		typ, err := p.e.ExpectType(p.t.imports)
		if err != nil {
			return nil, err
		}
		return &classfile.ModuleMainClassAttribute{MainClassIndex: p.t.pool.AddClass(strings.Trim(typ, "L;"))}, nil

	case "ModulePackages":
		pkgs, err := p.parsePackageList()
		if err != nil {
			return nil, err
		}
		return &classfile.ModulePackagesAttribute{Packages: pkgs}, nil
	}

	return nil, NewParseError(p.e.Line(), "attribute %q not handled by the parser", kw)
}

// parseTypeList reads `{ type ; type ; ... }`.
func (p *AttributeParser) parseTypeList() ([]uint16, error) {
	if err := p.e.ExpectPunct('{'); err != nil {
		return nil, err
	}
	var out []uint16
	for !p.e.AcceptPunct('}') {
		typ, err := p.e.ExpectType(p.t.imports)
		if err != nil {
			return nil, err
		}
		out = append(out, p.t.pool.AddClass(strings.Trim(typ, "L;")))
		p.e.AcceptPunct(';')
	}
	return out, nil
}

// parsePackageList reads `{ package ; package ; ... }`, where a package
// name is written dotted like a class but interned as CONSTANT_Package.
func (p *AttributeParser) parsePackageList() ([]uint16, error) {
	if err := p.e.ExpectPunct('{'); err != nil {
		return nil, err
	}
	var out []uint16
	for !p.e.AcceptPunct('}') {
		word, err := p.e.ExpectWord("package name")
		if err != nil {
			return nil, err
		}
		out = append(out, p.t.pool.AddPackage(strings.ReplaceAll(word, ".", "/")))
		p.e.AcceptPunct(';')
	}
	return out, nil
}

func (p *AttributeParser) parseAnnotationList() ([]classfile.Annotation, error) {
	if err := p.e.ExpectPunct('{'); err != nil {
		return nil, err
	}
	var out []classfile.Annotation
	for !p.e.AcceptPunct('}') {
		a, err := p.ap.ParseAnnotation()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
		p.e.AcceptPunct(';')
	}
	return out, nil
}

func (p *AttributeParser) parseTypeAnnotationList() ([]classfile.TypeAnnotation, error) {
	if err := p.e.ExpectPunct('{'); err != nil {
		return nil, err
	}
	var out []classfile.TypeAnnotation
	for !p.e.AcceptPunct('}') {
		a, err := p.ap.ParseTypeAnnotation()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
		p.e.AcceptPunct(';')
	}
	return out, nil
}

// parseParameterAnnotationList reads `{ { ann ... } { ann ... } ... }`,
// one brace-delimited annotation list per formal parameter, in order.
func (p *AttributeParser) parseParameterAnnotationList() ([][]classfile.Annotation, error) {
	if err := p.e.ExpectPunct('{'); err != nil {
		return nil, err
	}
	var out [][]classfile.Annotation
	for !p.e.AcceptPunct('}') {
		anns, err := p.parseAnnotationList()
		if err != nil {
			return nil, err
		}
		out = append(out, anns)
	}
	return out, nil
}

// parseInnerClasses reads `{ class Type flags... [ outer Type ] [ as Name ] ; ... }`.
func (p *AttributeParser) parseInnerClasses() (classfile.Attribute, error) {
	if err := p.e.ExpectPunct('{'); err != nil {
		return nil, err
	}
	attr := &classfile.InnerClassesAttribute{}
	for !p.e.AcceptPunct('}') {
		if err := p.expectWordLiteral("class"); err != nil {
			return nil, err
		}
		typ, err := p.e.ExpectType(p.t.imports)
		if err != nil {
			return nil, err
		}
		entry := classfile.InnerClassEntry{InnerClassInfoIndex: p.t.pool.AddClass(strings.Trim(typ, "L;"))}

		flags, err := p.e.ExpectClassAccessFlags()
		if err != nil {
			return nil, err
		}
		entry.InnerClassAccessFlags = flags

		if p.e.AcceptKeyword("outer") {
			outerTyp, err := p.e.ExpectType(p.t.imports)
			if err != nil {
				return nil, err
			}
			entry.OuterClassInfoIndex = p.t.pool.AddClass(strings.Trim(outerTyp, "L;"))
		}
		if p.e.AcceptKeyword("as") {
			name, err := p.e.ExpectWord("inner class simple name")
			if err != nil {
				return nil, err
			}
			entry.InnerNameIndex = p.t.pool.AddUtf8(name)
		}

		attr.Classes = append(attr.Classes, entry)
		p.e.AcceptPunct(';')
	}
	return attr, nil
}

// parseEnclosingMethod reads `class Type [ method RetType Name (args) ]`.
func (p *AttributeParser) parseEnclosingMethod() (classfile.Attribute, error) {
	if err := p.expectWordLiteral("class"); err != nil {
		return nil, err
	}
	typ, err := p.e.ExpectType(p.t.imports)
	if err != nil {
		return nil, err
	}
	attr := &classfile.EnclosingMethodAttribute{ClassIndex: p.t.pool.AddClass(strings.Trim(typ, "L;"))}

	if p.e.AcceptKeyword("method") {
		ret, err := p.e.ExpectType(p.t.imports)
		if err != nil {
			return nil, err
		}
		name, err := p.e.ExpectMethodName()
		if err != nil {
			return nil, err
		}
		args, err := p.e.ExpectMethodArgs(p.t.imports)
		if err != nil {
			return nil, err
		}
		attr.MethodIndex = p.t.pool.AddNameAndType(name, args+ret)
	}
	return attr, nil
}

// parseBootstrapMethods reads `{ (MethodHandle) kind ref arg arg ... ; ... }`.
func (p *AttributeParser) parseBootstrapMethods() (classfile.Attribute, error) {
	if err := p.e.ExpectPunct('{'); err != nil {
		return nil, err
	}
	attr := &classfile.BootstrapMethodsAttribute{}
	for !p.e.AcceptPunct('}') {
		if err := p.e.ExpectPunct('('); err != nil {
			return nil, err
		}
		if err := p.expectWordLiteral("MethodHandle"); err != nil {
			return nil, err
		}
		if err := p.e.ExpectPunct(')'); err != nil {
			return nil, err
		}
		handleIdx, err := p.t.parseMethodHandle(p.e)
		if err != nil {
			return nil, err
		}

		method := classfile.BootstrapMethod{MethodRefIndex: handleIdx}
		for !p.e.AcceptPunct(';') {
			idx, err := p.t.ParseLoadableConstant(p.e)
			if err != nil {
				return nil, err
			}
			method.Arguments = append(method.Arguments, idx)
		}
		attr.Methods = append(attr.Methods, method)
	}
	return attr, nil
}

// moduleFlagKeywords are the module-specific requires/exports/opens
// flag keywords (§6): "transitive"/"static_phase" share bits with
// "open"/"volatile" in the class-level flag space but only make sense on
// a requires entry, so they get their own small table here.
var moduleFlagKeywords = map[string]uint16{
	"transitive": classfile.AccTransitive,
	"static_phase": classfile.AccStaticPhase,
	"synthetic":   classfile.AccSynthetic,
	"mandated":    classfile.AccMandated,
}

func (p *AttributeParser) expectModuleFlags() uint16 {
	var flags uint16
	for {
		word, ok := p.e.AcceptWord()
		if !ok {
			return flags
		}
		flag, ok := moduleFlagKeywords[word]
		if !ok {
			p.e.PushBack()
			return flags
		}
		flags |= flag
	}
}

// parseModule reads the full `module` attribute body (§6): name, flags,
// optional version, then requires/exports/opens/uses/provides blocks.
func (p *AttributeParser) parseModule() (classfile.Attribute, error) {
	name, err := p.e.ExpectWord("module name")
	if err != nil {
		return nil, err
	}
	attr := &classfile.ModuleAttribute{NameIndex: p.t.pool.AddModule(strings.ReplaceAll(name, ".", "/"))}
	attr.Flags = p.expectModuleFlags()

	if p.e.AcceptKeyword("version") {
		v, err := p.e.ExpectString("module version")
		if err != nil {
			return nil, err
		}
		attr.VersionIdx = p.t.pool.AddUtf8(v)
	}

	if err := p.e.ExpectPunct('{'); err != nil {
		return nil, err
	}
	for !p.e.AcceptPunct('}') {
		kw, err := p.e.ExpectWord("requires, exports, opens, uses, or provides")
		if err != nil {
			return nil, err
		}
		switch kw {
		case "requires":
			r, err := p.parseRequires()
			if err != nil {
				return nil, err
			}
			attr.Requires = append(attr.Requires, r)

		case "exports":
			ex, err := p.parseExportsOpens()
			if err != nil {
				return nil, err
			}
			attr.Exports = append(attr.Exports, classfile.ModuleExports{Index: ex.Index, Flags: ex.Flags, To: ex.To})

		case "opens":
			op, err := p.parseExportsOpens()
			if err != nil {
				return nil, err
			}
			attr.Opens = append(attr.Opens, classfile.ModuleOpens{Index: op.Index, Flags: op.Flags, To: op.To})

		case "uses":
			typ, err := p.e.ExpectType(p.t.imports)
			if err != nil {
				return nil, err
			}
			attr.Uses = append(attr.Uses, p.t.pool.AddClass(strings.Trim(typ, "L;")))
			p.e.AcceptPunct(';')

		case "provides":
			pr, err := p.parseProvides()
			if err != nil {
				return nil, err
			}
			attr.Provides = append(attr.Provides, pr)

		default:
			return nil, expectedError(p.e.Line(), "requires, exports, opens, uses, or provides", kw)
		}
	}
	return attr, nil
}

func (p *AttributeParser) parsePackageName() (uint16, error) {
	word, err := p.e.ExpectWord("package name")
	if err != nil {
		return 0, err
	}
	return p.t.pool.AddPackage(strings.ReplaceAll(word, ".", "/")), nil
}

func (p *AttributeParser) parseRequires() (classfile.ModuleRequires, error) {
	word, err := p.e.ExpectWord("module name")
	if err != nil {
		return classfile.ModuleRequires{}, err
	}
	r := classfile.ModuleRequires{Index: p.t.pool.AddModule(strings.ReplaceAll(word, ".", "/"))}
	r.Flags = p.expectModuleFlags()

	if p.e.AcceptKeyword("version") {
		v, err := p.e.ExpectString("module version")
		if err != nil {
			return r, err
		}
		r.VersionIdx = p.t.pool.AddUtf8(v)
	}
	p.e.AcceptPunct(';')
	return r, nil
}

type exportsOpens struct {
	Index uint16
	Flags uint16
	To    []uint16
}

func (p *AttributeParser) parseExportsOpens() (exportsOpens, error) {
	idx, err := p.parsePackageName()
	if err != nil {
		return exportsOpens{}, err
	}
	eo := exportsOpens{Index: idx}
	eo.Flags = p.expectModuleFlags()

	if p.e.AcceptKeyword("to") {
		for {
			word, err := p.e.ExpectWord("module name")
			if err != nil {
				return eo, err
			}
			eo.To = append(eo.To, p.t.pool.AddModule(strings.ReplaceAll(word, ".", "/")))
			if !p.e.AcceptPunct(',') {
				break
			}
		}
	}
	p.e.AcceptPunct(';')
	return eo, nil
}

func (p *AttributeParser) parseProvides() (classfile.ModuleProvides, error) {
	typ, err := p.e.ExpectType(p.t.imports)
	if err != nil {
		return classfile.ModuleProvides{}, err
	}
	pr := classfile.ModuleProvides{Index: p.t.pool.AddClass(strings.Trim(typ, "L;"))}

	if err := p.expectWordLiteral("with"); err != nil {
		return pr, err
	}
	for {
		implTyp, err := p.e.ExpectType(p.t.imports)
		if err != nil {
			return pr, err
		}
		pr.WithIdx = append(pr.WithIdx, p.t.pool.AddClass(strings.Trim(implTyp, "L;")))
		if !p.e.AcceptPunct(',') {
			break
		}
	}
	p.e.AcceptPunct(';')
	return pr, nil
}

func (p *AttributeParser) expectWordLiteral(want string) error {
	word, err := p.e.ExpectWord(want)
	if err != nil {
		return err
	}
	if word != want {
		return expectedError(p.e.Line(), want, word)
	}
	return nil
}
