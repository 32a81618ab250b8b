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
	"io"
	"strings"

	"github.com/jbcasm/jbcasm/pkg/classfile"
	"github.com/jbcasm/jbcasm/pkg/token"
)

// defaultVersion is the class file version emitted when the source has
// no explicit `version` statement (§9 Open Question: resolved in favour
// of the most common contemporary target, Java 8).
var defaultVersion = [2]uint16{classfile.Java8, 0}

// paramFlagKeywords are the formal-parameter access flag keywords of JVM
// spec table 4.7.24-A.
var paramFlagKeywords = map[string]uint16{
	"final":     classfile.AccFinal,
	"synthetic": classfile.AccSynthetic,
	"mandated":  classfile.AccMandated,
}

// ClassParser is the Class/Member Parser (§4.4): the top-level grammar
// entry point, consuming imports, an optional version statement, the
// class declaration, and every field/method/static-initializer member.
type ClassParser struct {
	e       *Expect
	t       *Translator
	imports map[string]string
	pool    *classfile.ConstantPool
}

// Parse reads one complete translation unit from r and returns its
// ClassFile.
func Parse(r io.Reader) (*classfile.ClassFile, error) {
	src := token.NewSource(r)
	e := NewExpect(src)
	pool := classfile.NewConstantPool()
	imports := make(map[string]string)

	p := &ClassParser{e: e, t: NewTranslator(pool, imports), imports: imports, pool: pool}
	return p.parseClassFile()
}

func (p *ClassParser) parseClassFile() (*classfile.ClassFile, error) {
	for p.e.AcceptKeyword("import") {
		if err := p.parseImport(); err != nil {
			return nil, err
		}
	}

	major, minor := defaultVersion[0], defaultVersion[1]
	if p.e.AcceptKeyword("version") {
		n, err := p.e.ExpectNumber("major version")
		if err != nil {
			return nil, err
		}
		major = uint16(n)
		if p.e.AcceptPunct(':') {
			n, err := p.e.ExpectNumber("minor version")
			if err != nil {
				return nil, err
			}
			minor = uint16(n)
		}
		p.e.AcceptPunct(';')
	}

	cf, err := p.parseClassDecl()
	if err != nil {
		return nil, err
	}
	cf.MajorVersion = major
	cf.MinorVersion = minor
	cf.Pool = p.pool
	return cf, nil
}

// parseImport reads `import a.b.C ;` or `import a.b.C as D ;`, binding
// the trailing simple name (or the alias after `as`) to the fully
// qualified dotted name for ExpectType's lookup table (§4.2).
func (p *ClassParser) parseImport() error {
	qualified, err := p.expectDottedName()
	if err != nil {
		return err
	}

	alias := qualified
	if idx := strings.LastIndexByte(qualified, '.'); idx >= 0 {
		alias = qualified[idx+1:]
	}
	if p.e.AcceptKeyword("as") {
		alias, err = p.e.ExpectWord("import alias")
		if err != nil {
			return err
		}
	}

	p.imports[alias] = qualified
	p.e.AcceptPunct(';')
	return nil
}

// expectDottedName reads a word, optionally followed by `. word` pairs,
// and returns the joined dotted name.
func (p *ClassParser) expectDottedName() (string, error) {
	word, err := p.e.ExpectWord("qualified name")
	if err != nil {
		return "", err
	}
	name := word
	for p.e.AcceptPunct('.') {
		next, err := p.e.ExpectWord("qualified name segment")
		if err != nil {
			return "", err
		}
		name += "." + next
	}
	return name, nil
}

// parseClassDecl reads classAccessFlags ident [ extends ] [ implements ]
// [ attributes ] ( ';' | '{' memberDecl* '}' ) (§4.4).
func (p *ClassParser) parseClassDecl() (*classfile.ClassFile, error) {
	flags, err := p.e.ExpectClassAccessFlags()
	if err != nil {
		return nil, err
	}

	name, err := p.expectDottedName()
	if err != nil {
		return nil, err
	}
	internalName := strings.ReplaceAll(name, ".", "/")
	p.t.ThisClassName = internalName

	cf := &classfile.ClassFile{
		AccessFlags: flags,
		ThisClass:   p.pool.AddClass(internalName),
	}

	// Syntactic sugar (§4.4): `extends` in an interface-kind declaration
	// lists super-interfaces, not a superclass; `implements` is forbidden
	// there instead. A class-kind declaration has it the other way round.
	if flags&classfile.AccInterface != 0 {
		if p.e.AcceptKeyword("implements") {
			return nil, NewParseError(p.e.Line(), "interface may not use implements; list super-interfaces with extends")
		}
		if p.e.AcceptKeyword("extends") {
			for {
				ifaceTyp, err := p.e.ExpectType(p.imports)
				if err != nil {
					return nil, err
				}
				cf.Interfaces = append(cf.Interfaces, p.pool.AddClass(strings.Trim(ifaceTyp, "L;")))
				if !p.e.AcceptPunct(',') {
					break
				}
			}
		}
	} else {
		if p.e.AcceptKeyword("extends") {
			superTyp, err := p.e.ExpectType(p.imports)
			if err != nil {
				return nil, err
			}
			cf.SuperClass = p.pool.AddClass(strings.Trim(superTyp, "L;"))
		}
		if p.e.AcceptKeyword("implements") {
			for {
				ifaceTyp, err := p.e.ExpectType(p.imports)
				if err != nil {
					return nil, err
				}
				cf.Interfaces = append(cf.Interfaces, p.pool.AddClass(strings.Trim(ifaceTyp, "L;")))
				if !p.e.AcceptPunct(',') {
					break
				}
			}
		}
	}

	if cf.SuperClass == 0 {
		if flags&classfile.AccEnum != 0 {
			// Default-supertype policy (§4.4): ACC_ENUM implies java.lang.Enum.
			cf.SuperClass = p.pool.AddClass("java/lang/Enum")
		} else if flags&classfile.AccModule != 0 {
			// module-info has no super class.
		} else if internalName != "java/lang/Object" {
			// Every class and interface with no explicit superclass
			// inherits from java.lang.Object; an interface-kind
			// declaration never sets cf.SuperClass above, so it always
			// lands here.
			cf.SuperClass = p.pool.AddClass("java/lang/Object")
		}
	}

	if flags&classfile.AccAnnotation != 0 {
		// Default-interface policy (§4.4): an `@interface` with no
		// explicit `extends` gets java.lang.annotation.Annotation. The
		// constant pool dedups by content, so the index is the same
		// whether or not the interface was already listed explicitly.
		annIdx := p.pool.AddClass("java/lang/annotation/Annotation")
		found := false
		for _, idx := range cf.Interfaces {
			if idx == annIdx {
				found = true
				break
			}
		}
		if !found {
			cf.Interfaces = append(cf.Interfaces, annIdx)
		}
	}

	ap := NewAttributeParser(p.e, p.t)
	attrs, err := ap.ParseBlock()
	if err != nil {
		return nil, err
	}
	cf.Attributes = attrs

	if p.e.AcceptPunct(';') {
		return cf, nil
	}
	if err := p.e.ExpectPunct('{'); err != nil {
		return nil, err
	}
	for !p.e.AcceptPunct('}') {
		member, isMethod, err := p.parseMember()
		if err != nil {
			return nil, err
		}
		if isMethod {
			cf.Methods = append(cf.Methods, member)
		} else {
			cf.Fields = append(cf.Fields, member)
		}
	}
	return cf, nil
}

// parseMember reads one fieldDecl, methodDecl, or clinitDecl (§4.4),
// reporting whether it parsed a method (vs. a field). The `static { ... }`
// sugar for a static initializer is recognised right after access flags:
// a type always follows flags in a field/method declaration, so a '{'
// in that position unambiguously means a static initializer body.
func (p *ClassParser) parseMember() (*classfile.Member, bool, error) {
	flags, err := p.e.ExpectAccessFlags()
	if err != nil {
		return nil, false, err
	}

	if p.e.AcceptPunct('{') {
		ip := NewInstructionsParser(p.e, p.t, p.pool, p.t.ThisClassName)
		code, err := ip.ParseBody()
		if err != nil {
			return nil, false, err
		}
		member := &classfile.Member{
			AccessFlags: flags,
			NameIndex:   p.pool.AddUtf8("<clinit>"),
			DescIndex:   p.pool.AddUtf8("()V"),
			Attributes:  []classfile.Attribute{code},
		}
		return member, true, nil
	}

	typ, err := p.e.ExpectType(p.imports)
	if err != nil {
		return nil, false, err
	}

	name, err := p.e.ExpectMethodName()
	if err != nil {
		return nil, false, err
	}

	if p.e.AcceptPunct('(') {
		return p.parseMethodTail(flags, typ, name)
	}
	return p.parseFieldTail(flags, typ, name)
}

// parseMethodTail reads the parameter list onward: `type,type ) [ throws
// ... ] [ attributes ] ( ';' | '{' instructions '}' )`. The opening '('
// has already been consumed; ret/name are the already-parsed return type
// and method name.
func (p *ClassParser) parseMethodTail(flags uint16, ret, name string) (*classfile.Member, bool, error) {
	var argDescs []string
	var params []classfile.MethodParameter
	needsTable := false

	if !p.e.AcceptPunct(')') {
		for {
			pflags := p.expectParamFlags()
			typ, err := p.e.ExpectType(p.imports)
			if err != nil {
				return nil, false, err
			}
			argDescs = append(argDescs, typ)

			var pname string
			if w, ok := p.e.AcceptWord(); ok {
				pname = w
			}

			var nameIdx uint16
			if pname != "" {
				nameIdx = p.pool.AddUtf8(pname)
			}
			params = append(params, classfile.MethodParameter{NameIndex: nameIdx, AccessFlags: pflags})
			if pname != "" || pflags != 0 {
				needsTable = true
			}

			if p.e.AcceptPunct(',') {
				continue
			}
			if err := p.e.ExpectPunct(')'); err != nil {
				return nil, false, err
			}
			break
		}
	}

	descriptor := "(" + strings.Join(argDescs, "") + ")" + ret

	var attrs []classfile.Attribute
	if needsTable {
		// MethodParameters elision rule (§4.4/§9 Open Question): attach
		// the attribute only when at least one parameter carries a name
		// or a non-zero flag set; an all-anonymous, all-flagless
		// parameter list gets none at all.
		attrs = append(attrs, &classfile.MethodParametersAttribute{Parameters: params})
	}

	if p.e.AcceptKeyword("throws") {
		exc := &classfile.ExceptionsAttribute{}
		for {
			typ, err := p.e.ExpectType(p.imports)
			if err != nil {
				return nil, false, err
			}
			exc.Exceptions = append(exc.Exceptions, p.pool.AddClass(strings.Trim(typ, "L;")))
			if !p.e.AcceptPunct(',') {
				break
			}
		}
		attrs = append(attrs, exc)
	}

	ap := NewAttributeParser(p.e, p.t)
	extra, err := ap.ParseBlock()
	if err != nil {
		return nil, false, err
	}
	attrs = append(attrs, extra...)

	member := &classfile.Member{
		AccessFlags: flags,
		NameIndex:   p.pool.AddUtf8(name),
		DescIndex:   p.pool.AddUtf8(descriptor),
	}

	if p.e.AcceptPunct(';') {
		member.Attributes = attrs
		return member, true, nil
	}

	if err := p.e.ExpectPunct('{'); err != nil {
		return nil, false, err
	}
	ip := NewInstructionsParser(p.e, p.t, p.pool, p.t.ThisClassName)
	code, err := ip.ParseBody()
	if err != nil {
		return nil, false, err
	}
	attrs, err = resolveCodeRelativeAnnotations(attrs, code, ip.c.ResolveLabel)
	if err != nil {
		return nil, false, err
	}
	member.Attributes = append(attrs, code)
	return member, true, nil
}

// resolveCodeRelativeAnnotations splits any RuntimeVisible/InvisibleType-
// Annotations attribute parsed alongside a method body into the entries
// that belong on the method itself (declaration-relative target_types,
// JVM spec table 4.7.20-C) and the entries that belong on its Code
// attribute (the local_variable/instanceof/new/cast/method-reference
// family, 0x40-0x4B), resolving each code-relative entry's label
// reference against the just-composed body as it goes.
func resolveCodeRelativeAnnotations(attrs []classfile.Attribute, code *classfile.CodeAttribute, resolve func(string) (int, error)) ([]classfile.Attribute, error) {
	var kept []classfile.Attribute

	for _, a := range attrs {
		ta, ok := a.(*classfile.TypeAnnotationsAttribute)
		if !ok {
			kept = append(kept, a)
			continue
		}

		var onMember, onCode []classfile.TypeAnnotation
		for _, ann := range ta.Annotations {
			if !classfile.CodeRelativeTarget(ann.TargetType) {
				onMember = append(onMember, ann)
				continue
			}
			resolved, err := resolveTargetInfoLabels(ann.TargetType, ann.Target, resolve)
			if err != nil {
				return nil, err
			}
			ann.Target = resolved
			onCode = append(onCode, ann)
		}

		if len(onMember) > 0 {
			kept = append(kept, &classfile.TypeAnnotationsAttribute{Kind: ta.Kind, Annotations: onMember})
		}
		if len(onCode) > 0 {
			code.Attributes = append(code.Attributes, &classfile.TypeAnnotationsAttribute{Kind: ta.Kind, Annotations: onCode})
		}
	}

	return kept, nil
}

// resolveTargetInfoLabels resolves the label names a code-relative
// target_info carries (local_variable ranges, instanceof/new/cast/
// method-reference offsets) against the Composer's post-Compose
// label->offset mapping.
func resolveTargetInfoLabels(targetType byte, t classfile.TargetInfo, resolve func(string) (int, error)) (classfile.TargetInfo, error) {
	switch targetType {
	case 0x40, 0x41:
		table := make([]classfile.TypeAnnotationLocalVar, len(t.LocalVarTable))
		for i, lv := range t.LocalVarTable {
			start, err := resolve(lv.StartLabel)
			if err != nil {
				return t, err
			}
			end, err := resolve(lv.EndLabel)
			if err != nil {
				return t, err
			}
			lv.StartPC = uint16(start)
			lv.Length = uint16(end - start)
			table[i] = lv
		}
		t.LocalVarTable = table
		return t, nil

	case 0x43, 0x44, 0x45, 0x46, 0x47, 0x48, 0x49, 0x4A, 0x4B:
		offset, err := resolve(t.OffsetLabel)
		if err != nil {
			return t, err
		}
		t.Offset = uint16(offset)
		return t, nil

	default:
		return t, nil
	}
}

func (p *ClassParser) expectParamFlags() uint16 {
	var flags uint16
	for {
		word, ok := p.e.AcceptWord()
		if !ok {
			return flags
		}
		flag, ok := paramFlagKeywords[word]
		if !ok {
			p.e.PushBack()
			return flags
		}
		flags |= flag
	}
}

// parseFieldTail reads `[ '=' loadableConstant ] [ attributes ] ';'`; the
// type/name/flags have already been parsed.
func (p *ClassParser) parseFieldTail(flags uint16, typ, name string) (*classfile.Member, bool, error) {
	var attrs []classfile.Attribute

	if p.e.AcceptPunct('=') {
		idx, err := p.t.ParseLoadableConstant(p.e)
		if err != nil {
			return nil, false, err
		}
		attrs = append(attrs, &classfile.ConstantValueAttribute{ValueIndex: idx})
	}

	ap := NewAttributeParser(p.e, p.t)
	extra, err := ap.ParseBlock()
	if err != nil {
		return nil, false, err
	}
	attrs = append(attrs, extra...)

	if err := p.e.ExpectPunct(';'); err != nil {
		return nil, false, err
	}

	return &classfile.Member{
		AccessFlags: flags,
		NameIndex:   p.pool.AddUtf8(name),
		DescIndex:   p.pool.AddUtf8(typ),
		Attributes:  attrs,
	}, false, nil
}
