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
	"github.com/jbcasm/jbcasm/pkg/token"
)

// elementValueCastTypes are the explicit-cast keywords an element value
// accepts (§4.6). Array and Annotation casts route to the same brace/`@`
// forms their inferred counterparts use; Enum still reads `type # ident`.
var elementValueCastTypes = map[string]bool{
	"boolean": true, "byte": true, "char": true, "short": true,
	"int": true, "long": true, "float": true, "double": true,
	"String": true, "Class": true, "Enum": true, "Annotation": true, "Array": true,
}

// AnnotationsParser reads the Annotation / TypeAnnotation / ElementValue
// grammar of §4.6, sharing the Expectation Layer and Constant Translator
// with every other parser stage.
type AnnotationsParser struct {
	e *Expect
	t *Translator
}

func NewAnnotationsParser(e *Expect, t *Translator) *AnnotationsParser {
	return &AnnotationsParser{e: e, t: t}
}

// ParseAnnotation reads `type { (ident = elementValue)* }` (§4.6). Pairs
// have no separator — each element value terminates itself (`;` for a
// primitive/string/enum/class, `}` for a nested annotation or array) — but
// a stray `;` left over after an array or annotation value is tolerated
// and consumed, the same way parseTypeList tolerates an optional `;`.
func (p *AnnotationsParser) ParseAnnotation() (classfile.Annotation, error) {
	typ, err := p.e.ExpectType(p.t.imports)
	if err != nil {
		return classfile.Annotation{}, err
	}
	ann := classfile.Annotation{TypeIndex: p.t.pool.AddUtf8(typ)}

	if err := p.e.ExpectPunct('{'); err != nil {
		return ann, err
	}
	for !p.e.AcceptPunct('}') {
		name, err := p.e.ExpectWord("element name")
		if err != nil {
			return ann, err
		}
		if err := p.e.ExpectPunct('='); err != nil {
			return ann, err
		}
		value, err := p.ParseElementValue()
		if err != nil {
			return ann, err
		}
		ann.Elements = append(ann.Elements, classfile.ElementValuePair{
			NameIndex: p.t.pool.AddUtf8(name),
			Value:     value,
		})
		p.e.AcceptPunct(';')
	}
	return ann, nil
}

// ParseElementValue reads one element_value per §4.6: a cast form
// `( CastType )` dispatching on the cast keyword, a nested annotation
// (leading '@'), a bare array (leading '{'), or an inferred
// primitive/string/enum/class constant.
func (p *AnnotationsParser) ParseElementValue() (classfile.ElementValue, error) {
	if p.e.AcceptPunct('(') {
		return p.parseCastConstant()
	}
	if p.e.AcceptPunct('@') {
		ann, err := p.ParseAnnotation()
		if err != nil {
			return classfile.ElementValue{}, err
		}
		return classfile.ElementValue{Tag: '@', Annotation: &ann}, nil
	}
	if p.e.AcceptPunct('{') {
		return p.parseArrayBody()
	}
	return p.parseInferredConstant()
}

// parseArrayBody reads `elementValue*` up to a closing '}', the opening
// brace already consumed by the caller. Elements have no separator; each
// terminates itself exactly like an Annotation's element values do.
func (p *AnnotationsParser) parseArrayBody() (classfile.ElementValue, error) {
	var values []classfile.ElementValue
	for !p.e.AcceptPunct('}') {
		v, err := p.ParseElementValue()
		if err != nil {
			return classfile.ElementValue{}, err
		}
		values = append(values, v)
	}
	return classfile.ElementValue{Tag: '[', Array: values}, nil
}

// parseEnumConstant reads `type # ident ;`.
func (p *AnnotationsParser) parseEnumConstant() (classfile.ElementValue, error) {
	typ, err := p.e.ExpectType(p.t.imports)
	if err != nil {
		return classfile.ElementValue{}, err
	}
	if err := p.e.ExpectPunct('#'); err != nil {
		return classfile.ElementValue{}, err
	}
	name, err := p.e.ExpectWord("enum constant name")
	if err != nil {
		return classfile.ElementValue{}, err
	}
	if err := p.e.ExpectPunct(';'); err != nil {
		return classfile.ElementValue{}, err
	}
	return classfile.ElementValue{
		Tag:       'e',
		TypeIndex: p.t.pool.AddUtf8(typ),
		ConstName: p.t.pool.AddUtf8(name),
	}, nil
}

// parseCastConstant reads the element value body after `( CastType )`.
// The primitive/String/Class/Enum cases each terminate with a mandatory
// `;`; Annotation and Array self-terminate via `}` and take none.
func (p *AnnotationsParser) parseCastConstant() (classfile.ElementValue, error) {
	castType, err := p.e.ExpectKeyword(elementValueCastTypes, "element value type")
	if err != nil {
		return classfile.ElementValue{}, err
	}
	if err := p.e.ExpectPunct(')'); err != nil {
		return classfile.ElementValue{}, err
	}

	switch castType {
	case "boolean":
		n, err := p.expectSignedNumber()
		if err != nil {
			return classfile.ElementValue{}, err
		}
		if err := p.e.ExpectPunct(';'); err != nil {
			return classfile.ElementValue{}, err
		}
		v := int32(0)
		if n > 0 {
			v = 1
		}
		return classfile.ElementValue{Tag: 'Z', ConstIndex: p.t.pool.AddInteger(v)}, nil

	case "byte", "short", "int":
		n, err := p.expectSignedNumber()
		if err != nil {
			return classfile.ElementValue{}, err
		}
		if err := p.e.ExpectPunct(';'); err != nil {
			return classfile.ElementValue{}, err
		}
		tag := map[string]byte{"byte": 'B', "short": 'S', "int": 'I'}[castType]
		return classfile.ElementValue{Tag: tag, ConstIndex: p.t.pool.AddInteger(int32(n))}, nil

	case "char":
		c, err := p.e.ExpectChar("char literal")
		if err != nil {
			return classfile.ElementValue{}, err
		}
		if err := p.e.ExpectPunct(';'); err != nil {
			return classfile.ElementValue{}, err
		}
		return classfile.ElementValue{Tag: 'C', ConstIndex: p.t.pool.AddInteger(int32(c))}, nil

	case "long":
		n, err := p.expectSignedNumber()
		if err != nil {
			return classfile.ElementValue{}, err
		}
		if err := p.e.ExpectPunct(';'); err != nil {
			return classfile.ElementValue{}, err
		}
		return classfile.ElementValue{Tag: 'J', ConstIndex: p.t.pool.AddLong(int64(n))}, nil

	case "float":
		n, err := p.expectSignedNumber()
		if err != nil {
			return classfile.ElementValue{}, err
		}
		if err := p.e.ExpectPunct(';'); err != nil {
			return classfile.ElementValue{}, err
		}
		return classfile.ElementValue{Tag: 'F', ConstIndex: p.t.pool.AddFloat(float32(n))}, nil

	case "double":
		n, err := p.expectSignedNumber()
		if err != nil {
			return classfile.ElementValue{}, err
		}
		if err := p.e.ExpectPunct(';'); err != nil {
			return classfile.ElementValue{}, err
		}
		return classfile.ElementValue{Tag: 'D', ConstIndex: p.t.pool.AddDouble(n)}, nil

	case "String":
		s, err := p.e.ExpectString("string literal")
		if err != nil {
			return classfile.ElementValue{}, err
		}
		if err := p.e.ExpectPunct(';'); err != nil {
			return classfile.ElementValue{}, err
		}
		return classfile.ElementValue{Tag: 's', ConstIndex: p.t.pool.AddUtf8(s)}, nil

	case "Class":
		typ, err := p.e.ExpectType(p.t.imports)
		if err != nil {
			return classfile.ElementValue{}, err
		}
		if err := p.e.ExpectPunct(';'); err != nil {
			return classfile.ElementValue{}, err
		}
		return classfile.ElementValue{Tag: 'c', TypeIndex: p.t.pool.AddUtf8(typ)}, nil

	case "Enum":
		return p.parseEnumConstant()

	case "Annotation":
		ann, err := p.ParseAnnotation()
		if err != nil {
			return classfile.ElementValue{}, err
		}
		return classfile.ElementValue{Tag: '@', Annotation: &ann}, nil

	case "Array":
		if err := p.e.ExpectPunct('{'); err != nil {
			return classfile.ElementValue{}, err
		}
		return p.parseArrayBody()
	}

	return classfile.ElementValue{}, NewParseError(p.e.Line(), "unknown element value type %q", castType)
}

func (p *AnnotationsParser) expectSignedNumber() (float64, error) {
	neg := p.e.AcceptPunct('-')
	n, err := p.e.ExpectNumber("number")
	if err != nil {
		return 0, err
	}
	if neg {
		n = -n
	}
	return n, nil
}

// parseInferredConstant handles the no-cast element value forms of §4.6: a
// quoted char, a quoted string, a number (optionally d/f/l suffixed,
// defaulting to int), true/false, or a bare type word that is an enum
// constant if `#` follows and a class constant otherwise. Every form here
// terminates with a mandatory `;`.
func (p *AnnotationsParser) parseInferredConstant() (classfile.ElementValue, error) {
	tok, err := p.e.next()
	if err != nil {
		return classfile.ElementValue{}, err
	}

	switch tok.Type {
	case token.QuotedChar:
		if err := p.e.ExpectPunct(';'); err != nil {
			return classfile.ElementValue{}, err
		}
		return classfile.ElementValue{Tag: 'C', ConstIndex: p.t.pool.AddInteger(int32(tok.Char))}, nil

	case token.QuotedString:
		if err := p.e.ExpectPunct(';'); err != nil {
			return classfile.ElementValue{}, err
		}
		return classfile.ElementValue{Tag: 's', ConstIndex: p.t.pool.AddUtf8(tok.String)}, nil

	case token.Number:
		return p.inferredNumber(tok.Number)

	case token.Punct:
		if tok.Punct == '-' {
			n, err := p.e.ExpectNumber("number")
			if err != nil {
				return classfile.ElementValue{}, err
			}
			return p.inferredNumber(-n)
		}

	case token.Word:
		switch tok.Word {
		case "true":
			if err := p.e.ExpectPunct(';'); err != nil {
				return classfile.ElementValue{}, err
			}
			return classfile.ElementValue{Tag: 'Z', ConstIndex: p.t.pool.AddInteger(1)}, nil
		case "false":
			if err := p.e.ExpectPunct(';'); err != nil {
				return classfile.ElementValue{}, err
			}
			return classfile.ElementValue{Tag: 'Z', ConstIndex: p.t.pool.AddInteger(0)}, nil
		default:
			p.e.PushBack()
			typ, err := p.e.ExpectType(p.t.imports)
			if err != nil {
				return classfile.ElementValue{}, err
			}
			if p.e.AcceptPunct('#') {
				name, err := p.e.ExpectWord("enum constant name")
				if err != nil {
					return classfile.ElementValue{}, err
				}
				if err := p.e.ExpectPunct(';'); err != nil {
					return classfile.ElementValue{}, err
				}
				return classfile.ElementValue{
					Tag:       'e',
					TypeIndex: p.t.pool.AddUtf8(typ),
					ConstName: p.t.pool.AddUtf8(name),
				}, nil
			}
			if err := p.e.ExpectPunct(';'); err != nil {
				return classfile.ElementValue{}, err
			}
			return classfile.ElementValue{Tag: 'c', TypeIndex: p.t.pool.AddUtf8(typ)}, nil
		}
	}

	return classfile.ElementValue{}, expectedError(p.e.Line(), "element value", tok.Render())
}

func (p *AnnotationsParser) inferredNumber(n float64) (classfile.ElementValue, error) {
	word, ok := p.e.AcceptWord()
	if ok && len(word) == 1 {
		switch word {
		case "d", "D":
			if err := p.e.ExpectPunct(';'); err != nil {
				return classfile.ElementValue{}, err
			}
			return classfile.ElementValue{Tag: 'D', ConstIndex: p.t.pool.AddDouble(n)}, nil
		case "f", "F":
			if err := p.e.ExpectPunct(';'); err != nil {
				return classfile.ElementValue{}, err
			}
			return classfile.ElementValue{Tag: 'F', ConstIndex: p.t.pool.AddFloat(float32(n))}, nil
		case "l", "L":
			if err := p.e.ExpectPunct(';'); err != nil {
				return classfile.ElementValue{}, err
			}
			return classfile.ElementValue{Tag: 'J', ConstIndex: p.t.pool.AddLong(int64(n))}, nil
		}
	}
	if ok {
		p.e.PushBack()
	}
	if err := p.e.ExpectPunct(';'); err != nil {
		return classfile.ElementValue{}, err
	}
	return classfile.ElementValue{Tag: 'I', ConstIndex: p.t.pool.AddInteger(int32(n))}, nil
}

// ParseTypeAnnotation reads a TypeAnnotation: `annotation targetInfo {
// typePath* }` (§4.6) — the base annotation first, then the target_info
// keyword and operand, then the brace-delimited type path. Offsets inside
// a code-relative target_info are recorded as label names; the Class
// Parser resolves them to byte offsets once the enclosing method's Code
// Composer has run.
func (p *AnnotationsParser) ParseTypeAnnotation() (classfile.TypeAnnotation, error) {
	ann, err := p.ParseAnnotation()
	if err != nil {
		return classfile.TypeAnnotation{}, err
	}

	kindWord, err := p.e.ExpectKeyword(wordSet(targetInfoKeywords), "type annotation target")
	if err != nil {
		return classfile.TypeAnnotation{}, err
	}
	targetType := targetInfoKeywords[kindWord]

	target, err := p.parseTargetInfo(kindWord, targetType)
	if err != nil {
		return classfile.TypeAnnotation{}, err
	}

	path, err := p.parseTypePath()
	if err != nil {
		return classfile.TypeAnnotation{}, err
	}

	return classfile.TypeAnnotation{
		TargetType: targetType,
		Target:     target,
		Path:       path,
		Annotation: ann,
	}, nil
}

func (p *AnnotationsParser) parseTargetInfo(kindWord string, targetType byte) (classfile.TargetInfo, error) {
	target := classfile.TargetInfo{Kind: kindWord}

	switch targetType {
	case 0x00, 0x01: // parameter_generic_class / parameter_generic_method
		n, err := p.e.ExpectNumber("type parameter index")
		if err != nil {
			return target, err
		}
		target.TypeParameterIdx = byte(n)

	case 0x10: // extends/implements
		n, err := p.e.ExpectNumber("supertype index")
		if err != nil {
			return target, err
		}
		target.SupertypeIndex = uint16(n)

	case 0x11, 0x12: // bound_generic_class / bound_generic_method
		tp, err := p.e.ExpectNumber("type parameter index")
		if err != nil {
			return target, err
		}
		bound, err := p.e.ExpectNumber("bound index")
		if err != nil {
			return target, err
		}
		target.TypeParameterIdx = byte(tp)
		target.BoundIndex = byte(bound)

	case 0x13, 0x14, 0x15: // field / return / receiver: empty_target

	case 0x16: // parameter (formal parameter of a method/constructor/lambda)
		n, err := p.e.ExpectNumber("formal parameter index")
		if err != nil {
			return target, err
		}
		target.FormalParameterIdx = byte(n)

	case 0x17: // throws
		n, err := p.e.ExpectNumber("throws type index")
		if err != nil {
			return target, err
		}
		target.ThrowsTypeIndex = uint16(n)

	case 0x40, 0x41: // local_variable / resource_variable
		for {
			start, err := p.e.ExpectWord("label")
			if err != nil {
				return target, err
			}
			if err := p.expectArrow(); err != nil {
				return target, err
			}
			end, err := p.e.ExpectWord("label")
			if err != nil {
				return target, err
			}
			n, err := p.e.ExpectNumber("local variable index")
			if err != nil {
				return target, err
			}
			target.LocalVarTable = append(target.LocalVarTable, classfile.TypeAnnotationLocalVar{
				StartLabel: start, EndLabel: end, Index: uint16(n),
			})
			if !p.e.AcceptPunct(',') {
				break
			}
		}

	case 0x42: // catch
		n, err := p.e.ExpectNumber("exception table index")
		if err != nil {
			return target, err
		}
		target.CatchTypeIndex = uint16(n)

	case 0x43, 0x44, 0x45, 0x46: // instance_of/new/method_reference_new/method_reference
		label, err := p.e.ExpectWord("label")
		if err != nil {
			return target, err
		}
		target.OffsetLabel = label

	case 0x47: // cast
		label, err := p.e.ExpectWord("label")
		if err != nil {
			return target, err
		}
		n, err := p.e.ExpectNumber("type argument index")
		if err != nil {
			return target, err
		}
		target.OffsetLabel = label
		target.ArgumentIndex = byte(n)

	case 0x48, 0x49, 0x4A, 0x4B: // argument_generic_method* variants
		label, err := p.e.ExpectWord("label")
		if err != nil {
			return target, err
		}
		n, err := p.e.ExpectNumber("type argument index")
		if err != nil {
			return target, err
		}
		target.OffsetLabel = label
		target.ArgumentIndex = byte(n)
	}

	return target, nil
}

func (p *AnnotationsParser) expectArrow() error {
	if err := p.e.ExpectPunct('-'); err != nil {
		return err
	}
	return p.e.ExpectPunct('>')
}

// parseTypePath reads `{ typePath* }` where each entry is `kind [number] ;`
// (§4.6) — the number is read only when no `;` immediately follows the
// kind keyword, and is only meaningful for `type_argument`.
func (p *AnnotationsParser) parseTypePath() ([]classfile.TypePathEntry, error) {
	if err := p.e.ExpectPunct('{'); err != nil {
		return nil, err
	}

	var path []classfile.TypePathEntry
	for !p.e.AcceptPunct('}') {
		kindWord, err := p.e.ExpectKeyword(wordSet(typePathKeywords), "type path kind")
		if err != nil {
			return path, err
		}
		entry := classfile.TypePathEntry{Kind: typePathKeywords[kindWord]}
		if !p.e.AcceptPunct(';') {
			n, err := p.e.ExpectNumber("type argument index")
			if err != nil {
				return path, err
			}
			entry.TypeArgumentIndex = byte(n)
			if err := p.e.ExpectPunct(';'); err != nil {
				return path, err
			}
		}
		path = append(path, entry)
	}
	return path, nil
}

