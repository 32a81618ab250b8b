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
	"github.com/jbcasm/jbcasm/pkg/token"
)

// Translator is the Constant Translator (§4.3): shared by parser and
// printer, it interns loadable constants on parse and renders them on
// print. ThisClassName resolves a bare leading `#` in a field/method
// reference (§6) to "this class"; the Class/Member Parser fills it in
// once the class header has been parsed.
type Translator struct {
	pool          *classfile.ConstantPool
	imports       map[string]string
	ThisClassName string
}

func NewTranslator(pool *classfile.ConstantPool, imports map[string]string) *Translator {
	return &Translator{pool: pool, imports: imports}
}

// ParseLoadableConstant reads a loadable constant per §4.3 and interns it,
// returning its 1-based constant pool index.
func (t *Translator) ParseLoadableConstant(e *Expect) (uint16, error) {
	if e.AcceptPunct('(') {
		return t.parseExplicitConstant(e)
	}
	return t.parseInferredConstant(e)
}

func (t *Translator) parseExplicitConstant(e *Expect) (uint16, error) {
	castType, err := e.ExpectKeyword(castTypes, "constant type")
	if err != nil {
		return 0, err
	}
	if err := e.ExpectPunct(')'); err != nil {
		return 0, err
	}

	switch castType {
	case "boolean":
		n, err := t.expectSignedNumber(e)
		if err != nil {
			return 0, err
		}
		// Edge-case policy (§4.3): true/false semantics are 0/1, clamped.
		v := int32(0)
		if n > 0 {
			v = 1
		}
		return t.pool.AddInteger(v), nil

	case "byte", "short", "int":
		n, err := t.expectSignedNumber(e)
		if err != nil {
			return 0, err
		}
		return t.pool.AddInteger(int32(n)), nil

	case "char":
		c, err := e.ExpectChar("char literal")
		if err != nil {
			return 0, err
		}
		return t.pool.AddInteger(int32(c)), nil

	case "long":
		n, err := t.expectSignedNumber(e)
		if err != nil {
			return 0, err
		}
		return t.pool.AddLong(int64(n)), nil

	case "float":
		n, err := t.expectSignedNumber(e)
		if err != nil {
			return 0, err
		}
		return t.pool.AddFloat(float32(n)), nil

	case "double":
		n, err := t.expectSignedNumber(e)
		if err != nil {
			return 0, err
		}
		return t.pool.AddDouble(n), nil

	case "String":
		s, err := e.ExpectString("string literal")
		if err != nil {
			return 0, err
		}
		return t.pool.AddString(s), nil

	case "Class":
		typ, err := e.ExpectType(t.imports)
		if err != nil {
			return 0, err
		}
		return t.pool.AddClass(strings.Trim(typ, "L;")), nil

	case "MethodHandle":
		return t.parseMethodHandle(e)

	case "MethodType":
		ret, err := e.ExpectType(t.imports)
		if err != nil {
			return 0, err
		}
		desc, err := e.ExpectMethodArgs(t.imports)
		if err != nil {
			return 0, err
		}
		return t.pool.AddMethodType(desc + ret), nil

	case "Dynamic":
		return t.parseDynamic(e)
	}

	return 0, NewParseError(e.Line(), "unknown loadable constant type %q", castType)
}

func (t *Translator) expectSignedNumber(e *Expect) (float64, error) {
	neg := e.AcceptPunct('-')
	n, err := e.ExpectNumber("number")
	if err != nil {
		return 0, err
	}
	if neg {
		n = -n
	}
	return n, nil
}

// parseInferredConstant handles the no-cast forms of §4.3: a quoted char
// becomes an IntegerConstant, a quoted string a StringConstant, a number
// (optionally suffixed d/f/l) the matching numeric constant defaulting to
// integer, true/false the integer 1/0, and otherwise a bare type becomes
// a ClassConstant.
func (t *Translator) parseInferredConstant(e *Expect) (uint16, error) {
	tok, err := e.src.Next()
	if err != nil {
		return 0, NewParseError(e.Line(), "%s", err)
	}

	switch tok.Type {
	case token.QuotedChar:
		return t.pool.AddInteger(int32(tok.Char)), nil

	case token.QuotedString:
		return t.pool.AddString(tok.String), nil

	case token.Number:
		return t.internNumber(e, tok.Number)

	case token.Punct:
		if tok.Punct == '-' {
			n, err := e.ExpectNumber("number")
			if err != nil {
				return 0, err
			}
			return t.internNumber(e, -n)
		}
		e.PushBack()

	case token.Word:
		switch tok.Word {
		case "true":
			return t.pool.AddInteger(1), nil
		case "false":
			return t.pool.AddInteger(0), nil
		default:
			e.PushBack()
			typ, err := e.ExpectType(t.imports)
			if err != nil {
				return 0, err
			}
			return t.pool.AddClass(strings.Trim(typ, "L;")), nil
		}
	}

	return 0, expectedError(e.Line(), "loadable constant", tok.Render())
}

func (t *Translator) internNumber(e *Expect, n float64) (uint16, error) {
	word, ok := e.AcceptWord()
	if ok && len(word) == 1 {
		switch word {
		case "d", "D":
			return t.pool.AddDouble(n), nil
		case "f", "F":
			return t.pool.AddFloat(float32(n)), nil
		case "l", "L":
			return t.pool.AddLong(int64(n)), nil
		}
	}
	if ok {
		e.PushBack()
	}
	return t.pool.AddInteger(int32(n)), nil
}

// parseMethodHandle reads `refKind ClassOrField...` after `(MethodHandle)`.
func (t *Translator) parseMethodHandle(e *Expect) (uint16, error) {
	kindWord, err := e.ExpectKeyword(wordSet(referenceKindKeywords), "reference kind")
	if err != nil {
		return 0, err
	}
	kind := referenceKindKeywords[kindWord]

	var refIndex uint16
	if kind == classfile.RefInvokeInterface {
		refIndex, err = t.parseInterfaceMethodRef(e)
	} else if kind == classfile.RefGetField || kind == classfile.RefGetStatic ||
		kind == classfile.RefPutField || kind == classfile.RefPutStatic {
		refIndex, err = t.parseFieldRef(e)
	} else {
		refIndex, err = t.parseMethodRef(e)
	}
	if err != nil {
		return 0, err
	}

	return t.pool.AddMethodHandle(kind, refIndex), nil
}

// parseDynamic reads `bootstrapIndex name : descriptor` after `(Dynamic)`.
func (t *Translator) parseDynamic(e *Expect) (uint16, error) {
	n, name, desc, err := t.parseDynamicFields(e)
	if err != nil {
		return 0, err
	}
	return t.pool.AddDynamic(n, name, desc), nil
}

// ParseInvokeDynamic reads the same `bootstrapIndex name : descriptor`
// shape as parseDynamic but interns an InvokeDynamic constant, for the
// invokedynamic instruction's operand (§6) rather than a loadable
// constant.
func (t *Translator) ParseInvokeDynamic(e *Expect) (uint16, error) {
	n, name, desc, err := t.parseDynamicFields(e)
	if err != nil {
		return 0, err
	}
	return t.pool.AddInvokeDynamic(n, name, desc), nil
}

func (t *Translator) parseDynamicFields(e *Expect) (uint16, string, string, error) {
	n, err := e.ExpectNumber("bootstrap method index")
	if err != nil {
		return 0, "", "", err
	}
	name, err := e.ExpectWord("dynamic constant name")
	if err != nil {
		return 0, "", "", err
	}
	if err := e.ExpectPunct(':'); err != nil {
		return 0, "", "", err
	}
	desc, err := e.ExpectType(t.imports)
	if err != nil {
		return 0, "", "", err
	}
	return uint16(n), name, desc, nil
}

// parseFieldRef reads `[type] '#' type identifier`, defaulting the class
// to ThisClassName when elided.
func (t *Translator) parseFieldRef(e *Expect) (uint16, error) {
	class, err := t.parseRefClass(e)
	if err != nil {
		return 0, err
	}
	typ, err := e.ExpectType(t.imports)
	if err != nil {
		return 0, err
	}
	name, err := e.ExpectWord("field name")
	if err != nil {
		return 0, err
	}
	return t.pool.AddFieldref(class, name, typ), nil
}

func (t *Translator) parseMethodRef(e *Expect) (uint16, error) {
	class, err := t.parseRefClass(e)
	if err != nil {
		return 0, err
	}
	ret, err := e.ExpectType(t.imports)
	if err != nil {
		return 0, err
	}
	name, err := e.ExpectMethodName()
	if err != nil {
		return 0, err
	}
	args, err := e.ExpectMethodArgs(t.imports)
	if err != nil {
		return 0, err
	}
	return t.pool.AddMethodref(class, name, args+ret), nil
}

func (t *Translator) parseInterfaceMethodRef(e *Expect) (uint16, error) {
	idx, _, err := t.parseInterfaceMethodRefDescriptor(e)
	return idx, err
}

// parseInterfaceMethodRefDescriptor is parseInterfaceMethodRef plus the
// resolved descriptor, which invokeinterface's operand needs to compute
// its redundant argument-word-count byte (§6, JVM spec table 6.5.invokeinterface).
func (t *Translator) parseInterfaceMethodRefDescriptor(e *Expect) (uint16, string, error) {
	class, err := t.parseRefClass(e)
	if err != nil {
		return 0, "", err
	}
	ret, err := e.ExpectType(t.imports)
	if err != nil {
		return 0, "", err
	}
	name, err := e.ExpectMethodName()
	if err != nil {
		return 0, "", err
	}
	args, err := e.ExpectMethodArgs(t.imports)
	if err != nil {
		return 0, "", err
	}
	descriptor := args + ret
	return t.pool.AddInterfaceMethodref(class, name, descriptor), descriptor, nil
}

// parseRefClass reads the `[type] '#'` prefix of §6's reference syntax.
// A bare `#` means "this class" and yields ThisClassName, which the
// Class/Member Parser sets from the class header before any member is
// parsed.
func (t *Translator) parseRefClass(e *Expect) (string, error) {
	if e.AcceptPunct('#') {
		return t.ThisClassName, nil
	}
	typ, err := e.ExpectType(t.imports)
	if err != nil {
		return "", err
	}
	if err := e.ExpectPunct('#'); err != nil {
		return "", err
	}
	return strings.Trim(typ, "L;"), nil
}

func wordSet(m map[string]byte) map[string]bool {
	s := make(map[string]bool, len(m))
	for k := range m {
		s[k] = true
	}
	return s
}
