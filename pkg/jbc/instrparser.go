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
	"encoding/binary"
	"strings"

	"github.com/jbcasm/jbcasm/pkg/classfile"
)

// instrDirectives are the pseudo-instruction keywords recognised inside a
// method body (§4.7), alongside label definitions (a bare word followed
// by ':') and real opcode mnemonics.
var instrDirectives = map[string]bool{
	"stack": true, "locals": true, "line": true, "catch": true,
	"var": true, "endvar": true,
}

// InstructionsParser drives a Composer from the token stream, translating
// every mnemonic and pseudo-instruction of §4.7/§6 into Composer calls.
type InstructionsParser struct {
	e    *Expect
	t    *Translator
	c    *Composer
	self string // internal name of the class under construction, for bare-class sugar
}

func NewInstructionsParser(e *Expect, t *Translator, pool *classfile.ConstantPool, self string) *InstructionsParser {
	return &InstructionsParser{e: e, t: t, c: NewComposer(pool), self: self}
}

// ParseBody reads statements until the closing `}` of a method body and
// returns the composed Code attribute.
func (p *InstructionsParser) ParseBody() (*classfile.CodeAttribute, error) {
	for {
		if p.e.AcceptPunct('}') {
			break
		}
		if err := p.statement(); err != nil {
			return nil, err
		}
	}
	return p.c.Compose()
}

func (p *InstructionsParser) statement() error {
	word, ok := p.e.AcceptWord()
	if !ok {
		tok, _ := p.e.next()
		return expectedError(p.e.Line(), "instruction", tok.Render())
	}

	if p.e.AcceptPunct(':') {
		p.c.AppendLabel(word)
		return nil
	}

	if instrDirectives[word] {
		return p.directive(word)
	}

	return p.instruction(word)
}

func (p *InstructionsParser) directive(word string) error {
	switch word {
	case "stack":
		n, err := p.e.ExpectNumber("stack limit")
		if err != nil {
			return err
		}
		p.c.SetMaxStack(uint16(n))

	case "locals":
		n, err := p.e.ExpectNumber("locals limit")
		if err != nil {
			return err
		}
		p.c.SetMaxLocals(uint16(n))

	case "line":
		n, err := p.e.ExpectNumber("line number")
		if err != nil {
			return err
		}
		p.c.InsertLineNumber(int(n))

	case "catch":
		return p.catchClause()

	case "var":
		return p.varClause()

	case "endvar":
		// endvar is accepted as a no-op terminator some dialects emit
		// after a var range; the range's own "to" label already closes it.

	}
	return nil
}

// catchClause reads `catch [ type ] from label to label using label`.
// A bare `catch` with no type (immediately followed by `from`) denotes
// the "any" handler (CatchType == 0, a finally block).
func (p *InstructionsParser) catchClause() error {
	var catchType uint16
	if !p.e.PeekWord("from") {
		typ, err := p.e.ExpectType(p.t.imports)
		if err != nil {
			return err
		}
		catchType = p.t.pool.AddClass(strings.Trim(typ, "L;"))
	}

	if err := p.expectWordLiteral("from"); err != nil {
		return err
	}
	start, err := p.e.ExpectWord("label")
	if err != nil {
		return err
	}
	if err := p.expectWordLiteral("to"); err != nil {
		return err
	}
	end, err := p.e.ExpectWord("label")
	if err != nil {
		return err
	}
	if err := p.expectWordLiteral("using"); err != nil {
		return err
	}
	handler, err := p.e.ExpectWord("label")
	if err != nil {
		return err
	}

	p.c.AppendException(start, end, handler, catchType)
	return nil
}

// varClause reads `var number is name type from label to label` (or
// `generic` in place of `is` for a LocalVariableTypeTable entry carrying
// a signature instead of a descriptor).
func (p *InstructionsParser) varClause() error {
	n, err := p.e.ExpectNumber("local variable index")
	if err != nil {
		return err
	}

	isType := false
	if p.e.AcceptKeyword("generic") {
		isType = true
	} else if err := p.expectWordLiteral("is"); err != nil {
		return err
	}

	name, err := p.e.ExpectWord("local variable name")
	if err != nil {
		return err
	}
	typ, err := p.e.ExpectType(p.t.imports)
	if err != nil {
		return err
	}
	if err := p.expectWordLiteral("from"); err != nil {
		return err
	}
	start, err := p.e.ExpectWord("label")
	if err != nil {
		return err
	}
	if err := p.expectWordLiteral("to"); err != nil {
		return err
	}
	end, err := p.e.ExpectWord("label")
	if err != nil {
		return err
	}

	nameIdx := p.t.pool.AddUtf8(name)
	descIdx := p.t.pool.AddUtf8(typ)
	p.c.AppendLocal(start, end, nameIdx, descIdx, uint16(n), isType)
	return nil
}

func (p *InstructionsParser) expectWordLiteral(want string) error {
	word, err := p.e.ExpectWord(want)
	if err != nil {
		return err
	}
	if word != want {
		return expectedError(p.e.Line(), want, word)
	}
	return nil
}

// instruction dispatches a real opcode mnemonic, per §4.7/§6.
func (p *InstructionsParser) instruction(mnemonic string) error {
	if mnemonic == "newarray" {
		return p.newarray()
	}
	if mnemonic == "tableswitch" {
		return p.tableswitch()
	}
	if mnemonic == "lookupswitch" {
		return p.lookupswitch()
	}
	if mnemonic == "multianewarray" {
		return p.multianewarray()
	}

	wide := false
	base := mnemonic
	if strings.HasSuffix(mnemonic, "_w") && wideEligible[strings.TrimSuffix(mnemonic, "_w")] {
		wide = true
		base = strings.TrimSuffix(mnemonic, "_w")
	}

	info, ok := opcodesByMnemonic[base]
	if !ok {
		return NewParseError(p.e.Line(), "unknown instruction %q", mnemonic)
	}

	switch info.Operand {
	case OperandNone:
		p.c.AppendSimple(info.Opcode)
		return nil

	case OperandVarIndex:
		n, err := p.e.ExpectNumber("local variable index")
		if err != nil {
			return err
		}
		p.c.AppendVar(info.Opcode, uint16(n), wide)
		return nil

	case OperandIinc:
		idx, err := p.e.ExpectNumber("local variable index")
		if err != nil {
			return err
		}
		neg := p.e.AcceptPunct('-')
		delta, err := p.e.ExpectNumber("increment")
		if err != nil {
			return err
		}
		if neg {
			delta = -delta
		}
		p.c.AppendIinc(uint16(idx), int16(delta), wide)
		return nil

	case OperandByteConst:
		v, err := p.expectSigned("byte operand")
		if err != nil {
			return err
		}
		p.c.AppendImmediate(info.Opcode, []byte{byte(int8(v))})
		return nil

	case OperandShortConst:
		v, err := p.expectSigned("short operand")
		if err != nil {
			return err
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(int16(v)))
		p.c.AppendImmediate(info.Opcode, buf)
		return nil

	case OperandConstant1:
		idx, err := p.t.ParseLoadableConstant(p.e)
		if err != nil {
			return err
		}
		if idx > 0xff {
			return NewParseError(p.e.Line(), "constant pool index %d too large for ldc; use ldc_w", idx)
		}
		p.c.AppendImmediate(info.Opcode, []byte{byte(idx)})
		return nil

	case OperandConstant2:
		idx, err := p.t.ParseLoadableConstant(p.e)
		if err != nil {
			return err
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, idx)
		p.c.AppendImmediate(info.Opcode, buf)
		return nil

	case OperandFieldRef:
		idx, err := p.t.parseFieldRef(p.e)
		if err != nil {
			return err
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, idx)
		p.c.AppendImmediate(info.Opcode, buf)
		return nil

	case OperandMethodRef:
		idx, err := p.t.parseMethodRef(p.e)
		if err != nil {
			return err
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, idx)
		p.c.AppendImmediate(info.Opcode, buf)
		return nil

	case OperandInterfaceMethodRef:
		idx, descriptor, err := p.t.parseInterfaceMethodRefDescriptor(p.e)
		if err != nil {
			return err
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint16(buf[0:2], idx)
		buf[2] = argWordCount(descriptor) + 1
		p.c.AppendImmediate(info.Opcode, buf)
		return nil

	case OperandInvokeDynamicRef:
		idx, err := p.t.ParseInvokeDynamic(p.e)
		if err != nil {
			return err
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint16(buf[0:2], idx)
		p.c.AppendImmediate(info.Opcode, buf)
		return nil

	case OperandClassRef:
		typ, err := p.e.ExpectType(p.t.imports)
		if err != nil {
			return err
		}
		idx := p.t.pool.AddClass(strings.Trim(typ, "L;"))
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, idx)
		p.c.AppendImmediate(info.Opcode, buf)
		return nil

	case OperandBranch2, OperandBranch4:
		label, err := p.e.ExpectWord("label")
		if err != nil {
			return err
		}
		p.c.AppendBranch(info.Opcode, label, info.Operand == OperandBranch4)
		return nil
	}

	return NewParseError(p.e.Line(), "instruction %q not handled by the parser", mnemonic)
}

// argWordCount sums the local-variable slot width of a method
// descriptor's argument list (long/double = 2, everything else 1).
func argWordCount(descriptor string) byte {
	idx := strings.IndexByte(descriptor, ')')
	if idx < 0 {
		return 0
	}
	args := descriptor[1:idx]

	var count byte
	for len(args) > 0 {
		head, rest := splitOneDescriptor(args)
		if head == "J" || head == "D" {
			count += 2
		} else {
			count++
		}
		args = rest
	}
	return count
}

func (p *InstructionsParser) expectSigned(ctx string) (float64, error) {
	neg := p.e.AcceptPunct('-')
	n, err := p.e.ExpectNumber(ctx)
	if err != nil {
		return 0, err
	}
	if neg {
		n = -n
	}
	return n, nil
}

// newarray reads its primitive atype keyword (§6).
func (p *InstructionsParser) newarray() error {
	word, err := p.e.ExpectKeyword(newarrayTypeSet, "array element type")
	if err != nil {
		return err
	}
	p.c.AppendImmediate(opcodesByMnemonic["newarray"].Opcode, []byte{newarrayTypes[word]})
	return nil
}

var newarrayTypeSet = func() map[string]bool {
	m := make(map[string]bool, len(newarrayTypes))
	for k := range newarrayTypes {
		m[k] = true
	}
	return m
}()

// multianewarray reads `type dims` (§6).
func (p *InstructionsParser) multianewarray() error {
	typ, err := p.e.ExpectType(p.t.imports)
	if err != nil {
		return err
	}
	dims, err := p.e.ExpectNumber("array dimension count")
	if err != nil {
		return err
	}
	idx := p.t.pool.AddClass(strings.Trim(typ, "L;"))
	buf := make([]byte, 3)
	binary.BigEndian.PutUint16(buf[0:2], idx)
	buf[2] = byte(dims)
	p.c.AppendImmediate(opcodesByMnemonic["multianewarray"].Opcode, buf)
	return nil
}

// tableswitch reads `low : label label ... default : label` (§4.7, S3:
// the assembler accepts the keys in any order it chooses to enumerate
// them here as a contiguous block starting at low).
func (p *InstructionsParser) tableswitch() error {
	low, err := p.expectSigned("tableswitch low value")
	if err != nil {
		return err
	}
	if err := p.e.ExpectPunct(':'); err != nil {
		return err
	}

	var labels []string
	for !p.e.PeekWord("default") {
		label, err := p.e.ExpectWord("case label")
		if err != nil {
			return err
		}
		labels = append(labels, label)
	}
	if _, err := p.e.ExpectWord("default"); err != nil {
		return err
	}
	if err := p.e.ExpectPunct(':'); err != nil {
		return err
	}
	defaultLabel, err := p.e.ExpectWord("default label")
	if err != nil {
		return err
	}

	high := int32(low) + int32(len(labels)) - 1
	p.c.AppendTableSwitch(int32(low), high, labels, defaultLabel)
	return nil
}

// lookupswitch reads `match : label match : label ... default : label`,
// requiring match values strictly increasing (§4.7, S3 edge case).
func (p *InstructionsParser) lookupswitch() error {
	var pairs []switchPair
	lastMatch := int32(-1 << 31)
	first := true

	for !p.e.PeekWord("default") {
		m, err := p.expectSigned("lookupswitch match value")
		if err != nil {
			return err
		}
		if err := p.e.ExpectPunct(':'); err != nil {
			return err
		}
		label, err := p.e.ExpectWord("case label")
		if err != nil {
			return err
		}

		match := int32(m)
		if !first && match <= lastMatch {
			return NewParseError(p.e.Line(), "lookupswitch match values must be strictly increasing, got %d after %d", match, lastMatch)
		}
		first = false
		lastMatch = match

		pairs = append(pairs, switchPair{Match: match, Label: label})
	}

	if _, err := p.e.ExpectWord("default"); err != nil {
		return err
	}
	if err := p.e.ExpectPunct(':'); err != nil {
		return err
	}
	defaultLabel, err := p.e.ExpectWord("default label")
	if err != nil {
		return err
	}

	p.c.AppendLookupSwitch(pairs, defaultLabel)
	return nil
}
