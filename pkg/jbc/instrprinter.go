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

	"github.com/jbcasm/jbcasm/pkg/classfile"
)

// printCode is the mirror of the Instructions Parser (§4.7/§4.8): it
// decodes a Code attribute's bytecode and pseudo-instruction tables back
// into the stack/locals directives, label-annotated instruction stream,
// catch clauses, and var clauses the parser accepts. None of this body's
// statement forms take a trailing ';' (§4.7); only a newline separates
// them.
func (cp *ClassPrinter) printCode(code *classfile.CodeAttribute, labels *Labels) error {
	cp.p.Printf("stack %d", code.MaxStack)
	cp.p.NewLine()
	cp.p.Printf("locals %d", code.MaxLocals)
	cp.p.NewLine()
	cp.p.NewLine()

	var lines *classfile.LineNumberTableAttribute
	var lvt *classfile.LocalVariableTableAttribute
	var lvtt *classfile.LocalVariableTypeTableAttribute
	for _, a := range code.Attributes {
		switch v := a.(type) {
		case *classfile.LineNumberTableAttribute:
			lines = v
		case *classfile.LocalVariableTableAttribute:
			lvt = v
		case *classfile.LocalVariableTypeTableAttribute:
			lvtt = v
		}
	}

	lineAt := make(map[int]uint16)
	if lines != nil {
		for _, l := range lines.Lines {
			lineAt[int(l.StartPC)] = l.Line
		}
	}

	ip := &InstructionsPrinter{p: cp.p, pool: cp.pool, self: cp.self, labels: labels}
	if err := ip.printInstructions(code.Code, lineAt); err != nil {
		return err
	}

	if len(code.Exceptions) > 0 {
		cp.p.NewLine()
		if err := cp.printExceptionTable(code.Exceptions, labels); err != nil {
			return err
		}
	}

	if lvt != nil || lvtt != nil {
		cp.p.NewLine()
		if err := cp.printLocalVariableTable(lvt, labels); err != nil {
			return err
		}
		if err := cp.printLocalVariableTypeTable(lvtt, labels); err != nil {
			return err
		}
	}

	return nil
}

func (cp *ClassPrinter) printExceptionTable(exceptions []classfile.ExceptionHandler, labels *Labels) error {
	for _, e := range exceptions {
		cp.p.Word("catch")
		cp.p.Space()
		if e.CatchType != 0 {
			name, err := cp.pool.ClassName(e.CatchType)
			if err != nil {
				return NewPrintError(0, "%s", err)
			}
			cp.p.Word(externalType(name))
			cp.p.Space()
		}
		cp.p.Word("from")
		cp.p.Space()
		cp.p.Word(labels.Name(int(e.StartPC)))
		cp.p.Space()
		cp.p.Word("to")
		cp.p.Space()
		cp.p.Word(labels.Name(int(e.EndPC)))
		cp.p.Space()
		cp.p.Word("using")
		cp.p.Space()
		cp.p.Word(labels.Name(int(e.HandlerPC)))
		cp.p.NewLine()
	}
	return nil
}

func (cp *ClassPrinter) printLocalVariableTable(lvt *classfile.LocalVariableTableAttribute, labels *Labels) error {
	if lvt == nil {
		return nil
	}
	for _, l := range lvt.Locals {
		name, err := cp.pool.Utf8(l.NameIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		desc, err := cp.pool.Utf8(l.DescIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		cp.printVarLine(l.Index, "is", name, desc, l.StartPC, l.Length, labels)
	}
	return nil
}

// printLocalVariableTypeTable renders LocalVariableTypeTable entries with
// the `generic` keyword in place of `is` (§4.7); the dialect's var clause
// reads a plain type token for either table, so a generic signature
// containing `<...>` does not round-trip through externalType the way an
// ordinary descriptor does. This mirrors the grammar's own limit rather
// than working around it.
func (cp *ClassPrinter) printLocalVariableTypeTable(lvtt *classfile.LocalVariableTypeTableAttribute, labels *Labels) error {
	if lvtt == nil {
		return nil
	}
	for _, l := range lvtt.Locals {
		name, err := cp.pool.Utf8(l.NameIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		sig, err := cp.pool.Utf8(l.SigIndex)
		if err != nil {
			return NewPrintError(0, "%s", err)
		}
		cp.printVarLine(l.Index, "generic", name, sig, l.StartPC, l.Length, labels)
	}
	return nil
}

func (cp *ClassPrinter) printVarLine(index uint16, kw, name, typ string, startPC, length uint16, labels *Labels) {
	cp.p.Printf("var %d", index)
	cp.p.Space()
	cp.p.Word(kw)
	cp.p.Space()
	cp.p.Word(name)
	cp.p.Space()
	cp.p.Word(externalType(typ))
	cp.p.Space()
	cp.p.Word("from")
	cp.p.Space()
	cp.p.Word(labels.Name(int(startPC)))
	cp.p.Space()
	cp.p.Word("to")
	cp.p.Space()
	cp.p.Word(labels.Name(int(startPC) + int(length)))
	cp.p.NewLine()
}

// InstructionsPrinter is the mirror of InstructionsParser: it decodes one
// method's bytecode array into mnemonic/operand text, driven by the same
// opcodeTable the parser builds Composer calls from. self carries the
// enclosing class's internal name so field/method references can apply
// the bare-`#` "this class" shorthand (§6) parseRefClass accepts on the
// way in.
type InstructionsPrinter struct {
	p      *Printer
	pool   *classfile.ConstantPool
	self   string
	labels *Labels
}

func (ip *InstructionsPrinter) printInstructions(code []byte, lineAt map[int]uint16) error {
	pc := 0
	for pc < len(code) {
		if name := ip.labels.Name(pc); name != "" {
			ip.p.Word(name)
			ip.p.Line(":")
		}
		if line, ok := lineAt[pc]; ok {
			ip.p.Printf("line %d", line)
			ip.p.NewLine()
		}

		opcode := code[pc]
		if opcode == wideOpcode {
			n, err := ip.printWide(code, pc)
			if err != nil {
				return err
			}
			pc += n
			continue
		}

		info, ok := opcodesByCode[opcode]
		if !ok {
			return NewPrintError(0, "unknown opcode 0x%02X at offset %d", opcode, pc)
		}

		n, err := ip.printInstruction(code, pc, info)
		if err != nil {
			return err
		}
		pc += n
	}
	return nil
}

// printWide decodes the JVM's wide prefix (0xC4), which has no standalone
// mnemonic of its own: the printed form is the underlying instruction's
// mnemonic with a `_w` suffix, matching the spelling InstructionsParser's
// wideEligible dispatch expects back.
func (ip *InstructionsPrinter) printWide(code []byte, pc int) (int, error) {
	if pc+1 >= len(code) {
		return 0, NewPrintError(0, "truncated wide instruction at offset %d", pc)
	}
	inner := code[pc+1]

	if inner == opcodesByMnemonic["iinc"].Opcode {
		if pc+6 > len(code) {
			return 0, NewPrintError(0, "truncated wide iinc at offset %d", pc)
		}
		idx := binary.BigEndian.Uint16(code[pc+2 : pc+4])
		delta := int16(binary.BigEndian.Uint16(code[pc+4 : pc+6]))
		ip.p.Printf("iinc_w %d %d", idx, delta)
		ip.p.NewLine()
		return 6, nil
	}

	info, ok := opcodesByCode[inner]
	if !ok {
		return 0, NewPrintError(0, "unknown wide-prefixed opcode 0x%02X at offset %d", inner, pc)
	}
	if pc+4 > len(code) {
		return 0, NewPrintError(0, "truncated wide instruction at offset %d", pc)
	}
	idx := binary.BigEndian.Uint16(code[pc+2 : pc+4])
	ip.p.Printf("%s_w %d", info.Mnemonic, idx)
	ip.p.NewLine()
	return 4, nil
}

// printInstruction renders one non-wide instruction at pc and returns its
// total byte length (opcode included), the inverse of the Composer's own
// Append* encodings.
func (ip *InstructionsPrinter) printInstruction(code []byte, pc int, info opcodeInfo) (int, error) {
	switch info.Operand {
	case OperandNone:
		ip.p.Line(info.Mnemonic)
		return 1, nil

	case OperandVarIndex:
		ip.p.Printf("%s %d", info.Mnemonic, code[pc+1])
		ip.p.NewLine()
		return 2, nil

	case OperandIinc:
		idx := code[pc+1]
		delta := int8(code[pc+2])
		ip.p.Printf("iinc %d %d", idx, delta)
		ip.p.NewLine()
		return 3, nil

	case OperandByteConst:
		v := int8(code[pc+1])
		ip.p.Printf("%s %d", info.Mnemonic, v)
		ip.p.NewLine()
		return 2, nil

	case OperandShortConst:
		v := int16(binary.BigEndian.Uint16(code[pc+1 : pc+3]))
		ip.p.Printf("%s %d", info.Mnemonic, v)
		ip.p.NewLine()
		return 3, nil

	case OperandNewArrayType:
		atype := code[pc+1]
		ip.p.Printf("newarray %s", newarrayTypeNames[atype])
		ip.p.NewLine()
		return 2, nil

	case OperandConstant1:
		idx := uint16(code[pc+1])
		ip.p.Word(info.Mnemonic)
		ip.p.Space()
		if err := ip.p.PrintConstant(ip.pool, idx, HintNone, true); err != nil {
			return 0, err
		}
		ip.p.NewLine()
		return 2, nil

	case OperandConstant2:
		idx := binary.BigEndian.Uint16(code[pc+1 : pc+3])
		ip.p.Word(info.Mnemonic)
		ip.p.Space()
		if err := ip.p.PrintConstant(ip.pool, idx, HintNone, true); err != nil {
			return 0, err
		}
		ip.p.NewLine()
		return 3, nil

	case OperandFieldRef:
		idx := binary.BigEndian.Uint16(code[pc+1 : pc+3])
		ip.p.Word(info.Mnemonic)
		ip.p.Space()
		if err := ip.printFieldRef(idx); err != nil {
			return 0, err
		}
		ip.p.NewLine()
		return 3, nil

	case OperandMethodRef:
		idx := binary.BigEndian.Uint16(code[pc+1 : pc+3])
		ip.p.Word(info.Mnemonic)
		ip.p.Space()
		if err := ip.printMethodRef(idx); err != nil {
			return 0, err
		}
		ip.p.NewLine()
		return 3, nil

	case OperandInterfaceMethodRef:
		// code[pc+3] (count) and code[pc+4] (reserved 0) are redundant:
		// the parser recomputes count from the resolved descriptor.
		idx := binary.BigEndian.Uint16(code[pc+1 : pc+3])
		ip.p.Word(info.Mnemonic)
		ip.p.Space()
		if err := ip.printMethodRef(idx); err != nil {
			return 0, err
		}
		ip.p.NewLine()
		return 5, nil

	case OperandInvokeDynamicRef:
		idx := binary.BigEndian.Uint16(code[pc+1 : pc+3])
		ip.p.Word(info.Mnemonic)
		ip.p.Space()
		if err := ip.printInvokeDynamic(idx); err != nil {
			return 0, err
		}
		ip.p.NewLine()
		return 5, nil

	case OperandClassRef:
		idx := binary.BigEndian.Uint16(code[pc+1 : pc+3])
		name, err := ip.pool.ClassName(idx)
		if err != nil {
			return 0, NewPrintError(0, "%s", err)
		}
		ip.p.Printf("%s %s", info.Mnemonic, externalType(name))
		ip.p.NewLine()
		return 3, nil

	case OperandMultiArray:
		idx := binary.BigEndian.Uint16(code[pc+1 : pc+3])
		dims := code[pc+3]
		name, err := ip.pool.ClassName(idx)
		if err != nil {
			return 0, NewPrintError(0, "%s", err)
		}
		ip.p.Printf("multianewarray %s %d", externalType(name), dims)
		ip.p.NewLine()
		return 4, nil

	case OperandBranch2:
		delta := int16(binary.BigEndian.Uint16(code[pc+1 : pc+3]))
		ip.p.Printf("%s %s", info.Mnemonic, ip.labels.Name(pc+int(delta)))
		ip.p.NewLine()
		return 3, nil

	case OperandBranch4:
		delta := int32(binary.BigEndian.Uint32(code[pc+1 : pc+5]))
		ip.p.Printf("%s %s", info.Mnemonic, ip.labels.Name(pc+int(delta)))
		ip.p.NewLine()
		return 5, nil

	case OperandTableSwitch:
		return ip.printTableSwitch(code, pc)

	case OperandLookupSwitch:
		return ip.printLookupSwitch(code, pc)
	}

	return 0, NewPrintError(0, "instruction %q not handled by the printer", info.Mnemonic)
}

// printTableSwitch mirrors InstructionsParser.tableswitch: `low :` then
// one label per contiguous key starting at low, then `default : label`.
func (ip *InstructionsPrinter) printTableSwitch(code []byte, pc int) (int, error) {
	pad := switchPadding(pc)
	p := pc + 1 + pad
	if p+12 > len(code) {
		return 0, NewPrintError(0, "truncated tableswitch at offset %d", pc)
	}
	def := int32(binary.BigEndian.Uint32(code[p : p+4]))
	low := int32(binary.BigEndian.Uint32(code[p+4 : p+8]))
	high := int32(binary.BigEndian.Uint32(code[p+8 : p+12]))
	p += 12

	ip.p.Line("tableswitch")
	ip.p.Indent()
	ip.p.Printf("%d :", low)
	ip.p.NewLine()
	for k := low; k <= high; k++ {
		if p+4 > len(code) {
			return 0, NewPrintError(0, "truncated tableswitch at offset %d", pc)
		}
		off := int32(binary.BigEndian.Uint32(code[p : p+4]))
		ip.p.Line(ip.labels.Name(pc + int(off)))
		p += 4
	}
	ip.p.Printf("default : %s", ip.labels.Name(pc+int(def)))
	ip.p.NewLine()
	ip.p.Unindent()

	return p - pc, nil
}

// printLookupSwitch mirrors InstructionsParser.lookupswitch: `match :
// label` pairs in ascending match order, then `default : label`.
func (ip *InstructionsPrinter) printLookupSwitch(code []byte, pc int) (int, error) {
	pad := switchPadding(pc)
	p := pc + 1 + pad
	if p+8 > len(code) {
		return 0, NewPrintError(0, "truncated lookupswitch at offset %d", pc)
	}
	def := int32(binary.BigEndian.Uint32(code[p : p+4]))
	count := int32(binary.BigEndian.Uint32(code[p+4 : p+8]))
	p += 8

	ip.p.Line("lookupswitch")
	ip.p.Indent()
	for k := int32(0); k < count; k++ {
		if p+8 > len(code) {
			return 0, NewPrintError(0, "truncated lookupswitch at offset %d", pc)
		}
		match := int32(binary.BigEndian.Uint32(code[p : p+4]))
		off := int32(binary.BigEndian.Uint32(code[p+4 : p+8]))
		ip.p.Printf("%d : %s", match, ip.labels.Name(pc+int(off)))
		ip.p.NewLine()
		p += 8
	}
	ip.p.Printf("default : %s", ip.labels.Name(pc+int(def)))
	ip.p.NewLine()
	ip.p.Unindent()

	return p - pc, nil
}

// printFieldRef mirrors Translator.parseFieldRef: `[class] '#' type name`,
// applying the bare-`#` "this class" shorthand when class equals self.
func (ip *InstructionsPrinter) printFieldRef(idx uint16) error {
	entry, err := ip.pool.Get(idx)
	if err != nil {
		return NewPrintError(0, "%s", err)
	}
	fr, ok := entry.(*classfile.FieldrefEntry)
	if !ok {
		return NewPrintError(0, "field instruction did not reference a Fieldref")
	}
	class, err := ip.pool.ClassName(fr.ClassIndex)
	if err != nil {
		return NewPrintError(0, "%s", err)
	}
	name, desc, err := ip.pool.NameAndType(fr.NameAndTypeIndex)
	if err != nil {
		return NewPrintError(0, "%s", err)
	}

	if class != ip.self {
		ip.p.Word(externalType(class))
	}
	ip.p.Word("#")
	ip.p.Word(externalType(desc))
	ip.p.Space()
	ip.p.Word(name)
	return nil
}

// printMethodRef mirrors Translator.parseMethodRef /
// parseInterfaceMethodRefDescriptor, which share one grammar: `[class] '#'
// returnType name(argTypes)`.
func (ip *InstructionsPrinter) printMethodRef(idx uint16) error {
	entry, err := ip.pool.Get(idx)
	if err != nil {
		return NewPrintError(0, "%s", err)
	}

	var classIndex, ntIndex uint16
	switch r := entry.(type) {
	case *classfile.MethodrefEntry:
		classIndex, ntIndex = r.ClassIndex, r.NameAndTypeIndex
	case *classfile.InterfaceMethodrefEntry:
		classIndex, ntIndex = r.ClassIndex, r.NameAndTypeIndex
	default:
		return NewPrintError(0, "method instruction did not reference a Methodref/InterfaceMethodref")
	}

	class, err := ip.pool.ClassName(classIndex)
	if err != nil {
		return NewPrintError(0, "%s", err)
	}
	name, desc, err := ip.pool.NameAndType(ntIndex)
	if err != nil {
		return NewPrintError(0, "%s", err)
	}

	if class != ip.self {
		ip.p.Word(externalType(class))
	}
	ip.p.Word("#")
	ip.p.Word(returnType(desc))
	ip.p.Space()
	ip.p.Word(name)
	ip.p.Word(argTypes(desc))
	return nil
}

// printInvokeDynamic mirrors Translator.parseDynamicFields as used by
// ParseInvokeDynamic: `bootstrapIndex name : type`.
func (ip *InstructionsPrinter) printInvokeDynamic(idx uint16) error {
	entry, err := ip.pool.Get(idx)
	if err != nil {
		return NewPrintError(0, "%s", err)
	}
	id, ok := entry.(*classfile.InvokeDynamicEntry)
	if !ok {
		return NewPrintError(0, "invokedynamic did not reference an InvokeDynamic constant")
	}
	name, desc, err := ip.pool.NameAndType(id.NameAndTypeIndex)
	if err != nil {
		return NewPrintError(0, "%s", err)
	}
	ip.p.Printf("%d %s : %s", id.BootstrapMethodAttrIndex, name, externalType(desc))
	return nil
}
