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
	"fmt"
	"sort"

	"github.com/jbcasm/jbcasm/pkg/classfile"
)

// maxLabels is the largest number of distinct labels CollectLabels assigns
// in a single Code attribute (§4.9): one per branch/switch target,
// exception range endpoint, and local-variable range endpoint.
const maxLabels = 65534

// Labels is the offset->name side of the two-map design (§4.9): built by
// scanning a decoded Code attribute once, ahead of printing, so every
// printer that needs to render an offset as a label shares one
// consistent naming.
type Labels struct {
	names map[int]string
}

// CollectLabels walks a Code attribute's instructions, exception table,
// and any nested LocalVariable(Type)Table that reference offsets, and
// assigns each referenced offset a label of the form "label1", "label2",
// ... in ascending offset order. Offsets named only by type-annotation
// target_infos are not collected here; callers add them with Mark.
func CollectLabels(code *classfile.CodeAttribute) (*Labels, error) {
	offsets := make(map[int]bool)
	mark := func(pc int) { offsets[pc] = true }

	if err := walkInstructionTargets(code.Code, mark); err != nil {
		return nil, err
	}
	for _, e := range code.Exceptions {
		mark(int(e.StartPC))
		mark(int(e.EndPC))
		mark(int(e.HandlerPC))
	}
	for _, a := range code.Attributes {
		switch attr := a.(type) {
		case *classfile.LocalVariableTableAttribute:
			for _, l := range attr.Locals {
				mark(int(l.StartPC))
				mark(int(l.StartPC) + int(l.Length))
			}
		case *classfile.LocalVariableTypeTableAttribute:
			for _, l := range attr.Locals {
				mark(int(l.StartPC))
				mark(int(l.StartPC) + int(l.Length))
			}
		}
	}

	sorted := make([]int, 0, len(offsets))
	for pc := range offsets {
		sorted = append(sorted, pc)
	}
	sort.Ints(sorted)

	if len(sorted) > maxLabels {
		return nil, NewPrintError(0, "method body needs %d labels, more than the %d supported", len(sorted), maxLabels)
	}

	names := make(map[int]string, len(sorted))
	for i, pc := range sorted {
		names[pc] = fmt.Sprintf("label%d", i+1)
	}
	return &Labels{names: names}, nil
}

// Name returns the label assigned to offset pc, or "" if none was
// collected there (an offset is only labelled when something references
// it).
func (l *Labels) Name(pc int) string { return l.names[pc] }

// Mark forces pc to have a label even if nothing in the Code attribute
// itself referenced it, renumbering every assigned label in offset
// order; used when a caller (e.g. a type annotation elsewhere in the
// class) also needs to point at pc.
func (l *Labels) Mark(pc int) {
	if _, ok := l.names[pc]; ok {
		return
	}
	offsets := make([]int, 0, len(l.names)+1)
	for o := range l.names {
		offsets = append(offsets, o)
	}
	offsets = append(offsets, pc)
	sort.Ints(offsets)

	names := make(map[int]string, len(offsets))
	for i, o := range offsets {
		names[o] = fmt.Sprintf("label%d", i+1)
	}
	l.names = names
}

// walkInstructionTargets decodes code just enough to find every branch,
// switch, and wide-prefixed instruction's operand size, invoking mark for
// every offset the bytecode itself refers to.
func walkInstructionTargets(code []byte, mark func(int)) error {
	pc := 0
	for pc < len(code) {
		opcode := code[pc]
		info, ok := opcodesByCode[opcode]
		if !ok && opcode != wideOpcode {
			return NewPrintError(0, "unknown opcode 0x%02X at offset %d", opcode, pc)
		}

		switch {
		case opcode == wideOpcode:
			if pc+1 >= len(code) {
				return NewPrintError(0, "truncated wide instruction at offset %d", pc)
			}
			inner := code[pc+1]
			if inner == opcodesByMnemonic["iinc"].Opcode {
				pc += 6
			} else {
				pc += 4
			}

		case info.Operand == OperandBranch2:
			if pc+3 > len(code) {
				return NewPrintError(0, "truncated branch instruction at offset %d", pc)
			}
			delta := int16(binary.BigEndian.Uint16(code[pc+1 : pc+3]))
			mark(pc + int(delta))
			pc += 3

		case info.Operand == OperandBranch4:
			if pc+5 > len(code) {
				return NewPrintError(0, "truncated wide branch instruction at offset %d", pc)
			}
			delta := int32(binary.BigEndian.Uint32(code[pc+1 : pc+5]))
			mark(pc + int(delta))
			pc += 5

		case info.Operand == OperandTableSwitch:
			base := pc
			pad := switchPadding(pc)
			p := pc + 1 + pad
			if p+12 > len(code) {
				return NewPrintError(0, "truncated tableswitch at offset %d", pc)
			}
			def := int32(binary.BigEndian.Uint32(code[p : p+4]))
			low := int32(binary.BigEndian.Uint32(code[p+4 : p+8]))
			high := int32(binary.BigEndian.Uint32(code[p+8 : p+12]))
			mark(base + int(def))
			p += 12
			for k := low; k <= high; k++ {
				if p+4 > len(code) {
					return NewPrintError(0, "truncated tableswitch at offset %d", pc)
				}
				off := int32(binary.BigEndian.Uint32(code[p : p+4]))
				mark(base + int(off))
				p += 4
			}
			pc = p

		case info.Operand == OperandLookupSwitch:
			base := pc
			pad := switchPadding(pc)
			p := pc + 1 + pad
			if p+8 > len(code) {
				return NewPrintError(0, "truncated lookupswitch at offset %d", pc)
			}
			def := int32(binary.BigEndian.Uint32(code[p : p+4]))
			count := int32(binary.BigEndian.Uint32(code[p+4 : p+8]))
			mark(base + int(def))
			p += 8
			for k := int32(0); k < count; k++ {
				if p+8 > len(code) {
					return NewPrintError(0, "truncated lookupswitch at offset %d", pc)
				}
				off := int32(binary.BigEndian.Uint32(code[p+4 : p+8]))
				mark(base + int(off))
				p += 8
			}
			pc = p

		default:
			pc += instructionLength(opcode, info)
		}
	}
	return nil
}

// instructionLength returns the fixed byte length (opcode byte included)
// of a non-branch, non-switch, non-wide instruction.
func instructionLength(opcode byte, info opcodeInfo) int {
	switch info.Operand {
	case OperandNone:
		return 1
	case OperandVarIndex, OperandByteConst, OperandNewArrayType, OperandConstant1:
		return 2
	case OperandShortConst, OperandConstant2, OperandFieldRef, OperandMethodRef, OperandClassRef:
		return 3
	case OperandIinc:
		return 3
	case OperandInterfaceMethodRef, OperandInvokeDynamicRef:
		return 5
	case OperandMultiArray:
		return 4
	default:
		return 1
	}
}
