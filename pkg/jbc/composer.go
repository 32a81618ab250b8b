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

// resolver looks a label up to its final byte offset within the code
// array being composed.
type resolver func(label string) (int, error)

// codeItem is one entry of a code fragment before layout: a label marker,
// a line-number marker, or a real instruction. size and encode are
// deferred: an instruction's own final offset (needed for switch padding)
// and the offsets of any labels it references (needed for branches) are
// both only known once every item has been placed.
type codeItem struct {
	isLabel bool
	label   string

	isLine bool
	line   int

	opcode byte
	size   func(offset int) int
	encode func(offset int, resolve resolver) ([]byte, error)

	// offset is filled in by Compose's placement pass.
	offset int
}

type pendingException struct {
	start, end, handler string
	catchType           uint16
}

type pendingLocal struct {
	start, end string
	nameIndex  uint16
	descIndex  uint16
	index      uint16
	isType     bool
}

type pendingLine struct {
	label string
	line  int
}

// Composer is the Code Composer (§4.8): callers append instructions and
// pseudo-instructions (labels, exception ranges, local variable ranges,
// line numbers) in source order; Compose performs the layout pass that
// resolves every label to a byte offset and emits the finished Code
// attribute body. The mnemonic chosen by the Instructions Parser already
// fixes goto vs goto_w and the narrow/_w/shorthand form of variable
// instructions (§4.7); the composer does not second-guess that choice.
type Composer struct {
	pool *classfile.ConstantPool

	items      []codeItem
	exceptions []pendingException
	locals     []pendingLocal
	lines      []pendingLine

	maxStack  uint16
	maxLocals uint16
}

func NewComposer(pool *classfile.ConstantPool) *Composer {
	return &Composer{pool: pool}
}

func (c *Composer) SetMaxStack(n uint16)  { c.maxStack = n }
func (c *Composer) SetMaxLocals(n uint16) { c.maxLocals = n }

func (c *Composer) AppendLabel(name string) {
	c.items = append(c.items, codeItem{isLabel: true, label: name})
}

func (c *Composer) InsertLineNumber(line int) {
	c.lines = append(c.lines, pendingLine{label: c.markerBefore(), line: line})
}

// markerBefore drops an anonymous label bound to whatever instruction
// comes next, for pseudo-instructions (line numbers) that need to record
// "the offset of the next real instruction" without a user-visible name.
func (c *Composer) markerBefore() string {
	name := "$pc$" + itoa(len(c.items))
	c.AppendLabel(name)
	return name
}

func (c *Composer) AppendException(start, end, handler string, catchType uint16) {
	c.exceptions = append(c.exceptions, pendingException{start, end, handler, catchType})
}

func (c *Composer) AppendLocal(start, end string, nameIndex, descIndex, index uint16, isType bool) {
	c.locals = append(c.locals, pendingLocal{start, end, nameIndex, descIndex, index, isType})
}

// fixedSize returns a size func constant at n bytes (including the
// opcode byte itself).
func fixedSize(n int) func(int) int {
	return func(int) int { return n }
}

// AppendSimple appends a no-operand instruction.
func (c *Composer) AppendSimple(opcode byte) {
	c.items = append(c.items, codeItem{
		opcode: opcode,
		size:   fixedSize(1),
		encode: func(offset int, resolve resolver) ([]byte, error) { return nil, nil },
	})
}

// AppendVarShort appends a `_0`.._3`-style shorthand variable instruction
// (e.g. iload_0) that has no operand of its own.
func (c *Composer) AppendVarShort(opcode byte) { c.AppendSimple(opcode) }

// AppendVar appends a variable instruction with an explicit index
// operand, 1 byte normally or 2 bytes when wide is set (the `_w` spelling,
// preceded by the JVM's wide prefix opcode).
func (c *Composer) AppendVar(opcode byte, index uint16, wide bool) {
	if !wide {
		c.items = append(c.items, codeItem{
			opcode: opcode,
			size:   fixedSize(2),
			encode: func(offset int, resolve resolver) ([]byte, error) {
				if index > 0xff {
					return nil, NewParseError(0, "local variable index %d too large for a narrow instruction; use the _w form", index)
				}
				return []byte{byte(index)}, nil
			},
		})
		return
	}
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, index)
	c.items = append(c.items, codeItem{
		opcode: wideOpcode,
		size:   fixedSize(4),
		encode: func(offset int, resolve resolver) ([]byte, error) {
			return append([]byte{opcode}, buf...), nil
		},
	})
}

// AppendIinc appends iinc, 3 bytes normally (index + signed byte) or 6
// bytes (index + signed short) when wide.
func (c *Composer) AppendIinc(index uint16, delta int16, wide bool) {
	iincOp := opcodesByMnemonic["iinc"].Opcode
	if !wide {
		c.items = append(c.items, codeItem{
			opcode: iincOp,
			size:   fixedSize(3),
			encode: func(offset int, resolve resolver) ([]byte, error) {
				if index > 0xff {
					return nil, NewParseError(0, "local variable index %d too large for a narrow iinc; use the _w form", index)
				}
				if delta < -128 || delta > 127 {
					return nil, NewParseError(0, "iinc delta %d does not fit a signed byte; use the _w form", delta)
				}
				return []byte{byte(index), byte(int8(delta))}, nil
			},
		})
		return
	}
	c.items = append(c.items, codeItem{
		opcode: wideOpcode,
		size:   fixedSize(6),
		encode: func(offset int, resolve resolver) ([]byte, error) {
			buf := make([]byte, 5)
			binary.BigEndian.PutUint16(buf[1:3], index)
			binary.BigEndian.PutUint16(buf[3:5], uint16(delta))
			buf[0] = iincOp
			return buf, nil
		},
	})
}

// AppendImmediate appends an instruction whose operand bytes are already
// fully known at parse time: bipush, sipush, ldc/ldc_w/ldc2_w, field and
// method references, invokedynamic, new/anewarray/checkcast/instanceof,
// newarray, multianewarray.
func (c *Composer) AppendImmediate(opcode byte, operand []byte) {
	c.items = append(c.items, codeItem{
		opcode: opcode,
		size:   fixedSize(1 + len(operand)),
		encode: func(offset int, resolve resolver) ([]byte, error) { return operand, nil },
	})
}

// AppendBranch appends a branch instruction targeting label; wide selects
// the 4-byte goto_w/jsr_w encoding, matching the mnemonic the Instructions
// Parser already chose.
func (c *Composer) AppendBranch(opcode byte, label string, wide bool) {
	width := 2
	if wide {
		width = 4
	}
	c.items = append(c.items, codeItem{
		opcode: opcode,
		size:   fixedSize(1 + width),
		encode: func(offset int, resolve resolver) ([]byte, error) {
			target, err := resolve(label)
			if err != nil {
				return nil, err
			}
			delta := target - offset
			buf := make([]byte, width)
			if width == 2 {
				if delta < -32768 || delta > 32767 {
					return nil, NewParseError(0, "branch offset %d to %q overflows a 2-byte jump; use the _w form", delta, label)
				}
				binary.BigEndian.PutUint16(buf, uint16(int16(delta)))
			} else {
				binary.BigEndian.PutUint32(buf, uint32(int32(delta)))
			}
			return buf, nil
		},
	})
}

// switchPair is one (match, label) entry of a lookupswitch.
type switchPair struct {
	Match int32
	Label string
}

// AppendTableSwitch appends a tableswitch. labels[i] is the target for key
// low+i; the JVM spec requires low <= high and len(labels) == high-low+1.
func (c *Composer) AppendTableSwitch(low, high int32, labels []string, defaultLabel string) {
	opcode := opcodesByMnemonic["tableswitch"].Opcode
	c.items = append(c.items, codeItem{
		opcode: opcode,
		size: func(offset int) int {
			pad := switchPadding(offset)
			return 1 + pad + 4 + 4 + 4 + 4*len(labels)
		},
		encode: func(offset int, resolve resolver) ([]byte, error) {
			pad := switchPadding(offset)
			buf := make([]byte, pad, pad+4+4+4+4*len(labels))

			def, err := resolve(defaultLabel)
			if err != nil {
				return nil, err
			}
			buf = append(buf, int32Bytes(int32(def-offset))...)
			buf = append(buf, int32Bytes(low)...)
			buf = append(buf, int32Bytes(high)...)
			for _, l := range labels {
				t, err := resolve(l)
				if err != nil {
					return nil, err
				}
				buf = append(buf, int32Bytes(int32(t-offset))...)
			}
			return buf, nil
		},
	})
}

// AppendLookupSwitch appends a lookupswitch. pairs must already be sorted
// ascending by Match (§4.7, the monotonicity edge case).
func (c *Composer) AppendLookupSwitch(pairs []switchPair, defaultLabel string) {
	opcode := opcodesByMnemonic["lookupswitch"].Opcode
	c.items = append(c.items, codeItem{
		opcode: opcode,
		size: func(offset int) int {
			pad := switchPadding(offset)
			return 1 + pad + 4 + 4 + 8*len(pairs)
		},
		encode: func(offset int, resolve resolver) ([]byte, error) {
			pad := switchPadding(offset)
			buf := make([]byte, pad, pad+4+4+8*len(pairs))

			def, err := resolve(defaultLabel)
			if err != nil {
				return nil, err
			}
			buf = append(buf, int32Bytes(int32(def-offset))...)
			buf = append(buf, int32Bytes(int32(len(pairs)))...)
			for _, pr := range pairs {
				t, err := resolve(pr.Label)
				if err != nil {
					return nil, err
				}
				buf = append(buf, int32Bytes(pr.Match)...)
				buf = append(buf, int32Bytes(int32(t-offset))...)
			}
			return buf, nil
		},
	})
}

// switchPadding is the number of zero bytes needed after the opcode byte
// so the first 4-byte-aligned field starts at an offset that is a
// multiple of 4 relative to the start of the method's bytecode.
func switchPadding(opcodeOffset int) int {
	return (4 - (opcodeOffset+1)%4) % 4
}

func int32Bytes(v int32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(v))
	return buf
}

// Compose runs the layout pass: places every item at its final byte
// offset (switch padding depends only on that item's own offset, so one
// forward sweep suffices), then encodes every instruction, resolving
// label references against the now-known offsets.
func (c *Composer) Compose() (*classfile.CodeAttribute, error) {
	labelOffsets := make(map[string]int)
	pc := 0
	for i := range c.items {
		item := &c.items[i]
		if item.isLabel {
			item.offset = pc
			labelOffsets[item.label] = pc
			continue
		}
		item.offset = pc
		pc += item.size(pc)
	}

	resolve := func(label string) (int, error) {
		off, ok := labelOffsets[label]
		if !ok {
			return 0, NewParseError(0, "undefined label %q", label)
		}
		return off, nil
	}

	code := make([]byte, 0, pc)
	for _, item := range c.items {
		if item.isLabel {
			continue
		}
		code = append(code, item.opcode)
		operand, err := item.encode(item.offset, resolve)
		if err != nil {
			return nil, err
		}
		code = append(code, operand...)
	}

	exceptions := make([]classfile.ExceptionHandler, 0, len(c.exceptions))
	for _, e := range c.exceptions {
		start, err := resolve(e.start)
		if err != nil {
			return nil, err
		}
		end, err := resolve(e.end)
		if err != nil {
			return nil, err
		}
		handler, err := resolve(e.handler)
		if err != nil {
			return nil, err
		}
		exceptions = append(exceptions, classfile.ExceptionHandler{
			StartPC:   uint16(start),
			EndPC:     uint16(end),
			HandlerPC: uint16(handler),
			CatchType: e.catchType,
		})
	}

	var attrs []classfile.Attribute
	if len(c.lines) > 0 {
		lt := &classfile.LineNumberTableAttribute{}
		for _, l := range c.lines {
			off, err := resolve(l.label)
			if err != nil {
				return nil, err
			}
			lt.Lines = append(lt.Lines, classfile.LineNumberEntry{StartPC: uint16(off), Line: uint16(l.line)})
		}
		attrs = append(attrs, lt)
	}

	var lvt *classfile.LocalVariableTableAttribute
	var lvtt *classfile.LocalVariableTypeTableAttribute
	for _, loc := range c.locals {
		start, err := resolve(loc.start)
		if err != nil {
			return nil, err
		}
		end, err := resolve(loc.end)
		if err != nil {
			return nil, err
		}
		length := end - start
		if loc.isType {
			if lvtt == nil {
				lvtt = &classfile.LocalVariableTypeTableAttribute{}
			}
			lvtt.Locals = append(lvtt.Locals, classfile.LocalVariableTypeEntry{
				StartPC: uint16(start), Length: uint16(length),
				NameIndex: loc.nameIndex, SigIndex: loc.descIndex, Index: loc.index,
			})
		} else {
			if lvt == nil {
				lvt = &classfile.LocalVariableTableAttribute{}
			}
			lvt.Locals = append(lvt.Locals, classfile.LocalVariableEntry{
				StartPC: uint16(start), Length: uint16(length),
				NameIndex: loc.nameIndex, DescIndex: loc.descIndex, Index: loc.index,
			})
		}
	}
	if lvt != nil {
		attrs = append(attrs, lvt)
	}
	if lvtt != nil {
		attrs = append(attrs, lvtt)
	}

	return &classfile.CodeAttribute{
		MaxStack:   c.maxStack,
		MaxLocals:  c.maxLocals,
		Code:       code,
		Exceptions: exceptions,
		Attributes: attrs,
	}, nil
}

// ResolveLabel exposes the post-Compose label->offset mapping for callers
// that also need to resolve labels referenced from outside the Code
// attribute body (type-annotation local_variable ranges and offset
// target_infos).
// It must be called with the same items after Compose has run.
func (c *Composer) ResolveLabel(label string) (int, error) {
	for _, item := range c.items {
		if item.isLabel && item.label == label {
			return item.offset, nil
		}
	}
	return 0, NewParseError(0, "undefined label %q", label)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
