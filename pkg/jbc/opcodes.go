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

// OperandKind classifies how the Instructions Parser (§4.7) and the Code
// Composer (§4.8) read and lay out an opcode's operand bytes.
type OperandKind int

const (
	OperandNone         OperandKind = iota
	OperandVarIndex                 // iload/istore/.../ret: 1-byte index, widens to 2 under "wide"
	OperandIinc                     // iinc: index + signed byte constant
	OperandByteConst                // bipush: signed byte
	OperandShortConst                // sipush: signed short
	OperandNewArrayType             // newarray: 1-byte atype
	OperandConstant1                // ldc: 1-byte constant pool index
	OperandConstant2                // ldc_w, ldc2_w: 2-byte constant pool index
	OperandFieldRef                 // getstatic/putstatic/getfield/putfield
	OperandMethodRef                 // invokevirtual/invokespecial/invokestatic
	OperandInterfaceMethodRef        // invokeinterface: index + count + 0
	OperandInvokeDynamicRef           // invokedynamic: index + 0 + 0
	OperandClassRef                  // new/anewarray/checkcast/instanceof
	OperandMultiArray                // multianewarray: class index + dims byte
	OperandBranch2                    // 2-byte relative offset
	OperandBranch4                    // 4-byte relative offset
	OperandTableSwitch
	OperandLookupSwitch
)

// opcodeInfo describes one JVM instruction mnemonic.
type opcodeInfo struct {
	Mnemonic string
	Opcode   byte
	Operand  OperandKind
}

// opcodeTable enumerates the JVM instruction set (JVM spec chapter 6),
// authored against the specification directly and cross-checked against
// the opcode tables surfacing in the retrieval pack's
// modten-pkg-inspector and tangzhangming-nova repositories. reserved and
// JVM-debugger-only opcodes (breakpoint, impdep1, impdep2) are omitted:
// they have no JBC surface mnemonic.
var opcodeTable = []opcodeInfo{
	{"nop", 0x00, OperandNone},
	{"aconst_null", 0x01, OperandNone},
	{"iconst_m1", 0x02, OperandNone},
	{"iconst_0", 0x03, OperandNone},
	{"iconst_1", 0x04, OperandNone},
	{"iconst_2", 0x05, OperandNone},
	{"iconst_3", 0x06, OperandNone},
	{"iconst_4", 0x07, OperandNone},
	{"iconst_5", 0x08, OperandNone},
	{"lconst_0", 0x09, OperandNone},
	{"lconst_1", 0x0A, OperandNone},
	{"fconst_0", 0x0B, OperandNone},
	{"fconst_1", 0x0C, OperandNone},
	{"fconst_2", 0x0D, OperandNone},
	{"dconst_0", 0x0E, OperandNone},
	{"dconst_1", 0x0F, OperandNone},
	{"bipush", 0x10, OperandByteConst},
	{"sipush", 0x11, OperandShortConst},
	{"ldc", 0x12, OperandConstant1},
	{"ldc_w", 0x13, OperandConstant2},
	{"ldc2_w", 0x14, OperandConstant2},
	{"iload", 0x15, OperandVarIndex},
	{"lload", 0x16, OperandVarIndex},
	{"fload", 0x17, OperandVarIndex},
	{"dload", 0x18, OperandVarIndex},
	{"aload", 0x19, OperandVarIndex},
	{"iload_0", 0x1A, OperandNone},
	{"iload_1", 0x1B, OperandNone},
	{"iload_2", 0x1C, OperandNone},
	{"iload_3", 0x1D, OperandNone},
	{"lload_0", 0x1E, OperandNone},
	{"lload_1", 0x1F, OperandNone},
	{"lload_2", 0x20, OperandNone},
	{"lload_3", 0x21, OperandNone},
	{"fload_0", 0x22, OperandNone},
	{"fload_1", 0x23, OperandNone},
	{"fload_2", 0x24, OperandNone},
	{"fload_3", 0x25, OperandNone},
	{"dload_0", 0x26, OperandNone},
	{"dload_1", 0x27, OperandNone},
	{"dload_2", 0x28, OperandNone},
	{"dload_3", 0x29, OperandNone},
	{"aload_0", 0x2A, OperandNone},
	{"aload_1", 0x2B, OperandNone},
	{"aload_2", 0x2C, OperandNone},
	{"aload_3", 0x2D, OperandNone},
	{"iaload", 0x2E, OperandNone},
	{"laload", 0x2F, OperandNone},
	{"faload", 0x30, OperandNone},
	{"daload", 0x31, OperandNone},
	{"aaload", 0x32, OperandNone},
	{"baload", 0x33, OperandNone},
	{"caload", 0x34, OperandNone},
	{"saload", 0x35, OperandNone},
	{"istore", 0x36, OperandVarIndex},
	{"lstore", 0x37, OperandVarIndex},
	{"fstore", 0x38, OperandVarIndex},
	{"dstore", 0x39, OperandVarIndex},
	{"astore", 0x3A, OperandVarIndex},
	{"istore_0", 0x3B, OperandNone},
	{"istore_1", 0x3C, OperandNone},
	{"istore_2", 0x3D, OperandNone},
	{"istore_3", 0x3E, OperandNone},
	{"lstore_0", 0x3F, OperandNone},
	{"lstore_1", 0x40, OperandNone},
	{"lstore_2", 0x41, OperandNone},
	{"lstore_3", 0x42, OperandNone},
	{"fstore_0", 0x43, OperandNone},
	{"fstore_1", 0x44, OperandNone},
	{"fstore_2", 0x45, OperandNone},
	{"fstore_3", 0x46, OperandNone},
	{"dstore_0", 0x47, OperandNone},
	{"dstore_1", 0x48, OperandNone},
	{"dstore_2", 0x49, OperandNone},
	{"dstore_3", 0x4A, OperandNone},
	{"astore_0", 0x4B, OperandNone},
	{"astore_1", 0x4C, OperandNone},
	{"astore_2", 0x4D, OperandNone},
	{"astore_3", 0x4E, OperandNone},
	{"iastore", 0x4F, OperandNone},
	{"lastore", 0x50, OperandNone},
	{"fastore", 0x51, OperandNone},
	{"dastore", 0x52, OperandNone},
	{"aastore", 0x53, OperandNone},
	{"bastore", 0x54, OperandNone},
	{"castore", 0x55, OperandNone},
	{"sastore", 0x56, OperandNone},
	{"pop", 0x57, OperandNone},
	{"pop2", 0x58, OperandNone},
	{"dup", 0x59, OperandNone},
	{"dup_x1", 0x5A, OperandNone},
	{"dup_x2", 0x5B, OperandNone},
	{"dup2", 0x5C, OperandNone},
	{"dup2_x1", 0x5D, OperandNone},
	{"dup2_x2", 0x5E, OperandNone},
	{"swap", 0x5F, OperandNone},
	{"iadd", 0x60, OperandNone},
	{"ladd", 0x61, OperandNone},
	{"fadd", 0x62, OperandNone},
	{"dadd", 0x63, OperandNone},
	{"isub", 0x64, OperandNone},
	{"lsub", 0x65, OperandNone},
	{"fsub", 0x66, OperandNone},
	{"dsub", 0x67, OperandNone},
	{"imul", 0x68, OperandNone},
	{"lmul", 0x69, OperandNone},
	{"fmul", 0x6A, OperandNone},
	{"dmul", 0x6B, OperandNone},
	{"idiv", 0x6C, OperandNone},
	{"ldiv", 0x6D, OperandNone},
	{"fdiv", 0x6E, OperandNone},
	{"ddiv", 0x6F, OperandNone},
	{"irem", 0x70, OperandNone},
	{"lrem", 0x71, OperandNone},
	{"frem", 0x72, OperandNone},
	{"drem", 0x73, OperandNone},
	{"ineg", 0x74, OperandNone},
	{"lneg", 0x75, OperandNone},
	{"fneg", 0x76, OperandNone},
	{"dneg", 0x77, OperandNone},
	{"ishl", 0x78, OperandNone},
	{"lshl", 0x79, OperandNone},
	{"ishr", 0x7A, OperandNone},
	{"lshr", 0x7B, OperandNone},
	{"iushr", 0x7C, OperandNone},
	{"lushr", 0x7D, OperandNone},
	{"iand", 0x7E, OperandNone},
	{"land", 0x7F, OperandNone},
	{"ior", 0x80, OperandNone},
	{"lor", 0x81, OperandNone},
	{"ixor", 0x82, OperandNone},
	{"lxor", 0x83, OperandNone},
	{"iinc", 0x84, OperandIinc},
	{"i2l", 0x85, OperandNone},
	{"i2f", 0x86, OperandNone},
	{"i2d", 0x87, OperandNone},
	{"l2i", 0x88, OperandNone},
	{"l2f", 0x89, OperandNone},
	{"l2d", 0x8A, OperandNone},
	{"f2i", 0x8B, OperandNone},
	{"f2l", 0x8C, OperandNone},
	{"f2d", 0x8D, OperandNone},
	{"d2i", 0x8E, OperandNone},
	{"d2l", 0x8F, OperandNone},
	{"d2f", 0x90, OperandNone},
	{"i2b", 0x91, OperandNone},
	{"i2c", 0x92, OperandNone},
	{"i2s", 0x93, OperandNone},
	{"lcmp", 0x94, OperandNone},
	{"fcmpl", 0x95, OperandNone},
	{"fcmpg", 0x96, OperandNone},
	{"dcmpl", 0x97, OperandNone},
	{"dcmpg", 0x98, OperandNone},
	{"ifeq", 0x99, OperandBranch2},
	{"ifne", 0x9A, OperandBranch2},
	{"iflt", 0x9B, OperandBranch2},
	{"ifge", 0x9C, OperandBranch2},
	{"ifgt", 0x9D, OperandBranch2},
	{"ifle", 0x9E, OperandBranch2},
	{"if_icmpeq", 0x9F, OperandBranch2},
	{"if_icmpne", 0xA0, OperandBranch2},
	{"if_icmplt", 0xA1, OperandBranch2},
	{"if_icmpge", 0xA2, OperandBranch2},
	{"if_icmpgt", 0xA3, OperandBranch2},
	{"if_icmple", 0xA4, OperandBranch2},
	{"if_acmpeq", 0xA5, OperandBranch2},
	{"if_acmpne", 0xA6, OperandBranch2},
	{"goto", 0xA7, OperandBranch2},
	{"jsr", 0xA8, OperandBranch2},
	{"ret", 0xA9, OperandVarIndex},
	{"tableswitch", 0xAA, OperandTableSwitch},
	{"lookupswitch", 0xAB, OperandLookupSwitch},
	{"ireturn", 0xAC, OperandNone},
	{"lreturn", 0xAD, OperandNone},
	{"freturn", 0xAE, OperandNone},
	{"dreturn", 0xAF, OperandNone},
	{"areturn", 0xB0, OperandNone},
	{"return", 0xB1, OperandNone},
	{"getstatic", 0xB2, OperandFieldRef},
	{"putstatic", 0xB3, OperandFieldRef},
	{"getfield", 0xB4, OperandFieldRef},
	{"putfield", 0xB5, OperandFieldRef},
	{"invokevirtual", 0xB6, OperandMethodRef},
	{"invokespecial", 0xB7, OperandMethodRef},
	{"invokestatic", 0xB8, OperandMethodRef},
	{"invokeinterface", 0xB9, OperandInterfaceMethodRef},
	{"invokedynamic", 0xBA, OperandInvokeDynamicRef},
	{"new", 0xBB, OperandClassRef},
	{"newarray", 0xBC, OperandNewArrayType},
	{"anewarray", 0xBD, OperandClassRef},
	{"arraylength", 0xBE, OperandNone},
	{"athrow", 0xBF, OperandNone},
	{"checkcast", 0xC0, OperandClassRef},
	{"instanceof", 0xC1, OperandClassRef},
	{"monitorenter", 0xC2, OperandNone},
	{"monitorexit", 0xC3, OperandNone},
	{"multianewarray", 0xC5, OperandMultiArray},
	{"ifnull", 0xC6, OperandBranch2},
	{"ifnonnull", 0xC7, OperandBranch2},
	{"goto_w", 0xC8, OperandBranch4},
	{"jsr_w", 0xC9, OperandBranch4},
}

// wideOpcode is the JVM "wide" prefix byte (0xC4) that precedes a variable
// instruction or iinc to widen its index (and iinc's constant) to 2 bytes.
// It has no standalone JBC mnemonic: the parser selects it automatically
// for the `_w`-suffixed spelling of a variable instruction (§4.7).
const wideOpcode = 0xC4

// newarray atype operands, JVM spec table 6.5.newarray-A.
var newarrayTypes = map[string]byte{
	"boolean": 4, "char": 5, "float": 6, "double": 7,
	"byte": 8, "short": 9, "int": 10, "long": 11,
}

var newarrayTypeNames = func() map[byte]string {
	m := make(map[byte]string, len(newarrayTypes))
	for k, v := range newarrayTypes {
		m[v] = k
	}
	return m
}()

var opcodesByMnemonic = func() map[string]opcodeInfo {
	m := make(map[string]opcodeInfo, len(opcodeTable))
	for _, op := range opcodeTable {
		m[op.Mnemonic] = op
	}
	return m
}()

var opcodesByCode = func() map[byte]opcodeInfo {
	m := make(map[byte]opcodeInfo, len(opcodeTable))
	for _, op := range opcodeTable {
		m[op.Opcode] = op
	}
	return m
}()

// wideEligible are the variable instructions eligible for a `wide`
// encoding; the wide index is always 2 bytes (iinc adds a 2-byte constant).
var wideEligible = map[string]bool{
	"iload": true, "lload": true, "fload": true, "dload": true, "aload": true,
	"istore": true, "lstore": true, "fstore": true, "dstore": true, "astore": true,
	"ret": true, "iinc": true,
}
