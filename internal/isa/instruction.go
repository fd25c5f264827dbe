// Package isa decodes a 32-bit RV32IMF-subset word into the control
// signals both the in-order and out-of-order cores consume. Decoding is
// total on the documented opcode set and a pure function of the word:
// equal words always decode to equal Instruction values.
package isa

import "github.com/pkg/errors"

// Class is the encoding class a 32-bit word belongs to.
type Class uint8

const (
	ClassR Class = iota
	ClassI
	ClassS
	ClassB
	ClassU
	ClassJ
)

// AluOp is the tag consumed uniformly by both cores' ALU.
type AluOp uint8

const (
	Add   AluOp = 0
	Sll   AluOp = 1
	Slt   AluOp = 2
	Sltu  AluOp = 3
	Xor   AluOp = 4
	Srl   AluOp = 5
	Or    AluOp = 6
	And   AluOp = 7
	Mul   AluOp = 8
	Mulh  AluOp = 9
	Mulhu AluOp = 11
	Sub   AluOp = 12
	Sra   AluOp = 13
	Bsel  AluOp = 15
)

// MemOp is the memory access an instruction performs, if any.
type MemOp uint8

const (
	MemNone MemOp = iota
	MemLoad
	MemStore
)

// WBSource selects what value commits to the destination register.
type WBSource uint8

const (
	WBNone WBSource = iota
	WBAlu
	WBMem
	WBPc
)

// Station is the functional-unit class an instruction routes to in the
// out-of-order back-end.
type Station uint8

const (
	StationNone Station = iota
	StationLoadStore
	StationInteger
	StationFAdd
	StationFMul
)

// Instruction is an immutable value derived from one 32-bit word.
type Instruction struct {
	Word   uint32
	Class  Class
	Rs1    uint32
	Rs2    uint32
	Rd     uint32
	Funct3 uint32
	Imm    uint32
	Alu    AluOp
	Mem    MemOp
	WB     WBSource

	UsesRs1  bool
	UsesRs2  bool
	IsJump   bool
	IsLoad   bool
	IsEcall  bool
	IsEbreak bool
	IsNop    bool
	IsFP     bool
	RegWrite bool

	Station Station
}

// nopWord is the canonical nop encoding: add x0, x0, x0.
const nopWord uint32 = 0x00000033

const ecallWord uint32 = 0x00000073
const ebreakWord uint32 = 0x00100073

// ErrUnknownOpcode is returned when the low 7 bits of a word do not match
// any documented opcode class.
var ErrUnknownOpcode = errors.New("isa: unknown opcode")

// Nop returns a fresh instruction equal to the canonical nop encoding.
func Nop() Instruction {
	inst, err := Decode(nopWord)
	if err != nil {
		// nopWord is a constant documented opcode; decoding it can never fail.
		panic(err)
	}
	return inst
}

// Decode turns a 32-bit word into an Instruction, or fails if the low 7
// bits don't match a documented opcode.
func Decode(word uint32) (Instruction, error) {
	opcode := word & 0x7f

	class, ok := classOf(opcode)
	if !ok {
		return Instruction{}, errors.Wrapf(ErrUnknownOpcode, "word=0x%08x opcode=0x%02x", word, opcode)
	}

	inst := Instruction{
		Word:   word,
		Class:  class,
		Rs1:    (word >> 15) & 0x1f,
		Rs2:    (word >> 20) & 0x1f,
		Rd:     (word >> 7) & 0x1f,
		Funct3: (word >> 12) & 0x7,
	}

	inst.Imm = immediateOf(class, word)
	inst.Alu = aluOpOf(class, opcode, word)
	inst.UsesRs1 = class == ClassR || class == ClassI || class == ClassS
	inst.UsesRs2 = class == ClassR
	inst.Mem = memOpOf(class, opcode)
	inst.WB = writebackOf(class, opcode)
	inst.IsJump = class == ClassB || class == ClassJ || opcode == 0x67
	inst.IsLoad = opcode == 0x03
	inst.IsEcall = word == ecallWord
	inst.IsEbreak = word == ebreakWord
	inst.IsNop = word == nopWord
	if inst.IsNop {
		// The canonical nop writes nothing back.
		inst.WB = WBNone
	}
	inst.IsFP = opcode == 0x07 || opcode == 0x27 || opcode == 0x53
	inst.RegWrite = (class == ClassR || class == ClassI || class == ClassU || class == ClassJ) && inst.Rd != 0
	inst.Station = stationOf(class, opcode, word>>25)

	return inst, nil
}

func classOf(opcode uint32) (Class, bool) {
	switch opcode {
	case 0x33, 0x53:
		return ClassR, true
	case 0x03, 0x07, 0x13, 0x67, 0x73:
		return ClassI, true
	case 0x23, 0x27:
		return ClassS, true
	case 0x63:
		return ClassB, true
	case 0x37, 0x17:
		return ClassU, true
	case 0x6f:
		return ClassJ, true
	default:
		return 0, false
	}
}

// immediateOf assembles the sign-extended (except U) immediate for the
// given class, per the bit-exact field layout of each encoding.
func immediateOf(class Class, w uint32) uint32 {
	switch class {
	case ClassI:
		return signExtend(w>>20, 12)
	case ClassS:
		v := ((w >> 7) & 0x1f) | ((w >> 20) & 0xfe0)
		return signExtend(v, 12)
	case ClassB:
		v := (((w >> 8) & 0xf) << 1) | ((w >> 20) & 0x7e0) | ((w << 4) & 0x800) | ((w >> 19) & 0x1000)
		return signExtend(v, 13)
	case ClassU:
		return w & 0xfffff000
	case ClassJ:
		v := (((w >> 21) & 0x3ff) << 1) | ((w >> 9) & 0x800) | (w & 0xff000) | ((w >> 11) & 0x100000)
		return signExtend(v, 21)
	default:
		return 0
	}
}

// signExtend sign-extends the low `bits` bits of value to a full 32-bit word.
func signExtend(value uint32, bits uint) uint32 {
	shift := 32 - bits
	sign := (value >> (bits - 1)) & 1
	mask := ((uint32(1) << shift) - 1) << bits
	signMask := sign * mask
	return ((value << shift) >> shift) | signMask
}

func aluOpOf(class Class, opcode, w uint32) AluOp {
	switch class {
	case ClassR:
		f3 := (w >> 12) & 0x7
		bit30 := (w >> 30) & 1
		bit25 := (w >> 25) & 1
		return AluOp(f3 | bit30*0b1100 | bit25*0b1000)
	case ClassI:
		if opcode == 0x03 {
			return Add
		}
		f3 := (w >> 12) & 0x7
		if f3 == 0b101 {
			f3 |= ((w >> 30) & 1) << 3
		}
		return AluOp(f3)
	case ClassU:
		return AluOp(((w >> 5) & 1) * 0xf)
	default:
		return Add
	}
}

func memOpOf(class Class, opcode uint32) MemOp {
	switch {
	case class == ClassI && opcode == 0x03:
		return MemLoad
	case class == ClassS:
		return MemStore
	default:
		return MemNone
	}
}

func writebackOf(class Class, opcode uint32) WBSource {
	switch {
	case class == ClassI && opcode == 0x03:
		return WBMem
	case class == ClassI && opcode == 0x67:
		return WBPc
	case class == ClassI:
		return WBAlu
	case class == ClassR, class == ClassU:
		return WBAlu
	case class == ClassJ:
		return WBPc
	default:
		return WBNone
	}
}

// stationOf picks the out-of-order station class. For the 0x53 FP
// opcode the operation is selected by funct7: 0x00 fadd.s, 0x04 fsub.s,
// 0x08 fmul.s, 0x0C fdiv.s.
func stationOf(class Class, opcode, funct7 uint32) Station {
	switch {
	case opcode == 0x73:
		// ecall/ebreak: nothing to execute, no station.
		return StationNone
	case class == ClassI && (opcode == 0x03 || opcode == 0x07):
		return StationLoadStore
	case class == ClassS:
		return StationLoadStore
	case class == ClassR && opcode == 0x53:
		switch {
		case funct7 == 0 || funct7 == 4:
			return StationFAdd
		case funct7 == 8 || funct7 == 0xc:
			return StationFMul
		default:
			return StationNone
		}
	default:
		return StationInteger
	}
}

// Cond evaluates the jump/branch predicate for instructions that carry
// one: true for J-type and jalr unconditionally, the funct3-selected
// comparison of a (rs1 value) and b (rs2 value) for B-type, false
// otherwise.
func Cond(inst Instruction, a, b uint32) bool {
	switch {
	case inst.Class == ClassJ:
		return true
	case inst.Class == ClassI && inst.Word&0x7f == 0x67:
		return true
	case inst.Class == ClassB:
		switch inst.Funct3 {
		case 0: // beq
			return a == b
		case 1: // bne
			return a != b
		case 4: // blt (signed)
			return int32(a) < int32(b)
		case 5: // bge (signed)
			return int32(a) >= int32(b)
		case 6: // bltu
			return a < b
		case 7: // bgeu
			return a >= b
		default:
			return false
		}
	default:
		return false
	}
}
