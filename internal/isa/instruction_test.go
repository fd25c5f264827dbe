package isa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNop(t *testing.T) {
	inst, err := Decode(0x00000033)
	require.NoError(t, err)
	assert.True(t, inst.IsNop)
	assert.False(t, inst.RegWrite)
	assert.Equal(t, MemNone, inst.Mem)
	assert.Equal(t, WBNone, inst.WB)
	assert.Equal(t, Nop(), inst)
}

func TestDecodeAddi(t *testing.T) {
	// addi x1, x0, 1
	inst, err := Decode(0x00100093)
	require.NoError(t, err)
	assert.Equal(t, ClassI, inst.Class)
	assert.Equal(t, uint32(0), inst.Rs1)
	assert.Equal(t, uint32(1), inst.Rd)
	assert.Equal(t, uint32(1), inst.Imm)
	assert.Equal(t, Add, inst.Alu)
	assert.True(t, inst.RegWrite)
	assert.Equal(t, StationInteger, inst.Station)
}

func TestDecodeSB(t *testing.T) {
	// sb x1, 0(x2): opcode 0x23, funct3 0, rs1=2, rs2=1, imm=0
	word := uint32(0x23) | (1 << 20) | (2 << 15)
	inst, err := Decode(word)
	require.NoError(t, err)
	assert.Equal(t, ClassS, inst.Class)
	assert.Equal(t, MemStore, inst.Mem)
	assert.Equal(t, StationLoadStore, inst.Station)
	assert.False(t, inst.UsesRs2)
	assert.Equal(t, uint32(0), inst.Imm)
}

func TestDecodeBeq(t *testing.T) {
	// beq x1, x2, 0: opcode 0x63, funct3 0
	word := uint32(0x63) | (1 << 15) | (2 << 20)
	inst, err := Decode(word)
	require.NoError(t, err)
	assert.Equal(t, ClassB, inst.Class)
	assert.True(t, inst.IsJump)
	assert.True(t, Cond(inst, 5, 5))
	assert.False(t, Cond(inst, 5, 6))
}

func TestDecodeLui(t *testing.T) {
	// lui x1, 0x12345: opcode 0x37
	word := uint32(0x37) | (1 << 7) | (0x12345 << 12)
	inst, err := Decode(word)
	require.NoError(t, err)
	assert.Equal(t, ClassU, inst.Class)
	assert.Equal(t, Bsel, inst.Alu)
	assert.Equal(t, uint32(0x12345000), inst.Imm)
}

func TestDecodeAuipc(t *testing.T) {
	word := uint32(0x17) | (1 << 7)
	inst, err := Decode(word)
	require.NoError(t, err)
	assert.Equal(t, Add, inst.Alu)
}

func TestDecodeJal(t *testing.T) {
	// jal x1, 0
	word := uint32(0x6f) | (1 << 7)
	inst, err := Decode(word)
	require.NoError(t, err)
	assert.Equal(t, ClassJ, inst.Class)
	assert.True(t, inst.IsJump)
	assert.Equal(t, WBPc, inst.WB)
	assert.True(t, Cond(inst, 0, 0))
}

func TestDecodeJalr(t *testing.T) {
	// jalr x0, 0(x1): opcode 0x67
	word := uint32(0x67) | (1 << 15)
	inst, err := Decode(word)
	require.NoError(t, err)
	assert.Equal(t, ClassI, inst.Class)
	assert.True(t, inst.IsJump)
	assert.Equal(t, WBPc, inst.WB)
	assert.True(t, Cond(inst, 0, 0))
}

func TestDecodeFadd(t *testing.T) {
	// fadd.s f3, f1, f2: opcode 0x53, funct3 0, funct7 0
	word := uint32(0x53) | (3 << 7) | (1 << 15) | (2 << 20)
	inst, err := Decode(word)
	require.NoError(t, err)
	assert.Equal(t, StationFAdd, inst.Station)
	assert.True(t, inst.IsFP)
}

func TestDecodeUnknownOpcode(t *testing.T) {
	_, err := Decode(0x7f) // opcode 0x7f is not documented
	require.Error(t, err)
}

func TestDecodeIsEcallEbreak(t *testing.T) {
	inst, err := Decode(0x00000073)
	require.NoError(t, err)
	assert.True(t, inst.IsEcall)

	inst, err = Decode(0x00100073)
	require.NoError(t, err)
	assert.True(t, inst.IsEbreak)
}

func TestDecodeIsFunction(t *testing.T) {
	inst, err := Decode(0x00000033)
	require.NoError(t, err)
	assert.Equal(t, inst, Nop())

	other, err := Decode(0x00000033)
	require.NoError(t, err)
	assert.Equal(t, inst, other)
}

func TestSignExtend(t *testing.T) {
	assert.Equal(t, uint32(0), signExtend(0, 12))
	assert.Equal(t, uint32(1), signExtend(1, 12))
	assert.Equal(t, uint32(0xFFFFFFFF), signExtend(0xFFF, 12))
	assert.Equal(t, uint32(0xFFFFF800), signExtend(0x800, 12))
}

func TestX0RegWriteDiscarded(t *testing.T) {
	// addi x0, x0, 1 must not claim reg_write.
	word := uint32(0x13) | (1 << 20)
	inst, err := Decode(word)
	require.NoError(t, err)
	assert.False(t, inst.RegWrite)
}
