package inorder

import (
	"testing"

	"rv32sim/internal/config"
	"rv32sim/internal/memory"
	"rv32sim/internal/program"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- minimal instruction-word builders, test fixtures only: the textual
// assembler is out of scope for this module, so scenario programs are
// built directly as encoded words, the same way original_source's own
// unit tests hardcode binary literals. ---

func encodeI(opcode, funct3, rd, rs1 uint32, imm int32) uint32 {
	return opcode | (rd << 7) | (funct3 << 12) | (rs1 << 15) | ((uint32(imm) & 0xfff) << 20)
}

func encodeR(opcode, funct3, rd, rs1, rs2, funct7 uint32) uint32 {
	return opcode | (rd << 7) | (funct3 << 12) | (rs1 << 15) | (rs2 << 20) | (funct7 << 25)
}

func encodeB(funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	word := uint32(0x63) | (funct3 << 12) | (rs1 << 15) | (rs2 << 20)
	word |= ((u >> 1) & 0xf) << 8
	word |= ((u >> 5) & 0x3f) << 25
	word |= ((u >> 11) & 0x1) << 7
	word |= ((u >> 12) & 0x1) << 31
	return word
}

func encodeJ(rd uint32, imm int32) uint32 {
	u := uint32(imm)
	word := uint32(0x6f) | (rd << 7)
	word |= ((u >> 1) & 0x3ff) << 21
	word |= ((u >> 11) & 0x1) << 20
	word |= u & 0xff000
	word |= ((u >> 20) & 0x1) << 31
	return word
}

func addi(rd, rs1 uint32, imm int32) uint32 { return encodeI(0x13, 0, rd, rs1, imm) }
func add(rd, rs1, rs2 uint32) uint32        { return encodeR(0x33, 0, rd, rs1, rs2, 0) }
func lw(rd, rs1 uint32, imm int32) uint32   { return encodeI(0x03, 2, rd, rs1, imm) }
func bne(rs1, rs2 uint32, imm int32) uint32 { return encodeB(1, rs1, rs2, imm) }
func jal(rd uint32, imm int32) uint32       { return encodeJ(rd, imm) }
func jalr(rd, rs1 uint32, imm int32) uint32 { return encodeI(0x67, 0, rd, rs1, imm) }

const ecall = uint32(0x00000073)

func newCore(t *testing.T, words []uint32) *Core {
	t.Helper()
	mem := memory.New(0)
	regs := memory.NewRegisterFile()
	c := New(mem, regs, config.Defaults(), nil)
	require.NoError(t, c.Load(program.New(words, nil, 0)))
	return c
}

func runToExit(t *testing.T, c *Core, maxSteps int) StepResult {
	t.Helper()
	for i := 0; i < maxSteps; i++ {
		res, err := c.Step()
		require.NoError(t, err)
		if res.Status != StatusRunning {
			return res
		}
	}
	t.Fatalf("program did not terminate within %d steps", maxSteps)
	return StepResult{}
}

func TestS1ImmediateSum(t *testing.T) {
	words := []uint32{
		addi(1, 0, 1),
		addi(2, 0, 2),
		add(3, 1, 2),
		addi(10, 0, 17),
		ecall,
	}
	c := newCore(t, words)
	res := runToExit(t, c, 50)

	assert.Equal(t, StatusExit, res.Status)
	assert.Equal(t, uint32(0), res.Code)
	assert.Equal(t, uint32(1), c.regs.Get(1))
	assert.Equal(t, uint32(2), c.regs.Get(2))
	assert.Equal(t, uint32(3), c.regs.Get(3))
}

func TestS3BranchLoop(t *testing.T) {
	words := []uint32{
		addi(5, 0, 5),     // 0: x5 = 5
		addi(1, 1, 1),     // 4: loop: x1 += 1
		bne(1, 5, -4),     // 8: if x1 != x5 goto loop
		addi(10, 0, 17),   // 12
		ecall,             // 16
	}
	c := newCore(t, words)
	res := runToExit(t, c, 200)

	assert.Equal(t, StatusExit, res.Status)
	assert.Equal(t, uint32(5), c.regs.Get(1))
	assert.Equal(t, uint32(5), c.ControlHazards())
}

func TestS4LoadUseStall(t *testing.T) {
	mem := memory.New(0)
	regs := memory.NewRegisterFile()
	c := New(mem, regs, config.Defaults(), nil)
	words := []uint32{
		lw(1, 0, 64),  // 0: x1 = mem[64]
		add(2, 1, 1),  // 4: x2 = x1 + x1
		addi(10, 0, 17),
		ecall,
	}
	require.NoError(t, c.Load(program.New(words, nil, 0)))
	// Loading the image overwrites the start of memory, so the data word
	// goes in after it, past the program.
	require.NoError(t, mem.Store(64, 10))

	res := runToExit(t, c, 50)
	assert.Equal(t, StatusExit, res.Status)
	assert.Equal(t, uint32(10), c.regs.Get(1))
	assert.Equal(t, uint32(20), c.regs.Get(2))
	assert.Equal(t, uint32(1), c.DataHazards())
}

func TestS6JalJalrRoundTrip(t *testing.T) {
	words := []uint32{
		jal(1, 12),        // 0: jal x1, 12 (link = 4, target = 12)
		addi(10, 0, 17),   // 4: resumed here after jalr
		ecall,             // 8
		jalr(0, 1, 0),     // 12: jalr x0, 0(x1) -> pc = x1
	}
	c := newCore(t, words)
	res := runToExit(t, c, 50)

	assert.Equal(t, StatusExit, res.Status)
	assert.Equal(t, uint32(4), c.regs.Get(1))
}

func TestNewFromConfigSizesMemoryFromEngine(t *testing.T) {
	cfg := config.Defaults()
	cfg.MemoryWords = 4
	c := NewFromConfig(cfg, nil)

	err := c.Load(program.New([]uint32{addi(1, 0, 1), addi(2, 0, 1), addi(3, 0, 1), addi(4, 0, 1), ecall}, nil, 0))
	require.Error(t, err, "a 5-word image must not fit a 4-word memory sized from cfg.MemoryWords")
}

func TestCoreHonorsConfiguredCycleLimit(t *testing.T) {
	cfg := config.Defaults()
	cfg.CycleLimit = 2
	mem := memory.New(0)
	regs := memory.NewRegisterFile()
	c := New(mem, regs, cfg, nil)
	require.NoError(t, c.Load(program.New([]uint32{addi(1, 0, 1), addi(1, 0, 1), addi(1, 0, 1), addi(1, 0, 1)}, nil, 0)))

	var err error
	for i := 0; i < 10 && err == nil; i++ {
		_, err = c.Step()
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycleCeiling)
}

func TestX0NeverWritten(t *testing.T) {
	words := []uint32{
		addi(0, 0, 99),
		addi(10, 0, 17),
		ecall,
	}
	c := newCore(t, words)
	runToExit(t, c, 50)
	assert.Equal(t, uint32(0), c.regs.Get(0))
}
