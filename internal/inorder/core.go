// Package inorder implements the five-stage in-order pipeline core:
// IF, ID, EX, MEM, WB with EX->ID and MEM->ID data forwarding, load-use
// and control-hazard stalling, and branch/jump resolution in EX.
//
// One Step call evaluates all five stages tail-first (WB, MEM, EX, ID,
// IF) so that each stage reads the latch ahead of it exactly as it
// stood at the end of the previous cycle, before that cycle's later
// stages (which run earlier in this ordering) overwrite it. This is the
// "latch after all stages evaluate" trick: by processing consumers of a
// latch before the stage that will overwrite it runs, a single forward
// pass produces correct same-cycle forwarding without a separate
// snapshot-and-swap step.
package inorder

import (
	"rv32sim/internal/config"
	"rv32sim/internal/isa"
	"rv32sim/internal/memory"
	"rv32sim/internal/program"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// Status is the terminal classification Step returns.
type Status int

const (
	StatusRunning Status = iota
	StatusExit
	StatusBreak
)

// StepResult is what Step returns every cycle; Code is only meaningful
// when Status is StatusExit.
type StepResult struct {
	Status Status
	Code   uint32
}

// ErrUnknownEcall is returned when an ecall's a0 register names a
// syscall number this simulator doesn't implement (only a0=17, the
// Linux-style exit syscall, is handled).
var ErrUnknownEcall = errors.New("inorder: unknown ecall number")

// ErrCycleCeiling is returned once a run exceeds the configured cycle
// limit (default 10000), bounding otherwise-nonterminating programs.
var ErrCycleCeiling = errors.New("inorder: exceeded cycle ceiling")

// latch is the state carried at one pipeline boundary: IF/ID, ID/EX,
// EX/MEM, or MEM/WB. Renamed from the source's imm_a/imm_b/imm_src
// naming to RegA/RegB/Imm, since imm_a/imm_b there hold register
// values, not immediates — only Imm is ever an immediate.
type latch struct {
	PC, NPC  uint32
	IR       isa.Instruction
	RegA     uint32
	RegB     uint32
	Imm      uint32
	Cond     bool
	AluOut   uint32
	MemOut   uint32
	WriteOut uint32
}

func nopLatch() latch {
	return latch{IR: isa.Nop()}
}

// Core is the five-stage in-order pipeline.
type Core struct {
	ifID, idEX, exMEM, memWB latch

	pc, npc uint32
	stall   bool

	regs  *memory.RegisterFile
	mem   *memory.Memory
	names map[uint32]string

	cycle          uint32
	cycleLimit     uint32
	dataHazards    uint32
	controlHazards uint32
	exitFlag       bool

	log *log.Logger
}

// New builds a core over the given memory and register file, bounded
// by cfg.CycleLimit. A zero CycleLimit uses the spec default of 10000.
// A nil logger uses the package default logger.
func New(mem *memory.Memory, regs *memory.RegisterFile, cfg config.Engine, logger *log.Logger) *Core {
	cycleLimit := uint32(cfg.CycleLimit)
	if cycleLimit == 0 {
		cycleLimit = 10000
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Core{
		ifID:       nopLatch(),
		idEX:       nopLatch(),
		exMEM:      nopLatch(),
		memWB:      nopLatch(),
		mem:        mem,
		regs:       regs,
		cycleLimit: cycleLimit,
		log:        logger,
	}
}

// NewFromConfig builds a core with its own memory and register file
// sized from cfg.MemoryWords, in addition to cfg.CycleLimit.
func NewFromConfig(cfg config.Engine, logger *log.Logger) *Core {
	return New(memory.New(cfg.MemoryWords), memory.NewRegisterFile(), cfg, logger)
}

// Load installs a program image: memory, source-line names, and the
// starting PC.
func (c *Core) Load(p *program.Program) error {
	if err := c.mem.LoadImage(p.Words); err != nil {
		return errors.Wrap(err, "inorder: load image")
	}
	c.names = p.Names
	c.pc = p.Entry
	c.npc = p.Entry
	return nil
}

// Cycle returns the number of cycles executed so far.
func (c *Core) Cycle() uint32 { return c.cycle }

// DataHazards returns the running count of load-use stalls.
func (c *Core) DataHazards() uint32 { return c.dataHazards }

// ControlHazards returns the running count of control-hazard bubbles.
func (c *Core) ControlHazards() uint32 { return c.controlHazards }

// Step advances the machine by exactly one cycle.
func (c *Core) Step() (StepResult, error) {
	var (
		result StepResult
		err    error
	)

	if c.cycle > 3 {
		if result, err = c.wbCycle(); err != nil {
			return StepResult{}, err
		}
	}
	if c.cycle > 2 {
		if err = c.memCycle(); err != nil {
			return StepResult{}, err
		}
	}
	if c.cycle > 1 {
		c.exCycle()
	}
	if c.cycle > 0 {
		c.idCycle()
	}
	if err = c.ifCycle(); err != nil {
		return StepResult{}, err
	}

	c.cycle++
	if c.cycle > c.cycleLimit {
		c.log.Warn("cycle ceiling exceeded", "limit", c.cycleLimit)
		return StepResult{}, ErrCycleCeiling
	}

	return result, nil
}

func (c *Core) ifCycle() error {
	if c.exMEM.Cond {
		c.npc = c.exMEM.AluOut
	}

	if c.idEX.IR.IsJump || c.exitPending() {
		c.ifID = nopLatch()
		return nil
	}

	if c.stall {
		return nil
	}

	word, err := c.mem.Load(c.npc)
	if err != nil {
		return errors.Wrapf(err, "inorder: fetch at pc=0x%08x", c.npc)
	}
	inst, err := isa.Decode(word)
	if err != nil {
		return errors.Wrapf(err, "inorder: decode at pc=0x%08x", c.npc)
	}

	if inst.IsEcall {
		c.exitFlag = true
	}

	c.ifID = latch{IR: inst, PC: c.npc, NPC: c.npc + 4}
	c.npc += 4
	return nil
}

// exitPending reports whether an ecall has already been fetched; every
// subsequent fetch injects a bubble instead, draining the pipe ahead of
// the exit.
func (c *Core) exitPending() bool { return c.exitFlag }

func (c *Core) idCycle() {
	c.stall = false

	if c.idEX.IR.IsLoad && c.idEX.IR.Rd != 0 &&
		(c.idEX.IR.Rd == c.ifID.IR.Rs1 || c.idEX.IR.Rd == c.ifID.IR.Rs2) {
		c.stall = true
		c.dataHazards++
		c.idEX = nopLatch()
		return
	}

	c.idEX = latch{
		PC:   c.ifID.PC,
		NPC:  c.ifID.NPC,
		IR:   c.ifID.IR,
		RegA: c.regs.Get(c.ifID.IR.Rs1),
		RegB: c.regs.Get(c.ifID.IR.Rs2),
		Imm:  c.ifID.IR.Imm,
	}

	if c.idEX.IR.IsJump {
		c.stall = true
		c.controlHazards++
	}
}

func (c *Core) exCycle() {
	next := latch{PC: c.idEX.PC, NPC: c.idEX.NPC, IR: c.idEX.IR, RegB: c.idEX.RegB}

	aluA := c.idEX.PC
	if c.idEX.IR.UsesRs1 {
		aluA = c.idEX.RegA
	}
	aluB := c.idEX.Imm
	if c.idEX.IR.UsesRs2 {
		aluB = c.idEX.RegB
	}

	next.AluOut = isa.Exec(aluA, aluB, c.idEX.IR.Alu)
	next.Cond = isa.Cond(c.idEX.IR, c.idEX.RegA, c.idEX.RegB)
	c.exMEM = next
}

func (c *Core) memCycle() error {
	next := latch{PC: c.exMEM.PC, NPC: c.exMEM.NPC, IR: c.exMEM.IR, AluOut: c.exMEM.AluOut, Cond: c.exMEM.Cond}

	if c.exMEM.Cond && c.exMEM.IR.IsJump {
		next.NPC = c.exMEM.AluOut
	}

	switch c.exMEM.IR.Mem {
	case isa.MemLoad:
		v, err := c.mem.Load(c.exMEM.AluOut)
		if err != nil {
			return errors.Wrapf(err, "inorder: load at addr=0x%08x", c.exMEM.AluOut)
		}
		next.MemOut = v
	case isa.MemStore:
		if err := c.mem.Store(c.exMEM.AluOut, c.exMEM.RegB); err != nil {
			return errors.Wrapf(err, "inorder: store at addr=0x%08x", c.exMEM.AluOut)
		}
	}

	switch c.exMEM.IR.WB {
	case isa.WBMem:
		next.WriteOut = next.MemOut
	case isa.WBAlu:
		next.WriteOut = c.exMEM.AluOut
	case isa.WBPc:
		next.WriteOut = c.exMEM.PC + 4
	default:
		next.WriteOut = 0
	}

	// EX/MEM -> ID/EX forwarding: id_ex still holds the latch EX is
	// about to consume later this same cycle, so patching it here makes
	// the forwarded value visible in time.
	if c.exMEM.IR.RegWrite {
		if c.exMEM.IR.Rd == c.idEX.IR.Rs1 {
			c.idEX.RegA = next.WriteOut
		}
		if c.exMEM.IR.Rd == c.idEX.IR.Rs2 {
			c.idEX.RegB = next.WriteOut
		}
	}

	c.memWB = next
	return nil
}

func (c *Core) wbCycle() (StepResult, error) {
	if c.memWB.IR.RegWrite {
		c.regs.Set(c.memWB.IR.Rd, c.memWB.WriteOut)
	}
	if !c.memWB.IR.IsNop {
		c.pc = c.memWB.NPC
	}

	// MEM/WB -> ID/EX forwarding: covers producers two stages ahead of
	// the current ID/EX occupant.
	if c.memWB.IR.RegWrite {
		if c.memWB.IR.Rd == c.idEX.IR.Rs1 {
			c.idEX.RegA = c.memWB.WriteOut
		}
		if c.memWB.IR.Rd == c.idEX.IR.Rs2 {
			c.idEX.RegB = c.memWB.WriteOut
		}
	}

	switch {
	case c.memWB.IR.IsEbreak:
		return StepResult{Status: StatusBreak}, nil
	case c.memWB.IR.IsEcall:
		if c.regs.Get(10) == 17 {
			return StepResult{Status: StatusExit, Code: c.regs.Get(11)}, nil
		}
		return StepResult{}, errors.Wrapf(ErrUnknownEcall, "a0=%d", c.regs.Get(10))
	default:
		return StepResult{Status: StatusRunning}, nil
	}
}
