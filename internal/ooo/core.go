// Package ooo implements the out-of-order back-end: register renaming
// over a Tomasulo-style set of reservation stations, a common data bus
// broadcasting results to waiting stations and the register file, and
// an in-order front end that fetches one instruction per cycle into a
// pending queue, then admits every pending instruction that currently
// has a free station in that same cycle, in program order, stopping at
// the first one whose bank is full — so execution and retirement can
// still complete out of order.
//
// Each Step evaluates, in this fixed order: writeback (drain whatever
// the CDB made visible last cycle), execute (every station bank
// advances its in-flight work and dispatches newly-ready operations),
// issue (fetch, then admit as many pending instructions as currently
// have a free station), then the CDB ages by one tick. Branches and
// jumps are not modeled here — the reservation-station scoreboard has
// no speculation or recovery mechanism, matching the reference
// driver's scope, which only ever issues straight-line integer,
// floating-point, and load/store instructions.
package ooo

import (
	"rv32sim/internal/config"
	"rv32sim/internal/isa"
	"rv32sim/internal/memory"
	"rv32sim/internal/program"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// pendingInstr is a fetched-but-not-yet-issued instruction together with
// the PC it was fetched at, since U-type instructions (lui/auipc) read
// their own PC as an ALU operand instead of a register, and by issue
// time the core's pc field has already moved past it.
type pendingInstr struct {
	inst isa.Instruction
	pc   uint32
}

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

// ErrUnknownEcall mirrors the in-order core's sentinel: only a0=17 (the
// Linux-style exit syscall) is handled.
var ErrUnknownEcall = errors.New("ooo: unknown ecall number")

// ErrCycleCeiling is returned once a run exceeds the configured cycle
// limit.
var ErrCycleCeiling = errors.New("ooo: exceeded cycle ceiling")

// Core is the out-of-order back-end.
type Core struct {
	mem    *memory.Memory
	regs   *memory.RegisterFile
	rename *RenameTable
	cdb    *CDB

	integer *IntegerBank
	fadd    *FaddBank
	fmul    *FmulBank
	ldst    *LoadStoreBank

	pending []pendingInstr
	pc      uint32
	names   map[uint32]string

	fetchDone bool // an ecall/ebreak has been fetched; stop fetching further

	cycle      uint32
	cycleLimit uint32

	log *log.Logger
}

// New builds a core over the given memory and register file, sized and
// bounded by cfg. A zero-value cfg field falls back to the spec default
// for that field (config.Defaults' values), so callers may pass a
// partially-populated config.Engine.
func New(mem *memory.Memory, regs *memory.RegisterFile, cfg config.Engine, logger *log.Logger) *Core {
	cycleLimit := uint32(cfg.CycleLimit)
	if cycleLimit == 0 {
		cycleLimit = 10000
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Core{
		mem:        mem,
		regs:       regs,
		rename:     NewRenameTable(),
		cdb:        NewCDB(cfg.CDBDepth, logger),
		integer:    NewIntegerBank(),
		fadd:       NewFaddBank(),
		fmul:       NewFmulBank(),
		ldst:       NewLoadStoreBank(),
		cycleLimit: cycleLimit,
		log:        logger,
	}
}

// NewFromConfig builds a core with its own memory and register file,
// both sized from cfg — the full config.Engine surface (memory size,
// cycle ceiling, CDB depth) applied in one call rather than leaving
// memory construction to the caller.
func NewFromConfig(cfg config.Engine, logger *log.Logger) *Core {
	return New(memory.New(cfg.MemoryWords), memory.NewRegisterFile(), cfg, logger)
}

// Load installs a program image and the starting PC.
func (c *Core) Load(p *program.Program) error {
	if err := c.mem.LoadImage(p.Words); err != nil {
		return errors.Wrap(err, "ooo: load image")
	}
	c.names = p.Names
	c.pc = p.Entry
	return nil
}

// Cycle returns the number of cycles executed so far.
func (c *Core) Cycle() uint32 { return c.cycle }

// Step advances the machine by exactly one cycle.
func (c *Core) Step() (StepResult, error) {
	c.writeback()

	if err := c.integer.Execute(c.cdb); err != nil {
		return StepResult{}, err
	}
	if err := c.fadd.Execute(c.cdb); err != nil {
		return StepResult{}, err
	}
	if err := c.fmul.Execute(c.cdb); err != nil {
		return StepResult{}, err
	}
	if err := c.ldst.Execute(c.cdb, c.mem); err != nil {
		return StepResult{}, err
	}

	result, err := c.issue()
	if err != nil {
		return StepResult{}, err
	}

	c.cdb.Exec()

	c.cycle++
	if c.cycle > c.cycleLimit {
		c.log.Warn("cycle ceiling exceeded", "limit", c.cycleLimit)
		return StepResult{}, ErrCycleCeiling
	}

	return result, nil
}

// writeback drains every CDB entry that became visible last cycle into
// the register the entry names, when that register's rename claim is
// still held by the broadcasting station, and releases that claim.
func (c *Core) writeback() {
	for i := range c.cdb.entries {
		e := c.cdb.entries[i]
		if e.age != ageVisible || e.StationID == 0 {
			continue
		}
		if c.rename.Check(e.Reg) == e.StationID {
			c.regs.Set(e.Reg, e.Value)
			c.rename.Clear(e.Reg, e.StationID)
		}
	}
}

// issue fetches at most one new instruction into the pending queue,
// then walks the queue from its oldest entry, admitting every entry
// that currently dispatches and removing it, so a bank that frees up
// mid-cycle can admit more than one instruction in that same cycle. A
// full target bank stops the walk for this cycle without touching
// later entries, preserving program order at admission.
func (c *Core) issue() (StepResult, error) {
	if !c.fetchDone {
		word, err := c.mem.Load(c.pc)
		if err != nil {
			return StepResult{}, errors.Wrapf(err, "ooo: fetch at pc=0x%08x", c.pc)
		}
		inst, err := isa.Decode(word)
		if err != nil {
			return StepResult{}, errors.Wrapf(err, "ooo: decode at pc=0x%08x", c.pc)
		}
		c.pending = append(c.pending, pendingInstr{inst: inst, pc: c.pc})
		c.pc += 4
		if inst.IsEcall || inst.IsEbreak {
			c.fetchDone = true
		}
	}

	result := StepResult{Status: StatusRunning}

	for len(c.pending) > 0 {
		inst := c.pending[0].inst

		if inst.IsEcall || inst.IsEbreak {
			if !c.allBanksDone() || c.resultsPending() {
				break
			}
			c.pending = c.pending[1:]
			if inst.IsEbreak {
				return StepResult{Status: StatusBreak}, nil
			}
			if c.regs.Get(10) == 17 {
				return StepResult{Status: StatusExit, Code: c.regs.Get(11)}, nil
			}
			return StepResult{}, errors.Wrapf(ErrUnknownEcall, "a0=%d", c.regs.Get(10))
		}

		if !c.dispatch(c.pending[0]) {
			break
		}
		c.pending = c.pending[1:]
	}

	return result, nil
}

// dispatch tries to claim a station for p.inst, reports whether it did.
func (c *Core) dispatch(p pendingInstr) bool {
	inst := p.inst
	if inst.IsJump {
		// jal/jalr/branches decode with isa.StationInteger (the
		// decoder's station classification doesn't single out
		// control flow), but this core has no speculation/recovery
		// path for them — see the package doc comment. Dropping
		// rather than routing through the integer station avoids
		// silently computing a jump target as if it were an ALU
		// result bound for rd.
		return true
	}
	switch inst.Station {
	case isa.StationInteger:
		src1 := c.source(inst.Rs1)
		if !inst.UsesRs1 {
			src1 = ValueSource(p.pc)
		}
		src2 := ValueSource(inst.Imm)
		if inst.UsesRs2 {
			src2 = c.source(inst.Rs2)
		}
		sid, ok := c.integer.TrySend(inst.Alu, src1, src2, inst.Rd)
		if !ok {
			return false
		}
		c.rename.Set(inst.Rd, sid)
		return true

	case isa.StationFAdd:
		sid, ok := c.fadd.TrySend(inst.Word>>25 == 0x04, c.source(inst.Rs1), c.source(inst.Rs2), inst.Rd)
		if !ok {
			return false
		}
		c.rename.Set(inst.Rd, sid)
		return true

	case isa.StationFMul:
		sid, ok := c.fmul.TrySend(inst.Word>>25 == 0x0c, c.source(inst.Rs1), c.source(inst.Rs2), inst.Rd)
		if !ok {
			return false
		}
		c.rename.Set(inst.Rd, sid)
		return true

	case isa.StationLoadStore:
		isStore := inst.Mem == isa.MemStore
		var data Source
		if isStore {
			data = c.source(inst.Rs2)
		}
		sid, ok := c.ldst.TrySend(isStore, c.source(inst.Rs1), ValueSource(inst.Imm), data, inst.Rd)
		if !ok {
			return false
		}
		if !isStore {
			c.rename.Set(inst.Rd, sid)
		}
		return true

	default:
		// No station (e.g. a decode that reached issue with
		// StationNone outside ecall/ebreak): nothing to dispatch,
		// drop it rather than stall the pipe forever.
		return true
	}
}

func (c *Core) source(reg uint32) Source {
	return FromRegister(c.rename, c.regs, reg)
}

func (c *Core) allBanksDone() bool {
	return c.integer.Done() && c.fadd.Done() && c.fmul.Done() && c.ldst.Done()
}

// resultsPending reports whether any register still waits for a
// broadcast to be written back.
func (c *Core) resultsPending() bool {
	for reg := uint32(1); reg < memory.RegisterCount; reg++ {
		if c.rename.Check(reg) != 0 {
			return true
		}
	}
	return false
}
