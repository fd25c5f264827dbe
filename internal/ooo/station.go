package ooo

import (
	"rv32sim/internal/isa"
)

// Station id layout: 0 means "no station, the register file is
// authoritative". Ids 1-5 are the five load/store slots, 6-8 the three
// integer slots, 9-10 the two float-add slots, 11-12 the two
// float-multiply slots.
const (
	loadStoreBase uint8 = 1
	loadStoreSlots       = 5
	integerBase   uint8 = 6
	integerSlots         = 3
	faddBase      uint8 = 9
	faddSlots            = 2
	fmulBase      uint8 = 11
	fmulSlots            = 2
)

// loadLatency is the load/store address-to-result delay, in cycles.
// faddLatency, mulLatency and divLatency mirror the literal constants
// the reference driver uses for its own countdown timers; see
// station_test.go for the cycle-counting derivation and DESIGN.md for
// why FAdd's constant (not +1) and FMul's (+1) differ.
const (
	loadLatency  = 2
	faddLatency  = 3
	mulLatency   = 10
	divLatency   = 40
)

// Source is a reservation-station operand: either an already-resolved
// value, or a pending claim on another station's future broadcast.
type Source struct {
	pending bool
	station uint8
	value   uint32
}

// ValueSource wraps an operand that is already known.
func ValueSource(v uint32) Source { return Source{value: v} }

// PendingSource wraps an operand waiting on stationID's broadcast.
func PendingSource(stationID uint8) Source { return Source{pending: true, station: stationID} }

// FromRegister resolves a source register against the rename table: if
// another station currently owns it, the source is pending on that
// station; otherwise it reads straight from the register file.
func FromRegister(rename *RenameTable, regs RegisterFile, reg uint32) Source {
	if sid := rename.Check(reg); sid != 0 {
		return PendingSource(sid)
	}
	return ValueSource(regs.Get(reg))
}

func (s Source) resolve(cdb *CDB) (uint32, bool) {
	if !s.pending {
		return s.value, true
	}
	return cdb.GetStation(s.station)
}

// RegisterFile is the minimal read surface FromRegister needs; satisfied
// by *memory.RegisterFile without an import cycle back into memory from
// tests that fake it.
type RegisterFile interface {
	Get(index uint32) uint32
}

// --- integer station: resolves both operands then computes and
// broadcasts in the same cycle, modeling a single-cycle ALU. ---

type integerSlot struct {
	busy bool
	op   isa.AluOp
	src1 Source
	src2 Source
	dest uint32
}

// IntegerBank holds the three integer reservation slots (station ids
// 6-8).
type IntegerBank struct {
	slots [integerSlots]integerSlot
}

func NewIntegerBank() *IntegerBank { return &IntegerBank{} }

// TrySend claims a free slot, returning its station id, or false if all
// three are occupied.
func (b *IntegerBank) TrySend(op isa.AluOp, src1, src2 Source, dest uint32) (uint8, bool) {
	for i := range b.slots {
		if !b.slots[i].busy {
			b.slots[i] = integerSlot{busy: true, op: op, src1: src1, src2: src2, dest: dest}
			return integerBase + uint8(i), true
		}
	}
	return 0, false
}

// Execute resolves any slot whose operands have both become available
// and broadcasts its result immediately.
func (b *IntegerBank) Execute(cdb *CDB) error {
	for i := range b.slots {
		s := &b.slots[i]
		if !s.busy {
			continue
		}
		a, aok := s.src1.resolve(cdb)
		bb, bok := s.src2.resolve(cdb)
		if !aok || !bok {
			continue
		}
		result := isa.Exec(a, bb, s.op)
		if err := cdb.Send(integerBase+uint8(i), s.dest, result); err != nil {
			return err
		}
		*s = integerSlot{}
	}
	return nil
}

// Done reports whether every integer slot is free.
func (b *IntegerBank) Done() bool {
	for i := range b.slots {
		if b.slots[i].busy {
			return false
		}
	}
	return true
}

// --- shared delay-line slot for units with a multi-cycle latency
// between operand-resolution and broadcast (FAdd, FMul). ---

type delaySlot struct {
	busy     bool
	resolved bool
	sub      bool // FAdd: true selects fsub over fadd
	div      bool // FMul: true selects fdiv over fmul
	src1     Source
	src2     Source
	dest     uint32
	result   uint32
	remain   uint8
}

// FaddBank holds the two float-add/subtract reservation slots (station
// ids 9-10), each with a 3-cycle latency from operand resolution to
// broadcast.
type FaddBank struct {
	slots [faddSlots]delaySlot
}

func NewFaddBank() *FaddBank { return &FaddBank{} }

// TrySend claims a free slot; sub selects fsub over fadd.
func (b *FaddBank) TrySend(sub bool, src1, src2 Source, dest uint32) (uint8, bool) {
	for i := range b.slots {
		if !b.slots[i].busy {
			b.slots[i] = delaySlot{busy: true, sub: sub, src1: src1, src2: src2, dest: dest}
			return faddBase + uint8(i), true
		}
	}
	return 0, false
}

// Execute advances in-flight computations and dispatches newly-ready
// ones, in that order, so a slot that resolves this cycle waits a full
// cycle before its countdown begins.
func (b *FaddBank) Execute(cdb *CDB) error {
	for i := range b.slots {
		s := &b.slots[i]
		if s.busy && s.resolved && s.remain > 1 {
			s.remain--
			if s.remain == 1 {
				if err := cdb.Send(faddBase+uint8(i), s.dest, s.result); err != nil {
					return err
				}
				*s = delaySlot{}
			}
		}
	}
	for i := range b.slots {
		s := &b.slots[i]
		if !s.busy || s.resolved {
			continue
		}
		a, aok := s.src1.resolve(cdb)
		bb, bok := s.src2.resolve(cdb)
		if !aok || !bok {
			continue
		}
		s.resolved = true
		s.result = isa.FAdd(a, bb, s.sub)
		s.remain = faddLatency
	}
	return nil
}

// Done reports whether every FAdd slot is free.
func (b *FaddBank) Done() bool {
	for i := range b.slots {
		if b.slots[i].busy {
			return false
		}
	}
	return true
}

// FmulBank holds the two float-multiply/divide reservation slots
// (station ids 11-12): 10-cycle latency for multiply, 40 for divide.
type FmulBank struct {
	slots [fmulSlots]delaySlot
}

func NewFmulBank() *FmulBank { return &FmulBank{} }

// TrySend claims a free slot; div selects fdiv over fmul.
func (b *FmulBank) TrySend(div bool, src1, src2 Source, dest uint32) (uint8, bool) {
	for i := range b.slots {
		if !b.slots[i].busy {
			b.slots[i] = delaySlot{busy: true, div: div, src1: src1, src2: src2, dest: dest}
			return fmulBase + uint8(i), true
		}
	}
	return 0, false
}

// Execute mirrors FaddBank.Execute, with per-slot latency chosen by the
// div flag. The stored countdown is latency+1 (unlike FaddBank's bare
// latency) so that the broadcast lands exactly `latency` cycles after
// resolution; see DESIGN.md.
func (b *FmulBank) Execute(cdb *CDB) error {
	for i := range b.slots {
		s := &b.slots[i]
		if s.busy && s.resolved && s.remain > 1 {
			s.remain--
			if s.remain == 1 {
				if err := cdb.Send(fmulBase+uint8(i), s.dest, s.result); err != nil {
					return err
				}
				*s = delaySlot{}
			}
		}
	}
	for i := range b.slots {
		s := &b.slots[i]
		if !s.busy || s.resolved {
			continue
		}
		a, aok := s.src1.resolve(cdb)
		bb, bok := s.src2.resolve(cdb)
		if !aok || !bok {
			continue
		}
		s.resolved = true
		s.result = isa.FMul(a, bb, s.div)
		if s.div {
			s.remain = divLatency + 1
		} else {
			s.remain = mulLatency + 1
		}
	}
	return nil
}

// Done reports whether every FMul slot is free.
func (b *FmulBank) Done() bool {
	for i := range b.slots {
		if b.slots[i].busy {
			return false
		}
	}
	return true
}

// MemoryPort is the load/store surface LoadStoreBank needs; satisfied
// by *memory.Memory.
type MemoryPort interface {
	Load(addr uint32) (uint32, error)
	Store(addr, data uint32) error
}

// lsSlot extends the generic two-source reservation slot with a third
// source for store data: the source driver's Source wiring only ever
// carries two operands, with source2 forced to the address immediate
// for every load/store, leaving no carrier for a store's value operand
// (see DESIGN.md for the station.rs trace this is grounded on). A store
// is not resolved until base, offset, and data are all available.
type lsSlot struct {
	busy     bool
	resolved bool
	isStore  bool
	src1     Source // base register (rs1)
	src2     Source // address immediate, always already a value
	data     Source // store data (rs2); unused for loads
	dest     uint32 // destination register; unused for stores
	addr     uint32
	result   uint32
	remain   uint8
	seq      uint64
}

// LoadStoreBank holds the five load/store reservation slots (station
// ids 1-5), each with a 2-cycle address-to-result latency. Stores never
// broadcast on the CDB — they retire by writing memory directly, and
// only once they are the oldest outstanding slot in the bank, so stores
// commit in program order even though they may resolve out of order.
type LoadStoreBank struct {
	slots   [loadStoreSlots]lsSlot
	nextSeq uint64
}

func NewLoadStoreBank() *LoadStoreBank { return &LoadStoreBank{} }

// TrySend claims a free slot for a load (isStore=false, data ignored) or
// a store (isStore=true).
func (b *LoadStoreBank) TrySend(isStore bool, base, offset, data Source, dest uint32) (uint8, bool) {
	for i := range b.slots {
		if !b.slots[i].busy {
			b.nextSeq++
			b.slots[i] = lsSlot{
				busy: true, isStore: isStore,
				src1: base, src2: offset, data: data, dest: dest,
				seq: b.nextSeq,
			}
			return loadStoreBase + uint8(i), true
		}
	}
	return 0, false
}

// Execute advances in-flight accesses, resolves newly-ready ones, and
// commits loads (broadcast) or in-order-eligible stores (memory write).
func (b *LoadStoreBank) Execute(cdb *CDB, mem MemoryPort) error {
	for i := range b.slots {
		s := &b.slots[i]
		if s.busy && s.resolved && s.remain > 1 {
			s.remain--
		}
	}
	for i := range b.slots {
		s := &b.slots[i]
		if !(s.busy && s.resolved && s.remain == 1) {
			continue
		}
		// Both loads and stores retire in admission order: a load that
		// raced ahead of an older, still-outstanding store sharing this
		// bank could otherwise read memory before that store's write,
		// even when the two touch different addresses and the hazard
		// would be invisible to rename/CDB tracking entirely.
		if !b.isOldestOutstanding(s.seq) {
			continue // an older access must retire first; try again next cycle
		}
		if !s.isStore {
			v, err := mem.Load(s.addr)
			if err != nil {
				return err
			}
			if err := cdb.Send(loadStoreBase+uint8(i), s.dest, v); err != nil {
				return err
			}
			*s = lsSlot{}
			continue
		}
		if err := mem.Store(s.addr, s.result); err != nil {
			return err
		}
		*s = lsSlot{}
	}
	for i := range b.slots {
		s := &b.slots[i]
		if !s.busy || s.resolved {
			continue
		}
		base, baseOK := s.src1.resolve(cdb)
		offset, offsetOK := s.src2.resolve(cdb)
		if !baseOK || !offsetOK {
			continue
		}
		if s.isStore {
			data, dataOK := s.data.resolve(cdb)
			if !dataOK {
				continue
			}
			s.result = data
		}
		s.resolved = true
		s.addr = base + offset
		s.remain = loadLatency
	}
	return nil
}

// isOldestOutstanding reports whether no other busy slot has an earlier
// admission sequence number than seq.
func (b *LoadStoreBank) isOldestOutstanding(seq uint64) bool {
	for i := range b.slots {
		if b.slots[i].busy && b.slots[i].seq < seq {
			return false
		}
	}
	return true
}

// Done reports whether every load/store slot is free.
func (b *LoadStoreBank) Done() bool {
	for i := range b.slots {
		if b.slots[i].busy {
			return false
		}
	}
	return true
}
