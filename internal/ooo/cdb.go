package ooo

import (
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// DefaultDepth is the CDB's capacity absent an explicit
// config.Engine.CDBDepth override: at most this many broadcasts may be
// in flight (posted or visible) at once. 12 stations sharing an
// 8-entry bus, each posting at most once before its slot is consumed,
// never exceeds this in a well-formed run; exceeding it is an
// implementation-invariant violation, not a user-triggerable error.
const DefaultDepth = 8

// age tracks an entry's two-phase visibility: a fresh broadcast is
// posted but invisible the cycle it lands, becomes visible for exactly
// one subsequent cycle, then expires. Re-expressed as an explicit small
// enum per spec §9's design note, replacing the source's bit-packed tag
// byte.
type age int

const (
	ageEmpty age = iota
	agePosted
	ageVisible
)

// Entry is one CDB broadcast record.
type Entry struct {
	StationID uint8
	Reg       uint32
	Value     uint32
	age       age
}

// ErrCDBOverflow marks the CDB-full condition the spec calls an
// implementation fault that must never happen in a correctly sized run.
var ErrCDBOverflow = errors.New("ooo: CDB overflow")

// CDB is the common data bus: a bounded broadcast buffer linking
// execution-unit outputs to waiting stations and the register file.
type CDB struct {
	entries []Entry
	log     *log.Logger
}

// NewCDB returns an empty CDB sized to depth entries. depth <= 0 uses
// DefaultDepth, so config.Engine.CDBDepth can size this directly.
func NewCDB(depth int, logger *log.Logger) *CDB {
	if depth <= 0 {
		depth = DefaultDepth
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CDB{entries: make([]Entry, depth), log: logger}
}

// Send posts a broadcast into the first empty slot. It is invisible to
// GetStation until the next Exec tick ages it.
func (b *CDB) Send(stationID uint8, reg, value uint32) error {
	for i := range b.entries {
		if b.entries[i].age == ageEmpty {
			b.entries[i] = Entry{StationID: stationID, Reg: reg, Value: value, age: agePosted}
			return nil
		}
	}
	b.log.Error("CDB buffer full", "station", stationID, "reg", reg)
	return errors.Wrapf(ErrCDBOverflow, "station=%d reg=%d", stationID, reg)
}

// GetStation returns the value broadcast for stationID, if an entry for
// it exists and has aged to visible.
func (b *CDB) GetStation(stationID uint8) (uint32, bool) {
	for i := range b.entries {
		e := &b.entries[i]
		if e.age == ageVisible && e.StationID == stationID {
			return e.Value, true
		}
	}
	return 0, false
}

// Exec ages every entry one tick: posted becomes visible, visible
// expires back to empty. Called once per cycle after all execution
// units have run, giving writeback exactly one cycle to observe each
// broadcast.
func (b *CDB) Exec() {
	for i := range b.entries {
		switch b.entries[i].age {
		case agePosted:
			b.entries[i].age = ageVisible
		case ageVisible:
			b.entries[i] = Entry{}
		}
	}
}
