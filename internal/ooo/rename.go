package ooo

// RenameTable is the register-alias table (the source's "AppointForm"):
// for each of the 64 architectural registers it records which
// reservation station, if any, currently owns the next value destined
// for that register. 0 means the register file itself is authoritative
// — no station is in flight for it.
type RenameTable struct {
	table [64]uint8
}

// NewRenameTable returns a table with every register pointing at the
// register file.
func NewRenameTable() *RenameTable {
	return &RenameTable{}
}

// Check returns the station id owning reg, or 0 if the register file is
// authoritative.
func (t *RenameTable) Check(reg uint32) uint8 {
	if reg >= uint32(len(t.table)) {
		return 0
	}
	return t.table[reg]
}

// Set records that station now owns reg's next value.
func (t *RenameTable) Set(reg uint32, station uint8) {
	if reg == 0 || reg >= uint32(len(t.table)) {
		return
	}
	t.table[reg] = station
}

// Clear hands reg's authority back to the register file, but only if
// station is still the current owner — a station whose broadcast has
// already been superseded by a younger one issuing to the same register
// must not clear the younger station's claim.
func (t *RenameTable) Clear(reg uint32, station uint8) {
	if reg == 0 || reg >= uint32(len(t.table)) {
		return
	}
	if t.table[reg] == station {
		t.table[reg] = 0
	}
}
