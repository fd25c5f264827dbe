// Package memory implements the flat word-addressable store and the
// combined integer/float register file shared by both cores.
package memory

import "github.com/pkg/errors"

// WordCount is the default memory size in 32-bit words (32 KiB).
const WordCount = 8192

// ErrOutOfRange marks an address outside the memory's backing array. Per
// the spec this is a fatal decoder/executor failure, not a trap: the
// simulation aborts rather than modeling a memory-protection fault.
var ErrOutOfRange = errors.New("memory: address out of range")

// Memory is a flat array of words, addressed by byte address (word
// aligned: mem[a] = data[a>>2]).
type Memory struct {
	data []uint32
}

// New allocates a memory of the given word count. A zero count defaults
// to WordCount.
func New(words int) *Memory {
	if words <= 0 {
		words = WordCount
	}
	return &Memory{data: make([]uint32, words)}
}

// Load reads the word at byte address addr.
func (m *Memory) Load(addr uint32) (uint32, error) {
	idx := addr >> 2
	if int(idx) >= len(m.data) {
		return 0, errors.Wrapf(ErrOutOfRange, "load addr=0x%08x", addr)
	}
	return m.data[idx], nil
}

// Store writes data to the word at byte address addr.
func (m *Memory) Store(addr, data uint32) error {
	idx := addr >> 2
	if int(idx) >= len(m.data) {
		return errors.Wrapf(ErrOutOfRange, "store addr=0x%08x", addr)
	}
	m.data[idx] = data
	return nil
}

// LoadImage copies words into the start of memory, as the program
// loader does when installing a decoded image. No relocation is
// performed; words are placed at consecutive word indices starting at 0.
func (m *Memory) LoadImage(words []uint32) error {
	if len(words) > len(m.data) {
		return errors.Wrapf(ErrOutOfRange, "image of %d words exceeds %d-word memory", len(words), len(m.data))
	}
	copy(m.data, words)
	for i := len(words); i < len(m.data); i++ {
		m.data[i] = 0
	}
	return nil
}

// RegisterCount is the combined integer+float register file size:
// [0,32) integer, [32,64) float.
const RegisterCount = 64

// stackPointerReset is the reset value of integer register 2 (sp).
const stackPointerReset = 0x7ffc

// RegisterFile holds 32 integer and 32 float registers. Writes to
// register 0 are always discarded.
type RegisterFile struct {
	regs [RegisterCount]uint32
}

// NewRegisterFile returns a register file at its reset state: sp = 0x7ffc,
// everything else zero.
func NewRegisterFile() *RegisterFile {
	rf := &RegisterFile{}
	rf.regs[2] = stackPointerReset
	return rf
}

// Get returns the value of register index.
func (r *RegisterFile) Get(index uint32) uint32 {
	return r.regs[index]
}

// Set writes value to register index. Index 0 is silently dropped.
func (r *RegisterFile) Set(index uint32, value uint32) {
	if index == 0 {
		return
	}
	r.regs[index] = value
}
