// Package program holds the loadable image a core executes: a sequence
// of words, an address-to-source-line map, and an entry address. The
// textual assembler that produces one is out of scope for this module
// (spec §1); this package only consumes the binary wire format (spec
// §6) and the in-process form an external collaborator could hand over
// directly.
package program

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Program is the image a core loads before stepping: words, a
// source-line map keyed by byte address, and the entry address.
type Program struct {
	Words []uint32
	Names map[uint32]string
	Entry uint32
}

// New builds a Program from already-decoded words and an explicit entry
// address, stored as given. The binary image format carries no entry
// point of its own (spec §9 open question), so callers pass the address
// they have from elsewhere, e.g. an in-process assembler, or 0.
func New(words []uint32, names map[uint32]string, entry uint32) *Program {
	if names == nil {
		names = map[uint32]string{}
	}
	return &Program{Words: words, Names: names, Entry: entry}
}

// ReadImage decodes the binary image format: a flat sequence of 32-bit
// big-endian words, no header, no relocation. Byte i*4..i*4+3 encodes
// word i. The caller supplies the entry address out of band, since the
// wire format does not carry one.
func ReadImage(r io.Reader, entry uint32) (*Program, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "program: read image")
	}
	if len(raw)%4 != 0 {
		return nil, errors.Errorf("program: image length %d is not a multiple of 4", len(raw))
	}

	words := make([]uint32, len(raw)/4)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(raw[i*4 : i*4+4])
	}

	return New(words, nil, entry), nil
}

// WriteImage encodes a Program back to the binary wire format: the
// entry address is not written (spec §6/§9), only the words.
func WriteImage(w io.Writer, p *Program) error {
	buf := make([]byte, 4)
	for _, word := range p.Words {
		binary.BigEndian.PutUint32(buf, word)
		if _, err := w.Write(buf); err != nil {
			return errors.Wrap(err, "program: write image")
		}
	}
	return nil
}
