package program

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteImageRoundTrip(t *testing.T) {
	p := New([]uint32{0x48690000, 0x00000005}, nil, 8)

	var buf bytes.Buffer
	require.NoError(t, WriteImage(&buf, p))

	got, err := ReadImage(&buf, 8)
	require.NoError(t, err)
	assert.Equal(t, p.Words, got.Words)
	assert.Equal(t, uint32(8), got.Entry)
}

func TestReadImageS2DataSection(t *testing.T) {
	// S2: .globl end .data s:.string "Hi" w:.word 5 end:
	// Image words (big-endian): 0x48690000, 0x00000005. Entry address = 8.
	raw := []byte{0x48, 0x69, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05}
	got, err := ReadImage(bytes.NewReader(raw), 8)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x48690000, 0x00000005}, got.Words)
	assert.Equal(t, uint32(8), got.Entry)
}

func TestReadImageRejectsMisalignedLength(t *testing.T) {
	_, err := ReadImage(bytes.NewReader([]byte{1, 2, 3}), 0)
	require.Error(t, err)
}

func TestNewDefaultsEmptyNames(t *testing.T) {
	p := New([]uint32{1}, nil, 0)
	assert.NotNil(t, p.Names)
}
