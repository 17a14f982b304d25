package bitio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_GetBits(t *testing.T) {
	data := []byte{0xAB, 0xCD, 0xEF, 0x12}
	r := NewReader(data)

	assert.Equal(t, uint32(0x0A), r.GetBits(4))
	assert.Equal(t, uint32(0xBC), r.GetBits(8))
	assert.Equal(t, uint32(0x0D), r.GetBits(4))
}

func TestReader_GetBit(t *testing.T) {
	r := NewReader([]byte{0x80}) // 10000000

	assert.Equal(t, uint32(1), r.GetBit())
	assert.Equal(t, uint32(0), r.GetBit())
	assert.Equal(t, uint32(0), r.GetBit())
}

func TestReader_CountLeadingZeros(t *testing.T) {
	r := NewReader([]byte{0x08}) // 00001000
	assert.Equal(t, 4, r.CountLeadingZeros())
}

func TestReader_CountLeadingOnes(t *testing.T) {
	r := NewReader([]byte{0xF0}) // 11110000
	assert.Equal(t, 4, r.CountLeadingOnes())
}

func TestReader_PastEndReturnsZero(t *testing.T) {
	r := NewReader([]byte{0xFF})
	r.GetBits(8)
	assert.True(t, r.Eos())
	assert.Equal(t, uint32(0), r.GetBits(4))
}

func TestReader_ProcessedBytes(t *testing.T) {
	r := NewReader([]byte{0xFF, 0xFF, 0xFF})
	assert.Equal(t, 0, r.ProcessedBytes())

	r.GetBits(8)
	assert.Equal(t, 1, r.ProcessedBytes())

	r.GetBits(4)
	assert.Equal(t, 2, r.ProcessedBytes(), "partial byte counts as processed")

	r.GetBits(4)
	assert.Equal(t, 2, r.ProcessedBytes(), "now byte-aligned again")
}

func TestWriter_PutBitsRoundTrip(t *testing.T) {
	w := NewWriter()
	w.PutBits(0x0A, 4)
	w.PutBits(0xBC, 8)
	w.PutBits(0x0D, 4)
	out := w.Flush()
	require.Equal(t, []byte{0xAB, 0xCD}, out)
}

func TestWriter_PreservesPartialByteBits(t *testing.T) {
	w := NewWriter()
	w.PutBit(1)
	w.PutBit(0)
	w.PutBit(1)
	w.PutBit(1)
	out := w.Flush()
	require.Equal(t, []byte{0b10110000}, out)
}

func TestWriter_FlushPadsWithZero(t *testing.T) {
	w := NewWriter()
	w.PutBits(0x1, 1)
	out := w.Flush()
	require.Equal(t, []byte{0x80}, out)
}

func TestReaderWriterRoundTrip(t *testing.T) {
	w := NewWriter()
	values := []struct {
		v uint32
		n int
	}{{5, 3}, {200, 8}, {1, 1}, {0x3F, 6}}

	for _, tc := range values {
		w.PutBits(tc.v, tc.n)
	}
	data := w.Flush()

	r := NewReader(data)
	for _, tc := range values {
		assert.Equal(t, tc.v, r.GetBits(tc.n))
	}
}
