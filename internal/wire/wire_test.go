package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderFields(t *testing.T) {
	data := []byte{0x01, 0xAB, 0xCD, 0x11, 0x22, 0x33, 0x44}
	r := NewReader(data)

	b, err := r.U8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x01), b)

	u16, err := r.U16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xCDAB), u16)

	u32, err := r.U32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x44332211), u32)

	assert.Equal(t, 0, r.Len())
}

func TestReaderShortBuffer(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, err := r.U32()
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestWriterRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteU8(0x01)
	w.WriteU16(0xCDAB)
	w.WriteU32(0x44332211)

	r := NewReader(w.Bytes())
	b, _ := r.U8()
	u16, _ := r.U16()
	u32, _ := r.U32()

	assert.Equal(t, uint8(0x01), b)
	assert.Equal(t, uint16(0xCDAB), u16)
	assert.Equal(t, uint32(0x44332211), u32)
}

func TestWriterBigEndian(t *testing.T) {
	w := NewWriter()
	w.WriteU16BE(0x0102)
	assert.Equal(t, []byte{0x01, 0x02}, w.Bytes())
}
