package progressive

import (
	"testing"

	"github.com/dvorak-labs/rdpwire/internal/bitio"
	"github.com/stretchr/testify/assert"
)

func TestSRLDecoder_ZeroRun(t *testing.T) {
	w := bitio.NewWriter()
	w.PutBit(0) // zero-encoding bit: starts a run of 1<<k = 2 zeros, the first returned now
	data := w.Flush()

	br := bitio.NewReader(data)
	d := newSRLDecoder(br)

	v := d.next(4)
	assert.Equal(t, int16(0), v)
}

func TestSRLDecoder_UnaryMagnitudeOne(t *testing.T) {
	w := bitio.NewWriter()
	w.PutBit(1) // switch to unary mode
	w.PutBit(0) // sign = positive
	data := w.Flush()

	br := bitio.NewReader(data)
	d := newSRLDecoder(br)
	d.kp = 0 // k = 0, skip initial nz read

	v := d.next(1)
	assert.Equal(t, int16(1), v)
}

func TestSRLDecoder_UnaryMagnitudeNegative(t *testing.T) {
	w := bitio.NewWriter()
	w.PutBit(1) // switch to unary mode
	w.PutBit(1) // sign = negative
	data := w.Flush()

	br := bitio.NewReader(data)
	d := newSRLDecoder(br)
	d.kp = 0

	v := d.next(1)
	assert.Equal(t, int16(-1), v)
}

func TestClampSRL(t *testing.T) {
	assert.Equal(t, 0, clampSRL(-5))
	assert.Equal(t, srlKPMax, clampSRL(200))
	assert.Equal(t, 40, clampSRL(40))
}
