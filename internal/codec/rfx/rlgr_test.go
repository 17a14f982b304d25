package rfx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRLGRDecode_EmptyInput(t *testing.T) {
	output := make([]int16, TilePixels)
	err := RLGRDecode([]byte{}, RLGR1, output)

	require.NoError(t, err)
	for i := 0; i < TilePixels; i++ {
		assert.Equal(t, int16(0), output[i])
	}
}

func TestRLGRDecode_BufferTooSmall(t *testing.T) {
	output := make([]int16, 100) // Too small
	err := RLGRDecode([]byte{0x00}, RLGR1, output)

	assert.Equal(t, ErrBufferTooSmall, err)
}

func TestRLGRDecode_RLGR1_BasicDecode(t *testing.T) {
	data := []byte{0x55, 0xAA, 0x55, 0xAA, 0xFF, 0x00, 0xFF, 0x00}
	output := make([]int16, TilePixels)

	err := RLGRDecode(data, RLGR1, output)
	if err != nil {
		assert.Equal(t, ErrRLGRDecodeError, err)
	}
}

func TestRLGRDecode_RLGR3_BasicDecode(t *testing.T) {
	data := []byte{0x55, 0xAA, 0x55, 0xAA, 0xFF, 0x00, 0xFF, 0x00}
	output := make([]int16, TilePixels)

	err := RLGRDecode(data, RLGR3, output)
	if err != nil {
		assert.Equal(t, ErrRLGRDecodeError, err)
	}
}

func TestRLGREncode_BufferTooSmall(t *testing.T) {
	_, err := RLGREncode(make([]int16, 100), RLGR1)
	assert.Equal(t, ErrBufferTooSmall, err)
}

func TestRLGREncode_AllZeros(t *testing.T) {
	input := make([]int16, TilePixels)
	out, err := RLGREncode(input, RLGR1)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestRLGREncodeDecode_RLGR1_RoundTrip(t *testing.T) {
	input := make([]int16, TilePixels)
	input[0] = 5
	input[1] = -3
	input[10] = 1
	input[4095] = 127

	encoded, err := RLGREncode(input, RLGR1)
	require.NoError(t, err)

	output := make([]int16, TilePixels)
	err = RLGRDecode(encoded, RLGR1, output)
	require.NoError(t, err)

	assert.Equal(t, input, output)
}

func TestRLGREncodeDecode_RLGR3_RoundTrip(t *testing.T) {
	input := make([]int16, TilePixels)
	input[2] = 9
	input[3] = -9
	input[100] = 42
	input[101] = -42

	encoded, err := RLGREncode(input, RLGR3)
	require.NoError(t, err)

	output := make([]int16, TilePixels)
	err = RLGRDecode(encoded, RLGR3, output)
	require.NoError(t, err)

	assert.Equal(t, input, output)
}

func TestEncodeDecodeGRValue_Inverse(t *testing.T) {
	for _, v := range []int16{0, 1, -1, 2, -2, 127, -128} {
		assert.Equal(t, v, decodeGRValue(encodeGRValue(v)))
	}
}

// TestRdprfx_RLGR1_Mode validates RLGR1 mode per MS test spec:
// "Rdprfx_ImageMode_PositiveTest_RLGR1"
func TestRdprfx_RLGR1_Mode(t *testing.T) {
	assert.Equal(t, int(1), RLGR1, "RLGR1 should be mode 1")

	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	output := make([]int16, TilePixels)
	err := RLGRDecode(data, RLGR1, output)
	if err != nil {
		assert.Equal(t, ErrRLGRDecodeError, err)
	}
}

// TestRdprfx_RLGR3_Mode validates RLGR3 mode per MS test spec:
// "Rdprfx_ImageMode_PositiveTest_RLGR3"
func TestRdprfx_RLGR3_Mode(t *testing.T) {
	assert.Equal(t, int(3), RLGR3, "RLGR3 should be mode 3")

	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i * 2)
	}
	output := make([]int16, TilePixels)
	err := RLGRDecode(data, RLGR3, output)
	if err != nil {
		assert.Equal(t, ErrRLGRDecodeError, err)
	}
}
