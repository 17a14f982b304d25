package progressive

import (
	"testing"

	"github.com/dvorak-labs/rdpwire/internal/codec/rfx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultQuantTable() []*rfx.SubbandQuant {
	return []*rfx.SubbandQuant{rfx.DefaultQuant()}
}

func TestDecodeFirstPass_AllZeroTile(t *testing.T) {
	surface, err := NewSurface(1, 128, 128)
	require.NoError(t, err)

	zeroCoeff := make([]int16, rfx.TilePixels)
	yData, err := rfx.RLGREncode(zeroCoeff, rfx.RLGR1)
	require.NoError(t, err)
	cbData, err := rfx.RLGREncode(zeroCoeff, rfx.RLGR3)
	require.NoError(t, err)
	crData, err := rfx.RLGREncode(zeroCoeff, rfx.RLGR3)
	require.NoError(t, err)

	quantTable := defaultQuantTable()
	progQuantTable := defaultQuantTable()

	in := FirstPassInput{
		XIdx: 0, YIdx: 0,
		QuantIdxY: 0, QuantIdxCb: 0, QuantIdxCr: 0,
		YData: yData, CbData: cbData, CrData: crData,
	}

	tile, err := DecodeFirstPass(surface, in, quantTable, progQuantTable, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), tile.XIdx)
	for _, v := range tile.Current[0][:rfx.TilePixels] {
		assert.Zero(t, v)
	}
	assert.Equal(t, 1, tile.Pass)

	updated := surface.UpdatedTiles()
	require.Len(t, updated, 1)
	assert.Same(t, tile, updated[0])
}

func TestDecodeFirstPass_InvalidZIdx(t *testing.T) {
	surface, err := NewSurface(1, 64, 64)
	require.NoError(t, err)

	in := FirstPassInput{XIdx: 9, YIdx: 9}
	_, err = DecodeFirstPass(surface, in, defaultQuantTable(), defaultQuantTable(), 0, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidZIdx)
}

func TestSubbandShift_Boundaries(t *testing.T) {
	q := rfx.DefaultQuant()
	assert.Equal(t, int(q.HL1), subbandShift(0, q))
	assert.Equal(t, int(q.LH1), subbandShift(rfx.OffsetLH1, q))
	assert.Equal(t, int(q.LL3), subbandShift(rfx.OffsetLL3, q))
	assert.Equal(t, int(q.HH3), subbandShift(rfx.OffsetLL3-1, q))
}

func TestNewBitPos_SumsPerSubbandQuantAndProgQuant(t *testing.T) {
	quant := &rfx.SubbandQuant{LL3: 6, LH3: 6, HL3: 6, HH3: 6, LH2: 7, HL2: 7, HH2: 8, LH1: 8, HL1: 8, HH1: 9}
	prog := &rfx.SubbandQuant{LL3: 1, LH3: 1, HL3: 1, HH3: 1, LH2: 1, HL2: 1, HH2: 1, LH1: 1, HL1: 1, HH1: 1}

	got := newBitPos(quant, prog)
	assert.Equal(t, subbandBitPos{LL3: 7, LH3: 7, HL3: 7, HH3: 7, LH2: 8, HL2: 8, HH2: 9, LH1: 9, HL1: 9, HH1: 10}, got)
}

func TestSubbandBitPos_SubAndAt(t *testing.T) {
	oldPos := subbandBitPos{LL3: 7, LH3: 7, HL3: 7, HH3: 7, LH2: 8, HL2: 8, HH2: 9, LH1: 9, HL1: 9, HH1: 10}
	newPos := subbandBitPos{LL3: 6, LH3: 6, HL3: 6, HH3: 6, LH2: 7, HL2: 7, HH2: 8, LH1: 8, HL1: 8, HH1: 9}

	delta := oldPos.sub(newPos)
	assert.Equal(t, 1, delta.HL1)
	assert.Equal(t, 1, delta.LL3)
	assert.Equal(t, 1, delta.at(0))             // HL1 band
	assert.Equal(t, 1, delta.at(rfx.OffsetLL3)) // LL3 band
	assert.Equal(t, 1, delta.at(rfx.OffsetLH1)) // LH1 band
}

// upgradeQuant builds a SubbandQuant with every field set to v, used
// when a test only cares about the uniform delta across subbands.
func upgradeQuant(v uint8) *rfx.SubbandQuant {
	return &rfx.SubbandQuant{LL3: v, LH3: v, HL3: v, HH3: v, LH2: v, HL2: v, HH2: v, LH1: v, HL1: v, HH1: v}
}

func TestDecodeUpgradePass_AdvancesBitPosAndPass(t *testing.T) {
	surface, err := NewSurface(1, 128, 128)
	require.NoError(t, err)

	zeroCoeff := make([]int16, rfx.TilePixels)
	yData, err := rfx.RLGREncode(zeroCoeff, rfx.RLGR1)
	require.NoError(t, err)
	cbData, err := rfx.RLGREncode(zeroCoeff, rfx.RLGR3)
	require.NoError(t, err)
	crData, err := rfx.RLGREncode(zeroCoeff, rfx.RLGR3)
	require.NoError(t, err)

	quantTable := []*rfx.SubbandQuant{upgradeQuant(5)}
	// First pass quantizes at progQuant[0] (coarse, value 1); the
	// upgrade pass below selects progQuant[1] (finer, value 0), so
	// the pass should advance every subband's bit position by 1.
	progQuantTable := []*rfx.SubbandQuant{upgradeQuant(1), upgradeQuant(0)}

	first := FirstPassInput{
		XIdx: 0, YIdx: 0,
		QuantIdxY: 0, QuantIdxCb: 0, QuantIdxCr: 0,
		YData: yData, CbData: cbData, CrData: crData,
	}
	tile, err := DecodeFirstPass(surface, first, quantTable, progQuantTable, 0, 0, 0)
	require.NoError(t, err)
	require.Equal(t, subbandBitPos{LL3: 6, LH3: 6, HL3: 6, HH3: 6, LH2: 6, HL2: 6, HH2: 6, LH1: 6, HL1: 6, HH1: 6}, tile.YBitPos)

	upgrade := UpgradePassInput{
		XIdx: 0, YIdx: 0,
		ProgQuantIdxY: 1, ProgQuantIdxCb: 1, ProgQuantIdxCr: 1,
	}
	tile, err = DecodeUpgradePass(surface, upgrade, quantTable, progQuantTable)
	require.NoError(t, err)

	assert.Equal(t, subbandBitPos{LL3: 5, LH3: 5, HL3: 5, HH3: 5, LH2: 5, HL2: 5, HH2: 5, LH1: 5, HL1: 5, HH1: 5}, tile.YBitPos)
	assert.Equal(t, uint8(1), tile.ProgQuantIdxY)
	assert.Equal(t, uint8(1), tile.ProgQuantIdxCb)
	assert.Equal(t, uint8(1), tile.ProgQuantIdxCr)
	assert.Equal(t, 2, tile.Pass)

	// Every coefficient in this tile started and stayed at zero: the
	// all-zero streams above carry no RAW/SRL payload, so every bit
	// read returns zero regardless of the numBits the delta grants.
	for _, v := range tile.Current[0][:rfx.TilePixels] {
		assert.Zero(t, v)
	}
}

func TestDecodeUpgradePass_ZeroDeltaIsNoOp(t *testing.T) {
	surface, err := NewSurface(1, 128, 128)
	require.NoError(t, err)

	zeroCoeff := make([]int16, rfx.TilePixels)
	yData, err := rfx.RLGREncode(zeroCoeff, rfx.RLGR1)
	require.NoError(t, err)
	cbData, err := rfx.RLGREncode(zeroCoeff, rfx.RLGR3)
	require.NoError(t, err)
	crData, err := rfx.RLGREncode(zeroCoeff, rfx.RLGR3)
	require.NoError(t, err)

	quantTable := defaultQuantTable()
	progQuantTable := defaultQuantTable()

	first := FirstPassInput{
		XIdx: 0, YIdx: 0,
		YData: yData, CbData: cbData, CrData: crData,
	}
	_, err = DecodeFirstPass(surface, first, quantTable, progQuantTable, 0, 0, 0)
	require.NoError(t, err)

	upgrade := UpgradePassInput{XIdx: 0, YIdx: 0, ProgQuantIdxY: 0, ProgQuantIdxCb: 0, ProgQuantIdxCr: 0}
	tile, err := DecodeUpgradePass(surface, upgrade, quantTable, progQuantTable)
	require.NoError(t, err)

	assert.Equal(t, subbandBitPos{}, tile.YBitPos.sub(newBitPos(quantTable[0], progQuantTable[0])))
	assert.Equal(t, 2, tile.Pass)
}

func TestDecodeUpgradePass_InvalidZIdx(t *testing.T) {
	surface, err := NewSurface(1, 64, 64)
	require.NoError(t, err)

	in := UpgradePassInput{XIdx: 9, YIdx: 9}
	_, err = DecodeUpgradePass(surface, in, defaultQuantTable(), defaultQuantTable())
	assert.ErrorIs(t, err, ErrInvalidZIdx)
}
