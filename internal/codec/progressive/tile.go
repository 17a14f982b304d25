package progressive

import (
	"errors"

	"github.com/dvorak-labs/rdpwire/internal/bitio"
	"github.com/dvorak-labs/rdpwire/internal/codec/rfx"
)

var ErrShortTileData = errors.New("progressive: tile payload too short")

// FirstPassInput carries one _TILE_SIMPLE / _TILE_FIRST block's fields.
type FirstPassInput struct {
	XIdx, YIdx                        uint16
	QuantIdxY, QuantIdxCb, QuantIdxCr uint8
	Flags                             uint16
	YData, CbData, CrData             []byte
}

// DecodeFirstPass processes a _TILE_SIMPLE or _TILE_FIRST block: RLGR
// decode, differential-decode the LL3 band, dequantize with a
// progressive shift of (quant + progQuant − 1), inverse DWT, and —
// when RFX_TILE_DIFFERENCE is set — accumulate onto the tile's
// existing `current` coefficients rather than replacing them.
func DecodeFirstPass(surface *Surface, in FirstPassInput, quantTable, progQuantTable []*rfx.SubbandQuant, progQuantIdxY, progQuantIdxCb, progQuantIdxCr uint8) (*Tile, error) {
	tile, err := surface.TileAt(in.XIdx, in.YIdx)
	if err != nil {
		return nil, err
	}

	tile.QuantIdxY, tile.QuantIdxCb, tile.QuantIdxCr = in.QuantIdxY, in.QuantIdxCb, in.QuantIdxCr
	tile.ProgQuantIdxY, tile.ProgQuantIdxCb, tile.ProgQuantIdxCr = progQuantIdxY, progQuantIdxCb, progQuantIdxCr

	planes := [3]struct {
		data      []byte
		quant     *rfx.SubbandQuant
		progQuant *rfx.SubbandQuant
		mode      int
	}{
		{in.YData, quantTable[in.QuantIdxY], progQuantTable[progQuantIdxY], rfx.RLGR1},
		{in.CbData, quantTable[in.QuantIdxCb], progQuantTable[progQuantIdxCb], rfx.RLGR3},
		{in.CrData, quantTable[in.QuantIdxCr], progQuantTable[progQuantIdxCr], rfx.RLGR3},
	}

	for p, plane := range planes {
		coeff := make([]int16, rfx.TilePixels)
		if err := rfx.RLGRDecode(plane.data, plane.mode, coeff); err != nil {
			return nil, err
		}

		copy(tile.Sign[p], signsOf(coeff))

		rfx.DifferentialDecode(coeff[rfx.OffsetLL3:], rfx.SizeL3)
		dequantizeProgressive(coeff, plane.quant, plane.progQuant)
		rfx.InverseDWT2D(coeff)

		switch p {
		case 0:
			tile.YBitPos = newBitPos(plane.quant, plane.progQuant)
		case 1:
			tile.CbBitPos = newBitPos(plane.quant, plane.progQuant)
		case 2:
			tile.CrBitPos = newBitPos(plane.quant, plane.progQuant)
		}

		if in.Flags&flagTileDifference != 0 {
			for i := range coeff {
				coeff[i] += tile.Current[p][i]
			}
		}
		copy(tile.Current[p], coeff)
	}

	surface.markUpdated(tile.ZIdx)
	tile.Pass++
	return tile, nil
}

func signsOf(coeff []int16) []int8 {
	signs := make([]int8, len(coeff))
	for i, v := range coeff {
		switch {
		case v > 0:
			signs[i] = 1
		case v < 0:
			signs[i] = -1
		default:
			signs[i] = 0
		}
	}
	return signs
}

// dequantizeProgressive mirrors rfx.Dequantize but uses the
// progressive shift formula shift = quant + progQuant − 1.
func dequantizeProgressive(buffer []int16, quant, progQuant *rfx.SubbandQuant) {
	shiftBlock(buffer[rfx.OffsetHL1:rfx.OffsetHL1+1024], quant.HL1, progQuant.HL1)
	shiftBlock(buffer[rfx.OffsetLH1:rfx.OffsetLH1+1024], quant.LH1, progQuant.LH1)
	shiftBlock(buffer[rfx.OffsetHH1:rfx.OffsetHH1+1024], quant.HH1, progQuant.HH1)
	shiftBlock(buffer[rfx.OffsetHL2:rfx.OffsetHL2+256], quant.HL2, progQuant.HL2)
	shiftBlock(buffer[rfx.OffsetLH2:rfx.OffsetLH2+256], quant.LH2, progQuant.LH2)
	shiftBlock(buffer[rfx.OffsetHH2:rfx.OffsetHH2+256], quant.HH2, progQuant.HH2)
	shiftBlock(buffer[rfx.OffsetHL3:rfx.OffsetHL3+rfx.SizeL3], quant.HL3, progQuant.HL3)
	shiftBlock(buffer[rfx.OffsetLH3:rfx.OffsetLH3+rfx.SizeL3], quant.LH3, progQuant.LH3)
	shiftBlock(buffer[rfx.OffsetHH3:rfx.OffsetHH3+rfx.SizeL3], quant.HH3, progQuant.HH3)
	shiftBlock(buffer[rfx.OffsetLL3:rfx.OffsetLL3+rfx.SizeL3], quant.LL3, progQuant.LL3)
}

func shiftBlock(data []int16, quant, progQuant uint8) {
	shift := int(quant) + int(progQuant) - 1
	if shift <= 0 {
		return
	}
	for i := range data {
		data[i] <<= uint(shift)
	}
}

// UpgradePassInput carries one _TILE_UPGRADE block's fields. Unlike
// the first pass, an upgrade pass selects its own progressive
// quantization entry per plane — later passes commonly arrive at a
// higher quality than earlier ones.
type UpgradePassInput struct {
	XIdx, YIdx                                    uint16
	ProgQuantIdxY, ProgQuantIdxCb, ProgQuantIdxCr uint8
	YSrl, YRaw                                    []byte
	CbSrl, CbRaw                                  []byte
	CrSrl, CrRaw                                  []byte
}

// DecodeUpgradePass consumes the SRL and RAW streams for each plane
// and refines the tile's existing coefficients in place, per the
// per-coefficient sign-state rule: a coefficient with a nonzero sign
// reads from RAW and accumulates, while a still-zero coefficient reads
// a fresh signed value from SRL. The number of bits read per subband
// is the difference between the subband's bit position after this
// pass's progressive quant (quant + progQuant) and its bit position
// after the previous pass, so each pass contributes only the bits the
// increase in quality actually grants.
func DecodeUpgradePass(surface *Surface, in UpgradePassInput, quantTable, progQuantTable []*rfx.SubbandQuant) (*Tile, error) {
	tile, err := surface.TileAt(in.XIdx, in.YIdx)
	if err != nil {
		return nil, err
	}

	planes := [3]struct {
		srl, raw  []byte
		oldBitPos *subbandBitPos
		quant     *rfx.SubbandQuant
		progQuant *rfx.SubbandQuant
	}{
		{in.YSrl, in.YRaw, &tile.YBitPos, quantTable[tile.QuantIdxY], progQuantTable[in.ProgQuantIdxY]},
		{in.CbSrl, in.CbRaw, &tile.CbBitPos, quantTable[tile.QuantIdxCb], progQuantTable[in.ProgQuantIdxCb]},
		{in.CrSrl, in.CrRaw, &tile.CrBitPos, quantTable[tile.QuantIdxCr], progQuantTable[in.ProgQuantIdxCr]},
	}

	for p, plane := range planes {
		newPos := newBitPos(plane.quant, plane.progQuant)
		numBits := plane.oldBitPos.sub(newPos)

		srlReader := bitio.NewReader(plane.srl)
		rawReader := bitio.NewReader(plane.raw)
		srl := newSRLDecoder(srlReader)

		for i := 0; i < rfx.TilePixels; i++ {
			shift := subbandShift(i, plane.quant) + subbandShift(i, plane.progQuant) - 1
			nb := numBits.at(i)

			if i >= rfx.OffsetLL3 {
				raw := int16(rawReader.GetBits(nb))
				tile.Current[p][i] += raw << uint(shift)
				continue
			}

			switch {
			case tile.Sign[p][i] > 0:
				raw := int16(rawReader.GetBits(nb))
				tile.Current[p][i] += raw << uint(shift)
			case tile.Sign[p][i] < 0:
				raw := int16(rawReader.GetBits(nb))
				tile.Current[p][i] += -raw << uint(shift)
			default:
				v := srl.next(nb)
				if v > 0 {
					tile.Sign[p][i] = 1
				} else if v < 0 {
					tile.Sign[p][i] = -1
				}
				tile.Current[p][i] += v << uint(shift)
			}
		}

		*plane.oldBitPos = newPos
	}

	tile.ProgQuantIdxY, tile.ProgQuantIdxCb, tile.ProgQuantIdxCr = in.ProgQuantIdxY, in.ProgQuantIdxCb, in.ProgQuantIdxCr

	surface.markUpdated(tile.ZIdx)
	tile.Pass++
	return tile, nil
}

// subbandShift returns the dequantization shift applicable to
// coefficient index i within a 4096-element tile buffer.
func subbandShift(i int, q *rfx.SubbandQuant) int {
	switch {
	case i < rfx.OffsetLH1:
		return int(q.HL1)
	case i < rfx.OffsetHH1:
		return int(q.LH1)
	case i < rfx.OffsetHL2:
		return int(q.HH1)
	case i < rfx.OffsetLH2:
		return int(q.HL2)
	case i < rfx.OffsetHH2:
		return int(q.LH2)
	case i < rfx.OffsetHL3:
		return int(q.HH2)
	case i < rfx.OffsetLH3:
		return int(q.HL3)
	case i < rfx.OffsetHH3:
		return int(q.LH3)
	case i < rfx.OffsetLL3:
		return int(q.HH3)
	default:
		return int(q.LL3)
	}
}

// subbandBitPos tracks per-subband bit position state across
// progressive upgrade passes, mirroring FreeRDP's
// RFX_COMPONENT_CODEC_QUANT-shaped tile->yBitPos/cbBitPos/crBitPos.
type subbandBitPos struct {
	LL3, LH3, HL3, HH3, LH2, HL2, HH2, LH1, HL1, HH1 int
}

// newBitPos computes quant+progQuant per subband: the bit position a
// tile's coefficients reach once a pass's progressive quant is applied.
func newBitPos(quant, progQuant *rfx.SubbandQuant) subbandBitPos {
	return subbandBitPos{
		LL3: int(quant.LL3) + int(progQuant.LL3),
		LH3: int(quant.LH3) + int(progQuant.LH3),
		HL3: int(quant.HL3) + int(progQuant.HL3),
		HH3: int(quant.HH3) + int(progQuant.HH3),
		LH2: int(quant.LH2) + int(progQuant.LH2),
		HL2: int(quant.HL2) + int(progQuant.HL2),
		HH2: int(quant.HH2) + int(progQuant.HH2),
		LH1: int(quant.LH1) + int(progQuant.LH1),
		HL1: int(quant.HL1) + int(progQuant.HL1),
		HH1: int(quant.HH1) + int(progQuant.HH1),
	}
}

// sub returns b minus other per subband: the number of new refinement
// bits an upgrade pass contributes, given the bit position the tile
// held before the pass (b) and the bit position it reaches after (other).
func (b subbandBitPos) sub(other subbandBitPos) subbandBitPos {
	return subbandBitPos{
		LL3: b.LL3 - other.LL3,
		LH3: b.LH3 - other.LH3,
		HL3: b.HL3 - other.HL3,
		HH3: b.HH3 - other.HH3,
		LH2: b.LH2 - other.LH2,
		HL2: b.HL2 - other.HL2,
		HH2: b.HH2 - other.HH2,
		LH1: b.LH1 - other.LH1,
		HL1: b.HL1 - other.HL1,
		HH1: b.HH1 - other.HH1,
	}
}

// at returns the bit position value applicable to coefficient index i
// within a 4096-element tile buffer, using the same subband layout as
// subbandShift.
func (b subbandBitPos) at(i int) int {
	switch {
	case i < rfx.OffsetLH1:
		return b.HL1
	case i < rfx.OffsetHH1:
		return b.LH1
	case i < rfx.OffsetHL2:
		return b.HH1
	case i < rfx.OffsetLH2:
		return b.HL2
	case i < rfx.OffsetHH2:
		return b.LH2
	case i < rfx.OffsetHL3:
		return b.HH2
	case i < rfx.OffsetLH3:
		return b.HL3
	case i < rfx.OffsetHH3:
		return b.LH3
	case i < rfx.OffsetLL3:
		return b.HH3
	default:
		return b.LL3
	}
}
