package rfx

import (
	"encoding/binary"
)

// DecodeTile decodes a single RFX tile from compressed data.
// data: raw tile data starting with CBT_TILE block header
// quantY, quantCb, quantCr: quantization values for each component
func DecodeTile(data []byte, quantY, quantCb, quantCr *SubbandQuant) (*Tile, error) {
	if len(data) < 19 { // Minimum tile header size
		return nil, ErrInvalidTileData
	}

	offset := 0

	// Parse block header
	blockType := binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	if blockType != CBT_TILE {
		return nil, ErrInvalidBlockType
	}

	blockLen := binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	if int(blockLen) > len(data) {
		return nil, ErrInvalidBlockLength
	}

	// Parse tile header (MS-RDPRFX 2.2.4.4)
	// quantIdxY := data[offset]
	// quantIdxCb := data[offset+1]
	// quantIdxCr := data[offset+2]
	offset += 3

	xIdx := binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	yIdx := binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	// Component data sizes
	yLen := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2

	cbLen := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2

	crLen := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2

	// Validate lengths
	if offset+yLen+cbLen+crLen > len(data) {
		return nil, ErrInvalidTileData
	}

	// Extract component data
	yData := data[offset : offset+yLen]
	offset += yLen

	cbData := data[offset : offset+cbLen]
	offset += cbLen

	crData := data[offset : offset+crLen]

	// Allocate coefficient buffers
	yCoeff := make([]int16, TilePixels)
	cbCoeff := make([]int16, TilePixels)
	crCoeff := make([]int16, TilePixels)

	// RLGR decode each component
	if err := RLGRDecode(yData, RLGR1, yCoeff); err != nil {
		return nil, err
	}
	if err := RLGRDecode(cbData, RLGR3, cbCoeff); err != nil {
		return nil, err
	}
	if err := RLGRDecode(crData, RLGR3, crCoeff); err != nil {
		return nil, err
	}

	// Differential decode LL3 subband (DC coefficients)
	DifferentialDecode(yCoeff[OffsetLL3:], SizeL3)
	DifferentialDecode(cbCoeff[OffsetLL3:], SizeL3)
	DifferentialDecode(crCoeff[OffsetLL3:], SizeL3)

	// Dequantize
	Dequantize(yCoeff, quantY)
	Dequantize(cbCoeff, quantCb)
	Dequantize(crCoeff, quantCr)

	// Inverse DWT
	yPixels := InverseDWT2D(yCoeff)
	cbPixels := InverseDWT2D(cbCoeff)
	crPixels := InverseDWT2D(crCoeff)

	// Color convert to RGBA
	rgba := make([]byte, TileRGBASize)
	YCbCrToRGBA(yPixels, cbPixels, crPixels, rgba)

	return &Tile{
		X:    xIdx,
		Y:    yIdx,
		RGBA: rgba,
	}, nil
}

// EncodeTile compresses a 64×64 RGBA tile into an RFX CBT_TILE block,
// the inverse of DecodeTile.
func EncodeTile(rgba []byte, xIdx, yIdx uint16, quantIdxY, quantIdxCb, quantIdxCr uint8, quantY, quantCb, quantCr *SubbandQuant) ([]byte, error) {
	if len(rgba) < TileRGBASize {
		return nil, ErrInvalidTileData
	}

	yCoeff := make([]int16, TilePixels)
	cbCoeff := make([]int16, TilePixels)
	crCoeff := make([]int16, TilePixels)

	RGBAToYCbCr(rgba, yCoeff, cbCoeff, crCoeff)

	ForwardDWT2D(yCoeff)
	ForwardDWT2D(cbCoeff)
	ForwardDWT2D(crCoeff)

	Quantize(yCoeff, quantY)
	Quantize(cbCoeff, quantCb)
	Quantize(crCoeff, quantCr)

	DifferentialEncode(yCoeff[OffsetLL3:], SizeL3)
	DifferentialEncode(cbCoeff[OffsetLL3:], SizeL3)
	DifferentialEncode(crCoeff[OffsetLL3:], SizeL3)

	yData, err := RLGREncode(yCoeff, RLGR1)
	if err != nil {
		return nil, err
	}
	cbData, err := RLGREncode(cbCoeff, RLGR3)
	if err != nil {
		return nil, err
	}
	crData, err := RLGREncode(crCoeff, RLGR3)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 13)
	header[0] = quantIdxY
	header[1] = quantIdxCb
	header[2] = quantIdxCr
	binary.LittleEndian.PutUint16(header[3:], xIdx)
	binary.LittleEndian.PutUint16(header[5:], yIdx)
	binary.LittleEndian.PutUint16(header[7:], uint16(len(yData)))
	binary.LittleEndian.PutUint16(header[9:], uint16(len(cbData)))
	binary.LittleEndian.PutUint16(header[11:], uint16(len(crData)))

	blockLen := uint32(6 + len(header) + len(yData) + len(cbData) + len(crData))

	out := make([]byte, 0, blockLen)
	blockHeader := make([]byte, 6)
	binary.LittleEndian.PutUint16(blockHeader[0:], CBT_TILE)
	binary.LittleEndian.PutUint32(blockHeader[2:], blockLen)

	out = append(out, blockHeader...)
	out = append(out, header...)
	out = append(out, yData...)
	out = append(out, cbData...)
	out = append(out, crData...)

	return out, nil
}

// DecodeTileWithBuffers decodes a tile into caller-supplied coefficient
// and RGBA buffers, avoiding the per-tile allocations DecodeTile makes.
// parseTilesetBlock reuses one set of coefficient buffers across every
// tile in a CBT_TILESET, since each call fully overwrites them.
func DecodeTileWithBuffers(
	data []byte,
	quantY, quantCb, quantCr *SubbandQuant,
	yCoeff, cbCoeff, crCoeff []int16,
	rgba []byte,
) (xIdx, yIdx uint16, err error) {
	if len(data) < 19 {
		return 0, 0, ErrInvalidTileData
	}

	offset := 0

	// Parse block header
	blockType := binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	if blockType != CBT_TILE {
		return 0, 0, ErrInvalidBlockType
	}

	blockLen := binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	if int(blockLen) > len(data) {
		return 0, 0, ErrInvalidBlockLength
	}

	// Skip quant indices
	offset += 3

	xIdx = binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	yIdx = binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	yLen := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2

	cbLen := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2

	crLen := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2

	if offset+yLen+cbLen+crLen > len(data) {
		return 0, 0, ErrInvalidTileData
	}

	// RLGR decode
	if err := RLGRDecode(data[offset:offset+yLen], RLGR1, yCoeff); err != nil {
		return 0, 0, err
	}
	offset += yLen

	if err := RLGRDecode(data[offset:offset+cbLen], RLGR3, cbCoeff); err != nil {
		return 0, 0, err
	}
	offset += cbLen

	if err := RLGRDecode(data[offset:offset+crLen], RLGR3, crCoeff); err != nil {
		return 0, 0, err
	}

	// Differential decode LL3 subband (DC coefficients)
	DifferentialDecode(yCoeff[OffsetLL3:], SizeL3)
	DifferentialDecode(cbCoeff[OffsetLL3:], SizeL3)
	DifferentialDecode(crCoeff[OffsetLL3:], SizeL3)

	// Dequantize
	Dequantize(yCoeff, quantY)
	Dequantize(cbCoeff, quantCb)
	Dequantize(crCoeff, quantCr)

	// Inverse DWT
	yPixels := InverseDWT2D(yCoeff)
	cbPixels := InverseDWT2D(cbCoeff)
	crPixels := InverseDWT2D(crCoeff)

	// Color convert
	YCbCrToRGBA(yPixels, cbPixels, crPixels, rgba)

	return xIdx, yIdx, nil
}
