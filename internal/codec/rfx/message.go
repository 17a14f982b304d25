package rfx

import (
	"encoding/binary"
	"fmt"
)

// ParseRFXMessage parses a complete RFX message and returns decoded tiles.
func ParseRFXMessage(data []byte, ctx *Context) (*Frame, error) {
	if len(data) < 6 {
		return nil, ErrInvalidBlockLength
	}

	frame := &Frame{
		Tiles: make([]*Tile, 0),
	}

	offset := 0

	for offset < len(data) {
		if offset+6 > len(data) {
			break
		}

		blockType := binary.LittleEndian.Uint16(data[offset:])
		blockLen := int(binary.LittleEndian.Uint32(data[offset+2:]))

		if blockLen < 6 || offset+blockLen > len(data) {
			return nil, fmt.Errorf("%w: block at offset %d", ErrInvalidBlockLength, offset)
		}

		blockData := data[offset : offset+blockLen]

		switch blockType {
		case WBT_SYNC:
			if err := parseSyncBlock(blockData); err != nil {
				return nil, err
			}

		case WBT_CODEC_VERSIONS:
			// Contains codec version info, usually just verification

		case WBT_CHANNELS:
			// Contains channel info (usually just channel 0)

		case WBT_CONTEXT:
			if err := parseContextBlock(blockData, ctx); err != nil {
				return nil, err
			}

		case WBT_FRAME_BEGIN:
			frameIdx, err := parseFrameBegin(blockData)
			if err != nil {
				return nil, err
			}
			frame.FrameIdx = frameIdx

		case WBT_REGION:
			rects, err := parseRegionBlock(blockData)
			if err != nil {
				return nil, err
			}
			frame.Rects = rects

		case WBT_TILESET:
			tiles, err := parseTilesetBlock(blockData, ctx)
			if err != nil {
				return nil, err
			}
			frame.Tiles = append(frame.Tiles, tiles...)

		case WBT_FRAME_END:
			// Frame complete

		case WBT_EXTENSION:
			// Extension block, skip for now
		}

		offset += blockLen
	}

	return frame, nil
}

// BuildRFXMessage assembles a complete RFX message (sync, codec
// versions, channels, context, frame begin, region, tileset, frame end)
// from already-encoded tiles, the inverse of ParseRFXMessage.
func BuildRFXMessage(ctx *Context, frameIdx uint32, rects []Rect, tiles [][]byte, quant []*SubbandQuant) []byte {
	var out []byte

	out = append(out, buildSyncBlock()...)
	out = append(out, buildCodecVersionsBlock()...)
	out = append(out, buildChannelsBlock()...)
	out = append(out, buildContextBlock(ctx)...)
	out = append(out, buildFrameBeginBlock(frameIdx)...)
	out = append(out, buildRegionBlock(rects)...)
	out = append(out, buildTilesetBlock(tiles, quant)...)
	out = append(out, buildFrameEndBlock()...)

	return out
}

func blockHeader(blockType uint16, payloadLen int) []byte {
	h := make([]byte, 6)
	binary.LittleEndian.PutUint16(h[0:], blockType)
	binary.LittleEndian.PutUint32(h[2:], uint32(6+payloadLen))
	return h
}

func buildSyncBlock() []byte {
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint32(payload[0:], 0xCACCACCA)
	binary.LittleEndian.PutUint16(payload[4:], CLW_VERSION_1_0)
	return append(blockHeader(WBT_SYNC, len(payload)), payload...)
}

func buildCodecVersionsBlock() []byte {
	payload := []byte{1, 0, 0, 1}
	return append(blockHeader(WBT_CODEC_VERSIONS, len(payload)), payload...)
}

func buildChannelsBlock() []byte {
	payload := []byte{1, 0, 0, 0, 0}
	return append(blockHeader(WBT_CHANNELS, len(payload)), payload...)
}

func buildContextBlock(ctx *Context) []byte {
	payload := make([]byte, 7)
	payload[0] = 0 // ctxId
	binary.LittleEndian.PutUint16(payload[1:], CT_TILE_64x64)
	if ctx != nil {
		binary.LittleEndian.PutUint16(payload[3:], ctx.Width)
		binary.LittleEndian.PutUint16(payload[5:], ctx.Height)
	}
	return append(blockHeader(WBT_CONTEXT, len(payload)), payload...)
}

func buildFrameBeginBlock(frameIdx uint32) []byte {
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint32(payload[0:], frameIdx)
	binary.LittleEndian.PutUint16(payload[4:], 1) // numRegions
	return append(blockHeader(WBT_FRAME_BEGIN, len(payload)), payload...)
}

func buildFrameEndBlock() []byte {
	return blockHeader(WBT_FRAME_END, 0)
}

func buildRegionBlock(rects []Rect) []byte {
	payload := make([]byte, 0, 3+8*len(rects))
	payload = append(payload, 0x01) // regionFlags
	numRects := make([]byte, 2)
	binary.LittleEndian.PutUint16(numRects, uint16(len(rects)))
	payload = append(payload, numRects...)

	for _, r := range rects {
		rb := make([]byte, 8)
		binary.LittleEndian.PutUint16(rb[0:], r.X)
		binary.LittleEndian.PutUint16(rb[2:], r.Y)
		binary.LittleEndian.PutUint16(rb[4:], r.Width)
		binary.LittleEndian.PutUint16(rb[6:], r.Height)
		payload = append(payload, rb...)
	}

	return append(blockHeader(WBT_REGION, len(payload)), payload...)
}

func buildTilesetBlock(tiles [][]byte, quant []*SubbandQuant) []byte {
	payload := make([]byte, 0, 9+5*len(quant))
	payload = append(payload, 0, 0) // subtype
	payload = append(payload, 0, 0) // idx
	payload = append(payload, 0, 0) // flags
	payload = append(payload, byte(len(quant)))
	payload = append(payload, TileSize)

	numTiles := make([]byte, 2)
	binary.LittleEndian.PutUint16(numTiles, uint16(len(tiles)))
	payload = append(payload, numTiles...)

	tileDataSize := 0
	for _, t := range tiles {
		tileDataSize += len(t)
	}
	sizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBuf, uint32(tileDataSize))
	payload = append(payload, sizeBuf...)

	for _, q := range quant {
		payload = append(payload, packQuantValues(q)...)
	}

	for _, t := range tiles {
		payload = append(payload, t...)
	}

	return append(blockHeader(WBT_TILESET, len(payload)), payload...)
}

// packQuantValues packs a SubbandQuant into the 5-byte nibble-paired
// wire form ParseQuantValues reads.
func packQuantValues(q *SubbandQuant) []byte {
	if q == nil {
		q = DefaultQuant()
	}
	return []byte{
		q.LL3&0x0F | (q.LH3&0x0F)<<4,
		q.HL3&0x0F | (q.HH3&0x0F)<<4,
		q.LH2&0x0F | (q.HL2&0x0F)<<4,
		q.HH2&0x0F | (q.LH1&0x0F)<<4,
		q.HL1&0x0F | (q.HH1&0x0F)<<4,
	}
}

func parseSyncBlock(data []byte) error {
	if len(data) < 12 {
		return ErrInvalidBlockLength
	}
	magic := binary.LittleEndian.Uint32(data[6:])
	version := binary.LittleEndian.Uint16(data[10:])
	// Verify magic == 0xCACCACCA and version == 0x0100
	if magic != 0xCACCACCA || version != CLW_VERSION_1_0 {
		return fmt.Errorf("rfx: invalid sync block (magic 0x%08X, version 0x%04X)", magic, version)
	}
	return nil
}

func parseContextBlock(data []byte, ctx *Context) error {
	if len(data) < 13 {
		return ErrInvalidBlockLength
	}

	offset := 6 // Skip block header

	// ctxId := data[offset]
	offset++

	// tileSize := binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	ctx.Width = binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	ctx.Height = binary.LittleEndian.Uint16(data[offset:])

	return nil
}

func parseFrameBegin(data []byte) (uint32, error) {
	if len(data) < 14 {
		return 0, ErrInvalidBlockLength
	}

	frameIdx := binary.LittleEndian.Uint32(data[6:])
	// numRegions := binary.LittleEndian.Uint16(data[10:])

	return frameIdx, nil
}

func parseRegionBlock(data []byte) ([]Rect, error) {
	if len(data) < 15 {
		return nil, ErrInvalidBlockLength
	}

	offset := 6 // Skip block header

	// regionFlags := data[offset]
	offset++

	numRects := binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	rects := make([]Rect, numRects)

	for i := uint16(0); i < numRects && offset+8 <= len(data); i++ {
		rects[i] = Rect{
			X:      binary.LittleEndian.Uint16(data[offset:]),
			Y:      binary.LittleEndian.Uint16(data[offset+2:]),
			Width:  binary.LittleEndian.Uint16(data[offset+4:]),
			Height: binary.LittleEndian.Uint16(data[offset+6:]),
		}
		offset += 8
	}

	return rects, nil
}

func parseTilesetBlock(data []byte, ctx *Context) ([]*Tile, error) {
	if len(data) < 22 {
		return nil, ErrInvalidBlockLength
	}

	offset := 6 // Skip block header

	// subtype := binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	// idx := binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	// flags := binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	numQuant := data[offset]
	offset++

	// tileSize := data[offset]
	offset++

	numTiles := binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	// tileDataSize := binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	// Parse quantization tables
	quantTables := make([]*SubbandQuant, numQuant)
	for i := uint8(0); i < numQuant && offset+5 <= len(data); i++ {
		quant, err := ParseQuantValues(data[offset:])
		if err != nil {
			return nil, err
		}
		quantTables[i] = quant
		offset += 5
	}

	// Parse tiles. Coefficient scratch buffers are allocated once and
	// reused across every tile in the set, since DecodeTileWithBuffers
	// fully overwrites them before the inverse DWT/color convert stage;
	// only the returned RGBA buffer is allocated per tile, as it is
	// retained on the decoded Tile.
	tiles := make([]*Tile, 0, numTiles)
	yCoeff := make([]int16, TilePixels)
	cbCoeff := make([]int16, TilePixels)
	crCoeff := make([]int16, TilePixels)

	for i := uint16(0); i < numTiles && offset < len(data); i++ {
		if offset+6 > len(data) {
			break
		}

		tileBlockType := binary.LittleEndian.Uint16(data[offset:])
		if tileBlockType != CBT_TILE {
			break
		}

		tileBlockLen := int(binary.LittleEndian.Uint32(data[offset+2:]))
		if offset+tileBlockLen > len(data) {
			break
		}

		// Get quant indices from tile header
		quantIdxY := data[offset+6]
		quantIdxCb := data[offset+7]
		quantIdxCr := data[offset+8]

		// Get quant tables (with bounds checking)
		quantY := DefaultQuant()
		quantCb := DefaultQuant()
		quantCr := DefaultQuant()

		if int(quantIdxY) < len(quantTables) && quantTables[quantIdxY] != nil {
			quantY = quantTables[quantIdxY]
		}
		if int(quantIdxCb) < len(quantTables) && quantTables[quantIdxCb] != nil {
			quantCb = quantTables[quantIdxCb]
		}
		if int(quantIdxCr) < len(quantTables) && quantTables[quantIdxCr] != nil {
			quantCr = quantTables[quantIdxCr]
		}

		rgba := make([]byte, TileRGBASize)
		xIdx, yIdx, err := DecodeTileWithBuffers(data[offset:offset+tileBlockLen], quantY, quantCb, quantCr, yCoeff, cbCoeff, crCoeff, rgba)
		if err != nil {
			// Log error but continue with other tiles
			offset += tileBlockLen
			continue
		}

		tiles = append(tiles, &Tile{X: xIdx, Y: yIdx, RGBA: rgba})
		offset += tileBlockLen
	}

	return tiles, nil
}
