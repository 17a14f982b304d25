// Package progressive implements the RDPEGFX progressive codec layered
// on top of internal/codec/rfx: a per-surface tile cache that survives
// across frames, first-pass tile decode, and SRL/RAW upgrade passes
// that refine previously-decoded coefficients bit by bit. Modeled on
// FreeRDP's codec/progressive.c tile state machine.
package progressive

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dvorak-labs/rdpwire/internal/codec/rfx"
)

// Block types carried by the progressive wire format, layered on top
// of the RFX block-type space.
const (
	BlockSync        uint16 = 0xCCC8
	BlockFrameBegin  uint16 = 0xCCC9
	BlockFrameEnd    uint16 = 0xCCCA
	BlockContext     uint16 = 0xCCCB
	BlockRegion      uint16 = 0xCCCC
	BlockTileSimple  uint16 = 0xCCCD
	BlockTileFirst   uint16 = 0xCCCE
	BlockTileUpgrade uint16 = 0xCCCF
)

// Tile difference flag (RFX_TILE_DIFFERENCE).
const flagTileDifference uint16 = 0x01

var (
	ErrInvalidZIdx      = errors.New("progressive: tile zIdx outside grid bounds")
	ErrTruncatedPass     = errors.New("progressive: upgrade pass consumed fewer bits than declared")
	ErrSurfaceDimensions = errors.New("progressive: surface has zero width or height")
)

// planeBufferSize mirrors FreeRDP's per-plane tile buffer allocation:
// the 4096-coefficient tile plus headroom for in-place refinement.
const planeBufferSize = rfx.TilePixels + 32

// Tile is one 64x64 cell's persistent progressive decode state,
// carried across frames so later upgrade passes can refine it further.
type Tile struct {
	XIdx, YIdx uint16
	ZIdx       uint32

	Current [3][]int16 // reconstructed coefficients to date, per plane (Y, Cb, Cr)
	Sign    [3][]int8  // per-coefficient sign track for progressive refinement

	YBitPos, CbBitPos, CrBitPos subbandBitPos

	QuantIdxY, QuantIdxCb, QuantIdxCr uint8
	ProgQuantIdxY, ProgQuantIdxCb, ProgQuantIdxCr uint8

	Pass    int
	Quality uint8
}

func newTile(xIdx, yIdx uint16, zIdx uint32) *Tile {
	t := &Tile{XIdx: xIdx, YIdx: yIdx, ZIdx: zIdx}
	for p := 0; p < 3; p++ {
		t.Current[p] = make([]int16, planeBufferSize)
		t.Sign[p] = make([]int8, planeBufferSize)
	}
	return t
}

// fullyRefined reports whether the tile has received its final quality pass.
func (t *Tile) fullyRefined() bool {
	return t.Quality == 0xFF
}

// Surface is the per-remote-surface progressive decode context:
// dimensions, tile grid, and the frame id last served.
type Surface struct {
	SurfaceID     uint16
	Width, Height uint32
	GridWidth     uint32
	GridHeight    uint32

	tiles       []*Tile // dynamically growable, indexed by zIdx
	updated     []uint32 // zIdx of tiles touched in the current frame
	lastFrameID uint32
	mu          sync.Mutex // guards updated/tiles growth during parallel tile dispatch

	metrics *Metrics
}

// SetMetrics attaches a Metrics collector to the surface. Passing nil
// disables metrics recording.
func (s *Surface) SetMetrics(m *Metrics) {
	s.metrics = m
}

// NewSurface creates a progressive context for a surface of the given
// pixel dimensions, computing its tile grid as ceil(w/64) x ceil(h/64).
func NewSurface(surfaceID uint16, width, height uint32) (*Surface, error) {
	if width == 0 || height == 0 {
		return nil, ErrSurfaceDimensions
	}
	gridW := (width + rfx.TileSize - 1) / rfx.TileSize
	gridH := (height + rfx.TileSize - 1) / rfx.TileSize
	return &Surface{
		SurfaceID:  surfaceID,
		Width:      width,
		Height:     height,
		GridWidth:  gridW,
		GridHeight: gridH,
		tiles:      make([]*Tile, gridW*gridH),
	}, nil
}

// gridSize returns the total number of grid cells.
func (s *Surface) gridSize() uint32 {
	return s.GridWidth * s.GridHeight
}

// TileAt returns the persistent tile state for (xIdx, yIdx), creating
// it (and growing the tile cache if necessary) on first access.
func (s *Surface) TileAt(xIdx, yIdx uint16) (*Tile, error) {
	zIdx := uint32(yIdx)*s.GridWidth + uint32(xIdx)
	if zIdx >= s.gridSize() {
		return nil, ErrInvalidZIdx
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.growTo(zIdx)
	if s.tiles[zIdx] == nil {
		s.tiles[zIdx] = newTile(xIdx, yIdx, zIdx)
		s.metrics.setActiveTiles(surfaceLabel(s.SurfaceID), float64(len(s.tiles)))
	}
	return s.tiles[zIdx], nil
}

func surfaceLabel(id uint16) string {
	return fmt.Sprintf("%d", id)
}

// growTo doubles the tile cache's backing array until it can hold
// index idx, preserving all existing entries.
func (s *Surface) growTo(idx uint32) {
	if idx < uint32(len(s.tiles)) {
		return
	}
	newCap := len(s.tiles)
	if newCap == 0 {
		newCap = 1
	}
	for uint32(newCap) <= idx {
		newCap *= 2
	}
	grown := make([]*Tile, newCap)
	copy(grown, s.tiles)
	s.tiles = grown
}

// BeginFrame resets the updated-tile tracker when frameID differs from
// the last frame served, per the surface-level ordering invariant.
func (s *Surface) BeginFrame(frameID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if frameID != s.lastFrameID {
		s.updated = s.updated[:0]
		s.lastFrameID = frameID
	}
}

// markUpdated records a tile as touched in the current frame, in
// region-block insertion order (not grid order).
func (s *Surface) markUpdated(zIdx uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, zIdx)
}

// UpdatedTiles returns the tiles touched in the current frame, in the
// order they were processed.
func (s *Surface) UpdatedTiles() []*Tile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Tile, 0, len(s.updated))
	for _, z := range s.updated {
		out = append(out, s.tiles[z])
	}
	return out
}
