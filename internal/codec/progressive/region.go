package progressive

import (
	"context"

	"github.com/dvorak-labs/rdpwire/internal/codec/rfx"
	"golang.org/x/sync/errgroup"
)

// RegionTile pairs a tile's wire input with which pass it carries.
type RegionTile struct {
	First   *FirstPassInput
	Upgrade *UpgradePassInput
}

// DecodeRegion dispatches every tile in a region to a worker pool of
// size workers (0 or negative means unbounded, one goroutine per
// tile), honoring the invariant that the context's quantization
// tables are read-only and each worker only ever touches the tile
// buffers it owns. Results preserve the region block's insertion
// order, not grid order.
func DecodeRegion(ctx context.Context, surface *Surface, frameID uint32, tiles []RegionTile, quantTable, progQuantTable []*rfx.SubbandQuant, progQuantIdxY, progQuantIdxCb, progQuantIdxCr uint8, workers int) ([]*Tile, error) {
	surface.BeginFrame(frameID)

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	results := make([]*Tile, len(tiles))

	for i, rt := range tiles {
		i, rt := i, rt
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			switch {
			case rt.First != nil:
				tile, err := DecodeFirstPass(surface, *rt.First, quantTable, progQuantTable, progQuantIdxY, progQuantIdxCb, progQuantIdxCr)
				if err != nil {
					surface.metrics.recordError("first")
					return err
				}
				surface.metrics.recordDecoded("first")
				results[i] = tile
			case rt.Upgrade != nil:
				tile, err := DecodeUpgradePass(surface, *rt.Upgrade, quantTable, progQuantTable)
				if err != nil {
					surface.metrics.recordError("upgrade")
					return err
				}
				surface.metrics.recordDecoded("upgrade")
				results[i] = tile
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
