package progressive

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.recordDecoded("first")
		m.recordError("upgrade")
		m.setActiveTiles("1", 3)
	})
}

func TestMetrics_RecordsTileDecode(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	surface, err := NewSurface(1, 128, 128)
	require.NoError(t, err)
	surface.SetMetrics(m)

	tiles := []RegionTile{{First: zeroTileInput(0, 0)}}
	_, err = DecodeRegion(context.Background(), surface, 1, tiles, defaultQuantTable(), defaultQuantTable(), 0, 0, 0, 1)
	require.NoError(t, err)

	metric := &dto.Metric{}
	counter, err := m.TilesDecoded.GetMetricWithLabelValues("first")
	require.NoError(t, err)
	require.NoError(t, counter.Write(metric))
	require.Equal(t, float64(1), metric.GetCounter().GetValue())
}

func TestMetrics_ReusesAlreadyRegisteredCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewMetrics(reg)
	second := NewMetrics(reg)
	require.Same(t, first.TilesDecoded, second.TilesDecoded)
}
