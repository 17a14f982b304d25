package rpctunnel

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.recordSent(10)
		m.recordReceived(10)
		m.recordFlowControlAck()
		m.recordKeepAlive()
		m.recordState(VCOpened)
	})
}

func TestMetrics_RecordsTrafficAndState(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	tun := &Tunnel{vc: NewVirtualConnection()}
	tun.SetMetrics(m)

	tun.metrics.recordSent(42)
	tun.metrics.recordReceived(7)
	tun.metrics.recordFlowControlAck()
	tun.vc.State = VCOpened
	tun.metrics.recordState(tun.vc.State)

	assertCounter(t, m.BytesSent, 42)
	assertCounter(t, m.BytesReceived, 7)
	assertCounter(t, m.FlowControlAcks, 1)

	gauge := &dto.Metric{}
	g, err := m.State.GetMetricWithLabelValues("OPENED")
	require.NoError(t, err)
	require.NoError(t, g.Write(gauge))
	require.Equal(t, float64(1), gauge.GetGauge().GetValue())

	g2, err := m.State.GetMetricWithLabelValues("INITIAL")
	require.NoError(t, err)
	gauge2 := &dto.Metric{}
	require.NoError(t, g2.Write(gauge2))
	require.Equal(t, float64(0), gauge2.GetGauge().GetValue())
}

func assertCounter(t *testing.T, c prometheus.Counter, want float64) {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, c.Write(metric))
	require.Equal(t, want, metric.GetCounter().GetValue())
}
