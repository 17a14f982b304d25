package progressive

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for progressive tile decode
// activity. All methods are nil-safe: calls on a nil *Metrics are no-ops,
// so callers that don't care about metrics can simply skip constructing one.
type Metrics struct {
	// TilesDecoded counts tiles decoded by pass ("first" or "upgrade").
	TilesDecoded *prometheus.CounterVec

	// DecodeErrors counts tile decode failures by pass.
	DecodeErrors *prometheus.CounterVec

	// ActiveTiles tracks the current tile cache size per surface.
	ActiveTiles *prometheus.GaugeVec
}

// NewMetrics creates and registers progressive codec metrics with reg.
// If reg is nil, the collectors are created but never registered, which
// is useful in tests that don't want a global registry side effect.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TilesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rdpwire",
			Subsystem: "progressive",
			Name:      "tiles_decoded_total",
			Help:      "Total number of progressive tiles decoded, by pass",
		}, []string{"pass"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rdpwire",
			Subsystem: "progressive",
			Name:      "decode_errors_total",
			Help:      "Total number of progressive tile decode failures, by pass",
		}, []string{"pass"}),
		ActiveTiles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rdpwire",
			Subsystem: "progressive",
			Name:      "active_tiles",
			Help:      "Current size of the per-surface tile cache",
		}, []string{"surface"}),
	}

	if reg != nil {
		m.TilesDecoded = registerOrReuse(reg, m.TilesDecoded).(*prometheus.CounterVec)
		m.DecodeErrors = registerOrReuse(reg, m.DecodeErrors).(*prometheus.CounterVec)
		m.ActiveTiles = registerOrReuse(reg, m.ActiveTiles).(*prometheus.GaugeVec)
	}

	return m
}

func (m *Metrics) recordDecoded(pass string) {
	if m == nil {
		return
	}
	m.TilesDecoded.WithLabelValues(pass).Inc()
}

func (m *Metrics) recordError(pass string) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(pass).Inc()
}

func (m *Metrics) setActiveTiles(surface string, count float64) {
	if m == nil {
		return
	}
	m.ActiveTiles.WithLabelValues(surface).Set(count)
}

// registerOrReuse registers c with reg, returning the already-registered
// collector instead of panicking if the metric was already registered
// (e.g. a second Surface sharing the same registry).
func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}
