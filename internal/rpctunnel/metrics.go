package rpctunnel

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for RPC/RTS tunnel traffic.
// All methods are nil-safe: calls on a nil *Metrics are no-ops.
type Metrics struct {
	BytesSent       prometheus.Counter
	BytesReceived   prometheus.Counter
	FlowControlAcks prometheus.Counter
	KeepAlives      prometheus.Counter
	State           *prometheus.GaugeVec
}

// NewMetrics creates and registers tunnel metrics with reg. If reg is
// nil, the collectors are created but never registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdpwire",
			Subsystem: "rpctunnel",
			Name:      "bytes_sent_total",
			Help:      "Total bytes sent on the IN channel",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdpwire",
			Subsystem: "rpctunnel",
			Name:      "bytes_received_total",
			Help:      "Total bytes received on the OUT channel",
		}),
		FlowControlAcks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdpwire",
			Subsystem: "rpctunnel",
			Name:      "flow_control_acks_total",
			Help:      "Total FlowControlAck PDUs sent on the IN channel",
		}),
		KeepAlives: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdpwire",
			Subsystem: "rpctunnel",
			Name:      "keepalives_sent_total",
			Help:      "Total KeepAlive PDUs sent on the IN channel",
		}),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rdpwire",
			Subsystem: "rpctunnel",
			Name:      "vc_state",
			Help:      "Current virtual connection handshake state (1 for the active state, else 0)",
		}, []string{"state"}),
	}

	if reg != nil {
		m.BytesSent = registerOrReuse(reg, m.BytesSent).(prometheus.Counter)
		m.BytesReceived = registerOrReuse(reg, m.BytesReceived).(prometheus.Counter)
		m.FlowControlAcks = registerOrReuse(reg, m.FlowControlAcks).(prometheus.Counter)
		m.KeepAlives = registerOrReuse(reg, m.KeepAlives).(prometheus.Counter)
		m.State = registerOrReuse(reg, m.State).(*prometheus.GaugeVec)
	}

	return m
}

func (m *Metrics) recordSent(n int) {
	if m == nil {
		return
	}
	m.BytesSent.Add(float64(n))
}

func (m *Metrics) recordReceived(n int) {
	if m == nil {
		return
	}
	m.BytesReceived.Add(float64(n))
}

func (m *Metrics) recordFlowControlAck() {
	if m == nil {
		return
	}
	m.FlowControlAcks.Inc()
}

func (m *Metrics) recordKeepAlive() {
	if m == nil {
		return
	}
	m.KeepAlives.Inc()
}

func (m *Metrics) recordState(s VCState) {
	if m == nil {
		return
	}
	for _, name := range vcStateNames {
		v := 0.0
		if name == s.String() {
			v = 1
		}
		m.State.WithLabelValues(name).Set(v)
	}
}

var vcStateNames = []string{
	VCInitial.String(),
	VCOutChannelWait.String(),
	VCWaitA3W.String(),
	VCWaitC2.String(),
	VCOpened.String(),
	VCFinal.String(),
}

func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}
