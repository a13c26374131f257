package agent

import "github.com/prometheus/client_golang/prometheus"

// Metrics wraps the Prometheus collectors an Agent reports through when
// WithMetrics is supplied. Construct with NewMetrics and register Collectors()
// with a prometheus.Registerer.
type Metrics struct {
	commandsTotal  *prometheus.CounterVec
	completedTotal *prometheus.CounterVec
	ackTableGauge  prometheus.Gauge
	noMemoryTotal  prometheus.Counter
}

// NewMetrics builds a fresh, unregistered set of collectors scoped to
// namespace (typically your service name).
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqttagent",
			Name:      "commands_dispatched_total",
			Help:      "Commands dispatched by the agent, labeled by kind.",
		}, []string{"kind"}),
		completedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqttagent",
			Name:      "commands_completed_total",
			Help:      "Commands completed by the agent, labeled by kind and terminal status.",
		}, []string{"kind", "status"}),
		ackTableGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mqttagent",
			Name:      "pending_acks",
			Help:      "Current occupancy of the pending-acknowledgment table.",
		}),
		noMemoryTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqttagent",
			Name:      "no_memory_total",
			Help:      "Commands rejected because the pending-acknowledgment table was full.",
		}),
	}
}

// Collectors returns every collector for registration, e.g.
// registerer.MustRegister(m.Collectors()...).
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.commandsTotal, m.completedTotal, m.ackTableGauge, m.noMemoryTotal}
}

func (m *Metrics) observeDispatch(kind CommandKind) {
	m.commandsTotal.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) observeCompletion(kind CommandKind, status Status) {
	m.completedTotal.WithLabelValues(kind.String(), status.Error()).Inc()
	if status == StatusNoMemory {
		m.noMemoryTotal.Inc()
	}
}

func (m *Metrics) observeAckOccupancy(n int) {
	m.ackTableGauge.Set(float64(n))
}
