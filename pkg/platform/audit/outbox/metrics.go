package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	relayed  prometheus.Counter
	failures prometheus.Counter
}

// NewMetrics registers relay counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		relayed: f.NewCounter(prometheus.CounterOpts{
			Name: "compliancedesk_audit_outbox_relayed_total",
			Help: "Audit outbox rows published to the stream",
		}),
		failures: f.NewCounter(prometheus.CounterOpts{
			Name: "compliancedesk_audit_outbox_failures_total",
			Help: "Failed audit outbox relay batches",
		}),
	}
}
