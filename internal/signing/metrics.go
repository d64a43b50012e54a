package signing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	batchesSigned      prometheus.Counter
	documentsSigned    prometheus.Counter
	confirmations      *prometheus.CounterVec
	validationDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		batchesSigned: f.NewCounter(prometheus.CounterOpts{
			Name: "compliancedesk_signing_batches_total",
			Help: "Signing batches recorded",
		}),
		documentsSigned: f.NewCounter(prometheus.CounterOpts{
			Name: "compliancedesk_signing_documents_total",
			Help: "Documents accepted into a signing batch",
		}),
		confirmations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliancedesk_signing_confirmations_total",
			Help: "Email confirmations by outcome",
		}, []string{"outcome"}),
		validationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "compliancedesk_signing_batch_validation_seconds",
			Help:    "Time spent validating a batch",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) confirmed(outcome string) {
	if m != nil {
		m.confirmations.WithLabelValues(outcome).Inc()
	}
}
