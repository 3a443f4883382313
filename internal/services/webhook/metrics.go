package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	deliveries *prometheus.CounterVec
	duration   prometheus.Histogram
	overflow   prometheus.Counter
	auditErr   prometheus.Counter
}

// NewMetrics registers delivery metrics on reg. A nil reg yields metrics
// that are not exported anywhere.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_webhook_deliveries_total", Help: "Webhook delivery attempts by outcome",
		}, []string{"outcome"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name: "aegis_webhook_delivery_duration_seconds", Help: "Webhook POST duration",
			Buckets: prometheus.DefBuckets,
		}),
		overflow: f.NewCounter(prometheus.CounterOpts{
			Name: "aegis_webhook_queue_overflow_total", Help: "Deliveries run outside the worker pool because the queue was full",
		}),
		auditErr: f.NewCounter(prometheus.CounterOpts{
			Name: "aegis_webhook_audit_errors_total", Help: "Delivery attempts whose audit row could not be written",
		}),
	}
}
