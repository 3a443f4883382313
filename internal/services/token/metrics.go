package token

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	issued    *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	rotations prometheus.Counter
	graceHits prometheus.Counter
	reuse     prometheus.Counter
	swept     *prometheus.CounterVec
	sweepErr  prometheus.Counter
	sweepDur  prometheus.Histogram
}

// NewMetrics registers token metrics on reg. A nil reg yields metrics that
// are not exported anywhere.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		issued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_tokens_issued_total", Help: "Tokens issued by kind",
		}, []string{"kind"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_tokens_rejected_total", Help: "Failed token validations by kind",
		}, []string{"kind"}),
		rotations: f.NewCounter(prometheus.CounterOpts{
			Name: "aegis_refresh_rotations_total", Help: "Refresh tokens rotated",
		}),
		graceHits: f.NewCounter(prometheus.CounterOpts{
			Name: "aegis_refresh_grace_retries_total", Help: "Used refresh tokens replayed inside the grace period",
		}),
		reuse: f.NewCounter(prometheus.CounterOpts{
			Name: "aegis_refresh_reuse_detected_total", Help: "Refresh families revoked after stale replay",
		}),
		swept: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_tokens_swept_total", Help: "Expired tokens deleted by kind",
		}, []string{"kind"}),
		sweepErr: f.NewCounter(prometheus.CounterOpts{
			Name: "aegis_token_sweep_errors_total", Help: "Failed cleanup runs",
		}),
		sweepDur: f.NewHistogram(prometheus.HistogramOpts{
			Name: "aegis_token_sweep_duration_seconds", Help: "Cleanup run duration",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

const (
	kindAuth         = "auth"
	kindRefresh      = "refresh"
	kindVerification = "email_verification"
	kindReset        = "password_reset"
	kindEmailChange  = "email_change"
)
