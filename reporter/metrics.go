package reporter

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes.
const (
	OutcomeAccepted    = "accepted"
	OutcomeInvalid     = "invalid"
	OutcomeImageError  = "image_error"
	OutcomeAppendError = "append_error"
)

// Metrics holds the Prometheus collectors for submissions on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	Submissions *prometheus.CounterVec
	ImageBytes  prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hazard_reports_submitted_total",
			Help: "Hazard report submissions by outcome",
		}, []string{"outcome"}),
		ImageBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "hazard_report_image_bytes_total",
			Help: "Bytes of photos stored with accepted reports",
		}),
	}
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) addImageBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ImageBytes.Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
