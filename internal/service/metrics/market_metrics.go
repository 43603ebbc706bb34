package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ChartDesk/internal/domain/models"
)

// Outcome labels for market endpoint calls.
const (
	OutcomeOK          = "ok"
	OutcomeNoData      = "no_data"
	OutcomeUpstream    = "upstream"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// Endpoint tracks latency and outcomes of the market and desk endpoints.
type Endpoint struct {
	latency  *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

func NewEndpoint(reg prometheus.Registerer) *Endpoint {
	f := promauto.With(reg)
	return &Endpoint{
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "chartdesk",
				Subsystem: "endpoint",
				Name:      "latency_seconds",
				Help:      "Latency of API endpoints, handler time only",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "chartdesk",
				Subsystem: "endpoint",
				Name:      "outcomes_total",
				Help:      "API endpoint results by outcome",
			},
			[]string{"endpoint", "outcome"},
		),
	}
}

// Observe records one call. A nil Endpoint is a no-op.
func (m *Endpoint) Observe(endpoint string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	m.outcomes.WithLabelValues(endpoint, Outcome(err)).Inc()
}

// Outcome classifies an endpoint error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, models.ErrNoData):
		return OutcomeNoData
	case models.IsUpstream(err):
		return OutcomeUpstream
	case errors.Is(err, models.ErrInvalidArgument):
		return OutcomeInvalid
	case errors.Is(err, models.ErrArchiveDisabled):
		return OutcomeUnavailable
	default:
		return OutcomeError
	}
}
