package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"ChartDesk/internal/domain/models"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Outcome(nil))
	assert.Equal(t, OutcomeNoData, Outcome(fmt.Errorf("fetch: %w", models.ErrNoData)))
	assert.Equal(t, OutcomeUpstream, Outcome(&models.UpstreamError{Provider: "yfinance", Status: 500}))
	assert.Equal(t, OutcomeInvalid, Outcome(models.ErrInvalidArgument))
	assert.Equal(t, OutcomeUnavailable, Outcome(models.ErrArchiveDisabled))
	assert.Equal(t, OutcomeError, Outcome(errors.New("boom")))
}

func TestEndpoint_Observe(t *testing.T) {
	m := NewEndpoint(prometheus.NewRegistry())
	m.Observe("candles", time.Now(), nil)
	m.Observe("candles", time.Now(), models.ErrNoData)
	m.Observe("candles", time.Now(), nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.outcomes.WithLabelValues("candles", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("candles", OutcomeNoData)))

	var nilEndpoint *Endpoint
	assert.NotPanics(t, func() { nilEndpoint.Observe("x", time.Now(), nil) })
}
