package server

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChartDesk/internal/domain/models"
	drepo "ChartDesk/internal/domain/repository"
	"ChartDesk/internal/middleware"
	"ChartDesk/internal/usecase"
	applogger "ChartDesk/pkg/logger"
)

type orderCloser struct {
	name  string
	order *[]string
	err   error
}

func (c orderCloser) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

type nopProc struct{}

func (nopProc) PublishSeries(context.Context, drepo.Interval, models.Series) error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordFeedUpdate(string)         {}
func (nopMetrics) RecordFallback(string)           {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)   {}

func TestApp_StartAndShutdown(t *testing.T) {
	var buf bytes.Buffer
	log := applogger.NewWriter(&buf, "debug")

	var order []string
	hub := usecase.NewFeedHub(nil, log, nil)
	pipe := middleware.NewPublishPipeline(nopProc{}, nopMetrics{})
	desk := usecase.NewDesk(nil, nil, log, nil)

	app := New(log, nil,
		WithHub(hub),
		WithPipeline(pipe),
		WithDesk(desk),
		WithCloser("archive", orderCloser{name: "archive", order: &order}),
		WithCloser("events", orderCloser{name: "events", order: &order, err: errors.New("disk gone")}),
		WithCloser("nil", nil),
	)

	require.NoError(t, app.Start(context.Background()))
	require.NoError(t, app.Shutdown(context.Background()))

	assert.Equal(t, []string{"events", "archive"}, order)
	assert.Contains(t, buf.String(), "feed hub started")
	assert.Contains(t, buf.String(), "disk gone")
	assert.Contains(t, buf.String(), "shutdown complete")
}

func TestApp_StartFailsOnBadHubSchedule(t *testing.T) {
	hub := usecase.NewFeedHub(nil, nil, nil, usecase.WithHubSchedule("not a schedule"))
	app := New(nil, nil, WithHub(hub))

	err := app.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start feed hub")
	require.NoError(t, app.Shutdown(context.Background()))
}
