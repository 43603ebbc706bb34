package usecase

import (
	"context"
	"errors"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChartDesk/internal/domain/models"
	"ChartDesk/pkg/logger"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func (c *FeedCoordinator) currentGen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func TestFeedCoordinator_PollPublishesPayload(t *testing.T) {
	payload := map[string]any{"symbol": "AAPL", "candles": []any{}}
	fetcher := &fakeFetcher{fn: func(context.Context, string, int) (any, error) { return payload, nil }}
	updates := make(chan models.FeedState, 8)

	c := NewFeedCoordinator(fetcher, nil, logger.Nop(), nil,
		WithPollInterval(time.Hour),
		WithListener(func(s models.FeedState) { updates <- s }))
	c.Start(context.Background(), "AAPL", 5)
	defer c.Stop()

	select {
	case st := <-updates:
		assert.Equal(t, models.SourceYFinance, st.Source)
		assert.Equal(t, payload, st.Payload)
		assert.Equal(t, uint64(1), st.Seq)
		assert.Empty(t, st.Err)
	case <-time.After(waitFor):
		t.Fatal("no publish")
	}
	assert.Equal(t, []string{"AAPL"}, fetcher.Calls())
}

func TestFeedCoordinator_PollFailureKeepsLastPayload(t *testing.T) {
	var n int32
	good := map[string]any{"symbol": "AAPL"}
	fetcher := &fakeFetcher{fn: func(context.Context, string, int) (any, error) {
		if atomic.AddInt32(&n, 1) == 1 {
			return good, nil
		}
		return nil, &models.UpstreamError{Provider: "market-api", Status: 503}
	}}
	metrics := newRecordingMetrics()

	c := NewFeedCoordinator(fetcher, nil, logger.Nop(), metrics, WithPollInterval(10*time.Millisecond))
	c.Start(context.Background(), "AAPL", 5)
	defer c.Stop()

	require.Eventually(t, func() bool { return c.State().Err != "" }, waitFor, tick)
	st := c.State()
	assert.Equal(t, good, st.Payload)
	assert.Contains(t, st.Err, "status 503")
	assert.GreaterOrEqual(t, metrics.Errors("poll"), 1)
}

func TestFeedCoordinator_SocketFramesArePublished(t *testing.T) {
	dialer := &fakeDialer{}
	metrics := newRecordingMetrics()
	updates := make(chan models.FeedState, 8)

	c := NewFeedCoordinator(&fakeFetcher{fn: blockingFetch}, dialer, logger.Nop(), metrics,
		WithWebSocketURL("ws://feed.local/ws/feed?token=x"),
		WithTimers(&manualTimers{}),
		WithListener(func(s models.FeedState) { updates <- s }))
	c.Start(context.Background(), "TSLA", 15)
	defer c.Stop()

	require.Eventually(t, func() bool { return dialer.Socket(0) != nil }, waitFor, tick)
	require.Eventually(t, func() bool { return c.State().Source == models.SourceWebSocket }, waitFor, tick)

	sock := dialer.Socket(0)
	sock.frames <- []byte("{broken")
	sock.frames <- []byte(`{"symbol":"TSLA","candles":[]}`)

	select {
	case st := <-updates:
		assert.Equal(t, models.SourceWebSocket, st.Source)
		assert.Equal(t, "TSLA", st.Payload.(map[string]any)["symbol"])
	case <-time.After(waitFor):
		t.Fatal("no publish")
	}
	assert.Equal(t, 1, metrics.Errors("decode"))

	u, err := url.Parse(dialer.urls[0])
	require.NoError(t, err)
	assert.Equal(t, "TSLA", u.Query().Get("symbol"))
	assert.Equal(t, "15", u.Query().Get("interval"))
	assert.Equal(t, "x", u.Query().Get("token"))
}

func TestFeedCoordinator_DoubleCloseSchedulesOneReconnect(t *testing.T) {
	dialer := &fakeDialer{}
	timers := &manualTimers{}

	c := NewFeedCoordinator(&fakeFetcher{fn: blockingFetch}, dialer, logger.Nop(), nil,
		WithWebSocketURL("ws://feed.local/ws/feed"),
		WithReconnectDelay(5*time.Second),
		WithTimers(timers))
	c.Start(context.Background(), "AAPL", 5)
	defer c.Stop()

	require.Eventually(t, func() bool { return c.State().Source == models.SourceWebSocket }, waitFor, tick)

	dialer.Socket(0).errs <- errors.New("connection reset")
	require.Eventually(t, func() bool { return timers.Count() == 1 }, waitFor, tick)

	c.handleClose(c.currentGen())
	c.handleClose(c.currentGen())

	assert.Equal(t, 1, timers.Count())
	assert.Equal(t, 5*time.Second, timers.delays[0])
	st := c.State()
	assert.Equal(t, models.SourcePolling, st.Source)
	assert.Contains(t, st.Err, "connection reset")

	require.True(t, timers.FireLast())
	require.Eventually(t, func() bool { return dialer.Dials() == 2 }, waitFor, tick)
	require.Eventually(t, func() bool { return c.State().Source == models.SourceWebSocket }, waitFor, tick)
}

func TestFeedCoordinator_DialFailureFallsBackToPolling(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("refused")}
	timers := &manualTimers{}

	c := NewFeedCoordinator(&fakeFetcher{fn: blockingFetch}, dialer, logger.Nop(), nil,
		WithWebSocketURL("ws://feed.local/ws/feed"),
		WithTimers(timers))
	c.Start(context.Background(), "AAPL", 5)
	defer c.Stop()

	require.Eventually(t, func() bool { return timers.Count() == 1 }, waitFor, tick)
	assert.Equal(t, models.SourcePolling, c.State().Source)
	assert.Contains(t, c.State().Err, "refused")
}

func TestFeedCoordinator_StopIgnoresStaleCallbacks(t *testing.T) {
	dialer := &fakeDialer{}
	timers := &manualTimers{}
	var published int32

	c := NewFeedCoordinator(&fakeFetcher{fn: blockingFetch}, dialer, logger.Nop(), nil,
		WithWebSocketURL("ws://feed.local/ws/feed"),
		WithTimers(timers),
		WithListener(func(models.FeedState) { atomic.AddInt32(&published, 1) }))
	c.Start(context.Background(), "AAPL", 5)
	require.Eventually(t, func() bool { return dialer.Socket(0) != nil }, waitFor, tick)
	gen := c.currentGen()

	c.Stop()

	c.publish(gen, models.SourceWebSocket, map[string]any{"late": true})
	c.handleClose(gen)
	assert.Zero(t, atomic.LoadInt32(&published))
	assert.Zero(t, timers.Count())
	assert.Nil(t, c.State().Payload)
	assert.GreaterOrEqual(t, dialer.Socket(0).closes, 1)
}

func TestFeedCoordinator_RestartSwitchesSymbol(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(_ context.Context, symbol string, _ int) (any, error) {
		return map[string]any{"symbol": symbol}, nil
	}}
	c := NewFeedCoordinator(fetcher, nil, logger.Nop(), nil, WithPollInterval(time.Hour))

	c.Start(context.Background(), "AAPL", 5)
	require.Eventually(t, func() bool { return c.State().Payload != nil }, waitFor, tick)
	first := c.State().Seq

	c.Restart(context.Background(), "MSFT", 5)
	require.Eventually(t, func() bool {
		p, ok := c.State().Payload.(map[string]any)
		return ok && p["symbol"] == "MSFT"
	}, waitFor, tick)
	c.Stop()

	assert.Equal(t, "MSFT", c.State().Symbol)
	assert.Greater(t, c.State().Seq, first)
	assert.Equal(t, []string{"AAPL", "MSFT"}, fetcher.Calls())
}
