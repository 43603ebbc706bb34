package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChartDesk/internal/domain/models"
)

type memConn struct {
	frames    chan *models.CandlesResponse
	closed    chan struct{}
	closeOnce sync.Once
	writeErr  error
}

func newMemConn() *memConn {
	return &memConn{frames: make(chan *models.CandlesResponse, 16), closed: make(chan struct{})}
}

func (c *memConn) WriteJSON(v any) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.frames <- v.(*models.CandlesResponse)
	return nil
}

func (c *memConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}

func (c *memConn) SetWriteDeadline(time.Time) error { return nil }

func (c *memConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

type countingSource struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (s *countingSource) GetCandles(_ context.Context, symbol string, iv int) (*models.CandlesResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[symbol]++
	if s.err != nil {
		return nil, s.err
	}
	return &models.CandlesResponse{Symbol: symbol, Candles: twoBars(), Count: 2, Interval: "5m"}, nil
}

func (s *countingSource) Calls(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[symbol]
}

func serveAsync(h *FeedHub, conn FeedConn, symbol string) chan error {
	done := make(chan error, 1)
	go func() { done <- h.Serve(context.Background(), conn, symbol, 5) }()
	return done
}

func TestFeedHub_PushesOnConnectAndTick(t *testing.T) {
	src := &countingSource{}
	h := NewFeedHub(src, nil, nil)

	a, b, c := newMemConn(), newMemConn(), newMemConn()
	doneA := serveAsync(h, a, "aapl")
	serveAsync(h, b, "AAPL")
	serveAsync(h, c, "MSFT")

	for _, conn := range []*memConn{a, b, c} {
		select {
		case f := <-conn.frames:
			assert.Equal(t, 2, f.Count)
		case <-time.After(waitFor):
			t.Fatal("no initial frame")
		}
	}
	require.Eventually(t, func() bool { return h.Clients() == 3 }, waitFor, tick)

	h.Tick(context.Background())
	assert.Equal(t, "AAPL", (<-a.frames).Symbol)
	assert.Equal(t, "AAPL", (<-b.frames).Symbol)
	assert.Equal(t, "MSFT", (<-c.frames).Symbol)
	assert.Equal(t, 3, src.Calls("AAPL"), "two connects plus one shared tick fetch")

	require.NoError(t, a.Close())
	select {
	case err := <-doneA:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("serve did not return after peer close")
	}
	require.Eventually(t, func() bool { return h.Clients() == 2 }, waitFor, tick)

	h.Stop()
	require.Eventually(t, func() bool { return h.Clients() == 0 }, waitFor, tick)
}

func TestFeedHub_FetchErrorsKeepClient(t *testing.T) {
	src := &countingSource{err: models.ErrNoData}
	m := newRecordingMetrics()
	h := NewFeedHub(src, nil, m)
	conn := newMemConn()
	serveAsync(h, conn, "XYZ")

	require.Eventually(t, func() bool { return h.Clients() == 1 }, waitFor, tick)
	h.Tick(context.Background())
	assert.Equal(t, 1, m.Errors("feed_hub_fetch"))
	assert.Equal(t, 1, h.Clients())
	h.Stop()
}

func TestFeedHub_WriteErrorEndsServe(t *testing.T) {
	conn := newMemConn()
	conn.writeErr = errors.New("broken pipe")
	h := NewFeedHub(&countingSource{}, nil, nil)

	err := <-serveAsync(h, conn, "AAPL")
	require.Error(t, err)
	assert.Equal(t, 0, h.Clients())
}

func TestFeedHub_RejectsBadSymbol(t *testing.T) {
	h := NewFeedHub(&countingSource{}, nil, nil)
	err := h.Serve(context.Background(), newMemConn(), " ", 5)
	require.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestFeedHub_StartValidatesSchedule(t *testing.T) {
	h := NewFeedHub(&countingSource{}, nil, nil, WithHubSchedule("not a schedule"))
	require.Error(t, h.Start(context.Background()))

	h = NewFeedHub(&countingSource{}, nil, nil, WithHubSchedule("@every 1h"))
	require.NoError(t, h.Start(context.Background()))
	require.NoError(t, h.Start(context.Background()))
	h.Stop()
}
