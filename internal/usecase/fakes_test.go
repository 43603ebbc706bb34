package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	drepo "ChartDesk/internal/domain/repository"
)

type fetchFunc func(ctx context.Context, symbol string, interval int) (any, error)

type fakeFetcher struct {
	mu    sync.Mutex
	calls []string
	fn    fetchFunc
}

func (f *fakeFetcher) FetchCandles(ctx context.Context, symbol string, interval int) (any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, symbol)
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx, symbol, interval)
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func blockingFetch(ctx context.Context, _ string, _ int) (any, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fakeSocket struct {
	frames    chan []byte
	errs      chan error
	closed    chan struct{}
	closeOnce sync.Once
	closes    int
	mu        sync.Mutex
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{frames: make(chan []byte, 16), errs: make(chan error, 1), closed: make(chan struct{})}
}

func (s *fakeSocket) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case b := <-s.frames:
		return b, nil
	case err := <-s.errs:
		return nil, err
	case <-s.closed:
		return nil, errors.New("use of closed connection")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

type fakeDialer struct {
	mu      sync.Mutex
	urls    []string
	sockets []*fakeSocket
	err     error
}

func (d *fakeDialer) Dial(_ context.Context, url string) (drepo.FeedSocket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.err != nil {
		return nil, d.err
	}
	s := newFakeSocket()
	d.sockets = append(d.sockets, s)
	return s, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) Socket(i int) *fakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.sockets) {
		return nil
	}
	return d.sockets[i]
}

type manualTimer struct {
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
	delays []time.Duration
}

func (m *manualTimers) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{fn: f}
	m.timers = append(m.timers, t)
	m.delays = append(m.delays, d)
	return t
}

func (m *manualTimers) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// FireLast runs the most recent timer unless it was stopped.
func (m *manualTimers) FireLast() bool {
	m.mu.Lock()
	if len(m.timers) == 0 {
		m.mu.Unlock()
		return false
	}
	t := m.timers[len(m.timers)-1]
	m.mu.Unlock()
	if t.stopped {
		return false
	}
	t.fn()
	return true
}

type recordingMetrics struct {
	mu        sync.Mutex
	updates   map[string]int
	errors    map[string]int
	fallbacks map[string]int
	prices    map[string]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		updates:   map[string]int{},
		errors:    map[string]int{},
		fallbacks: map[string]int{},
		prices:    map[string]float64{},
	}
}

func (m *recordingMetrics) RecordFeedUpdate(source string) {
	m.mu.Lock()
	m.updates[source]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordFallback(symbol string) {
	m.mu.Lock()
	m.fallbacks[symbol]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordLastPrice(symbol string, price float64) {
	m.mu.Lock()
	m.prices[symbol] = price
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordLatency(string, float64) {}

func (m *recordingMetrics) Errors(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func (m *recordingMetrics) Fallbacks(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fallbacks[symbol]
}
