package usecase

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"sync"
	"time"

	"ChartDesk/internal/domain/models"
	drepo "ChartDesk/internal/domain/repository"
	"ChartDesk/pkg/logger"
)

// Timer is a pending one-shot callback.
type Timer interface {
	Stop() bool
}

// Timers schedules one-shot callbacks.
type Timers interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realTimers struct{}

func (realTimers) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// FeedListener receives every publish to the latest-feed slot.
type FeedListener func(models.FeedState)

// FeedOption configures a FeedCoordinator.
type FeedOption func(*FeedCoordinator)

// WithWebSocketURL enables the push channel.
func WithWebSocketURL(u string) FeedOption { return func(c *FeedCoordinator) { c.wsURL = u } }

// WithPollInterval sets the pull cadence (default 30s).
func WithPollInterval(d time.Duration) FeedOption {
	return func(c *FeedCoordinator) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithReconnectDelay sets the delay before redialing a dropped socket (default 5s).
func WithReconnectDelay(d time.Duration) FeedOption {
	return func(c *FeedCoordinator) {
		if d > 0 {
			c.reconnectDelay = d
		}
	}
}

// WithTimers overrides the reconnect timer source.
func WithTimers(t Timers) FeedOption { return func(c *FeedCoordinator) { c.timers = t } }

// WithListener registers a publish listener.
func WithListener(l FeedListener) FeedOption {
	return func(c *FeedCoordinator) { c.listeners = append(c.listeners, l) }
}

// FeedCoordinator runs the push (WebSocket) and pull (REST polling) channels for one symbol
// and keeps the single latest-feed slot. Both channels write the slot; the last write wins.
type FeedCoordinator struct {
	fetcher drepo.CandleFetcher
	dialer  drepo.FeedDialer
	log     *logger.Logger
	metrics drepo.Metrics

	wsURL          string
	pollInterval   time.Duration
	reconnectDelay time.Duration
	timers         Timers
	now            func() time.Time

	mu        sync.Mutex
	listeners []FeedListener
	gen       uint64
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	symbol    string
	interval  int
	state     models.FeedState
	seq       uint64
	socket    drepo.FeedSocket
	reconnect Timer
	wg        sync.WaitGroup
}

// NewFeedCoordinator creates a stopped coordinator.
func NewFeedCoordinator(fetcher drepo.CandleFetcher, dialer drepo.FeedDialer, log *logger.Logger, metrics drepo.Metrics, opts ...FeedOption) *FeedCoordinator {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	c := &FeedCoordinator{
		fetcher:        fetcher,
		dialer:         dialer,
		log:            log.Component("feed"),
		metrics:        metrics,
		pollInterval:   30 * time.Second,
		reconnectDelay: 5 * time.Second,
		timers:         realTimers{},
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnUpdate registers a listener after construction.
func (c *FeedCoordinator) OnUpdate(l FeedListener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// Start tears down any running generation and starts both channels for symbol.
func (c *FeedCoordinator) Start(ctx context.Context, symbol string, intervalMinutes int) {
	c.mu.Lock()
	c.teardownLocked()
	c.gen++
	gen := c.gen
	c.running = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.symbol = symbol
	c.interval = intervalMinutes
	c.state = models.FeedState{Seq: c.seq, Symbol: symbol, Source: models.SourcePolling, At: c.now()}
	runCtx := c.ctx

	c.wg.Add(1)
	go c.pollLoop(runCtx, gen, symbol, intervalMinutes)
	if c.wsURL != "" && c.dialer != nil {
		c.wg.Add(1)
		go c.connect(runCtx, gen)
	}
	c.mu.Unlock()

	c.log.Info("feed started",
		logger.String("symbol", symbol),
		logger.Int("interval", intervalMinutes),
		logger.Bool("push", c.wsURL != ""))
}

// Restart switches the feed to a new symbol or interval. The previous payload is dropped.
func (c *FeedCoordinator) Restart(ctx context.Context, symbol string, intervalMinutes int) {
	c.Start(ctx, symbol, intervalMinutes)
}

// Stop tears down both channels and waits for their goroutines.
func (c *FeedCoordinator) Stop() {
	c.mu.Lock()
	c.teardownLocked()
	c.mu.Unlock()
	c.wg.Wait()
}

// State returns a copy of the latest-feed slot.
func (c *FeedCoordinator) State() models.FeedState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *FeedCoordinator) teardownLocked() {
	if !c.running {
		return
	}
	c.running = false
	c.gen++
	if c.cancel != nil {
		c.cancel()
	}
	if c.socket != nil {
		_ = c.socket.Close()
		c.socket = nil
	}
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
}

func (c *FeedCoordinator) socketURL() string {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return c.wsURL
	}
	q := u.Query()
	q.Set("symbol", c.symbol)
	q.Set("interval", strconv.Itoa(c.interval))
	u.RawQuery = q.Encode()
	return u.String()
}

// connect runs one push-channel session: dial, then read until error.
func (c *FeedCoordinator) connect(ctx context.Context, gen uint64) {
	defer c.wg.Done()

	c.mu.Lock()
	target := c.socketURL()
	c.mu.Unlock()

	sock, err := c.dialer.Dial(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("feed socket dial failed", logger.Error(err))
		c.publishErr(gen, "socket", err)
		c.handleClose(gen)
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		_ = sock.Close()
		return
	}
	c.socket = sock
	c.state.Source = models.SourceWebSocket
	c.mu.Unlock()
	c.log.Info("feed socket open")

	for {
		b, err := sock.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("feed socket read failed", logger.Error(err))
			c.publishErr(gen, "socket", err)
			c.handleClose(gen)
			return
		}
		var payload any
		if err := json.Unmarshal(b, &payload); err != nil {
			c.log.Debug("feed socket frame dropped", logger.Error(err))
			c.metrics.RecordError("decode")
			continue
		}
		c.publish(gen, models.SourceWebSocket, payload)
	}
}

// handleClose marks the push channel closed and schedules exactly one reconnect.
func (c *FeedCoordinator) handleClose(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || !c.running {
		return
	}
	if c.socket != nil {
		_ = c.socket.Close()
		c.socket = nil
	}
	c.state.Source = models.SourcePolling
	if c.reconnect != nil {
		return
	}
	c.reconnect = c.timers.AfterFunc(c.reconnectDelay, func() { c.fireReconnect(gen) })
}

func (c *FeedCoordinator) fireReconnect(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || !c.running {
		return
	}
	c.reconnect = nil
	c.wg.Add(1)
	go c.connect(c.ctx, gen)
}

func (c *FeedCoordinator) pollLoop(ctx context.Context, gen uint64, symbol string, interval int) {
	defer c.wg.Done()

	if ctx.Err() != nil {
		return
	}
	c.poll(ctx, gen, symbol, interval)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll(ctx, gen, symbol, interval)
		}
	}
}

func (c *FeedCoordinator) poll(ctx context.Context, gen uint64, symbol string, interval int) {
	start := c.now()
	payload, err := c.fetcher.FetchCandles(ctx, symbol, interval)
	if ctx.Err() != nil {
		return
	}
	c.metrics.RecordLatency("poll", c.now().Sub(start).Seconds())
	if err != nil {
		c.log.Warn("feed poll failed", logger.String("symbol", symbol), logger.Error(err))
		c.publishErr(gen, "poll", err)
		return
	}
	c.publish(gen, models.SourceYFinance, payload)
}

func (c *FeedCoordinator) publish(gen uint64, source models.FeedSource, payload any) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.seq++
	c.state.Seq = c.seq
	c.state.Source = source
	c.state.Payload = payload
	c.state.Err = ""
	c.state.At = c.now()
	st := c.state
	listeners := append([]FeedListener(nil), c.listeners...)
	c.mu.Unlock()

	c.metrics.RecordFeedUpdate(string(source))
	for _, l := range listeners {
		l(st)
	}
}

// publishErr records an advisory and keeps the last good payload.
func (c *FeedCoordinator) publishErr(gen uint64, kind string, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.seq++
	c.state.Seq = c.seq
	c.state.Err = err.Error()
	c.state.At = c.now()
	st := c.state
	listeners := append([]FeedListener(nil), c.listeners...)
	c.mu.Unlock()

	c.metrics.RecordError(kind)
	for _, l := range listeners {
		l(st)
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordFeedUpdate(string)         {}
func (nopMetrics) RecordFallback(string)           {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)   {}
