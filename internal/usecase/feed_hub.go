package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ChartDesk/internal/domain/models"
	drepo "ChartDesk/internal/domain/repository"
	"ChartDesk/pkg/logger"
)

// CandleSource serves candle responses; MarketCandlesUseCase implements it.
type CandleSource interface {
	GetCandles(ctx context.Context, symbol string, intervalMinutes int) (*models.CandlesResponse, error)
}

// FeedConn is the part of *websocket.Conn the hub uses.
type FeedConn interface {
	WriteJSON(v any) error
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

type hubClient struct {
	conn FeedConn
	key  string
	sym  string
	iv   int
	out  chan *models.CandlesResponse
	done chan struct{}
	once sync.Once
}

func (c *hubClient) stop() { c.once.Do(func() { close(c.done) }) }

// FeedHub pushes candle frames to subscribed sockets on a cron cadence.
// One upstream fetch per (symbol, interval) serves every subscriber of that key.
type FeedHub struct {
	src          CandleSource
	log          *logger.Logger
	metrics      drepo.Metrics
	schedule     string
	sendBuffer   int
	writeTimeout time.Duration

	cron *cron.Cron

	mu      sync.RWMutex
	clients map[*hubClient]struct{}
}

type HubOption func(*FeedHub)

// WithHubSchedule sets the broadcast schedule, e.g. "@every 15s".
func WithHubSchedule(spec string) HubOption {
	return func(h *FeedHub) {
		if spec != "" {
			h.schedule = spec
		}
	}
}

// WithHubSendBuffer sets the per-client frame buffer; frames beyond it are dropped.
func WithHubSendBuffer(n int) HubOption {
	return func(h *FeedHub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

func NewFeedHub(src CandleSource, log *logger.Logger, metrics drepo.Metrics, opts ...HubOption) *FeedHub {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	h := &FeedHub{
		src:          src,
		log:          log.Component("feed_hub"),
		metrics:      metrics,
		schedule:     "@every 15s",
		sendBuffer:   8,
		writeTimeout: 10 * time.Second,
		clients:      make(map[*hubClient]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start registers the broadcast job and starts the scheduler.
func (h *FeedHub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(h.schedule, func() { h.Tick(ctx) }); err != nil {
		return fmt.Errorf("register feed broadcast %q: %w", h.schedule, err)
	}
	h.cron = c
	c.Start()
	h.log.Info("feed hub started", logger.String("schedule", h.schedule))
	return nil
}

// Stop halts the scheduler, waits for a running tick and disconnects every client.
func (h *FeedHub) Stop() {
	h.mu.Lock()
	c := h.cron
	h.cron = nil
	h.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}

	h.mu.Lock()
	for cl := range h.clients {
		cl.stop()
	}
	h.mu.Unlock()
}

// Clients returns the number of connected sockets.
func (h *FeedHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve runs one subscriber until the socket fails or the hub stops.
// The first frame is pushed immediately.
func (h *FeedHub) Serve(ctx context.Context, conn FeedConn, symbol string, intervalMinutes int) error {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	iv := drepo.NormalizeInterval(intervalMinutes)
	cl := &hubClient{
		conn: conn,
		key:  sym + "|" + iv.ProviderCode(),
		sym:  sym,
		iv:   iv.Minutes(),
		out:  make(chan *models.CandlesResponse, h.sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("feed client connected", logger.String("key", cl.key))

	defer func() {
		h.mu.Lock()
		delete(h.clients, cl)
		h.mu.Unlock()
		cl.stop()
		_ = conn.Close()
		h.log.Debug("feed client disconnected", logger.String("key", cl.key))
	}()

	// Reads only detect the peer closing; inbound frames are ignored.
	go func() {
		defer cl.stop()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if resp, err := h.src.GetCandles(ctx, sym, cl.iv); err == nil {
		select {
		case cl.out <- resp:
		default:
		}
	} else {
		h.log.Warn("initial feed frame failed", logger.String("key", cl.key), logger.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-cl.done:
			return nil
		case resp := <-cl.out:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteJSON(resp); err != nil {
				h.metrics.RecordError("feed_hub_write")
				return fmt.Errorf("write feed frame: %w", err)
			}
			h.metrics.RecordFeedUpdate("hub")
		}
	}
}

// Tick fetches once per subscribed key and fans the frame out.
func (h *FeedHub) Tick(ctx context.Context) {
	groups := make(map[string][]*hubClient)
	h.mu.RLock()
	for cl := range h.clients {
		groups[cl.key] = append(groups[cl.key], cl)
	}
	h.mu.RUnlock()

	for key, cls := range groups {
		resp, err := h.src.GetCandles(ctx, cls[0].sym, cls[0].iv)
		if err != nil {
			h.metrics.RecordError("feed_hub_fetch")
			h.log.Warn("feed broadcast fetch failed", logger.String("key", key), logger.Error(err))
			continue
		}
		for _, cl := range cls {
			select {
			case cl.out <- resp:
			default:
				h.metrics.RecordError("feed_hub_drop")
			}
		}
	}
}
