package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ChartDesk/internal/domain/models"
	domrepo "ChartDesk/internal/domain/repository"
)

// Proc is the minimal downstream the pipeline needs.
type Proc interface {
	PublishSeries(ctx context.Context, iv domrepo.Interval, s models.Series) error
}

type batch struct {
	iv     domrepo.Interval
	series models.Series
}

// PublishPipeline sits between the market use case and the series publisher.
// It validates, throttles per symbol and buffers when downstream is unavailable.
type PublishPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan batch
	stopCh   chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time
	now      func() time.Time

	backoffMin time.Duration
	backoffMax time.Duration
}

type PipelineOption func(*PublishPipeline)

// WithMaxRPS sets the max publications per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *PublishPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer used while downstream is failing.
func WithBufferSize(n int) PipelineOption {
	return func(p *PublishPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBackoff sets the flush retry backoff range.
func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *PublishPipeline) {
		if min > 0 && max >= min {
			p.backoffMin, p.backoffMax = min, max
		}
	}
}

// WithClock overrides the throttle clock.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *PublishPipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPublishPipeline creates a new pipeline.
func NewPublishPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *PublishPipeline {
	p := &PublishPipeline{
		proc:       proc,
		metrics:    metrics,
		maxRPS:     5,
		bufSize:    256,
		lastSeen:   make(map[string]time.Time),
		now:        time.Now,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan batch, p.bufSize)
	return p
}

// Start launches background flushing of buffered series.
func (p *PublishPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	stop := make(chan struct{})
	p.stopCh = stop
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.flushLoop(ctx, stop)
	}()
}

func (p *PublishPipeline) flushLoop(ctx context.Context, stop <-chan struct{}) {
	backoff := p.backoffMin
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case b := <-p.bufCh:
			err := p.proc.PublishSeries(ctx, b.iv, b.series)
			if err == nil {
				backoff = p.backoffMin
				continue
			}
			p.metrics.RecordError("pipeline_flush")
			t := time.NewTimer(backoff)
			select {
			case <-stop:
				t.Stop()
				return
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
			if backoff < p.backoffMax {
				backoff = min(backoff*2, p.backoffMax)
			}
			select {
			case p.bufCh <- b:
			default:
				p.metrics.RecordError("pipeline_buffer_drop")
			}
		}
	}
}

// Stop stops the background flushing and waits for it to exit.
func (p *PublishPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	p.mu.Unlock()
	p.wg.Wait()
}

// Close stops flushing and closes the downstream when it is closable.
// Series still buffered are discarded.
func (p *PublishPipeline) Close() error {
	p.Stop()
	if c, ok := p.proc.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Buffered reports how many series wait for a retry.
func (p *PublishPipeline) Buffered() int { return len(p.bufCh) }

// PublishSeries validates, throttles and forwards s downstream, buffering on errors.
// A throttled series is dropped and reported as success.
func (p *PublishPipeline) PublishSeries(ctx context.Context, iv domrepo.Interval, s models.Series) error {
	start := p.now()
	if err := validateSeries(s); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(s.Symbol+"|"+iv.ProviderCode(), start) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.PublishSeries(ctx, iv, s); err != nil {
		p.metrics.RecordError("pipeline_publish")
		select {
		case p.bufCh <- batch{iv: iv, series: s}:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_publish", p.now().Sub(start).Seconds())
	return nil
}

var errEmptySymbol = errors.New("series symbol empty")

func validateSeries(s models.Series) error {
	if s.Symbol == "" {
		return errEmptySymbol
	}
	if len(s.Candles) == 0 {
		return models.ErrNoData
	}
	for i, c := range s.Candles {
		if c.Time <= 0 {
			return fmt.Errorf("candle %d: time invalid", i)
		}
		if !c.Valid() {
			return fmt.Errorf("candle %d: ohlc out of range", i)
		}
	}
	return nil
}

func (p *PublishPipeline) allow(key string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[key]
	if ok && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[key] = now
	return true
}
