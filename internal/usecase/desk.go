package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ChartDesk/internal/domain/models"
	drepo "ChartDesk/internal/domain/repository"
	"ChartDesk/internal/service/chart"
	"ChartDesk/internal/service/drawing"
	"ChartDesk/internal/service/normalize"
	"ChartDesk/internal/service/synthetic"
	"ChartDesk/pkg/logger"
)

// Event log streams written by the desk.
const (
	StreamRisk     = "risk"
	StreamFeedback = "feedback"
	StreamDrawings = "drawings"
)

// DeskSnapshot is everything a renderer needs to draw the desk.
type DeskSnapshot struct {
	Symbol   string            `json:"symbol"`
	Horizon  synthetic.Horizon `json:"horizon"`
	Interval int               `json:"interval"`
	Loading  bool              `json:"loading"`
	Fallback bool              `json:"fallback"`
	Advisory string            `json:"advisory,omitempty"`
	Feed     models.FeedState  `json:"feed"`
	Risk     models.RiskParams `json:"risk"`
	Candles  []models.Candle   `json:"candles"`
	Chart    chart.Snapshot    `json:"chart"`
	Drawing  drawing.Snapshot  `json:"drawing"`
}

// DeskOption configures a Desk.
type DeskOption func(*Desk)

// WithDeskSymbol sets the initial symbol, horizon and interval.
func WithDeskSymbol(symbol string, horizon synthetic.Horizon, intervalMinutes int) DeskOption {
	return func(d *Desk) {
		d.symbol = symbol
		d.horizon = horizon
		d.interval = intervalMinutes
	}
}

// WithDeskTheme sets the initial chart theme.
func WithDeskTheme(t models.Theme) DeskOption { return func(d *Desk) { d.theme = t } }

// WithDeskRisk sets the initial risk parameters.
func WithDeskRisk(r models.RiskParams) DeskOption { return func(d *Desk) { d.risk = r } }

// WithDeskEngine overrides the chart engine factory.
func WithDeskEngine(f chart.EngineFactory) DeskOption { return func(d *Desk) { d.engine = f } }

// WithDeskFrames overrides the drawing frame scheduler.
func WithDeskFrames(s drawing.FrameScheduler) DeskOption { return func(d *Desk) { d.frames = s } }

// WithDeskRand sets the randomness source of the synthetic fallback and the volume proxy.
func WithDeskRand(r synthetic.Rand) DeskOption { return func(d *Desk) { d.rnd = r } }

// WithDeskClock overrides the clock.
func WithDeskClock(now func() time.Time) DeskOption { return func(d *Desk) { d.now = now } }

// Desk glues the feed coordinator, normalizer, synthetic fallback, chart binder and drawing machine.
// All chart and drawing mutations are serialized behind one mutex.
type Desk struct {
	feed    *FeedCoordinator
	events  drepo.EventLog
	log     *logger.Logger
	metrics drepo.Metrics

	engine chart.EngineFactory
	frames drawing.FrameScheduler
	rnd    synthetic.Rand
	now    func() time.Time
	theme  models.Theme

	binder   *chart.Binder
	drawings *drawing.Machine

	mu       sync.Mutex
	ctx      context.Context
	symbol   string
	horizon  synthetic.Horizon
	interval int
	series   models.Series
	loading  bool
	fallback bool
	advisory string
	risk     models.RiskParams
	lastSeq  uint64
}

// NewDesk builds a desk and subscribes it to the coordinator.
func NewDesk(feed *FeedCoordinator, events drepo.EventLog, log *logger.Logger, metrics drepo.Metrics, opts ...DeskOption) *Desk {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	d := &Desk{
		feed:     feed,
		events:   events,
		log:      log.Component("desk"),
		metrics:  metrics,
		now:      time.Now,
		theme:    models.ThemeDark,
		symbol:   "AAPL",
		horizon:  synthetic.HorizonWeek,
		interval: int(drepo.DefaultInterval()),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(d)
	}

	var binderOpts []chart.BinderOption
	if d.rnd != nil {
		binderOpts = append(binderOpts, chart.WithRand(d.rnd))
	}
	d.binder = chart.New(d.engine, d.theme, binderOpts...)

	drawOpts := []drawing.Option{drawing.WithListener(drawingEvents{d: d})}
	if d.frames != nil {
		drawOpts = append(drawOpts, drawing.WithFrameScheduler(d.frames))
	}
	d.drawings = drawing.NewMachine(drawOpts...)

	if feed != nil {
		feed.OnUpdate(d.onFeed)
	}
	return d
}

// Start begins streaming the current symbol.
func (d *Desk) Start(ctx context.Context) {
	d.mu.Lock()
	d.ctx = ctx
	d.loading = true
	symbol, interval := d.symbol, d.interval
	d.mu.Unlock()

	d.log.Info("desk started", logger.String("symbol", symbol), logger.Int("interval", interval))
	if d.feed != nil {
		d.feed.Start(ctx, symbol, interval)
	}
}

// Stop tears down the feed and the chart engine.
func (d *Desk) Stop() {
	if d.feed != nil {
		d.feed.Stop()
	}
	d.binder.Close()
}

// onFeed applies one publish of the latest-feed slot.
func (d *Desk) onFeed(st models.FeedState) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !strings.EqualFold(st.Symbol, d.symbol) || st.Seq <= d.lastSeq {
		return
	}
	d.lastSeq = st.Seq
	d.advisory = st.Err

	if st.Err != "" {
		if len(d.series.Candles) == 0 {
			d.applyFallbackLocked(st.Err)
		}
		return
	}

	series := normalize.Normalize(st.Payload, d.now())
	if len(series.Candles) == 0 {
		d.metrics.RecordError("malformed")
		d.log.Warn("feed payload has no candles",
			logger.String("symbol", d.symbol),
			logger.String("source", string(st.Source)),
			logger.Error(models.ErrMalformedPayload))
		if len(d.series.Candles) == 0 {
			d.applyFallbackLocked(models.ErrMalformedPayload.Error())
		}
		return
	}
	if series.Symbol == normalize.DefaultSymbol {
		series.Symbol = d.symbol
	}
	d.fallback = false
	d.applySeriesLocked(series)
}

func (d *Desk) applyFallbackLocked(reason string) {
	series := synthetic.Generate(d.symbol, d.horizon, d.interval, d.now(), d.rnd)
	d.fallback = true
	d.metrics.RecordFallback(d.symbol)
	d.log.Info("serving synthetic candles", logger.String("symbol", d.symbol), logger.String("reason", reason))
	d.applySeriesLocked(series)
}

func (d *Desk) applySeriesLocked(s models.Series) {
	d.series = s
	d.loading = false
	d.binder.PushCandles(s.Candles)
	d.applyPriceLinesLocked()
	if last, ok := s.Last(); ok {
		d.metrics.RecordLastPrice(d.symbol, last.Close)
	}
}

func (d *Desk) applyPriceLinesLocked() {
	last, ok := d.series.Last()
	if !ok {
		d.binder.SetPriceLines(chart.PriceLevels{})
		return
	}
	stop, target := d.risk.Levels(last.Close)
	d.binder.SetPriceLines(chart.PriceLevels{Last: last.Close, StopLoss: stop, Target: target})
}

// SetSymbol resets the chart into the loading state and restarts the feed on the desk's context.
func (d *Desk) SetSymbol(symbol string, horizon synthetic.Horizon, intervalMinutes int) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return fmt.Errorf("symbol required: %w", models.ErrInvalidArgument)
	}
	d.mu.Lock()
	d.symbol = symbol
	d.horizon = horizon
	if intervalMinutes > 0 {
		d.interval = intervalMinutes
	}
	d.series = models.Series{Symbol: symbol, Candles: []models.Candle{}}
	d.loading = true
	d.fallback = false
	d.advisory = ""
	d.binder.PushCandles(nil)
	d.binder.SetPriceLines(chart.PriceLevels{})
	interval := d.interval
	feedCtx := d.ctx
	d.mu.Unlock()

	d.log.Info("symbol changed", logger.String("symbol", symbol), logger.String("horizon", string(horizon)))
	if d.feed != nil {
		d.feed.Restart(feedCtx, symbol, interval)
	}
	return nil
}

// SetTool switches the drawing tool.
func (d *Desk) SetTool(t models.Tool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drawings.SetTool(t)
}

// SetBounds records the chart container box.
func (d *Desk) SetBounds(r models.Rect) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drawings.SetBounds(r)
	d.binder.Resize(r.Width, r.Height)
}

// Pointer forwards a pointer event to the drawing machine. text answers the text tool's prompt.
func (d *Desk) Pointer(kind string, at models.Point, text string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch kind {
	case "down":
		d.drawings.SetPrompter(drawing.PromptFunc(func(models.Point) (string, bool) {
			return text, strings.TrimSpace(text) != ""
		}))
		return d.drawings.PointerDown(at), nil
	case "move":
		return d.drawings.PointerMove(at), nil
	case "up":
		return d.drawings.PointerUp(at), nil
	default:
		return false, fmt.Errorf("unknown pointer event %q: %w", kind, models.ErrInvalidArgument)
	}
}

// SetTheme recreates the chart engine with the theme palette.
func (d *Desk) SetTheme(t models.Theme) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.binder.SetTheme(t)
}

// SetChartType selects the visible price series.
func (d *Desk) SetChartType(t models.ChartType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.binder.SetVisibleSeries(t)
}

// SetIndicators toggles the EMA and volume overlays.
func (d *Desk) SetIndicators(ema bool, period int, volume bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.binder.SetEma(ema, period)
	d.binder.SetVolume(volume)
}

// SetRisk updates the stop-loss and target lines and records the change.
func (d *Desk) SetRisk(ctx context.Context, r models.RiskParams) error {
	d.mu.Lock()
	d.risk = r
	d.applyPriceLinesLocked()
	symbol := d.symbol
	d.mu.Unlock()

	return d.appendEvent(ctx, StreamRisk, "update", map[string]any{
		"symbol":            symbol,
		"stop_loss_pct":     r.StopLossPct,
		"target_return_pct": r.TargetReturnPct,
	})
}

// AddHorizontalAtPrice pins a horizontal line at the price's current pixel height.
func (d *Desk) AddHorizontalAtPrice(price float64) (models.Drawing, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dr, ok := d.drawings.AddHorizontalAtPrice(price, d.binder)
	if !ok {
		return models.Drawing{}, fmt.Errorf("price %.4f is not on the visible scale: %w", price, models.ErrInvalidArgument)
	}
	return dr, nil
}

// DeleteDrawing removes one drawing by id.
func (d *Desk) DeleteDrawing(id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drawings.Delete(id)
}

// ClearDrawings removes every drawing.
func (d *Desk) ClearDrawings() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drawings.Clear()
}

// Feedback records a user feedback entry.
func (d *Desk) Feedback(ctx context.Context, message string, rating int) error {
	d.mu.Lock()
	symbol := d.symbol
	d.mu.Unlock()
	return d.appendEvent(ctx, StreamFeedback, "feedback", map[string]any{
		"symbol":  symbol,
		"message": message,
		"rating":  rating,
	})
}

// Events returns the last n entries of a stream.
func (d *Desk) Events(ctx context.Context, stream string, n int) ([]models.LogEvent, error) {
	if d.events == nil {
		return []models.LogEvent{}, nil
	}
	return d.events.ReadLast(ctx, stream, n)
}

// Snapshot copies the desk state.
func (d *Desk) Snapshot() DeskSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := DeskSnapshot{
		Symbol:   d.symbol,
		Horizon:  d.horizon,
		Interval: d.interval,
		Loading:  d.loading,
		Fallback: d.fallback,
		Advisory: d.advisory,
		Risk:     d.risk,
		Candles:  append([]models.Candle{}, d.series.Candles...),
		Chart:    d.binder.Snapshot(),
		Drawing:  d.drawings.Snapshot(),
	}
	if d.feed != nil {
		s.Feed = d.feed.State()
	}
	return s
}

func (d *Desk) appendEvent(ctx context.Context, stream, kind string, payload map[string]any) error {
	if d.events == nil {
		return nil
	}
	err := d.events.Append(ctx, models.LogEvent{Stream: stream, Kind: kind, Payload: payload, At: d.now().UTC()})
	if err != nil {
		d.metrics.RecordError("eventlog")
		return fmt.Errorf("append %s event: %w", stream, err)
	}
	return nil
}

// drawingEvents mirrors committed and removed drawings into the event log.
type drawingEvents struct {
	d *Desk
}

func (e drawingEvents) OnCommit(dr models.Drawing) { e.record("commit", dr) }
func (e drawingEvents) OnRemove(dr models.Drawing) { e.record("remove", dr) }

func (e drawingEvents) record(kind string, dr models.Drawing) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := e.d.appendEvent(ctx, StreamDrawings, kind, map[string]any{
		"id":   dr.ID,
		"kind": string(dr.Kind),
		"text": dr.Text,
	})
	if err != nil {
		e.d.log.Warn("drawing event not recorded", logger.Error(err))
	}
}
