package chart

import (
	"sync"

	"ChartDesk/internal/domain/models"
	"ChartDesk/internal/service/indicator"
)

// PriceLevels are the overlay prices; zero hides a line.
type PriceLevels struct {
	Last     float64 `json:"last"`
	StopLoss float64 `json:"stop_loss"`
	Target   float64 `json:"target"`
}

func (l PriceLevels) get(kind models.PriceLineKind) float64 {
	switch kind {
	case models.PriceLineLast:
		return l.Last
	case models.PriceLineStopLoss:
		return l.StopLoss
	case models.PriceLineTarget:
		return l.Target
	}
	return 0
}

var lineKinds = []models.PriceLineKind{models.PriceLineLast, models.PriceLineStopLoss, models.PriceLineTarget}

type lineRef struct {
	id    PriceLineID
	price float64
}

// Snapshot is the full chart state served to renderers.
type Snapshot struct {
	Theme      models.Theme     `json:"theme"`
	ChartType  models.ChartType `json:"chart_type"`
	EMA        bool             `json:"ema"`
	EMAPeriod  int              `json:"ema_period"`
	Volume     bool             `json:"volume"`
	Levels     PriceLevels      `json:"levels"`
	Generation int              `json:"generation"`
	Engine     EngineSnapshot   `json:"engine"`
}

// BinderOption configures a Binder.
type BinderOption func(*Binder)

// WithRand sets the volume noise source.
func WithRand(r indicator.Rand) BinderOption { return func(b *Binder) { b.rnd = r } }

// WithVolumeNoise sets the maximum volume jitter.
func WithVolumeNoise(n float64) BinderOption { return func(b *Binder) { b.volumeNoise = n } }

// Binder owns the engine handle and keeps it in sync with the desk state.
type Binder struct {
	mu      sync.Mutex
	factory EngineFactory
	theme   models.Theme
	engine  Engine

	candleSeries Series
	lineSeries   Series
	areaSeries   Series
	emaSeries    Series
	volumeSeries Series

	candles     []models.Candle
	chartType   models.ChartType
	emaOn       bool
	emaPeriod   int
	volumeOn    bool
	levels      PriceLevels
	lines       map[models.PriceLineKind]lineRef
	needsFit    bool
	generation  int
	width       float64
	height      float64
	closed      bool
	volumeNoise float64
	rnd         indicator.Rand
}

// New mounts a chart engine. A nil factory uses the headless engine.
func New(factory EngineFactory, theme models.Theme, opts ...BinderOption) *Binder {
	if factory == nil {
		factory = NewHeadless
	}
	b := &Binder{
		factory:     factory,
		theme:       theme,
		chartType:   models.ChartCandle,
		emaPeriod:   indicator.DefaultEMAPeriod,
		volumeNoise: 200,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.mountLocked()
	return b
}

func (b *Binder) mountLocked() {
	b.engine = b.factory(PaletteFor(b.theme))
	if b.width > 0 || b.height > 0 {
		b.engine.Resize(b.width, b.height)
	}
	b.candleSeries = b.engine.AddSeries(SeriesCandles)
	b.lineSeries = b.engine.AddSeries(SeriesLine)
	b.areaSeries = b.engine.AddSeries(SeriesArea)
	b.emaSeries = b.engine.AddSeries(SeriesEMA)
	b.volumeSeries = b.engine.AddSeries(SeriesVolume)
	b.lines = map[models.PriceLineKind]lineRef{}
	b.needsFit = true
	b.generation++
	b.applyVisibilityLocked()
}

// PushCandles replaces the data set. The first non-empty push after mounting fits the content.
func (b *Binder) PushCandles(candles []models.Candle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.engine == nil {
		return
	}
	b.candles = append([]models.Candle(nil), candles...)
	b.applyDataLocked()
}

func (b *Binder) applyDataLocked() {
	b.candleSeries.SetCandles(b.candles)
	values := indicator.Values(b.candles)
	b.lineSeries.SetPoints(values)
	b.areaSeries.SetPoints(values)
	b.applyEmaLocked()
	b.applyVolumeLocked()
	if b.needsFit && len(b.candles) > 0 {
		b.engine.FitContent()
		b.needsFit = false
	}
}

// SetVisibleSeries toggles the price series for the chart type.
func (b *Binder) SetVisibleSeries(t models.ChartType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch t {
	case models.ChartCandle, models.ChartLine, models.ChartArea, models.ChartAll:
	default:
		t = models.ChartCandle
	}
	b.chartType = t
	if b.engine != nil {
		b.applyVisibilityLocked()
	}
}

func (b *Binder) applyVisibilityLocked() {
	all := b.chartType == models.ChartAll
	b.candleSeries.SetVisible(all || b.chartType == models.ChartCandle)
	b.lineSeries.SetVisible(all || b.chartType == models.ChartLine)
	b.areaSeries.SetVisible(all || b.chartType == models.ChartArea)
	b.emaSeries.SetVisible(b.emaOn)
	b.volumeSeries.SetVisible(b.volumeOn)
}

// SetEma toggles the EMA overlay. Non-positive periods use the default of 9.
func (b *Binder) SetEma(enabled bool, period int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if period <= 0 {
		period = indicator.DefaultEMAPeriod
	}
	b.emaOn = enabled
	b.emaPeriod = period
	if b.engine == nil {
		return
	}
	b.emaSeries.SetVisible(enabled)
	b.applyEmaLocked()
}

func (b *Binder) applyEmaLocked() {
	if !b.emaOn {
		b.emaSeries.SetPoints(nil)
		return
	}
	b.emaSeries.SetPoints(indicator.EMASeries(b.candles, b.emaPeriod))
}

// SetVolume toggles the volume proxy histogram.
func (b *Binder) SetVolume(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.volumeOn = enabled
	if b.engine == nil {
		return
	}
	b.volumeSeries.SetVisible(enabled)
	b.applyVolumeLocked()
}

func (b *Binder) applyVolumeLocked() {
	if !b.volumeOn {
		b.volumeSeries.SetPoints(nil)
		return
	}
	b.volumeSeries.SetPoints(indicator.VolumeProxy(b.candles, b.volumeNoise, b.rnd))
}

// SetPriceLines removes and recreates each line whose price changed. Unchanged lines are left alone.
func (b *Binder) SetPriceLines(levels PriceLevels) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.levels = levels
	if b.engine != nil {
		b.applyPriceLinesLocked()
	}
}

func (b *Binder) applyPriceLinesLocked() {
	levels := b.levels
	p := PaletteFor(b.theme)
	for _, kind := range lineKinds {
		price := levels.get(kind)
		ref, exists := b.lines[kind]
		if exists && ref.price == price {
			continue
		}
		if exists {
			b.candleSeries.RemovePriceLine(ref.id)
			delete(b.lines, kind)
		}
		if price <= 0 {
			continue
		}
		id := b.candleSeries.CreatePriceLine(priceLine(kind, price, p))
		b.lines[kind] = lineRef{id: id, price: price}
	}
}

func priceLine(kind models.PriceLineKind, price float64, p Palette) models.PriceLine {
	switch kind {
	case models.PriceLineStopLoss:
		return models.PriceLine{Kind: kind, Price: price, Color: p.StopLoss, Style: "dashed"}
	case models.PriceLineTarget:
		return models.PriceLine{Kind: kind, Price: price, Color: p.Target, Style: "dashed"}
	default:
		return models.PriceLine{Kind: kind, Price: price, Color: p.Last, Style: "solid"}
	}
}

// SetTheme destroys the engine and recreates it with the new palette, replaying data and overlays.
func (b *Binder) SetTheme(theme models.Theme) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if theme != models.ThemeLight {
		theme = models.ThemeDark
	}
	if b.closed || theme == b.theme {
		return
	}
	b.theme = theme
	b.engine.Destroy()
	b.mountLocked()
	b.applyDataLocked()
	b.applyPriceLinesLocked()
}

// Theme returns the active theme.
func (b *Binder) Theme() models.Theme {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.theme
}

// Resize updates the engine canvas size.
func (b *Binder) Resize(width, height float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.width, b.height = width, height
	if b.engine != nil {
		b.engine.Resize(width, height)
	}
}

// PriceToCoordinate projects a price on the current price scale.
func (b *Binder) PriceToCoordinate(price float64) (float64, bool) {
	b.mu.Lock()
	engine := b.engine
	b.mu.Unlock()
	if engine == nil {
		return 0, false
	}
	return engine.PriceToCoordinate(price)
}

// Candles returns the last pushed candles.
func (b *Binder) Candles() []models.Candle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Candle(nil), b.candles...)
}

// Snapshot renders the chart state.
func (b *Binder) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Snapshot{
		Theme:      b.theme,
		ChartType:  b.chartType,
		EMA:        b.emaOn,
		EMAPeriod:  b.emaPeriod,
		Volume:     b.volumeOn,
		Levels:     b.levels,
		Generation: b.generation,
	}
	if b.engine != nil {
		s.Engine = b.engine.Snapshot()
	}
	return s
}

// Close destroys the engine. Later calls are no-ops.
func (b *Binder) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.engine.Destroy()
	b.engine = nil
}
