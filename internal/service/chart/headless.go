package chart

import (
	"sort"
	"sync"

	"ChartDesk/internal/domain/models"
	"ChartDesk/internal/service/indicator"
)

const (
	defaultWidth  = 800
	defaultHeight = 400
	// rangePadding widens the fitted price range on both sides.
	rangePadding = 0.05
)

// Headless is an in-memory engine. It keeps everything a renderer needs and serves it as a snapshot.
type Headless struct {
	mu        sync.Mutex
	palette   Palette
	width     float64
	height    float64
	fits      int
	series    []*headlessSeries
	destroyed bool
}

// NewHeadless is an EngineFactory.
func NewHeadless(p Palette) Engine {
	return &Headless{palette: p, width: defaultWidth, height: defaultHeight}
}

func (h *Headless) AddSeries(kind SeriesKind) Series {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := &headlessSeries{engine: h, kind: kind, visible: true, lines: map[PriceLineID]models.PriceLine{}}
	h.series = append(h.series, s)
	return s
}

// FitContent fits the time scale to the data. The price scale always autoscales.
func (h *Headless) FitContent() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fits++
}

// priceRangeLocked covers every visible price series.
func (h *Headless) priceRangeLocked() PriceRange {
	lo, hi, ok := 0.0, 0.0, false
	take := func(v float64) {
		if !ok {
			lo, hi, ok = v, v, true
			return
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	for _, s := range h.series {
		if !s.visible || s.kind == SeriesVolume {
			continue
		}
		for _, c := range s.candles {
			take(c.Low)
			take(c.High)
		}
		for _, p := range s.points {
			take(p.Value)
		}
	}
	if !ok {
		return PriceRange{}
	}
	pad := (hi - lo) * rangePadding
	if pad == 0 {
		pad = hi * rangePadding
	}
	return PriceRange{Min: lo - pad, Max: hi + pad}
}

func (h *Headless) PriceToCoordinate(price float64) (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return 0, false
	}
	rng := h.priceRangeLocked()
	span := rng.Max - rng.Min
	if span <= 0 {
		return 0, false
	}
	return (rng.Max - price) / span * h.height, true
}

func (h *Headless) Resize(width, height float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if width > 0 {
		h.width = width
	}
	if height > 0 {
		h.height = height
	}
}

func (h *Headless) Snapshot() EngineSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := EngineSnapshot{
		Palette:    h.palette,
		Width:      h.width,
		Height:     h.height,
		Fits:       h.fits,
		PriceRange: h.priceRangeLocked(),
		Destroyed:  h.destroyed,
		Series:     make([]SeriesSnapshot, 0, len(h.series)),
	}
	for _, s := range h.series {
		out.Series = append(out.Series, s.snapshot())
	}
	return out
}

func (h *Headless) Destroy() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.destroyed = true
	h.series = nil
}

type headlessSeries struct {
	engine  *Headless
	kind    SeriesKind
	visible bool
	candles []models.Candle
	points  []indicator.Point
	lines   map[PriceLineID]models.PriceLine
	nextID  PriceLineID
}

func (s *headlessSeries) SetCandles(candles []models.Candle) {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	s.candles = append([]models.Candle(nil), candles...)
}

func (s *headlessSeries) SetPoints(points []indicator.Point) {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	s.points = append([]indicator.Point(nil), points...)
}

func (s *headlessSeries) SetVisible(visible bool) {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	s.visible = visible
}

func (s *headlessSeries) CreatePriceLine(line models.PriceLine) PriceLineID {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	s.nextID++
	s.lines[s.nextID] = line
	return s.nextID
}

func (s *headlessSeries) RemovePriceLine(id PriceLineID) {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	delete(s.lines, id)
}

// snapshot must be called with the engine lock held.
func (s *headlessSeries) snapshot() SeriesSnapshot {
	ids := make([]int, 0, len(s.lines))
	for id := range s.lines {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	lines := make([]models.PriceLine, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, s.lines[PriceLineID(id)])
	}
	return SeriesSnapshot{
		Kind:       s.kind,
		Visible:    s.visible,
		Candles:    append([]models.Candle(nil), s.candles...),
		Points:     append([]indicator.Point(nil), s.points...),
		PriceLines: lines,
	}
}
