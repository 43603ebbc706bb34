// Package chart binds candle data, indicators and price overlays to a chart engine.
package chart

import (
	"ChartDesk/internal/domain/models"
	"ChartDesk/internal/service/indicator"
)

// SeriesKind identifies a series attached to the engine.
type SeriesKind string

const (
	SeriesCandles SeriesKind = "candles"
	SeriesLine    SeriesKind = "line"
	SeriesArea    SeriesKind = "area"
	SeriesEMA     SeriesKind = "ema"
	SeriesVolume  SeriesKind = "volume"
)

// PriceLineID identifies a price line within its series.
type PriceLineID int

// Engine is the rendering surface. One engine lives per mount and per theme.
type Engine interface {
	AddSeries(kind SeriesKind) Series
	FitContent()
	PriceToCoordinate(price float64) (float64, bool)
	Resize(width, height float64)
	Snapshot() EngineSnapshot
	Destroy()
}

// Series is one plotted data set.
type Series interface {
	SetCandles(candles []models.Candle)
	SetPoints(points []indicator.Point)
	SetVisible(visible bool)
	CreatePriceLine(line models.PriceLine) PriceLineID
	RemovePriceLine(id PriceLineID)
}

// EngineFactory creates an engine styled with the palette.
type EngineFactory func(p Palette) Engine

// Palette carries the theme colors.
type Palette struct {
	Theme      models.Theme `json:"theme"`
	Background string       `json:"background"`
	Text       string       `json:"text"`
	Grid       string       `json:"grid"`
	Up         string       `json:"up"`
	Down       string       `json:"down"`
	Line       string       `json:"line"`
	Area       string       `json:"area"`
	EMA        string       `json:"ema"`
	Volume     string       `json:"volume"`
	Last       string       `json:"last"`
	StopLoss   string       `json:"stop_loss"`
	Target     string       `json:"target"`
}

// PaletteFor returns the palette of a theme; unknown themes are dark.
func PaletteFor(theme models.Theme) Palette {
	if theme == models.ThemeLight {
		return Palette{
			Theme:      models.ThemeLight,
			Background: "#FFFFFF",
			Text:       "#191919",
			Grid:       "#F0F3FA",
			Up:         "#089981",
			Down:       "#F23645",
			Line:       "#2962FF",
			Area:       "rgba(41, 98, 255, 0.2)",
			EMA:        "#FF6D00",
			Volume:     "rgba(120, 123, 134, 0.4)",
			Last:       "#2962FF",
			StopLoss:   "#F23645",
			Target:     "#089981",
		}
	}
	return Palette{
		Theme:      models.ThemeDark,
		Background: "#131722",
		Text:       "#D1D4DC",
		Grid:       "#1E222D",
		Up:         "#26A69A",
		Down:       "#EF5350",
		Line:       "#2962FF",
		Area:       "rgba(41, 98, 255, 0.28)",
		EMA:        "#FFB74D",
		Volume:     "rgba(178, 181, 190, 0.35)",
		Last:       "#42A5F5",
		StopLoss:   "#EF5350",
		Target:     "#26A69A",
	}
}

// EngineSnapshot is the JSON render of an engine.
type EngineSnapshot struct {
	Palette    Palette          `json:"palette"`
	Width      float64          `json:"width"`
	Height     float64          `json:"height"`
	Fits       int              `json:"fits"`
	PriceRange PriceRange       `json:"price_range"`
	Series     []SeriesSnapshot `json:"series"`
	Destroyed  bool             `json:"destroyed,omitempty"`
}

// PriceRange is the visible price scale.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// SeriesSnapshot is the JSON render of one series.
type SeriesSnapshot struct {
	Kind       SeriesKind         `json:"kind"`
	Visible    bool               `json:"visible"`
	Candles    []models.Candle    `json:"candles,omitempty"`
	Points     []indicator.Point  `json:"points,omitempty"`
	PriceLines []models.PriceLine `json:"price_lines,omitempty"`
}
