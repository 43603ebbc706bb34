package models

// ChartType selects which price series are visible.
type ChartType string

const (
	ChartCandle ChartType = "candle"
	ChartLine   ChartType = "line"
	ChartArea   ChartType = "area"
	ChartAll    ChartType = "all"
)

// Theme selects the chart palette.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// PriceLineKind names the three overlay price lines.
type PriceLineKind string

const (
	PriceLineLast     PriceLineKind = "last"
	PriceLineStopLoss PriceLineKind = "stop-loss"
	PriceLineTarget   PriceLineKind = "target"
)

// PriceLine is an overlay at a fixed price.
type PriceLine struct {
	Kind  PriceLineKind `json:"kind"`
	Price float64       `json:"price"`
	Color string        `json:"color"`
	Style string        `json:"style"`
}

// RiskParams drive the stop-loss and target lines. Zero disables a line.
type RiskParams struct {
	StopLossPct     float64 `json:"stop_loss_pct"`
	TargetReturnPct float64 `json:"target_return_pct"`
}

// Levels derives stop-loss and target prices from the last close.
func (r RiskParams) Levels(last float64) (stop, target float64) {
	if last <= 0 {
		return 0, 0
	}
	if r.StopLossPct > 0 {
		stop = last * (1 - r.StopLossPct/100)
	}
	if r.TargetReturnPct > 0 {
		target = last * (1 + r.TargetReturnPct/100)
	}
	return stop, target
}
