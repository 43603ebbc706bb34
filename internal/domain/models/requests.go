package models

// Requests for the market and desk HTTP endpoints. Defaults are applied with creasty/defaults
// before validation.

type CandlesRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required,max=32"`
	Interval int    `query:"interval" json:"interval" default:"5" validate:"gte=1,lte=1440"`
}

type HistoryRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required,max=32"`
	Interval int    `query:"interval" json:"interval" default:"5" validate:"gte=1,lte=1440"`
	From     string `query:"from" json:"from"`
	To       string `query:"to" json:"to"`
	Limit    int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
}

type SymbolRequest struct {
	Symbol   string `json:"symbol" validate:"required,max=32"`
	Interval int    `json:"interval" default:"5" validate:"gte=1,lte=1440"`
	Horizon  string `json:"horizon" default:"week" validate:"oneof=day week month year"`
}

type ToolRequest struct {
	Tool string `json:"tool" validate:"required,oneof=cursor trend-line horizontal-line text measure delete"`
}

type PointerRequest struct {
	Type string  `json:"type" validate:"required,oneof=down move up"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Text string  `json:"text" validate:"max=280"`
}

type ThemeRequest struct {
	Theme string `json:"theme" validate:"required,oneof=dark light"`
}

type ChartTypeRequest struct {
	ChartType string `json:"chart_type" validate:"required,oneof=candle line area all"`
}

type IndicatorsRequest struct {
	EMA       bool `json:"ema"`
	EMAPeriod int  `json:"ema_period" default:"9" validate:"gte=1,lte=500"`
	Volume    bool `json:"volume"`
}

type RiskRequest struct {
	StopLossPct     float64 `json:"stop_loss_pct" validate:"gte=0,lt=100"`
	TargetReturnPct float64 `json:"target_return_pct" validate:"gte=0,lte=1000"`
}

type HorizontalLineRequest struct {
	Price float64 `json:"price" validate:"gt=0"`
}

type FeedbackRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
	Rating  int    `json:"rating" validate:"gte=0,lte=5"`
}

type BoundsRequest struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
}
