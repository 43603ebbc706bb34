package models

// Candle is one OHLC bar keyed by unix seconds.
type Candle struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Valid reports whether the bar respects low <= min(open, close) and high >= max(open, close).
func (c Candle) Valid() bool {
	lo, hi := c.Open, c.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	return c.Low <= lo && c.High >= hi
}

// Series is an ordered candle sequence for a single symbol.
type Series struct {
	Symbol  string   `json:"symbol"`
	Candles []Candle `json:"candles"`
}

// Last returns the most recent candle, if any.
func (s Series) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Closes extracts close prices in order.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// CandlesResponse is the wire shape served by /api/market/candles and pushed on /ws/feed.
type CandlesResponse struct {
	Symbol   string   `json:"symbol"`
	Candles  []Candle `json:"candles"`
	Provider string   `json:"provider"`
	Interval string   `json:"interval"`
	Range    string   `json:"range"`
	Count    int      `json:"count"`
}
