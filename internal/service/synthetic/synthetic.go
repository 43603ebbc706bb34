// Package synthetic fabricates plausible candle series for when no upstream data is available.
package synthetic

import (
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"ChartDesk/internal/domain/models"
	"ChartDesk/pkg/util"
)

// Count is the number of candles every generated series carries.
const Count = 40

// DefaultBasePrice is used for symbols missing from the base price table.
const DefaultBasePrice = 175.0

// Horizon selects the drift/volatility bucket of a generated series.
type Horizon string

const (
	HorizonDay   Horizon = "day"
	HorizonWeek  Horizon = "week"
	HorizonMonth Horizon = "month"
	HorizonYear  Horizon = "year"
)

// Rand is the uniform [0,1) source used by Generate.
type Rand interface {
	Float64() float64
}

type profile struct {
	drift float64
	vol   float64
}

var profiles = map[Horizon]profile{
	HorizonDay:   {drift: 0.002, vol: 0.004},
	HorizonWeek:  {drift: 0.01, vol: 0.01},
	HorizonMonth: {drift: 0.03, vol: 0.02},
	HorizonYear:  {drift: 0.08, vol: 0.04},
}

var basePrices = map[string]float64{
	"AAPL":     175,
	"MSFT":     330,
	"GOOGL":    135,
	"AMZN":     130,
	"TSLA":     240,
	"NVDA":     450,
	"META":     300,
	"TCS":      3500,
	"RELIANCE": 2500,
	"INFY":     1500,
	"BTC":      43000,
	"ETH":      2300,
	"SPY":      450,
}

// BasePrice returns the anchor price for symbol.
func BasePrice(symbol string) float64 {
	if p, ok := basePrices[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
		return p
	}
	return DefaultBasePrice
}

// ParseHorizon maps free text onto a horizon bucket; unknown values are week.
func ParseHorizon(s string) Horizon {
	h := Horizon(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := profiles[h]; ok {
		return h
	}
	return HorizonWeek
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Generate returns Count candles ending at now truncated to the interval.
func Generate(symbol string, horizon Horizon, intervalMinutes int, now time.Time, rnd Rand) models.Series {
	if rnd == nil {
		rnd = globalRand{}
	}
	if intervalMinutes <= 0 {
		intervalMinutes = 1
	}
	p, ok := profiles[horizon]
	if !ok {
		p = profiles[HorizonWeek]
	}
	base := BasePrice(symbol)
	step := int64(intervalMinutes) * 60
	last := util.AlignToInterval(now, intervalMinutes).Unix()
	first := last - int64(Count-1)*step

	candles := make([]models.Candle, Count)
	for i := range candles {
		open := base + math.Sin(float64(i)/5)*base*p.drift + (rnd.Float64()-0.5)*base*p.vol
		closePrice := open + (rnd.Float64()-0.5)*base*p.vol
		wick := base * p.vol * 0.5
		candles[i] = models.Candle{
			Time:  first + int64(i)*step,
			Open:  open,
			High:  math.Max(open, closePrice) + rnd.Float64()*wick,
			Low:   math.Min(open, closePrice) - rnd.Float64()*wick,
			Close: closePrice,
		}
	}

	name := strings.TrimSpace(symbol)
	if name == "" {
		name = "Asset"
	}
	return models.Series{Symbol: name, Candles: candles}
}
