// Package indicator derives chart overlays (EMA lines, a volume proxy, close values) from candles.
package indicator

import (
	"math"

	"ChartDesk/internal/domain/models"
)

// DefaultEMAPeriod is used when a non-positive period is requested.
const DefaultEMAPeriod = 9

// VolumeScale multiplies the candle body into the synthetic volume proxy.
const VolumeScale = 1000.0

// Point is a single time/value sample of a derived series.
type Point struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// Rand is the uniform [0,1) source for the volume noise.
type Rand interface {
	Float64() float64
}

// EMA computes the exponential moving average seeded with the first value.
func EMA(values []float64, period int) []float64 {
	if period <= 0 {
		period = DefaultEMAPeriod
	}
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// EMASeries returns the EMA of closes aligned to candle times.
func EMASeries(candles []models.Candle, period int) []Point {
	ema := EMA(models.Closes(candles), period)
	out := make([]Point, len(candles))
	for i, c := range candles {
		out[i] = Point{Time: c.Time, Value: ema[i]}
	}
	return out
}

// VolumeProxy estimates volume from the candle body plus up to noise units of jitter.
// A nil rnd disables the jitter.
func VolumeProxy(candles []models.Candle, noise float64, rnd Rand) []Point {
	out := make([]Point, len(candles))
	for i, c := range candles {
		v := math.Abs(c.Close-c.Open) * VolumeScale
		if rnd != nil && noise > 0 {
			v += rnd.Float64() * noise
		}
		out[i] = Point{Time: c.Time, Value: v}
	}
	return out
}

// Values maps points to their closes for line and area series.
func Values(candles []models.Candle) []Point {
	out := make([]Point, len(candles))
	for i, c := range candles {
		out[i] = Point{Time: c.Time, Value: c.Close}
	}
	return out
}
