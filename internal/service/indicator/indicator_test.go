package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChartDesk/internal/domain/models"
)

func TestEMA_ConstantSeries(t *testing.T) {
	values := []float64{100, 100, 100, 100, 100}
	assert.Equal(t, values, EMA(values, 9))
}

func TestEMA_SeedAndRecurrence(t *testing.T) {
	got := EMA([]float64{10, 20, 30}, 3)

	require.Len(t, got, 3)
	assert.Equal(t, 10.0, got[0])
	assert.InDelta(t, 15.0, got[1], 1e-9)
	assert.InDelta(t, 22.5, got[2], 1e-9)
}

func TestEMA_ConvergesToStep(t *testing.T) {
	values := make([]float64, 200)
	for i := range values {
		if i >= 10 {
			values[i] = 50
		}
	}
	got := EMA(values, 9)
	assert.InDelta(t, 50.0, got[len(got)-1], 1e-6)
}

func TestEMA_DefaultsAndEmpty(t *testing.T) {
	assert.Empty(t, EMA(nil, 9))
	assert.Equal(t, EMA([]float64{1, 2, 3}, DefaultEMAPeriod), EMA([]float64{1, 2, 3}, 0))
}

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func TestVolumeProxy(t *testing.T) {
	candles := []models.Candle{
		{Time: 1, Open: 10, Close: 10.5},
		{Time: 2, Open: 10.5, Close: 10.25},
	}

	plain := VolumeProxy(candles, 100, nil)
	assert.Equal(t, []Point{{Time: 1, Value: 500}, {Time: 2, Value: 250}}, plain)

	noisy := VolumeProxy(candles, 100, fixedRand(0.5))
	assert.Equal(t, 550.0, noisy[0].Value)
}

func TestEMASeriesAlignsTimes(t *testing.T) {
	candles := []models.Candle{{Time: 60, Close: 1}, {Time: 120, Close: 2}}
	got := EMASeries(candles, 1)
	assert.Equal(t, []Point{{Time: 60, Value: 1}, {Time: 120, Value: 2}}, got)
}

func TestValuesUsesCloses(t *testing.T) {
	candles := []models.Candle{{Time: 60, Open: 1, Close: 1.5}, {Time: 120, Open: 2, Close: 1.8}}
	assert.Equal(t, []Point{{Time: 60, Value: 1.5}, {Time: 120, Value: 1.8}}, Values(candles))
	assert.Empty(t, Values(nil))
}
