package repository

import "fmt"

// Interval is a candle resolution in minutes.
type Interval int

// Supported resolutions, matching what the upstream chart API accepts.
var supportedIntervals = []Interval{1, 2, 5, 15, 30, 60, 90, 1440}

// DefaultInterval returns the default resolution.
func DefaultInterval() Interval { return 5 }

// NormalizeInterval snaps minutes to the closest supported resolution not below it,
// or to the largest one.
func NormalizeInterval(minutes int) Interval {
	if minutes <= 0 {
		return DefaultInterval()
	}
	for _, iv := range supportedIntervals {
		if int(iv) >= minutes {
			return iv
		}
	}
	return supportedIntervals[len(supportedIntervals)-1]
}

// Minutes returns the resolution in minutes.
func (iv Interval) Minutes() int { return int(iv) }

// ProviderCode returns the upstream interval code ("5m", "1d").
func (iv Interval) ProviderCode() string {
	if iv >= 1440 {
		return "1d"
	}
	return fmt.Sprintf("%dm", int(iv))
}

// Range returns the lookback window requested for the resolution.
func (iv Interval) Range() string {
	switch {
	case iv <= 2:
		return "1d"
	case iv <= 15:
		return "5d"
	case iv <= 90:
		return "1mo"
	default:
		return "6mo"
	}
}
