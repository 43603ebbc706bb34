// Package normalize turns heterogeneous feed payloads into canonical candle series.
//
// Three shapes are understood: a wrapper carrying a "candles" array, a bare array of
// price snapshots, and a wrapper carrying "predictions" or "data" snapshot arrays.
// Everything else normalizes to an empty series. The functions here are pure: the
// caller supplies "now" for snapshots that carry no timestamp.
package normalize

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"ChartDesk/internal/domain/models"
	"ChartDesk/pkg/util"
)

// DefaultSymbol labels series whose payload names no symbol.
const DefaultSymbol = "Asset"

// snapshotStep spaces snapshots that carry no timestamp of their own.
const snapshotStep = 60 * time.Second

// minPadRatio is the minimum high/low padding of a snapshot candle, relative to close.
const minPadRatio = 0.002

// NormalizeJSON decodes b and normalizes it. Malformed JSON yields an empty series.
func NormalizeJSON(b []byte, now time.Time) models.Series {
	if len(b) == 0 {
		return empty()
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return empty()
	}
	return Normalize(v, now)
}

// Normalize classifies payload and converts it to an ascending, de-duplicated series.
func Normalize(payload any, now time.Time) models.Series {
	switch p := payload.(type) {
	case nil:
		return empty()
	case []byte:
		return NormalizeJSON(p, now)
	case json.RawMessage:
		return NormalizeJSON(p, now)
	case []any:
		return fromSnapshots(p, "", now)
	case map[string]any:
		symbol, _ := p["symbol"].(string)
		if raw, ok := p["candles"].([]any); ok {
			return models.Series{Symbol: orDefault(symbol), Candles: sortDedupe(sanitize(raw))}
		}
		if raw, ok := p["predictions"].([]any); ok {
			return fromSnapshots(raw, symbol, now)
		}
		if raw, ok := p["data"].([]any); ok {
			return fromSnapshots(raw, symbol, now)
		}
	}
	return empty()
}

func empty() models.Series {
	return models.Series{Symbol: DefaultSymbol, Candles: []models.Candle{}}
}

func orDefault(symbol string) string {
	if strings.TrimSpace(symbol) == "" {
		return DefaultSymbol
	}
	return symbol
}

// sanitize keeps entries that carry all of time/open/high/low/close in a coercible form.
func sanitize(raw []any) []models.Candle {
	out := make([]models.Candle, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ts, ok := toUnix(m["time"], false)
		if !ok {
			continue
		}
		o, ok1 := toFloat(m["open"])
		h, ok2 := toFloat(m["high"])
		l, ok3 := toFloat(m["low"])
		c, ok4 := toFloat(m["close"])
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		out = append(out, models.Candle{Time: ts, Open: o, High: h, Low: l, Close: c})
	}
	return out
}

// fromSnapshots derives one candle per price snapshot.
func fromSnapshots(raw []any, fallbackSymbol string, now time.Time) models.Series {
	out := make([]models.Candle, 0, len(raw))
	symbol := ""
	n := len(raw)
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if symbol == "" {
			symbol = firstString(m, "symbol", "asset")
		}
		price, ok := firstFloat(m, "price", "currentPrice", "close")
		if !ok {
			continue
		}
		change, _ := firstFloat(m, "change", "priceChange")

		ts, ok := toUnix(firstPresent(m, "timestamp", "time"), true)
		if !ok {
			ts = now.Add(-time.Duration(n-1-i) * snapshotStep).Unix()
		}

		open := price - change
		pad := math.Max(math.Abs(change), price*minPadRatio)
		out = append(out, models.Candle{
			Time:  ts,
			Open:  open,
			High:  math.Max(open, price) + pad,
			Low:   math.Min(open, price) - pad,
			Close: price,
		})
	}
	if symbol == "" {
		symbol = fallbackSymbol
	}
	return models.Series{Symbol: orDefault(symbol), Candles: sortDedupe(out)}
}

// sortDedupe orders by time; for equal timestamps the later entry wins.
func sortDedupe(cs []models.Candle) []models.Candle {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Time < cs[j].Time })
	out := cs[:0]
	for _, c := range cs {
		if len(out) > 0 && out[len(out)-1].Time == c.Time {
			out[len(out)-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if f, ok := toFloat(m[k]); ok {
			return f, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = x
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = x
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toUnix coerces a time value to unix seconds. Numbers pass through; when
// millisAware is set, values that look like epoch milliseconds are scaled down.
func toUnix(v any, millisAware bool) (int64, bool) {
	if s, ok := v.(string); ok {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			v = n
		} else {
			t, ok := util.ParseTime(s)
			if !ok {
				return 0, false
			}
			return t.Unix(), true
		}
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	ts := int64(f)
	if millisAware {
		ts = util.UnixSeconds(ts)
	}
	return ts, true
}
