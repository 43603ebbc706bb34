// Package yahoo fetches OHLC candles from the public Yahoo chart API.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"ChartDesk/internal/domain/models"
	drepo "ChartDesk/internal/domain/repository"
	xhttp "ChartDesk/pkg/http"
)

// ProviderName labels candles served by this provider.
const ProviderName = "yfinance"

// DefaultBaseURL is the public chart endpoint.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Provider implements drepo.MarketProvider.
type Provider struct {
	client    *xhttp.Client
	baseURL   string
	symbolMap map[string]string
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL points the provider at another host.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithSymbolMap maps desk symbols to upstream tickers (e.g. TCS -> TCS.NS).
func WithSymbolMap(m map[string]string) Option {
	return func(p *Provider) {
		for k, v := range m {
			p.symbolMap[strings.ToUpper(k)] = v
		}
	}
}

// New creates a provider using client for transport.
func New(client *xhttp.Client, opts ...Option) *Provider {
	p := &Provider{
		client:  client,
		baseURL: DefaultBaseURL,
		symbolMap: map[string]string{
			"SPX":      "^GSPC",
			"SPX500":   "^GSPC",
			"BTC":      "BTC-USD",
			"ETH":      "ETH-USD",
			"TCS":      "TCS.NS",
			"RELIANCE": "RELIANCE.NS",
			"INFY":     "INFY.NS",
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) ticker(symbol string) string {
	if mapped, ok := p.symbolMap[strings.ToUpper(symbol)]; ok {
		return mapped
	}
	return symbol
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					High  []*float64 `json:"high"`
					Low   []*float64 `json:"low"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchCandles returns ascending candles. An answered request without bars is models.ErrNoData;
// transport failures and non-2xx statuses are *models.UpstreamError.
func (p *Provider) FetchCandles(ctx context.Context, symbol string, iv drepo.Interval) ([]models.Candle, error) {
	var body chartResponse
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/v8/finance/chart/%s", p.baseURL, url.PathEscape(p.ticker(symbol))),
		QueryParams: map[string][]string{
			"interval": {iv.ProviderCode()},
			"range":    {iv.Range()},
		},
		Headers: map[string]string{"Accept": "application/json"},
	}, &body)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) {
			if se.StatusCode == 404 {
				return nil, fmt.Errorf("%s: %w", symbol, models.ErrNoData)
			}
			return nil, &models.UpstreamError{Provider: ProviderName, Status: se.StatusCode, Err: err}
		}
		return nil, &models.UpstreamError{Provider: ProviderName, Err: err}
	}

	if body.Chart.Error != nil {
		if body.Chart.Error.Code == "Not Found" {
			return nil, fmt.Errorf("%s: %w", symbol, models.ErrNoData)
		}
		return nil, &models.UpstreamError{Provider: ProviderName, Err: errors.New(body.Chart.Error.Description)}
	}
	if len(body.Chart.Result) == 0 || len(body.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, models.ErrNoData)
	}

	result := body.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	candles := make([]models.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, ok1 := at(quote.Open, i)
		h, ok2 := at(quote.High, i)
		l, ok3 := at(quote.Low, i)
		c, ok4 := at(quote.Close, i)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			// null bars: halts, holidays
			continue
		}
		candles = append(candles, models.Candle{Time: ts, Open: o, High: h, Low: l, Close: c})
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, models.ErrNoData)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return candles, nil
}

func at(xs []*float64, i int) (float64, bool) {
	if i >= len(xs) || xs[i] == nil {
		return 0, false
	}
	return *xs[i], true
}
