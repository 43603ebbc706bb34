// Package marketapi is the desk's pull-channel client for the candles endpoint.
package marketapi

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"ChartDesk/internal/domain/models"
	xhttp "ChartDesk/pkg/http"
)

// ProviderName labels errors raised by this client.
const ProviderName = "market-api"

// CandlesPath is the candles route relative to the base URL.
const CandlesPath = "/api/market/candles"

// Client implements drepo.CandleFetcher against a ChartDesk market API.
type Client struct {
	http    *xhttp.Client
	baseURL string
}

func New(baseURL string, client *xhttp.Client) *Client {
	if client == nil {
		client = xhttp.NewClient()
	}
	return &Client{http: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// FetchCandles returns the decoded JSON body untouched so it can be normalized like a socket frame.
// Non-2xx statuses and transport failures are *models.UpstreamError.
func (c *Client) FetchCandles(ctx context.Context, symbol string, intervalMinutes int) (any, error) {
	var payload any
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + CandlesPath,
		QueryParams: map[string][]string{
			"symbol":   {symbol},
			"interval": {strconv.Itoa(intervalMinutes)},
		},
		Headers: map[string]string{"Accept": "application/json"},
	}, &payload)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) {
			return nil, &models.UpstreamError{Provider: ProviderName, Status: se.StatusCode, Err: err}
		}
		return nil, &models.UpstreamError{Provider: ProviderName, Err: err}
	}
	return payload, nil
}
