package repository

import (
	"context"
	"time"

	"ChartDesk/internal/domain/models"
)

// MarketProvider fetches candles from an upstream market-data endpoint.
type MarketProvider interface {
	Name() string
	FetchCandles(ctx context.Context, symbol string, iv Interval) ([]models.Candle, error)
}

// CandleFetcher is the desk's pull channel: it returns the decoded JSON payload of the
// candles endpoint so that it flows through the normalizer like any socket frame.
type CandleFetcher interface {
	FetchCandles(ctx context.Context, symbol string, intervalMinutes int) (any, error)
}

// FeedSocket is one open push-channel connection.
type FeedSocket interface {
	ReadMessage(ctx context.Context) ([]byte, error)
	Close() error
}

// FeedDialer opens push-channel connections.
type FeedDialer interface {
	Dial(ctx context.Context, url string) (FeedSocket, error)
}

// CandleArchive persists served candles for later history queries.
type CandleArchive interface {
	StoreBatch(ctx context.Context, symbol string, iv Interval, candles []models.Candle) error
	Query(ctx context.Context, symbol string, iv Interval, from, to time.Time, limit int) ([]models.Candle, error)
	Health(ctx context.Context) error
	Close() error
}

// CandlePublisher fans normalized series out to a message bus.
type CandlePublisher interface {
	PublishSeries(ctx context.Context, iv Interval, s models.Series) error
	Close() error
}

// EventLog is an append-only stream store with bounded length per stream.
type EventLog interface {
	Append(ctx context.Context, e models.LogEvent) error
	ReadLast(ctx context.Context, stream string, n int) ([]models.LogEvent, error)
	Close() error
}

type Metrics interface {
	RecordFeedUpdate(source string)
	RecordFallback(symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
