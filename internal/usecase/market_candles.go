package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ChartDesk/internal/domain/models"
	drepo "ChartDesk/internal/domain/repository"
	"ChartDesk/internal/service/cache"
	"ChartDesk/pkg/logger"
)

// MarketCandlesUseCase serves upstream candles with a short response cache.
// Served series are archived and published best-effort.
type MarketCandlesUseCase struct {
	provider  drepo.MarketProvider
	cache     cache.BytesCache
	ttl       time.Duration
	archive   drepo.CandleArchive
	publisher drepo.CandlePublisher
	log       *logger.Logger
	metrics   drepo.Metrics
	now       func() time.Time
}

type MarketOption func(*MarketCandlesUseCase)

// WithResponseCache enables the response cache. A non-positive ttl disables it.
func WithResponseCache(c cache.BytesCache, ttl time.Duration) MarketOption {
	return func(uc *MarketCandlesUseCase) {
		if c != nil && ttl > 0 {
			uc.cache, uc.ttl = c, ttl
		}
	}
}

// WithArchive stores every served series.
func WithArchive(a drepo.CandleArchive) MarketOption {
	return func(uc *MarketCandlesUseCase) { uc.archive = a }
}

// WithPublisher publishes every served series.
func WithPublisher(p drepo.CandlePublisher) MarketOption {
	return func(uc *MarketCandlesUseCase) { uc.publisher = p }
}

func NewMarketCandlesUseCase(provider drepo.MarketProvider, log *logger.Logger, metrics drepo.Metrics, opts ...MarketOption) *MarketCandlesUseCase {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	uc := &MarketCandlesUseCase{
		provider: provider,
		log:      log.Component("market"),
		metrics:  metrics,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// NormalizeSymbol trims and upper-cases a ticker. Empty or oversized symbols are rejected.
func NormalizeSymbol(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" || len(s) > 24 || strings.ContainsAny(s, " /?#&") {
		return "", fmt.Errorf("symbol %q: %w", raw, models.ErrInvalidArgument)
	}
	return s, nil
}

// GetCandles returns the candles response for symbol at the given resolution.
// Unsupported intervals snap to the nearest supported one.
func (uc *MarketCandlesUseCase) GetCandles(ctx context.Context, symbol string, intervalMinutes int) (*models.CandlesResponse, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	iv := drepo.NormalizeInterval(intervalMinutes)
	key := sym + "|" + iv.ProviderCode()

	if resp, ok := uc.cached(ctx, key); ok {
		return resp, nil
	}

	start := uc.now()
	candles, err := uc.provider.FetchCandles(ctx, sym, iv)
	uc.metrics.RecordLatency("market_fetch", uc.now().Sub(start).Seconds())
	if err == nil && len(candles) == 0 {
		err = models.ErrNoData
	}
	if err != nil {
		kind := "market_upstream"
		if errors.Is(err, models.ErrNoData) {
			kind = "market_no_data"
		}
		uc.metrics.RecordError(kind)
		uc.log.Warn("fetch candles failed",
			logger.String("symbol", sym),
			logger.String("interval", iv.ProviderCode()),
			logger.Error(err),
		)
		return nil, fmt.Errorf("fetch %s: %w", sym, err)
	}

	resp := &models.CandlesResponse{
		Symbol:   sym,
		Candles:  candles,
		Provider: uc.provider.Name(),
		Interval: iv.ProviderCode(),
		Range:    iv.Range(),
		Count:    len(candles),
	}
	uc.metrics.RecordLastPrice(sym, candles[len(candles)-1].Close)
	uc.store(ctx, key, resp)
	uc.fanOut(ctx, iv, models.Series{Symbol: sym, Candles: candles})
	return resp, nil
}

func (uc *MarketCandlesUseCase) cached(ctx context.Context, key string) (*models.CandlesResponse, bool) {
	if uc.cache == nil {
		return nil, false
	}
	b, ok, err := uc.cache.GetBytes(ctx, key)
	if err != nil {
		uc.log.Debug("cache get failed", logger.String("key", key), logger.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var resp models.CandlesResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

func (uc *MarketCandlesUseCase) store(ctx context.Context, key string, resp *models.CandlesResponse) {
	if uc.cache == nil {
		return
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := uc.cache.SetBytes(ctx, key, b, uc.ttl); err != nil {
		uc.log.Debug("cache set failed", logger.String("key", key), logger.Error(err))
	}
}

// fanOut never fails the request.
func (uc *MarketCandlesUseCase) fanOut(ctx context.Context, iv drepo.Interval, s models.Series) {
	if uc.archive != nil {
		if err := uc.archive.StoreBatch(ctx, s.Symbol, iv, s.Candles); err != nil {
			uc.metrics.RecordError("archive_store")
			uc.log.Warn("archive store failed", logger.String("symbol", s.Symbol), logger.Error(err))
		}
	}
	if uc.publisher != nil {
		if err := uc.publisher.PublishSeries(ctx, iv, s); err != nil {
			uc.log.Warn("publish series failed", logger.String("symbol", s.Symbol), logger.Error(err))
		}
	}
}
