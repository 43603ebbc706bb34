package usecase

import (
	"context"
	"fmt"
	"time"

	"ChartDesk/internal/domain/models"
	drepo "ChartDesk/internal/domain/repository"
)

const (
	defaultHistoryLimit = 500
	maxHistoryLimit     = 5000
	defaultHistorySpan  = 7 * 24 * time.Hour
)

// HistoryUseCase reads archived candles.
type HistoryUseCase struct {
	archive drepo.CandleArchive
	now     func() time.Time
}

// NewHistoryUseCase accepts a nil archive; queries then fail with ErrArchiveDisabled.
func NewHistoryUseCase(archive drepo.CandleArchive) *HistoryUseCase {
	return &HistoryUseCase{archive: archive, now: time.Now}
}

type HistoryParams struct {
	Symbol   string
	Interval int
	From     time.Time
	To       time.Time
	Limit    int
}

type HistoryResult struct {
	Symbol   string          `json:"symbol"`
	Interval string          `json:"interval"`
	From     int64           `json:"from"`
	To       int64           `json:"to"`
	Count    int             `json:"count"`
	Candles  []models.Candle `json:"candles"`
}

// GetHistory defaults To to now and From to a week before To.
func (uc *HistoryUseCase) GetHistory(ctx context.Context, p HistoryParams) (*HistoryResult, error) {
	if uc.archive == nil {
		return nil, models.ErrArchiveDisabled
	}
	sym, err := NormalizeSymbol(p.Symbol)
	if err != nil {
		return nil, err
	}
	if p.To.IsZero() {
		p.To = uc.now()
	}
	if p.From.IsZero() {
		p.From = p.To.Add(-defaultHistorySpan)
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to: %w", models.ErrInvalidArgument)
	}
	if p.Limit <= 0 {
		p.Limit = defaultHistoryLimit
	}
	if p.Limit > maxHistoryLimit {
		p.Limit = maxHistoryLimit
	}
	iv := drepo.NormalizeInterval(p.Interval)

	candles, err := uc.archive.Query(ctx, sym, iv, p.From, p.To, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", sym, err)
	}
	return &HistoryResult{
		Symbol:   sym,
		Interval: iv.ProviderCode(),
		From:     p.From.Unix(),
		To:       p.To.Unix(),
		Count:    len(candles),
		Candles:  candles,
	}, nil
}
