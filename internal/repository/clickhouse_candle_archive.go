package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ChartDesk/internal/domain/models"
	domrepo "ChartDesk/internal/domain/repository"
	applogger "ChartDesk/pkg/logger"
)

// CandleArchive stores served candles in a ClickHouse table created by
// clickhouse.CandleSchema.
type CandleArchive struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.CandleArchive = (*CandleArchive)(nil)

// NewCandleArchive creates the archive over an open pool.
func NewCandleArchive(db *sql.DB, table string, l *applogger.Logger) *CandleArchive {
	if l == nil {
		l = applogger.Nop()
	}
	if table == "" {
		table = "candles"
	}
	return &CandleArchive{db: db, table: table, l: l.Component("candle_archive")}
}

// StoreBatch inserts candles with multi-row VALUES, 2000 rows per statement.
func (s *CandleArchive) StoreBatch(ctx context.Context, symbol string, iv domrepo.Interval, candles []models.Candle) error {
	if symbol == "" || len(candles) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(candles); start += chunkSize {
		end := min(start+chunkSize, len(candles))

		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*7)
		for _, c := range candles[start:end] {
			if c.Time <= 0 {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, symbol, iv.Minutes(), c.Time, c.Open, c.High, c.Low, c.Close)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, interval_min, ts, open, high, low, close) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("store batch failed",
				applogger.String("symbol", symbol),
				applogger.Int("rows", len(values)),
				applogger.Error(err),
			)
			return fmt.Errorf("store candles: %w", err)
		}
	}
	return nil
}

// Query returns up to limit candles in [from, to], oldest first. When more
// rows match, the most recent ones win.
func (s *CandleArchive) Query(ctx context.Context, symbol string, iv domrepo.Interval, from, to time.Time, limit int) ([]models.Candle, error) {
	if limit <= 0 {
		limit = 500
	}
	q := fmt.Sprintf(`SELECT ts, open, high, low, close FROM %s
WHERE symbol = ? AND interval_min = ? AND ts >= ? AND ts <= ?
ORDER BY ts DESC LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, iv.Minutes(), from.Unix(), to.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, limit)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		// Unmerged replacing rows surface as adjacent duplicates.
		if n := len(out); n > 0 && out[n-1].Time == c.Time {
			continue
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *CandleArchive) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to the clickhouse client.
func (s *CandleArchive) Close() error {
	return nil
}
