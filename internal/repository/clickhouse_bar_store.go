package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinSignal/internal/domain/errs"
	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	pkgch "FinSignal/pkg/clickhouse"
	applogger "FinSignal/pkg/logger"
)

// DailyBarsSchema creates the table CHBarStore reads from.
var DailyBarsSchema = []string{
	`CREATE DATABASE IF NOT EXISTS finsignal`,
	`CREATE TABLE IF NOT EXISTS finsignal.daily_bars (
		symbol LowCardinality(String),
		day    Date,
		open   Float64,
		high   Float64,
		low    Float64,
		close  Float64,
		volume Float64
	) ENGINE = ReplacingMergeTree
	ORDER BY (symbol, day)`,
}

const selectBars = `
        SELECT day, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND day >= ?
        ORDER BY day ASC
    `

// CHBarStore implements QuoteProvider over daily bars kept in ClickHouse.
type CHBarStore struct {
	db          *sql.DB
	table       string
	historyDays int
	l           *applogger.Logger
	now         func() time.Time
}

// NewCHBarStore creates a ClickHouse-backed quote provider. historyDays is
// the minimum calendar window read, whatever lookback the caller asks for.
func NewCHBarStore(ch *pkgch.Client, table string, historyDays int, l *applogger.Logger) *CHBarStore {
	return newCHBarStore(ch.DB(), table, historyDays, l)
}

func newCHBarStore(db *sql.DB, table string, historyDays int, l *applogger.Logger) *CHBarStore {
	if table == "" {
		table = "finsignal.daily_bars"
	}
	if historyDays <= 0 {
		historyDays = 60
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &CHBarStore{db: db, table: table, historyDays: historyDays, l: l, now: time.Now}
}

// GetBars returns ascending daily bars from the start of the window.
func (s *CHBarStore) GetBars(ctx context.Context, symbol string, lookbackDays int) ([]models.PriceBar, error) {
	start := time.Now()
	days := lookbackDays
	if days < s.historyDays {
		days = s.historyDays
	}
	from := s.now().UTC().AddDate(0, 0, -days).Truncate(24 * time.Hour)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(selectBars, s.table), symbol, from)
	if err != nil {
		s.l.Error("clickhouse get_bars query error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get bars %s: %w: %v", symbol, errs.ErrProviderUnavailable, err)
	}
	defer rows.Close()

	out := make([]models.PriceBar, 0, days)
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get bars %s: %w: %v", symbol, errs.ErrProviderUnavailable, err)
	}
	s.l.Debug("clickhouse get_bars ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

var _ domrepo.QuoteProvider = (*CHBarStore)(nil)
