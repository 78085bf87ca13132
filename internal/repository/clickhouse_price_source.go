package repository

import (
	"context"
	"fmt"
	"time"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	pkgch "RegimeLab/pkg/clickhouse"
	applogger "RegimeLab/pkg/logger"
)

// Unbounded query edges for ClickHouse Date columns.
var (
	minDay = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	maxDay = time.Date(2149, 6, 6, 0, 0, 0, 0, time.UTC)
)

// CHPriceSource reads daily bars from ClickHouse.
type CHPriceSource struct {
	ch    *pkgch.Client
	table string
	l     *applogger.Logger
}

var _ domrepo.PriceSource = (*CHPriceSource)(nil)

func NewCHPriceSource(ch *pkgch.Client, l *applogger.Logger) *CHPriceSource {
	return &CHPriceSource{ch: ch, table: ch.Table("daily_bars"), l: l.Named("ch_prices")}
}

func (s *CHPriceSource) GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	start := time.Now()
	if from.IsZero() {
		from = minDay
	}
	if to.IsZero() {
		to = maxDay
	}
	q := fmt.Sprintf(`
        SELECT day, symbol, open, high, low, close, volume
        FROM %s
        WHERE symbol = ? AND day >= ? AND day <= ?
        ORDER BY day ASC
    `, s.table)
	rows, err := s.ch.DB().QueryContext(ctx, q, symbol, from, to)
	if err != nil {
		s.l.Error("clickhouse daily_bars query error",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get daily bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 4096)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Day, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan daily bar: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Info("clickhouse daily_bars ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}
