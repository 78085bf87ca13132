package repository

import (
	"context"
	"time"

	"RegimeLab/internal/domain/models"
)

// PriceSource provides read-only access to daily bars for feature engineering.
// Bars are returned in ascending date order. A zero from/to leaves that side unbounded.
type PriceSource interface {
	GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
}
