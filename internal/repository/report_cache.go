package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	"RegimeLab/pkg/cache"
)

// CachedReports keeps the latest analysis report per symbol in a cache.Service.
type CachedReports struct {
	c   cache.Service
	ttl time.Duration
}

var _ domrepo.ReportCache = (*CachedReports)(nil)

func NewCachedReports(c cache.Service, ttl time.Duration) *CachedReports {
	return &CachedReports{c: c, ttl: ttl}
}

func reportKey(symbol string) string {
	return cache.GenerateKey("report", "latest", strings.ToUpper(symbol))
}

func (s *CachedReports) PutReport(ctx context.Context, r *models.AnalysisReport) error {
	if err := s.c.Set(ctx, reportKey(r.Symbol), r, s.ttl); err != nil {
		return fmt.Errorf("cache report: %w", err)
	}
	return nil
}

func (s *CachedReports) LatestReport(ctx context.Context, symbol string) (*models.AnalysisReport, error) {
	var r models.AnalysisReport
	if err := s.c.Get(ctx, reportKey(symbol), &r); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("%w: %s", models.ErrRunNotFound, symbol)
		}
		return nil, fmt.Errorf("read cached report: %w", err)
	}
	return &r, nil
}
