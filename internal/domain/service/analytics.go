package service

import (
	"context"

	"RegimeLab/internal/domain/models"
)

// RegimeSelector fits candidate HMMs over a scaled feature matrix, picks one by BIC and decodes it.
type RegimeSelector interface {
	Select(ctx context.Context, x [][]float64, opts ...SelectOption) (*models.Selection, error)
}

// SelectOverrides adjusts selection for a single call.
type SelectOverrides struct {
	StateCounts []int
	Restarts    int
}

// SelectOption mutates per-call overrides.
type SelectOption func(*SelectOverrides)

// WithStateCounts overrides the candidate state counts.
func WithStateCounts(ks []int) SelectOption {
	return func(o *SelectOverrides) {
		if len(ks) > 0 {
			o.StateCounts = ks
		}
	}
}

// WithRestarts overrides the number of EM restarts per state count.
func WithRestarts(n int) SelectOption {
	return func(o *SelectOverrides) {
		if n > 0 {
			o.Restarts = n
		}
	}
}

// Backtester evaluates an allocation policy over a decoded regime sequence.
type Backtester interface {
	Run(regimes models.RegimeSequence, returns []float64, policy models.AllocationPolicy) (*models.BacktestResult, error)
}

// FeatureBuilder turns daily bars into a dense, scaled feature panel.
type FeatureBuilder interface {
	Build(symbol string, bars []models.Candle) (*models.FeaturePanel, error)
}
