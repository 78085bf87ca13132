package repository

import (
	"time"

	"RegimeLab/internal/domain/models"
)

func sampleReport() *models.AnalysisReport {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	sharpe := 0.8
	return &models.AnalysisReport{
		RunID:     "run-1",
		Symbol:    "SPY",
		CreatedAt: day.Add(48 * time.Hour),
		From:      day,
		To:        day.AddDate(0, 0, 2),
		Selection: models.Selection{
			Model: &models.FittedHMM{
				NStates:        2,
				CovarianceKind: models.CovarianceFull,
				StartProb:      []float64{1, 0},
				TransMat:       [][]float64{{0.9, 0.1}, {0.2, 0.8}},
			},
			Regimes: models.RegimeSequence{0, 0, 1},
			Chosen:  models.CandidateModel{NStates: 2, LogLikelihood: -10, BIC: 30, ParamCount: 42},
			Rows:    3,
		},
		CurrentRegime: 1,
		Policy:        models.AllocationPolicy{0: 1, 1: 0},
		Dates:         []time.Time{day, day.AddDate(0, 0, 1), day.AddDate(0, 0, 2)},
		Close:         []float64{100, 101, 99.5},
		LogReturns:    []float64{0.001, 0.00995, -0.01496},
		Backtest: models.BacktestResult{
			Strategy: models.SeriesResult{Metrics: models.SeriesMetrics{Observations: 2, Sharpe: &sharpe}},
			Baseline: models.SeriesResult{Metrics: models.SeriesMetrics{Observations: 3}},
		},
	}
}
