package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
)

func TestPrintReport(t *testing.T) {
	sharpe := 0.8
	r := &models.AnalysisReport{
		RunID:  "run-1",
		Symbol: "SPY",
		From:   time.Date(2006, 4, 3, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Selection: models.Selection{
			Rows:   4000,
			Chosen: models.CandidateModel{NStates: 2},
			Candidates: []models.CandidateModel{
				{NStates: 2, LogLikelihood: -100, ParamCount: 42, BIC: 548.3},
				{NStates: 3, LogLikelihood: -90, ParamCount: 68, BIC: 744.0, FailedAttempts: 1},
			},
			Model: &models.FittedHMM{TransMat: [][]float64{{0.98, 0.02}, {0.05, 0.95}}},
		},
		Profiles: []models.RegimeProfile{
			{Regime: 0, Name: "bull", Days: 3000, Share: 0.75},
			{Regime: 1, Name: "bear", Days: 1000, Share: 0.25},
		},
		CurrentRegime: 1,
		Backtest: models.BacktestResult{
			Strategy: models.SeriesResult{Metrics: models.SeriesMetrics{Observations: 3999, Sharpe: &sharpe}},
			Baseline: models.SeriesResult{Metrics: models.SeriesMetrics{Observations: 4000}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "SPY  2006-04-03 .. 2024-12-31  rows=4000")
	assert.Contains(t, out, "2 *")
	assert.Contains(t, out, "0.980")
	assert.Contains(t, out, "0.80")
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "Current regime: 1 (bear)")
}

func TestAnalyzeRequest(t *testing.T) {
	t.Cleanup(func() { analyzeSymbol, analyzeFrom, analyzeTo = "", "", "" })

	req, err := analyzeRequest([]string{"^GSPC"})
	require.NoError(t, err)
	assert.Equal(t, "^GSPC", req.Symbol)
	assert.True(t, req.From.IsZero())

	analyzeSymbol, analyzeFrom = "spy", "2010-01-04"
	req, err = analyzeRequest(nil)
	require.NoError(t, err)
	assert.Equal(t, "spy", req.Symbol)
	assert.Equal(t, 2010, req.From.Year())

	analyzeFrom = "Jan 4"
	_, err = analyzeRequest(nil)
	assert.Error(t, err)

	analyzeSymbol, analyzeFrom = "", ""
	_, err = analyzeRequest(nil)
	assert.Error(t, err)
}
