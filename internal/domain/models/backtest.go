package models

import "time"

// SeriesMetrics are the summary statistics of one daily log-return series.
// Sharpe is nil when annualized volatility is zero.
type SeriesMetrics struct {
	Observations         int      `json:"observations"`
	AnnualizedReturn     float64  `json:"annualized_return"`
	AnnualizedVolatility float64  `json:"annualized_volatility"`
	Sharpe               *float64 `json:"sharpe"`
	MaxDrawdown          float64  `json:"max_drawdown"`
	FinalGrowth          float64  `json:"final_growth"`
}

// SeriesResult is a return series with its derived curves and metrics.
type SeriesResult struct {
	Dates      []time.Time   `json:"dates,omitempty"`
	Returns    []float64     `json:"returns"`
	Cumulative []float64     `json:"cumulative"`
	Drawdown   []float64     `json:"drawdown"`
	Metrics    SeriesMetrics `json:"metrics"`
}

// BacktestResult compares the regime strategy with buy-and-hold.
// Strategy starts one day after Baseline because day 0 has no prior regime.
type BacktestResult struct {
	Strategy SeriesResult `json:"strategy"`
	Baseline SeriesResult `json:"baseline"`
}
