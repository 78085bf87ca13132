package backtest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"RegimeLab/internal/domain/models"
	domsvc "RegimeLab/internal/domain/service"
)

// TradingDays annualizes daily statistics.
const TradingDays = 252

// minObservations keeps the strategy series long enough for a sample std.
const minObservations = 3

// Simulator applies an allocation policy to a decoded regime sequence with a
// one-day lag: the weight held on day t is chosen from the regime of day t-1.
type Simulator struct{}

var _ domsvc.Backtester = Simulator{}

func New() Simulator { return Simulator{} }

// Run evaluates policy over regimes and the aligned daily log returns. The
// strategy series starts at index 1; the buy-and-hold baseline covers every day.
// Inputs are not modified.
func (Simulator) Run(regimes models.RegimeSequence, returns []float64, policy models.AllocationPolicy) (*models.BacktestResult, error) {
	if len(regimes) != len(returns) {
		return nil, fmt.Errorf("%w: %d regimes for %d returns", models.ErrDataShape, len(regimes), len(returns))
	}
	if len(returns) < minObservations {
		return nil, fmt.Errorf("%w: need at least %d returns, got %d", models.ErrDataShape, minObservations, len(returns))
	}
	for i, r := range returns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("%w: non-finite return at index %d", models.ErrDataShape, i)
		}
	}
	// Day T-1's regime never drives a position, but a label the model produced
	// must still be priced.
	if err := policy.Covers(regimes); err != nil {
		return nil, err
	}

	strategy := make([]float64, len(returns)-1)
	for t := 1; t < len(returns); t++ {
		w, err := policy.Weight(regimes[t-1])
		if err != nil {
			return nil, err
		}
		strategy[t-1] = w * returns[t]
	}

	baseline := make([]float64, len(returns))
	copy(baseline, returns)

	return &models.BacktestResult{
		Strategy: Evaluate(strategy),
		Baseline: Evaluate(baseline),
	}, nil
}

// Evaluate builds the growth curve, drawdown curve and summary metrics of a
// daily log-return series. The series must hold at least two values.
func Evaluate(returns []float64) models.SeriesResult {
	cum := make([]float64, len(returns))
	floats.CumSum(cum, returns)
	for i, v := range cum {
		cum[i] = math.Exp(v)
	}

	dd := make([]float64, len(cum))
	peak := math.Inf(-1)
	for i, v := range cum {
		peak = math.Max(peak, v)
		dd[i] = (v - peak) / peak
	}

	mean := stat.Mean(returns, nil)
	vol := stat.StdDev(returns, nil) * math.Sqrt(TradingDays)
	m := models.SeriesMetrics{
		Observations:         len(returns),
		AnnualizedReturn:     mean * TradingDays,
		AnnualizedVolatility: vol,
		MaxDrawdown:          floats.Min(dd),
		FinalGrowth:          cum[len(cum)-1],
	}
	if vol > 0 {
		s := m.AnnualizedReturn / vol
		m.Sharpe = &s
	}

	return models.SeriesResult{
		Returns:    returns,
		Cumulative: cum,
		Drawdown:   dd,
		Metrics:    m,
	}
}
