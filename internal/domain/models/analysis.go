package models

import "time"

// AnalysisRequest describes one analysis run. Zero values fall back to configuration.
type AnalysisRequest struct {
	Symbol      string    `json:"symbol" validate:"required"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	StateCounts []int     `json:"state_counts,omitempty" validate:"omitempty,dive,gte=2,lte=10"`
	Restarts    int       `json:"restarts,omitempty" validate:"gte=0,lte=100"`
}

// AnalysisReport is the full outcome of one analysis run.
type AnalysisReport struct {
	RunID         string           `json:"run_id"`
	Symbol        string           `json:"symbol"`
	CreatedAt     time.Time        `json:"created_at"`
	From          time.Time        `json:"from"`
	To            time.Time        `json:"to"`
	Selection     Selection        `json:"selection"`
	Profiles      []RegimeProfile  `json:"profiles"`
	CurrentRegime int              `json:"current_regime"`
	Policy        AllocationPolicy `json:"policy"`
	Dates         []time.Time      `json:"dates"`
	Close         []float64        `json:"close"`
	LogReturns    []float64        `json:"log_returns"`
	Backtest      BacktestResult   `json:"backtest"`
}

// AnalysisSummary is the compact view of a report used for events and API listings.
type AnalysisSummary struct {
	RunID         string           `json:"run_id"`
	Symbol        string           `json:"symbol"`
	CreatedAt     time.Time        `json:"created_at"`
	From          time.Time        `json:"from"`
	To            time.Time        `json:"to"`
	Rows          int              `json:"rows"`
	NStates       int              `json:"n_states"`
	BIC           float64          `json:"bic"`
	LogLikelihood float64          `json:"log_likelihood"`
	Candidates    []CandidateModel `json:"candidates"`
	CurrentRegime int              `json:"current_regime"`
	Profiles      []RegimeProfile  `json:"profiles"`
	TransMat      [][]float64      `json:"trans_mat"`
	Strategy      SeriesMetrics    `json:"strategy"`
	BuyAndHold    SeriesMetrics    `json:"buy_and_hold"`
}

// Summary builds the compact view.
func (r *AnalysisReport) Summary() AnalysisSummary {
	s := AnalysisSummary{
		RunID:         r.RunID,
		Symbol:        r.Symbol,
		CreatedAt:     r.CreatedAt,
		From:          r.From,
		To:            r.To,
		Rows:          r.Selection.Rows,
		NStates:       r.Selection.Chosen.NStates,
		BIC:           r.Selection.Chosen.BIC,
		LogLikelihood: r.Selection.Chosen.LogLikelihood,
		Candidates:    r.Selection.Candidates,
		CurrentRegime: r.CurrentRegime,
		Profiles:      r.Profiles,
		Strategy:      r.Backtest.Strategy.Metrics,
		BuyAndHold:    r.Backtest.Baseline.Metrics,
	}
	if r.Selection.Model != nil {
		s.TransMat = r.Selection.Model.TransMat
	}
	return s
}

// BacktestRequest re-runs the simulator on a cached run under another policy.
type BacktestRequest struct {
	Symbol     string             `json:"symbol" validate:"required"`
	Allocation map[string]float64 `json:"allocation" validate:"required,min=1,dive,gte=0"`
}
