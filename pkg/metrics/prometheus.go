package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"RegimeLab/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fitAttempts   *prometheus.CounterVec
	fitDuration   prometheus.Histogram
	chosenStates  *prometheus.GaugeVec
	candidateBIC  *prometheus.GaugeVec
	sharpe        *prometheus.GaugeVec
	maxDrawdown   *prometheus.GaugeVec
	runsTotal     *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fitAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimelab_fit_attempts_total",
				Help: "EM fit attempts by state count and result",
			},
			[]string{"n_states", "result"},
		),
		fitDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "regimelab_selection_duration_seconds",
				Help:    "Wall time of a full model selection",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		chosenStates: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regimelab_selected_states",
				Help: "State count chosen by BIC for a symbol",
			},
			[]string{"symbol"},
		),
		candidateBIC: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regimelab_candidate_bic",
				Help: "BIC of the best fit per state count",
			},
			[]string{"symbol", "n_states"},
		),
		sharpe: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regimelab_backtest_sharpe",
				Help: "Annualized Sharpe ratio of the last backtest",
			},
			[]string{"symbol", "series"},
		),
		maxDrawdown: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regimelab_backtest_max_drawdown",
				Help: "Maximum drawdown of the last backtest",
			},
			[]string{"symbol", "series"},
		),
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimelab_analysis_runs_total",
				Help: "Analysis runs by final status",
			},
			[]string{"status"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimelab_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimelab_http_requests_total",
				Help: "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		httpDurations: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "regimelab_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
}

func (r *Recorder) RecordFitAttempt(nStates int, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	r.fitAttempts.WithLabelValues(strconv.Itoa(nStates), result).Inc()
}

func (r *Recorder) RecordFitDuration(seconds float64) {
	r.fitDuration.Observe(seconds)
}

func (r *Recorder) RecordSelection(symbol string, chosen models.CandidateModel, candidates []models.CandidateModel) {
	r.chosenStates.WithLabelValues(symbol).Set(float64(chosen.NStates))
	for _, c := range candidates {
		r.candidateBIC.WithLabelValues(symbol, strconv.Itoa(c.NStates)).Set(c.BIC)
	}
}

// RecordBacktest publishes Sharpe and drawdown per series. An undefined Sharpe is left unset.
func (r *Recorder) RecordBacktest(symbol string, res *models.BacktestResult) {
	if res == nil {
		return
	}
	for series, m := range map[string]models.SeriesMetrics{
		"strategy":     res.Strategy.Metrics,
		"buy_and_hold": res.Baseline.Metrics,
	} {
		if m.Sharpe != nil {
			r.sharpe.WithLabelValues(symbol, series).Set(*m.Sharpe)
		}
		r.maxDrawdown.WithLabelValues(symbol, series).Set(m.MaxDrawdown)
	}
}

func (r *Recorder) RecordRun(status string) {
	r.runsTotal.WithLabelValues(status).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordHTTPRequest records one served request.
func (r *Recorder) RecordHTTPRequest(route, method string, status int, seconds float64) {
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDurations.WithLabelValues(route, method).Observe(seconds)
}
