package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	domsvc "RegimeLab/internal/domain/service"
	applogger "RegimeLab/pkg/logger"
)

const tradingDays = 252

// Locker serialises runs per symbol. cache.Service satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// AnalysisConfig carries the static inputs of every run.
type AnalysisConfig struct {
	Policy models.AllocationPolicy
	// StateCounts are the candidate k used when a request has no override.
	StateCounts []int
	RegimeNames map[int]string
	// DefaultFrom applies when a request has no start date.
	DefaultFrom time.Time
	LockTTL     time.Duration
}

// RegimeAnalysis runs the load, features, selection, backtest and publish pipeline.
type RegimeAnalysis struct {
	prices     domrepo.PriceSource
	features   domsvc.FeatureBuilder
	selector   domsvc.RegimeSelector
	backtester domsvc.Backtester
	reports    domrepo.ReportCache
	stores     []domrepo.ArtifactStore
	events     domrepo.EventPublisher
	locker     Locker
	metrics    domrepo.Metrics
	l          *applogger.Logger
	cfg        AnalysisConfig
	now        func() time.Time
	newID      func() string
}

type AnalysisOption func(*RegimeAnalysis)

func WithArtifactStores(stores ...domrepo.ArtifactStore) AnalysisOption {
	return func(a *RegimeAnalysis) { a.stores = append(a.stores, stores...) }
}

func WithEventPublisher(p domrepo.EventPublisher) AnalysisOption {
	return func(a *RegimeAnalysis) { a.events = p }
}

func WithLocker(l Locker) AnalysisOption {
	return func(a *RegimeAnalysis) { a.locker = l }
}

func WithAnalysisMetrics(m domrepo.Metrics) AnalysisOption {
	return func(a *RegimeAnalysis) { a.metrics = m }
}

func WithAnalysisLogger(l *applogger.Logger) AnalysisOption {
	return func(a *RegimeAnalysis) { a.l = l.Named("analysis") }
}

// WithClock fixes the run timestamp and id source.
func WithClock(now func() time.Time, newID func() string) AnalysisOption {
	return func(a *RegimeAnalysis) {
		a.now = now
		a.newID = newID
	}
}

func NewRegimeAnalysis(
	prices domrepo.PriceSource,
	features domsvc.FeatureBuilder,
	selector domsvc.RegimeSelector,
	backtester domsvc.Backtester,
	reports domrepo.ReportCache,
	cfg AnalysisConfig,
	opts ...AnalysisOption,
) *RegimeAnalysis {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 15 * time.Minute
	}
	a := &RegimeAnalysis{
		prices:     prices,
		features:   features,
		selector:   selector,
		backtester: backtester,
		reports:    reports,
		cfg:        cfg,
		l:          applogger.NewNop(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Run executes one full analysis of req.Symbol. Persistence and event
// failures are logged and counted but do not fail the run.
func (a *RegimeAnalysis) Run(ctx context.Context, req models.AnalysisRequest) (report *models.AnalysisReport, err error) {
	start := a.now()
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", models.ErrDataShape)
	}
	ks := req.StateCounts
	if len(ks) == 0 {
		ks = a.cfg.StateCounts
	}
	runID := a.newID()
	log := a.l.With(applogger.String("run_id", runID), applogger.String("symbol", symbol))

	defer func() {
		status := "ok"
		if err != nil {
			status = "failed"
			a.recordError(ErrorKind(err))
			log.Error("analysis failed", applogger.Error(err), applogger.String("kind", ErrorKind(err)))
		}
		a.recordRun(status)
	}()

	// Every label the largest candidate can produce must be priced before any fitting.
	if len(ks) > 0 {
		if verr := a.cfg.Policy.Validate(slices.Max(ks)); verr != nil {
			return nil, verr
		}
	}

	if a.locker != nil {
		key := "lock:analysis:" + symbol
		ok, lerr := a.locker.TryLock(ctx, key, a.cfg.LockTTL)
		if lerr != nil {
			return nil, fmt.Errorf("acquire run lock: %w", lerr)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrRunInProgress, symbol)
		}
		defer func() { _ = a.locker.Unlock(context.WithoutCancel(ctx), key) }()
	}

	from := req.From
	if from.IsZero() {
		from = a.cfg.DefaultFrom
	}
	bars, err := a.prices.GetDailyBars(ctx, symbol, from, req.To)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	panel, err := a.features.Build(symbol, bars)
	if err != nil {
		return nil, fmt.Errorf("build features: %w", err)
	}
	log.Info("features ready", applogger.Int("bars", len(bars)), applogger.Int("rows", panel.Len()))

	sel, err := a.selector.Select(ctx, panel.Scaled,
		domsvc.WithStateCounts(req.StateCounts),
		domsvc.WithRestarts(req.Restarts),
	)
	if err != nil {
		return nil, fmt.Errorf("select model: %w", err)
	}

	bt, err := a.backtest(sel.Regimes, panel.LogReturns, panel.Dates, a.cfg.Policy)
	if err != nil {
		return nil, err
	}

	report = &models.AnalysisReport{
		RunID:         runID,
		Symbol:        symbol,
		CreatedAt:     a.now().UTC(),
		From:          panel.Dates[0],
		To:            panel.Dates[panel.Len()-1],
		Selection:     *sel,
		Profiles:      BuildProfiles(panel, sel.Regimes, sel.Chosen.NStates, a.cfg.RegimeNames),
		CurrentRegime: sel.Regimes[len(sel.Regimes)-1],
		Policy:        a.cfg.Policy,
		Dates:         panel.Dates,
		Close:         panel.Close,
		LogReturns:    panel.LogReturns,
		Backtest:      *bt,
	}
	if a.metrics != nil {
		a.metrics.RecordSelection(symbol, sel.Chosen, sel.Candidates)
		a.metrics.RecordBacktest(symbol, bt)
	}

	a.publish(ctx, log, report)

	log.Info("analysis complete",
		applogger.Int("n_states", sel.Chosen.NStates),
		applogger.Int("current_regime", report.CurrentRegime),
		applogger.Float64("bic", sel.Chosen.BIC),
		applogger.Duration("duration_ms", a.now().Sub(start)),
	)
	return report, nil
}

// publish caches the report, writes artifacts and emits the completion event.
func (a *RegimeAnalysis) publish(ctx context.Context, log *applogger.Logger, r *models.AnalysisReport) {
	if err := a.reports.PutReport(ctx, r); err != nil {
		a.recordError("report_cache")
		log.Warn("cache report failed", applogger.Error(err))
	}
	for _, s := range a.stores {
		if err := s.SaveRun(ctx, r); err != nil {
			a.recordError("artifact_store")
			log.Warn("save artifacts failed", applogger.String("store", fmt.Sprintf("%T", s)), applogger.Error(err))
		}
	}
	if a.events != nil {
		if err := a.events.PublishAnalysis(ctx, r.Summary()); err != nil {
			a.recordError("event_publish")
			log.Warn("publish event failed", applogger.Error(err))
		}
	}
}

// Latest returns the cached report for symbol.
func (a *RegimeAnalysis) Latest(ctx context.Context, symbol string) (*models.AnalysisReport, error) {
	return a.reports.LatestReport(ctx, strings.ToUpper(strings.TrimSpace(symbol)))
}

// Rebacktest replays the cached regimes of symbol under another policy.
func (a *RegimeAnalysis) Rebacktest(ctx context.Context, symbol string, policy models.AllocationPolicy) (*models.BacktestResult, error) {
	r, err := a.Latest(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return a.backtest(r.Selection.Regimes, r.LogReturns, r.Dates, policy)
}

// ComparePolicies replays the cached regimes of symbol under several named
// policies concurrently.
func (a *RegimeAnalysis) ComparePolicies(ctx context.Context, symbol string, policies map[string]models.AllocationPolicy) (map[string]*models.BacktestResult, error) {
	r, err := a.Latest(ctx, symbol)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	results := make([]*models.BacktestResult, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			res, err := a.backtest(r.Selection.Regimes, r.LogReturns, r.Dates, policies[name])
			if err != nil {
				return fmt.Errorf("policy %q: %w", name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*models.BacktestResult, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out, nil
}

func (a *RegimeAnalysis) backtest(regimes models.RegimeSequence, returns []float64, dates []time.Time, policy models.AllocationPolicy) (*models.BacktestResult, error) {
	bt, err := a.backtester.Run(regimes, returns, policy)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	if len(dates) == len(returns) && len(dates) > 0 {
		bt.Baseline.Dates = dates
		bt.Strategy.Dates = dates[1:]
	}
	return bt, nil
}

func (a *RegimeAnalysis) recordRun(status string) {
	if a.metrics != nil {
		a.metrics.RecordRun(status)
	}
}

func (a *RegimeAnalysis) recordError(kind string) {
	if a.metrics != nil {
		a.metrics.RecordError(kind)
	}
}

// ErrorKind classifies a run error for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, models.ErrDataShape):
		return "data_shape"
	case errors.Is(err, models.ErrModelFitFailure):
		return "model_fit"
	case errors.Is(err, models.ErrConfiguration):
		return "configuration"
	case errors.Is(err, models.ErrRunNotFound):
		return "not_found"
	case errors.Is(err, models.ErrSymbolNotFound):
		return "unknown_symbol"
	case errors.Is(err, models.ErrRunInProgress):
		return "in_progress"
	default:
		return "internal"
	}
}
