package selector

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	domsvc "RegimeLab/internal/domain/service"
	"RegimeLab/internal/services/hmm"
	"RegimeLab/pkg/logger"
)

// Config controls model-order selection.
type Config struct {
	StateCounts []int
	Restarts    int
	MaxIter     int
	Tol         float64
	MinCovar    float64
	// Workers bounds concurrent EM fits. Zero means GOMAXPROCS.
	Workers int
}

// DefaultConfig returns K={2,3,4,5}, 10 restarts, 200 iterations, tol 0.01.
func DefaultConfig() Config {
	return Config{
		StateCounts: []int{2, 3, 4, 5},
		Restarts:    10,
		MaxIter:     200,
		Tol:         1e-2,
		MinCovar:    1e-3,
	}
}

// Trained is what the selector needs from a fitted model.
type Trained interface {
	Decode(x [][]float64) ([]int, float64, error)
	ToFitted() *models.FittedHMM
}

// FitFunc trains one k-state model from a seed.
type FitFunc func(ctx context.Context, x [][]float64, k int, seed uint64) (Trained, float64, error)

// Selector fits every candidate state count with several EM restarts, keeps
// the best restart per count and picks the count with the lowest BIC.
type Selector struct {
	cfg     Config
	log     *logger.Logger
	metrics domrepo.Metrics
	fit     FitFunc
}

type Option func(*Selector)

func WithLogger(l *logger.Logger) Option {
	return func(s *Selector) { s.log = l.Named("selector") }
}

func WithMetrics(m domrepo.Metrics) Option {
	return func(s *Selector) { s.metrics = m }
}

// WithFitter replaces the EM trainer.
func WithFitter(f FitFunc) Option {
	return func(s *Selector) { s.fit = f }
}

var _ domsvc.RegimeSelector = (*Selector)(nil)

func New(cfg Config, opts ...Option) *Selector {
	if len(cfg.StateCounts) == 0 {
		cfg.StateCounts = DefaultConfig().StateCounts
	}
	if cfg.Restarts <= 0 {
		cfg.Restarts = DefaultConfig().Restarts
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	s := &Selector{cfg: cfg, log: logger.NewNop()}
	hc := hmm.Config{MaxIter: cfg.MaxIter, Tol: cfg.Tol, MinCovar: cfg.MinCovar}
	s.fit = func(ctx context.Context, x [][]float64, k int, seed uint64) (Trained, float64, error) {
		res, err := hmm.Fit(ctx, x, k, seed, hc)
		if err != nil {
			return nil, 0, err
		}
		return res.Model, res.LogLikelihood, nil
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Select fits all candidates on x, chooses one by BIC and decodes x with it.
func (s *Selector) Select(ctx context.Context, x [][]float64, opts ...domsvc.SelectOption) (*models.Selection, error) {
	ov := domsvc.SelectOverrides{StateCounts: s.cfg.StateCounts, Restarts: s.cfg.Restarts}
	for _, o := range opts {
		o(&ov)
	}
	features, err := checkMatrix(x)
	if err != nil {
		return nil, err
	}
	ks := lo.Uniq(ov.StateCounts)
	sort.Ints(ks)
	if ks[0] < 2 {
		return nil, fmt.Errorf("%w: state count %d is below 2", models.ErrConfiguration, ks[0])
	}

	start := time.Now()
	attempts, err := s.runAttempts(ctx, x, ks, ov.Restarts)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordFitDuration(time.Since(start).Seconds())
	}

	kept := reduce(attempts, len(x), features)
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: all %d attempts over state counts %v failed", models.ErrModelFitFailure, len(attempts), ks)
	}
	cands := lo.Map(kept, func(b best, _ int) models.CandidateModel { return b.candidate })
	winner := kept[pickByBIC(cands)]

	path, _, err := winner.fit.Decode(x)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %d-state model: %v", models.ErrModelFitFailure, winner.candidate.NStates, err)
	}

	fh := winner.fit.ToFitted()
	chosen := winner.candidate
	chosen.Model = fh

	s.log.Info("model selected",
		logger.Int("n_states", chosen.NStates),
		logger.Float64("bic", chosen.BIC),
		logger.Float64("log_likelihood", chosen.LogLikelihood),
		logger.Int("rows", len(x)),
		logger.Int("candidates", len(cands)),
		logger.Duration("duration_ms", time.Since(start)),
	)

	return &models.Selection{
		Model:      fh,
		Regimes:    models.RegimeSequence(path),
		Chosen:     chosen,
		Candidates: cands,
		Rows:       len(x),
	}, nil
}

// runAttempts fits every (k, restart) pair on a bounded pool. Each attempt
// writes only its own slot. Fit failures are recorded, not returned; only
// cancellation aborts the pool.
func (s *Selector) runAttempts(ctx context.Context, x [][]float64, ks []int, restarts int) ([]attempt, error) {
	slots := make([]attempt, len(ks)*restarts)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for ki, k := range ks {
		for r := 0; r < restarts; r++ {
			slot := &slots[ki*restarts+r]
			g.Go(func() error {
				m, ll, err := s.fit(gctx, x, k, uint64(r))
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				ok := err == nil && !math.IsNaN(ll) && !math.IsInf(ll, 0)
				*slot = attempt{k: k, restart: r, ll: ll, ok: ok, fit: m}
				if !ok {
					s.log.Debug("fit attempt failed",
						logger.Int("n_states", k),
						logger.Int("restart", r),
						logger.Error(err),
					)
				}
				if s.metrics != nil {
					s.metrics.RecordFitAttempt(k, ok)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slots, nil
}

// checkMatrix requires a non-empty rectangular matrix of finite values and
// returns its column count.
func checkMatrix(x [][]float64) (int, error) {
	if len(x) == 0 {
		return 0, fmt.Errorf("%w: empty feature matrix", models.ErrDataShape)
	}
	f := len(x[0])
	if f == 0 {
		return 0, fmt.Errorf("%w: feature rows have no columns", models.ErrDataShape)
	}
	for t, row := range x {
		if len(row) != f {
			return 0, fmt.Errorf("%w: row %d has %d columns, want %d", models.ErrDataShape, t, len(row), f)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("%w: non-finite value at row %d column %d", models.ErrDataShape, t, j)
			}
		}
	}
	return f, nil
}
