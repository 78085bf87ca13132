package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"RegimeLab/internal/domain/models"
	applogger "RegimeLab/pkg/logger"
)

// Runner is the part of RegimeAnalysis the scheduler drives.
type Runner interface {
	Run(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisReport, error)
}

// Scheduler re-analyses a fixed symbol list on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	symbols []string
	timeout time.Duration
	l       *applogger.Logger
}

// NewScheduler parses a standard five-field cron spec.
func NewScheduler(spec string, symbols []string, runner Runner, timeout time.Duration, l *applogger.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		runner:  runner,
		symbols: symbols,
		timeout: timeout,
		l:       l.Named("scheduler"),
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunAll(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunAll analyses every configured symbol in order and returns how many failed.
func (s *Scheduler) RunAll(ctx context.Context) int {
	failed := 0
	for _, sym := range s.symbols {
		runCtx, cancel := ctx, context.CancelFunc(func() {})
		if s.timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		}
		r, err := s.runner.Run(runCtx, models.AnalysisRequest{Symbol: sym})
		cancel()
		if err != nil {
			failed++
			s.l.Error("scheduled analysis failed", applogger.String("symbol", sym), applogger.Error(err))
			continue
		}
		s.l.Info("scheduled analysis done",
			applogger.String("symbol", sym),
			applogger.String("run_id", r.RunID),
			applogger.Int("current_regime", r.CurrentRegime),
		)
	}
	return failed
}

func (s *Scheduler) Start() {
	s.l.Info("scheduler started", applogger.Strings("symbols", s.symbols))
	s.cron.Start()
}

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
