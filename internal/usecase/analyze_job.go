package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"RegimeLab/internal/domain/models"
	applogger "RegimeLab/pkg/logger"
	"RegimeLab/pkg/queue"
)

// AnalyzeJobType is the queue message type of an asynchronous analysis.
const AnalyzeJobType = "regime.analyze"

// AnalyzeJob runs queued analysis requests. Results land in the report cache.
type AnalyzeJob struct {
	runner  Runner
	timeout time.Duration
	l       *applogger.Logger
}

var _ queue.Job = (*AnalyzeJob)(nil)

func NewAnalyzeJob(runner Runner, timeout time.Duration, l *applogger.Logger) *AnalyzeJob {
	return &AnalyzeJob{runner: runner, timeout: timeout, l: l.Named("analyze_job")}
}

func (j *AnalyzeJob) Name() string { return "regime-analyze" }
func (j *AnalyzeJob) Type() string { return AnalyzeJobType }

// Handle decodes the request and runs it. Input and model errors are permanent;
// a held run lock or an infrastructure failure is retried.
func (j *AnalyzeJob) Handle(ctx context.Context, payload json.RawMessage) error {
	req, err := queue.ParsePayload[models.AnalysisRequest](payload)
	if err != nil {
		return queue.Permanent(err)
	}
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	report, err := j.runner.Run(ctx, *req)
	if err != nil {
		if isPermanent(err) {
			return queue.Permanent(err)
		}
		return fmt.Errorf("analyze %s: %w", req.Symbol, err)
	}
	j.l.Info("queued analysis done",
		applogger.String("symbol", report.Symbol),
		applogger.String("run_id", report.RunID),
		applogger.Int("n_states", report.Selection.Chosen.NStates),
	)
	return nil
}

func isPermanent(err error) bool {
	return errors.Is(err, models.ErrDataShape) ||
		errors.Is(err, models.ErrConfiguration) ||
		errors.Is(err, models.ErrModelFitFailure) ||
		errors.Is(err, models.ErrSymbolNotFound)
}
