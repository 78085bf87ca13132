package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
	applogger "RegimeLab/pkg/logger"
)

type scriptedRunner struct {
	seen []string
	fail map[string]bool
}

func (r *scriptedRunner) Run(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisReport, error) {
	r.seen = append(r.seen, req.Symbol)
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("missing deadline")
	}
	if r.fail[req.Symbol] {
		return nil, models.ErrModelFitFailure
	}
	return &models.AnalysisReport{RunID: "r-" + req.Symbol, Symbol: req.Symbol}, nil
}

func TestSchedulerRunAll(t *testing.T) {
	runner := &scriptedRunner{fail: map[string]bool{"QQQ": true}}
	s, err := NewScheduler("30 22 * * 1-5", []string{"SPY", "QQQ", "IWM"}, runner, time.Minute, applogger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 1, s.RunAll(context.Background()))
	assert.Equal(t, []string{"SPY", "QQQ", "IWM"}, runner.seen)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler("every day", nil, &scriptedRunner{}, 0, applogger.NewNop())
	assert.Error(t, err)
}

func TestSchedulerStartStop(t *testing.T) {
	s, err := NewScheduler("@daily", []string{"SPY"}, &scriptedRunner{}, time.Minute, applogger.NewNop())
	require.NoError(t, err)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.NoError(t, ctx.Err())
}
