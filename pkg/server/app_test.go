package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
	"RegimeLab/internal/usecase"
	xhttp "RegimeLab/pkg/http"
	applogger "RegimeLab/pkg/logger"
)

type fakeWorker struct {
	startErr         error
	started, stopped bool
}

func (w *fakeWorker) Start(context.Context) error {
	w.started = w.startErr == nil
	return w.startErr
}

func (w *fakeWorker) Stop(context.Context) error {
	w.stopped = true
	return nil
}

type noopRunner struct{}

func (noopRunner) Run(context.Context, models.AnalysisRequest) (*models.AnalysisReport, error) {
	return &models.AnalysisReport{}, nil
}

func TestApp_RunStopsOnContextCancel(t *testing.T) {
	l := applogger.NewNop()
	srv := xhttp.NewServer(l, nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0))
	sched, err := usecase.NewScheduler("0 0 1 1 *", []string{"SPY"}, noopRunner{}, time.Second, l)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	w := &fakeWorker{}
	go func() { done <- New(l, srv, WithScheduler(sched), WithWorker(w)).Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.True(t, w.started)
	assert.True(t, w.stopped)
}

func TestApp_RunFailsWhenWorkerCannotStart(t *testing.T) {
	l := applogger.NewNop()
	srv := xhttp.NewServer(l, nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0))
	ok := &fakeWorker{}
	bad := &fakeWorker{startErr: errors.New("redis ping: refused")}

	err := New(l, srv, WithWorker(ok), WithWorker(bad)).Run(context.Background())
	require.Error(t, err)
	assert.True(t, ok.stopped)
	assert.False(t, bad.stopped)
}

func TestApp_RunReportsListenError(t *testing.T) {
	l := applogger.NewNop()
	srv := xhttp.NewServer(l, nil, xhttp.WithHost("256.0.0.1"), xhttp.WithPort(1))

	done := make(chan error, 1)
	go func() { done <- New(l, srv).Run(context.Background()) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listen error not reported")
	}
}
