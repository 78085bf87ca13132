package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "RegimeLab/pkg/http"
	applogger "RegimeLab/pkg/logger"
)

const stopTimeout = 30 * time.Second

// Scheduler runs periodic work in the background.
type Scheduler interface {
	Start()
	Stop(ctx context.Context)
}

// Worker is a background consumer with a fallible start.
type Worker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// App encapsulates the serve-mode lifecycle: HTTP API plus optional scheduler and queue workers.
type App struct {
	log       *applogger.Logger
	http      *xhttp.Server
	scheduler Scheduler
	workers   []Worker
}

type Option func(*App)

func WithScheduler(s Scheduler) Option {
	return func(a *App) { a.scheduler = s }
}

func WithWorker(w Worker) Option {
	return func(a *App) { a.workers = append(a.workers, w) }
}

// New creates a new App.
func New(l *applogger.Logger, srv *xhttp.Server, opts ...Option) *App {
	a := &App{log: l, http: srv}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Run starts the application and blocks until interrupted, ctx is cancelled
// or the listener fails.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for i, w := range a.workers {
		if err := w.Start(ctx); err != nil {
			a.stopWorkers(a.workers[:i])
			return fmt.Errorf("start worker: %w", err)
		}
	}
	errCh := a.http.Start()
	if a.scheduler != nil {
		a.scheduler.Start()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err, ok := <-errCh:
		if ok && err != nil {
			runErr = fmt.Errorf("http server: %w", err)
			a.log.Error("http server error", applogger.Error(err))
		}
	}
	a.shutdown()
	return runErr
}

// shutdown stops producers of work before the server so no run starts against a closing process.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if a.scheduler != nil {
		a.scheduler.Stop(ctx)
	}
	a.stopWorkersCtx(ctx, a.workers)
	if err := a.http.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	a.log.Info("shutdown complete")
}

func (a *App) stopWorkers(ws []Worker) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	a.stopWorkersCtx(ctx, ws)
}

func (a *App) stopWorkersCtx(ctx context.Context, ws []Worker) {
	for _, w := range ws {
		if err := w.Stop(ctx); err != nil {
			a.log.Warn("worker stop error", applogger.Error(err))
		}
	}
}
