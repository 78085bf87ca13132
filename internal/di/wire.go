//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"RegimeLab/internal/domain/repository"
	"RegimeLab/internal/usecase"
	"RegimeLab/pkg/config"
	"RegimeLab/pkg/metrics"
	"RegimeLab/pkg/server"
)

var analysisSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	wire.Bind(new(repository.Metrics), new(*metrics.Recorder)),

	// Infrastructure clients
	ProvideClickHouseClient,
	ProvideRedisCache,
	ProvideCache,

	// Repositories
	ProvidePriceSource,
	ProvideReportCache,
	ProvideArtifactStores,
	ProvideEventPublisher,

	// Use cases
	ProvideSelector,
	ProvideRegimeAnalysis,
)

// InitializeApp wires the HTTP server, scheduler, job queue and everything they depend on.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		analysisSet,
		ProvideScheduler,
		ProvideJobQueue,
		ProvideAnalyzeLimiter,
		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeAnalysis wires the analysis use case alone for one-shot CLI runs.
func InitializeAnalysis(cfg *config.Config) (*usecase.RegimeAnalysis, func(), error) {
	wire.Build(analysisSet)
	return nil, nil, nil
}
