package di

import (
	"context"
	"fmt"
	"time"

	"RegimeLab/internal/domain/repository"
	"RegimeLab/internal/handler/api"
	internalrepo "RegimeLab/internal/repository"
	"RegimeLab/internal/service/ratelimit"
	"RegimeLab/internal/services/backtest"
	"RegimeLab/internal/services/features"
	"RegimeLab/internal/services/selector"
	"RegimeLab/internal/usecase"
	"RegimeLab/pkg/cache"
	pkgch "RegimeLab/pkg/clickhouse"
	"RegimeLab/pkg/config"
	xhttp "RegimeLab/pkg/http"
	pkgkafka "RegimeLab/pkg/kafka"
	applogger "RegimeLab/pkg/logger"
	"RegimeLab/pkg/metrics"
	"RegimeLab/pkg/queue"
	"RegimeLab/pkg/server"
)

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideClickHouseClient connects only when a ClickHouse component is enabled.
// The regime schema is ensured before the client is handed out.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if cfg.Data.Source != "clickhouse" && !cfg.ClickHouse.StoreArtifacts {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, true),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.RegimeSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvidePriceSource selects CSV files or the daily_bars table.
func ProvidePriceSource(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) repository.PriceSource {
	if cfg.Data.Source == "clickhouse" {
		return internalrepo.NewCHPriceSource(ch, l)
	}
	return internalrepo.NewCSVPriceSource(cfg.Data.CSVDir, l)
}

// ProvideRedisCache connects to Redis when it is enabled. The cache built on it owns the connection.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisAuth(cfg.Cache.Redis.Password, cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache returns Redis behind an in-process L1 when Redis is enabled, otherwise memory only.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache, l *applogger.Logger) (cache.Service, func()) {
	if rc == nil {
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemorySize))
		return mc, func() { _ = mc.Close() }
	}
	lc := cache.NewLayeredCache(rc, cache.WithLayeredMemory(cfg.Cache.MemorySize, cfg.Cache.MemoryTTL))
	return lc, func() {
		if err := lc.Close(); err != nil {
			l.Warn("cache close error", applogger.Error(err))
		}
	}
}

// ProvideReportCache stores the latest report per symbol.
func ProvideReportCache(c cache.Service, cfg *config.Config) repository.ReportCache {
	return internalrepo.NewCachedReports(c, cfg.Cache.ReportTTL)
}

// ProvideArtifactStores lists every enabled artifact sink.
func ProvideArtifactStores(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) []repository.ArtifactStore {
	var stores []repository.ArtifactStore
	if !cfg.Artifacts.Disabled {
		stores = append(stores, internalrepo.NewFileArtifactStore(cfg.Artifacts.Dir, l))
	}
	if cfg.ClickHouse.StoreArtifacts && ch != nil {
		stores = append(stores, internalrepo.NewCHArtifactStore(ch, l))
	}
	return stores
}

// ProvideEventPublisher returns nil when Kafka is disabled.
func ProvideEventPublisher(cfg *config.Config, l *applogger.Logger) (repository.EventPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithAutoCreateTopics(cfg.Kafka.AutoCreateTopics),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)
	cleanup := func() {
		if err := pub.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	return pub, cleanup, nil
}

// ProvideSelector builds the model-order selector from the model section.
func ProvideSelector(cfg *config.Config, l *applogger.Logger, m repository.Metrics) *selector.Selector {
	return selector.New(selector.Config{
		StateCounts: cfg.Model.StateCounts,
		Restarts:    cfg.Model.Restarts,
		MaxIter:     cfg.Model.MaxIter,
		Tol:         cfg.Model.Tol,
		MinCovar:    cfg.Model.MinCovar,
		Workers:     cfg.Model.Workers,
	}, selector.WithLogger(l), selector.WithMetrics(m))
}

// ProvideRegimeAnalysis assembles the analysis use case.
func ProvideRegimeAnalysis(
	cfg *config.Config,
	prices repository.PriceSource,
	sel *selector.Selector,
	reports repository.ReportCache,
	locks cache.Service,
	stores []repository.ArtifactStore,
	events repository.EventPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.RegimeAnalysis {
	opts := []usecase.AnalysisOption{
		usecase.WithArtifactStores(stores...),
		usecase.WithLocker(locks),
		usecase.WithAnalysisMetrics(m),
		usecase.WithAnalysisLogger(l),
	}
	if events != nil {
		opts = append(opts, usecase.WithEventPublisher(events))
	}
	return usecase.NewRegimeAnalysis(
		prices,
		features.NewBuilder(),
		sel,
		backtest.New(),
		reports,
		usecase.AnalysisConfig{
			Policy:      cfg.Policy(),
			StateCounts: cfg.Model.StateCounts,
			RegimeNames: cfg.Backtest.RegimeNames,
			DefaultFrom: cfg.DataFrom(),
			LockTTL:     cfg.Schedule.Timeout,
		},
		opts...,
	)
}

// ProvideScheduler returns nil when scheduling is disabled.
func ProvideScheduler(cfg *config.Config, ra *usecase.RegimeAnalysis, l *applogger.Logger) (*usecase.Scheduler, error) {
	if !cfg.Schedule.Enabled {
		return nil, nil
	}
	return usecase.NewScheduler(cfg.Schedule.Cron, cfg.Data.Symbols, ra, cfg.Schedule.Timeout, l)
}

// ProvideJobQueue returns nil unless jobs are enabled. Workers start with the app.
func ProvideJobQueue(cfg *config.Config, rc *cache.RedisCache, ra *usecase.RegimeAnalysis, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Jobs.Enabled || rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, queue.Config{
		Workers:    cfg.Jobs.Workers,
		RetryLimit: cfg.Jobs.RetryLimit,
		RetryDelay: cfg.Jobs.RetryDelay,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Cache.Redis.Prefix+":queue"))
	q.RegisterJob(usecase.NewAnalyzeJob(ra, cfg.Schedule.Timeout, l))
	return q
}

// ProvideAnalyzeLimiter throttles analysis requests per client. Its idle sweep runs with the app.
func ProvideAnalyzeLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.AnalyzeBurst, cfg.Server.AnalyzeRefill)
}

// ProvideHTTPHandler exposes the regime API.
func ProvideHTTPHandler(cfg *config.Config, l *applogger.Logger, ra *usecase.RegimeAnalysis, q *queue.RedisQueue, lim *ratelimit.Limiter) xhttp.Handler {
	opts := []api.HandlerOption{
		api.WithAnalyzeLimiter(lim),
	}
	if q != nil {
		opts = append(opts, api.WithJobQueue(q))
	}
	return api.NewRegimeEchoHandler(l, ra, opts...)
}

// ProvideHTTPServer configures Echo with metrics and dependency health checks.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h xhttp.Handler, rec *metrics.Recorder, ch *pkgch.Client) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(cfg.Metrics.Path, nil, rec),
	}
	if ch != nil {
		opts = append(opts, xhttp.WithHealthCheck("clickhouse", ch.Health))
	}
	return xhttp.NewServer(l, h, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(l *applogger.Logger, srv *xhttp.Server, sched *usecase.Scheduler, q *queue.RedisQueue, lim *ratelimit.Limiter) *server.App {
	opts := []server.Option{server.WithWorker(lim)}
	if sched != nil {
		opts = append(opts, server.WithScheduler(sched))
	}
	if q != nil {
		opts = append(opts, server.WithWorker(q))
	}
	return server.New(l, srv, opts...)
}
