package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	pkgch "RegimeLab/pkg/clickhouse"
	applogger "RegimeLab/pkg/logger"
)

// labelChunk bounds the rows of one multi-row INSERT.
const labelChunk = 2000

// RegimeSchema returns the DDL for daily bars and analysis artifacts.
func RegimeSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.daily_bars (
            day Date,
            symbol LowCardinality(String),
            open Float64,
            high Float64,
            low Float64,
            close Float64,
            volume Float64
        ) ENGINE = ReplacingMergeTree ORDER BY (symbol, day)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.regime_runs (
            run_id String,
            symbol LowCardinality(String),
            created_at DateTime64(3),
            date_from Date,
            date_to Date,
            rows UInt32,
            n_states UInt8,
            log_likelihood Float64,
            bic Float64,
            current_regime UInt8,
            candidates String,
            model String,
            strategy String,
            buy_and_hold String
        ) ENGINE = MergeTree ORDER BY (symbol, created_at)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.regime_labels (
            run_id String,
            symbol LowCardinality(String),
            day Date,
            close Float64,
            log_return Float64,
            regime UInt8
        ) ENGINE = MergeTree ORDER BY (symbol, run_id, day)`, database),
	}
}

// CHArtifactStore writes analysis runs and their daily labels to ClickHouse.
type CHArtifactStore struct {
	ch     *pkgch.Client
	runs   string
	labels string
	l      *applogger.Logger
}

var _ domrepo.ArtifactStore = (*CHArtifactStore)(nil)

func NewCHArtifactStore(ch *pkgch.Client, l *applogger.Logger) *CHArtifactStore {
	return &CHArtifactStore{
		ch:     ch,
		runs:   ch.Table("regime_runs"),
		labels: ch.Table("regime_labels"),
		l:      l.Named("ch_artifacts"),
	}
}

func (s *CHArtifactStore) SaveRun(ctx context.Context, r *models.AnalysisReport) error {
	start := time.Now()
	if err := s.insertRun(ctx, r); err != nil {
		s.l.Error("clickhouse insert run failed", applogger.String("run_id", r.RunID), applogger.Error(err))
		return err
	}
	if err := s.insertLabels(ctx, r); err != nil {
		s.l.Error("clickhouse insert labels failed", applogger.String("run_id", r.RunID), applogger.Error(err))
		return err
	}
	s.l.Info("clickhouse run saved",
		applogger.String("run_id", r.RunID),
		applogger.String("symbol", r.Symbol),
		applogger.Int("labels", len(r.Selection.Regimes)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHArtifactStore) insertRun(ctx context.Context, r *models.AnalysisReport) error {
	candidates, err := json.Marshal(r.Selection.Candidates)
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}
	model, err := json.Marshal(r.Selection.Model)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	strategy, err := json.Marshal(r.Backtest.Strategy.Metrics)
	if err != nil {
		return fmt.Errorf("encode strategy metrics: %w", err)
	}
	baseline, err := json.Marshal(r.Backtest.Baseline.Metrics)
	if err != nil {
		return fmt.Errorf("encode baseline metrics: %w", err)
	}

	q := fmt.Sprintf(`INSERT INTO %s (run_id, symbol, created_at, date_from, date_to, rows, n_states,
        log_likelihood, bic, current_regime, candidates, model, strategy, buy_and_hold)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.runs)
	_, err = s.ch.DB().ExecContext(ctx, q,
		r.RunID,
		r.Symbol,
		r.CreatedAt,
		r.From,
		r.To,
		uint32(r.Selection.Rows),
		uint8(r.Selection.Chosen.NStates),
		r.Selection.Chosen.LogLikelihood,
		r.Selection.Chosen.BIC,
		uint8(r.CurrentRegime),
		string(candidates),
		string(model),
		string(strategy),
		string(baseline),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *CHArtifactStore) insertLabels(ctx context.Context, r *models.AnalysisReport) error {
	n := len(r.Selection.Regimes)
	if len(r.Dates) != n || len(r.Close) != n || len(r.LogReturns) != n {
		return fmt.Errorf("%w: report series are not aligned", models.ErrDataShape)
	}
	for start := 0; start < n; start += labelChunk {
		end := min(start+labelChunk, n)
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*6)
		for i := start; i < end; i++ {
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			args = append(args, r.RunID, r.Symbol, r.Dates[i], r.Close[i], r.LogReturns[i], uint8(r.Selection.Regimes[i]))
		}
		q := fmt.Sprintf("INSERT INTO %s (run_id, symbol, day, close, log_return, regime) VALUES %s",
			s.labels, strings.Join(values, ","))
		if _, err := s.ch.DB().ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert labels: %w", err)
		}
	}
	return nil
}
