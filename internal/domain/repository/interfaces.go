package repository

import (
	"context"

	"RegimeLab/internal/domain/models"
)

// ArtifactStore persists the outcome of an analysis run.
type ArtifactStore interface {
	SaveRun(ctx context.Context, report *models.AnalysisReport) error
}

// EventPublisher announces completed analysis runs.
type EventPublisher interface {
	PublishAnalysis(ctx context.Context, summary models.AnalysisSummary) error
	Close() error
}

// ReportCache keeps the latest report per symbol.
type ReportCache interface {
	PutReport(ctx context.Context, report *models.AnalysisReport) error
	LatestReport(ctx context.Context, symbol string) (*models.AnalysisReport, error)
}

type Metrics interface {
	RecordFitAttempt(nStates int, ok bool)
	RecordFitDuration(seconds float64)
	RecordSelection(symbol string, chosen models.CandidateModel, candidates []models.CandidateModel)
	RecordBacktest(symbol string, result *models.BacktestResult)
	RecordRun(status string)
	RecordError(kind string)
}
