package repository

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	applogger "RegimeLab/pkg/logger"
)

// FileArtifactStore writes <symbol>_regimes.csv and <symbol>_model.json to a directory.
type FileArtifactStore struct {
	dir string
	l   *applogger.Logger
}

var _ domrepo.ArtifactStore = (*FileArtifactStore)(nil)

func NewFileArtifactStore(dir string, l *applogger.Logger) *FileArtifactStore {
	return &FileArtifactStore{dir: dir, l: l.Named("file_artifacts")}
}

// modelFile is the persisted model document.
type modelFile struct {
	RunID      string                          `json:"run_id"`
	Symbol     string                          `json:"symbol"`
	CreatedAt  time.Time                       `json:"created_at"`
	Features   []string                        `json:"features"`
	Model      *models.FittedHMM               `json:"model"`
	Chosen     models.CandidateModel           `json:"chosen"`
	Candidates []models.CandidateModel         `json:"candidates"`
	Profiles   []models.RegimeProfile          `json:"profiles"`
	Policy     models.AllocationPolicy         `json:"policy"`
	Metrics    map[string]models.SeriesMetrics `json:"metrics"`
}

func (s *FileArtifactStore) SaveRun(ctx context.Context, r *models.AnalysisReport) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	stem := symbolFile(r.Symbol)
	regimesPath := filepath.Join(s.dir, stem+"_regimes.csv")
	modelPath := filepath.Join(s.dir, stem+"_model.json")

	if err := writeAtomic(regimesPath, func(f *os.File) error { return writeRegimes(f, r) }); err != nil {
		return err
	}
	doc := modelFile{
		RunID:      r.RunID,
		Symbol:     r.Symbol,
		CreatedAt:  r.CreatedAt,
		Features:   models.FeatureNames[:],
		Model:      r.Selection.Model,
		Chosen:     r.Selection.Chosen,
		Candidates: r.Selection.Candidates,
		Profiles:   r.Profiles,
		Policy:     r.Policy,
		Metrics: map[string]models.SeriesMetrics{
			"strategy":     r.Backtest.Strategy.Metrics,
			"buy_and_hold": r.Backtest.Baseline.Metrics,
		},
	}
	if err := writeAtomic(modelPath, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}); err != nil {
		return err
	}

	s.l.Info("artifacts written",
		applogger.String("run_id", r.RunID),
		applogger.String("regimes", regimesPath),
		applogger.String("model", modelPath),
	)
	return ctx.Err()
}

func writeRegimes(f *os.File, r *models.AnalysisReport) error {
	n := len(r.Selection.Regimes)
	if len(r.Dates) != n || len(r.Close) != n || len(r.LogReturns) != n {
		return fmt.Errorf("%w: report series are not aligned", models.ErrDataShape)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"Date", "Close", "log_return", "regime"}); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := w.Write([]string{
			r.Dates[i].Format(dayLayout),
			strconv.FormatFloat(r.Close[i], 'f', -1, 64),
			strconv.FormatFloat(r.LogReturns[i], 'g', -1, 64),
			strconv.Itoa(r.Selection.Regimes[i]),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// writeAtomic writes through a temp file in the same directory and renames it into place.
func writeAtomic(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
