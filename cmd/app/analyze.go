package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"RegimeLab/internal/di"
	"RegimeLab/internal/domain/models"
	"RegimeLab/pkg/util"
)

var (
	analyzeSymbol   string
	analyzeFrom     string
	analyzeTo       string
	analyzeStates   []int
	analyzeRestarts int
	analyzeFormat   string
	analyzeTimeout  time.Duration
)

// analyzeCmd runs one analysis and prints the summary tables
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Detect regimes for one symbol and backtest the allocation",
	Long: `Load daily bars, build features, fit candidate HMMs, pick one by BIC and
backtest the configured allocation against buy-and-hold.

Examples:
  regimelab analyze --symbol ^GSPC
  regimelab analyze --symbol SPY --from 2010-01-01 --states 2,3
  regimelab analyze --symbol SPY --format json`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeSymbol, "symbol", "", "Ticker to analyse (default: first configured symbol)")
	f.StringVar(&analyzeFrom, "from", "", "First day, YYYY-MM-DD (default: data.from)")
	f.StringVar(&analyzeTo, "to", "", "Last day, YYYY-MM-DD (default: latest bar)")
	f.IntSliceVar(&analyzeStates, "states", nil, "Candidate state counts, e.g. 2,3,4,5")
	f.IntVar(&analyzeRestarts, "restarts", 0, "EM restarts per state count")
	f.StringVar(&analyzeFormat, "format", "table", "Output format: table, json")
	f.DurationVar(&analyzeTimeout, "timeout", 0, "Abort the run after this long (default: schedule.timeout)")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	if analyzeFormat != "table" && analyzeFormat != "json" {
		return fmt.Errorf("unknown format %q", analyzeFormat)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	req, err := analyzeRequest(cfg.Data.Symbols)
	if err != nil {
		return err
	}

	ra, cleanup, err := di.InitializeAnalysis(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer cleanup()

	timeout := analyzeTimeout
	if timeout <= 0 {
		timeout = cfg.Schedule.Timeout
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	report, err := ra.Run(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if analyzeFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report.Summary())
	}
	return printReport(out, report)
}

func analyzeRequest(symbols []string) (models.AnalysisRequest, error) {
	symbol := analyzeSymbol
	if symbol == "" && len(symbols) > 0 {
		symbol = symbols[0]
	}
	if symbol == "" {
		return models.AnalysisRequest{}, fmt.Errorf("--symbol is required")
	}
	from, err := util.ParseDay(analyzeFrom)
	if err != nil {
		return models.AnalysisRequest{}, fmt.Errorf("--from: %w", err)
	}
	to, err := util.ParseDay(analyzeTo)
	if err != nil {
		return models.AnalysisRequest{}, fmt.Errorf("--to: %w", err)
	}
	return models.AnalysisRequest{
		Symbol:      symbol,
		From:        from,
		To:          to,
		StateCounts: analyzeStates,
		Restarts:    analyzeRestarts,
	}, nil
}
