package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"RegimeLab/internal/domain/models"
	"RegimeLab/pkg/util"
)

// printReport writes the regime, transition and performance tables.
func printReport(w io.Writer, r *models.AnalysisReport) error {
	fmt.Fprintf(w, "%s  %s .. %s  rows=%d  run=%s\n\n",
		r.Symbol, util.FormatDay(r.From), util.FormatDay(r.To), r.Selection.Rows, r.RunID)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "K\tlog-lik\tparams\tBIC\tfailed\t")
	for _, c := range r.Selection.Candidates {
		mark := ""
		if c.NStates == r.Selection.Chosen.NStates {
			mark = " *"
		}
		fmt.Fprintf(tw, "%d%s\t%.2f\t%d\t%.2f\t%d\t\n", c.NStates, mark, c.LogLikelihood, c.ParamCount, c.BIC, c.FailedAttempts)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nRegime characteristics")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "regime\tname\tdays\tshare\tann. return\tvol 21d\tRSI\tMA dist\t")
	for _, p := range r.Profiles {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.1f%%\t%.2f%%\t%.2f%%\t%.1f\t%.2f%%\t\n",
			p.Regime, p.Name, p.Days, 100*p.Share, 100*p.AnnualizedReturn, 100*p.MeanVol21d, p.MeanRSI, 100*p.MeanMADistance)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if r.Selection.Model != nil {
		fmt.Fprintln(w, "\nTransition matrix")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		header := []string{"from\\to"}
		for j := range r.Selection.Model.TransMat {
			header = append(header, fmt.Sprint(j))
		}
		fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
		for i, row := range r.Selection.Model.TransMat {
			cells := []string{fmt.Sprint(i)}
			for _, p := range row {
				cells = append(cells, fmt.Sprintf("%.3f", p))
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, "\nStrategy vs buy-and-hold")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tdays\tann. return\tann. vol\tSharpe\tmax DD\tgrowth\t")
	writeMetrics(tw, "regime strategy", r.Backtest.Strategy.Metrics)
	writeMetrics(tw, "buy & hold", r.Backtest.Baseline.Metrics)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nCurrent regime: %d%s\n", r.CurrentRegime, regimeName(r))
	return nil
}

func writeMetrics(w io.Writer, label string, m models.SeriesMetrics) {
	sharpe := "n/a"
	if m.Sharpe != nil {
		sharpe = fmt.Sprintf("%.2f", *m.Sharpe)
	}
	fmt.Fprintf(w, "%s\t%d\t%.2f%%\t%.2f%%\t%s\t%.2f%%\t%.3f\t\n",
		label, m.Observations, 100*m.AnnualizedReturn, 100*m.AnnualizedVolatility, sharpe, 100*m.MaxDrawdown, m.FinalGrowth)
}

func regimeName(r *models.AnalysisReport) string {
	for _, p := range r.Profiles {
		if p.Regime == r.CurrentRegime && p.Name != "" {
			return " (" + p.Name + ")"
		}
	}
	return ""
}
