package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	applogger "RegimeLab/pkg/logger"
)

const dayLayout = "2006-01-02"

// CSVPriceSource reads daily bars from <dir>/<symbol>.csv. The first row is a
// header naming a Close column; the first column holds the date. Rows whose
// first field is not a date (e.g. yfinance ticker rows) are skipped.
type CSVPriceSource struct {
	dir string
	l   *applogger.Logger
}

var _ domrepo.PriceSource = (*CSVPriceSource)(nil)

func NewCSVPriceSource(dir string, l *applogger.Logger) *CSVPriceSource {
	return &CSVPriceSource{dir: dir, l: l.Named("csv_prices")}
}

func (s *CSVPriceSource) GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	path := filepath.Join(s.dir, symbolFile(symbol)+".csv")
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", models.ErrSymbolNotFound, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("open price file: %w", err)
	}
	defer f.Close()

	bars, err := ParseDailyBars(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	out := bars[:0]
	for _, b := range bars {
		if (!from.IsZero() && b.Day.Before(from)) || (!to.IsZero() && b.Day.After(to)) {
			continue
		}
		out = append(out, b)
	}
	s.l.Info("csv daily bars loaded",
		applogger.String("symbol", symbol),
		applogger.String("path", path),
		applogger.Int("rows", len(out)),
	)
	return out, ctx.Err()
}

// ParseDailyBars reads a price CSV into ascending bars. Duplicate dates are rejected.
func ParseDailyBars(r io.Reader, symbol string) ([]models.Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: missing header: %v", models.ErrDataShape, err)
	}
	cols := columnIndex(header)
	closeIdx, ok := cols["close"]
	if !ok {
		return nil, fmt.Errorf("%w: no Close column in header %v", models.ErrDataShape, header)
	}

	var bars []models.Candle
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrDataShape, err)
		}
		if len(rec) == 0 {
			continue
		}
		day, ok := parseDay(rec[0])
		if !ok {
			continue
		}
		c := models.Candle{Day: day, Symbol: symbol}
		if c.Close, err = field(rec, closeIdx); err != nil {
			return nil, fmt.Errorf("%w: close on %s: %v", models.ErrDataShape, rec[0], err)
		}
		c.Open, _ = optionalField(rec, cols, "open")
		c.High, _ = optionalField(rec, cols, "high")
		c.Low, _ = optionalField(rec, cols, "low")
		c.Volume, _ = optionalField(rec, cols, "volume")
		bars = append(bars, c)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Day.Before(bars[j].Day) })
	for i := 1; i < len(bars); i++ {
		if bars[i].Day.Equal(bars[i-1].Day) {
			return nil, fmt.Errorf("%w: duplicate date %s", models.ErrDataShape, bars[i].Day.Format(dayLayout))
		}
	}
	return bars, nil
}

func columnIndex(header []string) map[string]int {
	out := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, seen := out[key]; !seen {
			out[key] = i
		}
	}
	return out
}

// parseDay accepts a bare date or a timestamp starting with one.
func parseDay(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len(dayLayout) {
		return time.Time{}, false
	}
	d, err := time.Parse(dayLayout, s[:len(dayLayout)])
	return d, err == nil
}

func field(rec []string, idx int) (float64, error) {
	if idx >= len(rec) {
		return 0, fmt.Errorf("missing column %d", idx)
	}
	return strconv.ParseFloat(strings.TrimSpace(rec[idx]), 64)
}

func optionalField(rec []string, cols map[string]int, name string) (float64, error) {
	idx, ok := cols[name]
	if !ok {
		return 0, nil
	}
	return field(rec, idx)
}

// symbolFile maps a ticker to a file stem: "^GSPC" -> "GSPC".
func symbolFile(symbol string) string {
	return strings.NewReplacer("^", "", "/", "_", "\\", "_").Replace(symbol)
}
