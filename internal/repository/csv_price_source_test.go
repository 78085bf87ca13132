package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
	applogger "RegimeLab/pkg/logger"
)

const yfinanceCSV = `Price,Close,High,Low,Open,Volume
Ticker,^GSPC,^GSPC,^GSPC,^GSPC,^GSPC
Date,,,,,
2005-01-04,1188.05,1205.83,1185.39,1202.08,1511400000
2005-01-03,1202.08,1217.80,1200.32,1211.92,1510800000
2005-01-05,1183.74,1192.72,1183.72,1188.05,1738900000
`

func TestParseDailyBarsYFinanceLayout(t *testing.T) {
	bars, err := ParseDailyBars(strings.NewReader(yfinanceCSV), "^GSPC")
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, time.Date(2005, 1, 3, 0, 0, 0, 0, time.UTC), bars[0].Day)
	assert.Equal(t, 1202.08, bars[0].Close)
	assert.Equal(t, 1211.92, bars[0].Open)
	assert.Equal(t, 1510800000.0, bars[0].Volume)
	assert.Equal(t, "^GSPC", bars[2].Symbol)
}

func TestParseDailyBarsErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"no close column", "Date,Open\n2020-01-01,1\n"},
		{"bad close", "Date,Close\n2020-01-01,abc\n"},
		{"duplicate date", "Date,Close\n2020-01-01,1\n2020-01-01,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDailyBars(strings.NewReader(tt.in), "X")
			assert.ErrorIs(t, err, models.ErrDataShape)
		})
	}
}

func TestCSVPriceSourceFiltersRange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "GSPC.csv"), []byte(yfinanceCSV), 0o644))
	src := NewCSVPriceSource(dir, applogger.NewNop())

	bars, err := src.GetDailyBars(context.Background(), "^GSPC",
		time.Date(2005, 1, 4, 0, 0, 0, 0, time.UTC), time.Time{})
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1188.05, bars[0].Close)

	_, err = src.GetDailyBars(context.Background(), "MISSING", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, models.ErrSymbolNotFound)
}

func TestCSVPriceSourceUnreadableFileIsNotMissing(t *testing.T) {
	dir := t.TempDir()
	// A directory where the file should be fails to read but exists.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "SPY.csv"), 0o755))
	src := NewCSVPriceSource(dir, applogger.NewNop())

	_, err := src.GetDailyBars(context.Background(), "SPY", time.Time{}, time.Time{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrSymbolNotFound)
}
