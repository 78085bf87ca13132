package features

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"RegimeLab/internal/domain/models"
)

func syntheticBars(n int) []models.Candle {
	rng := rand.New(rand.NewPCG(1, 2))
	day := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	bars := make([]models.Candle, n)
	for i := range bars {
		price *= math.Exp(0.0003 + 0.01*rng.NormFloat64())
		bars[i] = models.Candle{Day: day.AddDate(0, 0, i), Symbol: "SPY", Close: price}
	}
	return bars
}

func TestComputeLogReturns(t *testing.T) {
	bars := []models.Candle{{Close: 100}, {Close: 110}, {Close: 99}}
	got := ComputeLogReturns(bars)
	require.Len(t, got, 2)
	assert.InDelta(t, math.Log(1.1), got[0], 1e-12)
	assert.InDelta(t, math.Log(0.9), got[1], 1e-12)
	assert.Nil(t, ComputeLogReturns(bars[:1]))
}

func TestRollingVolatility(t *testing.T) {
	xs := []float64{0.01, -0.01, 0.02, 0.0}
	got := RollingVolatility(xs, 3, 252)

	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, stat.StdDev(xs[0:3], nil)*math.Sqrt(252), got[2], 1e-12)
	assert.InDelta(t, stat.StdDev(xs[1:4], nil)*math.Sqrt(252), got[3], 1e-12)
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{"only gains", []float64{1, 2, 3, 4}, 100},
		{"balanced", []float64{10, 11, 10, 11}, 100 - 100/(1+2.0)},
		{"only losses", []float64{4, 3, 2, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RSI(tt.closes, 3)
			for i := 0; i < 3; i++ {
				assert.True(t, math.IsNaN(got[i]), "index %d", i)
			}
			assert.InDelta(t, tt.want, got[3], 1e-9)
		})
	}

	flat := RSI([]float64{5, 5, 5, 5}, 3)
	assert.True(t, math.IsNaN(flat[3]))
}

func TestMADistance(t *testing.T) {
	got := MADistance([]float64{1, 2, 3, 6}, 3)
	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, (3.0-2.0)/2.0, got[2], 1e-12)
	assert.InDelta(t, (6.0-11.0/3)/(11.0/3), got[3], 1e-12)
}

func TestBuildAlignsAndScales(t *testing.T) {
	bars := syntheticBars(150)
	p, err := NewBuilder().Build("SPY", bars)
	require.NoError(t, err)

	// The 63-day volatility needs 63 returns, so the first row is bar 63.
	require.Equal(t, len(bars)-longVolWindow, p.Len())
	assert.Equal(t, bars[longVolWindow].Day, p.Dates[0])
	assert.Len(t, p.Close, p.Len())
	assert.Len(t, p.LogReturns, p.Len())
	assert.Len(t, p.Raw, p.Len())
	require.Len(t, p.Scaled, p.Len())

	for i := range p.Dates {
		src := bars[i+longVolWindow]
		prev := bars[i+longVolWindow-1]
		assert.Equal(t, src.Close, p.Close[i])
		assert.InDelta(t, math.Log(src.Close/prev.Close), p.LogReturns[i], 1e-12)
		assert.Equal(t, p.LogReturns[i], p.Raw[i][models.FeatLogReturn])
		if i > 0 {
			assert.True(t, p.Dates[i].After(p.Dates[i-1]))
		}
	}

	col := make([]float64, p.Len())
	for j := 0; j < models.FeatureCount; j++ {
		for i := range col {
			col[i] = p.Scaled[i][j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		assert.InDelta(t, 0, mean, 1e-9, "column %s", models.FeatureNames[j])
		assert.InDelta(t, 1, std, 1e-9, "column %s", models.FeatureNames[j])
	}
}

func TestStandardizeConstantColumn(t *testing.T) {
	raw := []models.FeatureVector{{1, 2, 3, 4, 5}, {1, 4, 3, 4, 5}}
	got := Standardize(raw)
	assert.Equal(t, 0.0, got[0][0])
	assert.Equal(t, 0.0, got[1][0])
	assert.InDelta(t, -1, got[0][1], 1e-12)
	assert.InDelta(t, 1, got[1][1], 1e-12)
}

func TestBuildRejectsBadBars(t *testing.T) {
	good := syntheticBars(100)
	unsorted := append([]models.Candle(nil), good...)
	unsorted[10], unsorted[11] = unsorted[11], unsorted[10]
	badClose := append([]models.Candle(nil), good...)
	badClose[5].Close = 0

	tests := []struct {
		name string
		bars []models.Candle
	}{
		{"empty", nil},
		{"unsorted", unsorted},
		{"non-positive close", badClose},
		{"shorter than warm-up", good[:60]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder().Build("SPY", tt.bars)
			assert.ErrorIs(t, err, models.ErrDataShape)
		})
	}
}
