package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"RegimeLab/internal/domain/models"
	domsvc "RegimeLab/internal/domain/service"
)

const (
	TradingDays = 252

	shortVolWindow = 5
	volWindow      = 21
	longVolWindow  = 63
	rsiWindow      = 14
	maWindow       = 20
)

// Builder turns daily closes into the five-column regime feature panel.
type Builder struct{}

var _ domsvc.FeatureBuilder = Builder{}

func NewBuilder() Builder { return Builder{} }

// Build computes raw features for every bar, drops rows where any feature (or
// the 63-day volatility warm-up) is undefined, then z-scores each column.
func (Builder) Build(symbol string, bars []models.Candle) (*models.FeaturePanel, error) {
	if err := checkBars(bars); err != nil {
		return nil, err
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	// Index i of every per-bar series refers to bars[i]; bar 0 has no return.
	rets := append([]float64{math.NaN()}, ComputeLogReturns(bars)...)
	vol5 := shiftedVol(rets, shortVolWindow)
	vol21 := shiftedVol(rets, volWindow)
	vol63 := shiftedVol(rets, longVolWindow)
	rsi := RSI(closes, rsiWindow)
	maDist := MADistance(closes, maWindow)

	p := &models.FeaturePanel{Symbol: symbol}
	for i := range bars {
		fv := models.FeatureVector{
			models.FeatLogReturn:  rets[i],
			models.FeatVol21d:     vol21[i],
			models.FeatVolRatio:   vol5[i] / vol21[i],
			models.FeatRSI:        rsi[i],
			models.FeatMADistance: maDist[i],
		}
		if !finite(vol63[i]) || !allFinite(fv[:]) {
			continue
		}
		p.Dates = append(p.Dates, bars[i].Day)
		p.Close = append(p.Close, closes[i])
		p.LogReturns = append(p.LogReturns, rets[i])
		p.Raw = append(p.Raw, fv)
	}
	if p.Len() < 2 {
		return nil, fmt.Errorf("%w: %d usable rows from %d bars for %s", models.ErrDataShape, p.Len(), len(bars), symbol)
	}

	p.Scaled = Standardize(p.Raw)
	return p, nil
}

// Standardize z-scores every column with its population std. A constant
// column is only centred.
func Standardize(raw []models.FeatureVector) [][]float64 {
	out := make([][]float64, len(raw))
	for i := range out {
		out[i] = make([]float64, models.FeatureCount)
	}
	col := make([]float64, len(raw))
	for j := 0; j < models.FeatureCount; j++ {
		for i := range raw {
			col[i] = raw[i][j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		for i := range raw {
			out[i][j] = (raw[i][j] - mean) / std
		}
	}
	return out
}

// shiftedVol computes rolling volatility over rets[1:] and realigns it to bar indices.
func shiftedVol(rets []float64, window int) []float64 {
	v := RollingVolatility(rets[1:], window, TradingDays)
	return append([]float64{math.NaN()}, v...)
}

func checkBars(bars []models.Candle) error {
	if len(bars) < 2 {
		return fmt.Errorf("%w: need at least 2 bars, got %d", models.ErrDataShape, len(bars))
	}
	for i, b := range bars {
		if !finite(b.Close) || b.Close <= 0 {
			return fmt.Errorf("%w: invalid close %v on %s", models.ErrDataShape, b.Close, b.Day.Format("2006-01-02"))
		}
		if i > 0 && !b.Day.After(bars[i-1].Day) {
			return fmt.Errorf("%w: dates not strictly increasing at %s", models.ErrDataShape, b.Day.Format("2006-01-02"))
		}
	}
	return nil
}

func allFinite(xs []float64) bool {
	for _, v := range xs {
		if !finite(v) {
			return false
		}
	}
	return true
}
