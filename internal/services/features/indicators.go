package features

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"RegimeLab/internal/domain/models"
)

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(candles)-1, or nil if insufficient data.
func ComputeLogReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		out = append(out, math.Log(candles[i].Close/candles[i-1].Close))
	}
	return out
}

// RollingVolatility returns the annualized sample std of xs over a trailing
// window at every index. Indices before the first full window are NaN.
func RollingVolatility(xs []float64, window int, periodsPerYear float64) []float64 {
	out := nanSlice(len(xs))
	if window < 2 {
		return out
	}
	scale := math.Sqrt(periodsPerYear)
	for i := window - 1; i < len(xs); i++ {
		out[i] = stat.StdDev(xs[i-window+1:i+1], nil) * scale
	}
	return out
}

// RollingMean returns the trailing mean of xs. Indices before the first full
// window are NaN.
func RollingMean(xs []float64, window int) []float64 {
	out := nanSlice(len(xs))
	if window < 1 {
		return out
	}
	for i := window - 1; i < len(xs); i++ {
		out[i] = stat.Mean(xs[i-window+1:i+1], nil)
	}
	return out
}

// RSI is the relative strength index from simple rolling means of gains and
// losses. A window with no losses reads 100; a flat window is NaN.
func RSI(closes []float64, window int) []float64 {
	out := nanSlice(len(closes))
	if len(closes) < 2 {
		return out
	}
	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	// The first close has no change; windows start at index 1.
	avgGain := RollingMean(gains[1:], window)
	avgLoss := RollingMean(losses[1:], window)
	for i := range avgGain {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l):
		case l == 0 && g == 0:
		case l == 0:
			out[i+1] = 100
		default:
			out[i+1] = 100 - 100/(1+g/l)
		}
	}
	return out
}

// MADistance is (close - MA) / MA for a trailing simple moving average.
func MADistance(closes []float64, window int) []float64 {
	ma := RollingMean(closes, window)
	out := nanSlice(len(closes))
	for i, m := range ma {
		if !math.IsNaN(m) && m != 0 {
			out[i] = (closes[i] - m) / m
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
