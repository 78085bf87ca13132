package hmm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

var log2Pi = math.Log(2 * math.Pi)

// emission is a multivariate normal density prepared for repeated evaluation.
// The lower Cholesky factor is stored row-major so the Mahalanobis term is a
// single forward substitution.
type emission struct {
	dim     int
	mean    []float64
	lower   []float64
	logNorm float64
}

func newEmission(mean []float64, cov *mat.SymDense) (*emission, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, ErrSingular
	}
	logDet := chol.LogDet()
	if math.IsNaN(logDet) || math.IsInf(logDet, 0) {
		return nil, ErrSingular
	}
	var l mat.TriDense
	chol.LTo(&l)

	d := len(mean)
	lower := make([]float64, d*d)
	for i := 0; i < d; i++ {
		for j := 0; j <= i; j++ {
			lower[i*d+j] = l.At(i, j)
		}
	}
	return &emission{
		dim:     d,
		mean:    mean,
		lower:   lower,
		logNorm: -0.5 * (float64(d)*log2Pi + logDet),
	}, nil
}

// logProb evaluates log N(x | mean, cov). buf must have length dim.
func (e *emission) logProb(x, buf []float64) float64 {
	d := e.dim
	maha := 0.0
	for i := 0; i < d; i++ {
		s := x[i] - e.mean[i]
		row := e.lower[i*d : i*d+i]
		for j, lij := range row {
			s -= lij * buf[j]
		}
		z := s / e.lower[i*d+i]
		buf[i] = z
		maha += z * z
	}
	return e.logNorm - 0.5*maha
}

// frameLogProb returns the T×k matrix of per-state emission log densities.
func frameLogProb(x [][]float64, ems []*emission) [][]float64 {
	buf := make([]float64, ems[0].dim)
	out := make([][]float64, len(x))
	flat := make([]float64, len(x)*len(ems))
	for t, row := range x {
		out[t] = flat[t*len(ems) : (t+1)*len(ems)]
		for j, e := range ems {
			out[t][j] = e.logProb(row, buf)
		}
	}
	return out
}
