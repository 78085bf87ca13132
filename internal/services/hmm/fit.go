package hmm

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Config controls a single EM fit.
type Config struct {
	// MaxIter caps the number of EM iterations.
	MaxIter int
	// Tol stops EM once the log-likelihood gain of an iteration falls below it.
	Tol float64
	// MinCovar is added to every covariance diagonal.
	MinCovar float64
	// KMeansIter caps the Lloyd iterations used to initialise the means.
	KMeansIter int
}

// DefaultConfig mirrors the usual Gaussian HMM defaults.
func DefaultConfig() Config {
	return Config{MaxIter: 200, Tol: 1e-2, MinCovar: 1e-3, KMeansIter: 100}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxIter <= 0 {
		c.MaxIter = d.MaxIter
	}
	if c.Tol <= 0 {
		c.Tol = d.Tol
	}
	if c.MinCovar <= 0 {
		c.MinCovar = d.MinCovar
	}
	if c.KMeansIter <= 0 {
		c.KMeansIter = d.KMeansIter
	}
	return c
}

// Result is the outcome of one EM fit.
type Result struct {
	Model         *Model
	LogLikelihood float64
	Iterations    int
	Converged     bool
}

// minStateWeight is the posterior mass below which a state keeps its previous
// emission parameters instead of being re-estimated.
const minStateWeight = 1e-10

// Fit estimates a k-state Gaussian HMM on x with EM. The seed fully determines
// the initialisation, so equal inputs give equal results.
func Fit(ctx context.Context, x [][]float64, k int, seed uint64, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if len(x) == 0 {
		return nil, ErrTooFewRows
	}
	m := &Model{NStates: k, Dim: len(x[0])}
	if err := m.checkInput(x); err != nil {
		return nil, err
	}
	if len(x) < k {
		return nil, ErrTooFewRows
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	if err := m.init(x, rng, cfg); err != nil {
		return nil, err
	}

	res := &Result{Model: m}
	prev := math.Inf(-1)
	for iter := 0; iter < cfg.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st, ll, err := m.estep(x)
		if err != nil {
			return nil, err
		}
		m.mstep(x, st, cfg.MinCovar)
		res.Iterations = iter + 1
		if ll-prev < cfg.Tol {
			res.Converged = true
			break
		}
		prev = ll
	}

	ll, err := m.Score(x)
	if err != nil {
		return nil, err
	}
	res.LogLikelihood = ll
	return res, nil
}

// init sets uniform start and transition probabilities, k-means means and the
// pooled sample covariance for every state.
func (m *Model) init(x [][]float64, rng *rand.Rand, cfg Config) error {
	k, d := m.NStates, m.Dim
	m.StartProb = make([]float64, k)
	m.TransMat = newTable(k, k)
	for i := 0; i < k; i++ {
		m.StartProb[i] = 1 / float64(k)
		for j := 0; j < k; j++ {
			m.TransMat[i][j] = 1 / float64(k)
		}
	}
	m.Means = kmeans(x, k, cfg.KMeansIter, rng)

	data := mat.NewDense(len(x), d, nil)
	for t, row := range x {
		data.SetRow(t, row)
	}
	pooled := mat.NewSymDense(d, nil)
	if len(x) > 1 {
		stat.CovarianceMatrix(pooled, data, nil)
	}
	m.Covars = make([]*mat.SymDense, k)
	for j := 0; j < k; j++ {
		cv := mat.NewSymDense(d, nil)
		cv.CopySym(pooled)
		addDiag(cv, cfg.MinCovar)
		m.Covars[j] = cv
	}
	for _, cv := range m.Covars {
		for i := 0; i < d; i++ {
			if v := cv.At(i, i); math.IsNaN(v) || math.IsInf(v, 0) {
				return ErrNonFinite
			}
		}
	}
	return nil
}

// mstep re-estimates all parameters from the posteriors.
func (m *Model) mstep(x [][]float64, st *suffStats, minCovar float64) {
	k, d := m.NStates, m.Dim

	start := st.gamma[0]
	if s := sum(start); s > 0 {
		for i := range m.StartProb {
			m.StartProb[i] = start[i] / s
		}
	}

	for i := 0; i < k; i++ {
		row := st.xi[i]
		s := sum(row)
		if !(s > 0) {
			continue
		}
		for j := range row {
			m.TransMat[i][j] = row[j] / s
		}
	}

	for j := 0; j < k; j++ {
		w := 0.0
		mean := make([]float64, d)
		for t, row := range x {
			g := st.gamma[t][j]
			w += g
			for f, v := range row {
				mean[f] += g * v
			}
		}
		if w < minStateWeight {
			continue
		}
		for f := range mean {
			mean[f] /= w
		}

		cov := mat.NewSymDense(d, nil)
		diff := make([]float64, d)
		for t, row := range x {
			g := st.gamma[t][j]
			if g == 0 {
				continue
			}
			for f := range diff {
				diff[f] = row[f] - mean[f]
			}
			for r := 0; r < d; r++ {
				for c := r; c < d; c++ {
					cov.SetSym(r, c, cov.At(r, c)+g*diff[r]*diff[c])
				}
			}
		}
		cov.ScaleSym(1/w, cov)
		addDiag(cov, minCovar)

		m.Means[j] = mean
		m.Covars[j] = cov
	}
}

func addDiag(s *mat.SymDense, v float64) {
	n := s.SymmetricDim()
	for i := 0; i < n; i++ {
		s.SetSym(i, i, s.At(i, i)+v)
	}
}

func sum(xs []float64) float64 {
	s := 0.0
	for _, v := range xs {
		s += v
	}
	return s
}
