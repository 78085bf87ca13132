package hmm

import "math"

// lattice is the output of the scaled forward pass.
type lattice struct {
	alpha [][]float64 // normalised forward variables
	b     [][]float64 // emission probabilities rescaled per row by exp(-max log density)
	c     []float64   // per-row forward normalisers
	ll    float64     // total log-likelihood
}

// forward runs the scaled forward pass over per-state emission log densities.
func (m *Model) forward(lp [][]float64) (*lattice, error) {
	T, k := len(lp), m.NStates
	lat := &lattice{alpha: newTable(T, k), b: newTable(T, k), c: make([]float64, T)}

	for t := 0; t < T; t++ {
		mx := math.Inf(-1)
		for _, v := range lp[t] {
			if v > mx {
				mx = v
			}
		}
		if math.IsNaN(mx) || math.IsInf(mx, 0) {
			return nil, ErrNonFinite
		}
		for j, v := range lp[t] {
			lat.b[t][j] = math.Exp(v - mx)
		}

		sum := 0.0
		for j := 0; j < k; j++ {
			var a float64
			if t == 0 {
				a = m.StartProb[j]
			} else {
				for i := 0; i < k; i++ {
					a += lat.alpha[t-1][i] * m.TransMat[i][j]
				}
			}
			a *= lat.b[t][j]
			lat.alpha[t][j] = a
			sum += a
		}
		if !(sum > 0) || math.IsInf(sum, 0) {
			return nil, ErrNonFinite
		}
		for j := 0; j < k; j++ {
			lat.alpha[t][j] /= sum
		}
		lat.c[t] = sum
		lat.ll += math.Log(sum) + mx
	}
	if math.IsNaN(lat.ll) || math.IsInf(lat.ll, 0) {
		return nil, ErrNonFinite
	}
	return lat, nil
}

// suffStats are the expected sufficient statistics of one E-step.
type suffStats struct {
	gamma [][]float64 // T×k state posteriors
	xi    [][]float64 // k×k expected transition counts
}

// estep computes posteriors for the current parameters and the log-likelihood
// they were computed under.
func (m *Model) estep(x [][]float64) (*suffStats, float64, error) {
	ems, err := m.emissions()
	if err != nil {
		return nil, 0, err
	}
	lat, err := m.forward(frameLogProb(x, ems))
	if err != nil {
		return nil, 0, err
	}

	T, k := len(x), m.NStates
	alpha, b, c := lat.alpha, lat.b, lat.c

	beta := newTable(T, k)
	for i := 0; i < k; i++ {
		beta[T-1][i] = 1
	}
	for t := T - 2; t >= 0; t-- {
		for i := 0; i < k; i++ {
			s := 0.0
			for j := 0; j < k; j++ {
				s += m.TransMat[i][j] * b[t+1][j] * beta[t+1][j]
			}
			beta[t][i] = s / c[t+1]
		}
	}

	st := &suffStats{gamma: newTable(T, k), xi: newTable(k, k)}
	for t := 0; t < T; t++ {
		norm := 0.0
		for i := 0; i < k; i++ {
			g := alpha[t][i] * beta[t][i]
			st.gamma[t][i] = g
			norm += g
		}
		if !(norm > 0) || math.IsInf(norm, 0) {
			return nil, 0, ErrNonFinite
		}
		for i := 0; i < k; i++ {
			st.gamma[t][i] /= norm
		}
		if t == T-1 {
			continue
		}
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				st.xi[i][j] += alpha[t][i] * m.TransMat[i][j] * b[t+1][j] * beta[t+1][j] / c[t+1]
			}
		}
	}
	return st, lat.ll, nil
}

func newTable(rows, cols int) [][]float64 {
	flat := make([]float64, rows*cols)
	out := make([][]float64, rows)
	for i := range out {
		out[i] = flat[i*cols : (i+1)*cols]
	}
	return out
}
