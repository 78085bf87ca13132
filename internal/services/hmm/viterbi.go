package hmm

import "math"

// Decode returns the most likely hidden state path for x (Viterbi) and its
// joint log-probability. Ties resolve to the lowest state index.
func (m *Model) Decode(x [][]float64) ([]int, float64, error) {
	if err := m.checkInput(x); err != nil {
		return nil, 0, err
	}
	ems, err := m.emissions()
	if err != nil {
		return nil, 0, err
	}
	lp := frameLogProb(x, ems)

	T, k := len(x), m.NStates
	logA := newTable(k, k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			logA[i][j] = math.Log(m.TransMat[i][j])
		}
	}

	delta := newTable(T, k)
	psi := make([][]int, T)
	for j := 0; j < k; j++ {
		delta[0][j] = math.Log(m.StartProb[j]) + lp[0][j]
	}
	for t := 1; t < T; t++ {
		psi[t] = make([]int, k)
		for j := 0; j < k; j++ {
			best, arg := math.Inf(-1), 0
			for i := 0; i < k; i++ {
				if v := delta[t-1][i] + logA[i][j]; v > best {
					best, arg = v, i
				}
			}
			delta[t][j] = best + lp[t][j]
			psi[t][j] = arg
		}
	}

	path := make([]int, T)
	best := math.Inf(-1)
	for j := 0; j < k; j++ {
		if delta[T-1][j] > best {
			best, path[T-1] = delta[T-1][j], j
		}
	}
	if math.IsInf(best, -1) || math.IsNaN(best) {
		return nil, 0, ErrNonFinite
	}
	for t := T - 1; t > 0; t-- {
		path[t-1] = psi[t][path[t]]
	}
	return path, best, nil
}
