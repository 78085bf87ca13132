package selector

import (
	"math"
	"sort"

	"RegimeLab/internal/domain/models"
)

// ParamCount is the number of free parameters of a k-state full-covariance
// Gaussian HMM over f features: transitions, means and covariances.
func ParamCount(k, f int) int {
	return k*(k-1) + k*f + k*f*(f+1)/2
}

// BIC is the Bayesian information criterion for a fit with log-likelihood ll,
// p free parameters and n observations. Lower is better.
func BIC(ll float64, p, n int) float64 {
	return -2*ll + float64(p)*math.Log(float64(n))
}

// attempt is the outcome of one (state count, restart) fit.
type attempt struct {
	k       int
	restart int
	ll      float64
	ok      bool
	fit     Trained
}

// best is the retained attempt of one state count.
type best struct {
	candidate models.CandidateModel
	fit       Trained
}

// reduce keeps the highest-likelihood restart per state count, ties going to
// the lower restart index. Counts without a successful restart are dropped.
// The result is ascending by state count.
func reduce(attempts []attempt, rows, features int) []best {
	byK := make(map[int]*best)
	failed := make(map[int]int)
	for _, a := range attempts {
		if !a.ok {
			failed[a.k]++
			continue
		}
		cur, seen := byK[a.k]
		if seen {
			prev := cur.candidate
			if a.ll < prev.LogLikelihood || (a.ll == prev.LogLikelihood && a.restart >= prev.BestRestart) {
				continue
			}
		}
		p := ParamCount(a.k, features)
		byK[a.k] = &best{
			candidate: models.CandidateModel{
				NStates:        a.k,
				CovarianceKind: models.CovarianceFull,
				LogLikelihood:  a.ll,
				BIC:            BIC(a.ll, p, rows),
				ParamCount:     p,
				BestRestart:    a.restart,
			},
			fit: a.fit,
		}
	}

	out := make([]best, 0, len(byK))
	for k, b := range byK {
		b.candidate.FailedAttempts = failed[k]
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].candidate.NStates < out[j].candidate.NStates })
	return out
}

// pickByBIC returns the index of the lowest-BIC candidate. Equal BIC goes to
// the smaller state count. Candidates must be ascending by state count.
func pickByBIC(cands []models.CandidateModel) int {
	idx := -1
	for i, c := range cands {
		if idx < 0 || c.BIC < cands[idx].BIC {
			idx = i
		}
	}
	return idx
}
