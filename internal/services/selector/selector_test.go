package selector

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
	domsvc "RegimeLab/internal/domain/service"
)

type stubModel struct{ k int }

func (m stubModel) Decode(x [][]float64) ([]int, float64, error) {
	path := make([]int, len(x))
	for i := range path {
		path[i] = i % m.k
	}
	return path, -1, nil
}

func (m stubModel) ToFitted() *models.FittedHMM {
	return &models.FittedHMM{NStates: m.k, CovarianceKind: models.CovarianceFull}
}

func constMatrix(rows, cols int) [][]float64 {
	x := make([][]float64, rows)
	for i := range x {
		x[i] = make([]float64, cols)
		for j := range x[i] {
			x[i][j] = float64(i*cols + j)
		}
	}
	return x
}

func TestParamCountStrictlyIncreasing(t *testing.T) {
	assert.Equal(t, 42, ParamCount(2, 5))
	for f := 1; f <= 6; f++ {
		for k := 2; k < 10; k++ {
			assert.Less(t, ParamCount(k, f), ParamCount(k+1, f), "k=%d f=%d", k, f)
		}
	}
}

func TestBICPrefersSmallerModelWhenGainIsSmall(t *testing.T) {
	cands := []models.CandidateModel{
		{NStates: 2, LogLikelihood: -1000, BIC: BIC(-1000, 20, 1000)},
		{NStates: 3, LogLikelihood: -990, BIC: BIC(-990, 35, 1000)},
	}
	assert.InDelta(t, 2138.155, cands[0].BIC, 1e-3)
	assert.InDelta(t, 2221.772, cands[1].BIC, 1e-3)
	assert.Equal(t, 0, pickByBIC(cands))
}

func TestPickByBICTieGoesToSmallerCount(t *testing.T) {
	cands := []models.CandidateModel{{NStates: 2, BIC: 10}, {NStates: 3, BIC: 5}, {NStates: 4, BIC: 5}}
	assert.Equal(t, 1, pickByBIC(cands))
}

func TestReduceKeepsBestRestartPerCount(t *testing.T) {
	attempts := []attempt{
		{k: 2, restart: 0, ll: -10, ok: true, fit: stubModel{2}},
		{k: 2, restart: 1, ll: -5, ok: true, fit: stubModel{2}},
		{k: 2, restart: 2, ll: -5, ok: true, fit: stubModel{2}},
		{k: 2, restart: 3, ok: false},
		{k: 3, restart: 0, ok: false},
		{k: 3, restart: 1, ok: false},
	}
	kept := reduce(attempts, 100, 5)
	require.Len(t, kept, 1)
	c := kept[0].candidate
	assert.Equal(t, 2, c.NStates)
	assert.Equal(t, 1, c.BestRestart)
	assert.Equal(t, -5.0, c.LogLikelihood)
	assert.Equal(t, 1, c.FailedAttempts)
	assert.Equal(t, ParamCount(2, 5), c.ParamCount)
	assert.Equal(t, BIC(-5, ParamCount(2, 5), 100), c.BIC)
}

func TestSelectFailsWhenEveryAttemptFails(t *testing.T) {
	s := New(Config{StateCounts: []int{2, 3}, Restarts: 2}, WithFitter(
		func(ctx context.Context, x [][]float64, k int, seed uint64) (Trained, float64, error) {
			return nil, 0, errors.New("singular covariance")
		}))

	_, err := s.Select(context.Background(), constMatrix(20, 3))
	assert.ErrorIs(t, err, models.ErrModelFitFailure)
}

func TestSelectTreatsNonFiniteLikelihoodAsFailure(t *testing.T) {
	s := New(Config{StateCounts: []int{2, 3}, Restarts: 2}, WithFitter(
		func(ctx context.Context, x [][]float64, k int, seed uint64) (Trained, float64, error) {
			if k == 3 {
				return stubModel{k}, math.NaN(), nil
			}
			return stubModel{k}, -50, nil
		}))

	sel, err := s.Select(context.Background(), constMatrix(20, 3))
	require.NoError(t, err)
	require.Len(t, sel.Candidates, 1)
	assert.Equal(t, 2, sel.Chosen.NStates)
}

func TestSelectRejectsMalformedMatrix(t *testing.T) {
	tests := []struct {
		name string
		x    [][]float64
	}{
		{"empty", nil},
		{"no columns", [][]float64{{}, {}}},
		{"ragged", [][]float64{{1, 2}, {3}}},
		{"nan", [][]float64{{1, 2}, {math.NaN(), 4}}},
		{"inf", [][]float64{{1, math.Inf(1)}, {3, 4}}},
	}
	s := New(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Select(context.Background(), tt.x)
			assert.ErrorIs(t, err, models.ErrDataShape)
		})
	}
}

func TestSelectRejectsStateCountBelowTwo(t *testing.T) {
	s := New(DefaultConfig())
	_, err := s.Select(context.Background(), constMatrix(10, 2), domsvc.WithStateCounts([]int{1, 2}))
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestSelectSeedsAreRestartIndices(t *testing.T) {
	var mu sync.Mutex
	seeds := map[int][]int{}
	s := New(Config{StateCounts: []int{3, 2, 3}, Restarts: 4, Workers: 3}, WithFitter(
		func(ctx context.Context, x [][]float64, k int, seed uint64) (Trained, float64, error) {
			mu.Lock()
			seeds[k] = append(seeds[k], int(seed))
			mu.Unlock()
			return stubModel{k}, -float64(seed), nil
		}))

	sel, err := s.Select(context.Background(), constMatrix(30, 2))
	require.NoError(t, err)

	for _, k := range []int{2, 3} {
		got := seeds[k]
		sort.Ints(got)
		assert.Equal(t, []int{0, 1, 2, 3}, got, "k=%d", k)
	}
	for _, c := range sel.Candidates {
		assert.Equal(t, 0, c.BestRestart)
	}
	assert.Equal(t, []int{2, 3}, []int{sel.Candidates[0].NStates, sel.Candidates[1].NStates})
}

func TestSelectOverridesApplyPerCall(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	s := New(DefaultConfig(), WithFitter(
		func(ctx context.Context, x [][]float64, k int, seed uint64) (Trained, float64, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			return stubModel{k}, -1, nil
		}))

	_, err := s.Select(context.Background(), constMatrix(10, 2),
		domsvc.WithStateCounts([]int{2}), domsvc.WithRestarts(3))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestSelectHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(Config{StateCounts: []int{2}, Restarts: 2}, WithFitter(
		func(ctx context.Context, x [][]float64, k int, seed uint64) (Trained, float64, error) {
			return nil, 0, ctx.Err()
		}))

	_, err := s.Select(ctx, constMatrix(10, 2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelectOnSyntheticRegimes(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	x := make([][]float64, 300)
	for i := range x {
		mu := -2.0
		if (i/60)%2 == 1 {
			mu = 2.0
		}
		x[i] = []float64{mu + 0.4*rng.NormFloat64(), 0.5*mu + 0.4*rng.NormFloat64()}
	}

	s := New(Config{StateCounts: []int{2, 3}, Restarts: 3})
	sel, err := s.Select(context.Background(), x)
	require.NoError(t, err)

	require.Len(t, sel.Regimes, len(x))
	for _, r := range sel.Regimes {
		assert.GreaterOrEqual(t, r, 0)
		assert.Less(t, r, sel.Chosen.NStates)
	}
	for _, c := range sel.Candidates {
		assert.LessOrEqual(t, sel.Chosen.BIC, c.BIC)
	}
	require.NotNil(t, sel.Model)
	for _, row := range sel.Model.TransMat {
		s := 0.0
		for _, v := range row {
			s += v
		}
		assert.InDelta(t, 1.0, s, 1e-9)
	}
}
