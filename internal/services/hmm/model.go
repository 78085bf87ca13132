package hmm

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"RegimeLab/internal/domain/models"
)

var (
	// ErrSingular is returned when a state covariance cannot be factorised.
	ErrSingular = errors.New("hmm: singular covariance")
	// ErrNonFinite is returned when the likelihood underflows, overflows or becomes NaN.
	ErrNonFinite = errors.New("hmm: non-finite likelihood")
	// ErrTooFewRows is returned when there are fewer observations than states.
	ErrTooFewRows = errors.New("hmm: fewer observations than states")
)

// Model holds the parameters of a Gaussian HMM with full covariances.
type Model struct {
	NStates   int
	Dim       int
	StartProb []float64
	TransMat  [][]float64
	Means     [][]float64
	Covars    []*mat.SymDense
}

func (m *Model) emissions() ([]*emission, error) {
	ems := make([]*emission, m.NStates)
	for j := range ems {
		e, err := newEmission(m.Means[j], m.Covars[j])
		if err != nil {
			return nil, fmt.Errorf("state %d: %w", j, err)
		}
		ems[j] = e
	}
	return ems, nil
}

// Score returns the total log-likelihood of x under the model.
func (m *Model) Score(x [][]float64) (float64, error) {
	if err := m.checkInput(x); err != nil {
		return 0, err
	}
	ems, err := m.emissions()
	if err != nil {
		return 0, err
	}
	lat, err := m.forward(frameLogProb(x, ems))
	if err != nil {
		return 0, err
	}
	return lat.ll, nil
}

// ToFitted copies the parameters into the exported domain representation.
func (m *Model) ToFitted() *models.FittedHMM {
	fh := &models.FittedHMM{
		NStates:        m.NStates,
		CovarianceKind: models.CovarianceFull,
		StartProb:      append([]float64(nil), m.StartProb...),
		TransMat:       make([][]float64, m.NStates),
		States:         make([]models.GaussianState, m.NStates),
	}
	for i := 0; i < m.NStates; i++ {
		fh.TransMat[i] = append([]float64(nil), m.TransMat[i]...)
		cov := make([][]float64, m.Dim)
		for r := 0; r < m.Dim; r++ {
			cov[r] = make([]float64, m.Dim)
			for c := 0; c < m.Dim; c++ {
				cov[r][c] = m.Covars[i].At(r, c)
			}
		}
		fh.States[i] = models.GaussianState{
			Mean:       append([]float64(nil), m.Means[i]...),
			Covariance: cov,
		}
	}
	return fh
}

// FromFitted rebuilds a model from its domain representation.
func FromFitted(fh *models.FittedHMM) (*Model, error) {
	if fh == nil || fh.NStates < 1 || len(fh.States) != fh.NStates || len(fh.TransMat) != fh.NStates {
		return nil, fmt.Errorf("hmm: malformed fitted model")
	}
	dim := len(fh.States[0].Mean)
	m := &Model{
		NStates:   fh.NStates,
		Dim:       dim,
		StartProb: append([]float64(nil), fh.StartProb...),
		TransMat:  make([][]float64, fh.NStates),
		Means:     make([][]float64, fh.NStates),
		Covars:    make([]*mat.SymDense, fh.NStates),
	}
	for i, st := range fh.States {
		if len(st.Mean) != dim || len(st.Covariance) != dim {
			return nil, fmt.Errorf("hmm: state %d has wrong dimensionality", i)
		}
		m.TransMat[i] = append([]float64(nil), fh.TransMat[i]...)
		m.Means[i] = append([]float64(nil), st.Mean...)
		cov := mat.NewSymDense(dim, nil)
		for r := 0; r < dim; r++ {
			for c := r; c < dim; c++ {
				cov.SetSym(r, c, st.Covariance[r][c])
			}
		}
		m.Covars[i] = cov
	}
	return m, nil
}

func (m *Model) checkInput(x [][]float64) error {
	if len(x) == 0 {
		return fmt.Errorf("%w: empty observation matrix", models.ErrDataShape)
	}
	for t, row := range x {
		if len(row) != m.Dim {
			return fmt.Errorf("%w: row %d has %d columns, want %d", models.ErrDataShape, t, len(row), m.Dim)
		}
	}
	return nil
}
