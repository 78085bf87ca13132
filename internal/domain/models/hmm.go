package models

// CovarianceFull is the only supported covariance parameterisation.
const CovarianceFull = "full"

// GaussianState holds the emission parameters of one hidden state.
type GaussianState struct {
	Mean       []float64   `json:"mean"`
	Covariance [][]float64 `json:"covariance"`
}

// FittedHMM is a Gaussian hidden Markov model with full covariances.
type FittedHMM struct {
	NStates        int             `json:"n_states"`
	CovarianceKind string          `json:"covariance_kind"`
	StartProb      []float64       `json:"start_prob"`
	TransMat       [][]float64     `json:"trans_mat"`
	States         []GaussianState `json:"states"`
}

// CandidateModel is the retained fit for one state count.
type CandidateModel struct {
	NStates        int        `json:"n_states"`
	CovarianceKind string     `json:"covariance_kind"`
	LogLikelihood  float64    `json:"log_likelihood"`
	BIC            float64    `json:"bic"`
	ParamCount     int        `json:"param_count"`
	BestRestart    int        `json:"best_restart"`
	FailedAttempts int        `json:"failed_attempts"`
	Model          *FittedHMM `json:"-"`
}

// RegimeSequence is one decoded label per feature row.
type RegimeSequence []int

// Selection is the outcome of model-order selection and decoding.
type Selection struct {
	Model      *FittedHMM       `json:"model"`
	Regimes    RegimeSequence   `json:"regimes"`
	Chosen     CandidateModel   `json:"chosen"`
	Candidates []CandidateModel `json:"candidates"` // ascending by state count, failed counts omitted
	Rows       int              `json:"rows"`
}

// RegimeProfile summarises the raw features observed while in one regime.
type RegimeProfile struct {
	Regime           int     `json:"regime"`
	Name             string  `json:"name,omitempty"`
	Days             int     `json:"days"`
	Share            float64 `json:"share"`
	AnnualizedReturn float64 `json:"annualized_return"`
	MeanVol21d       float64 `json:"mean_vol_21d"`
	MeanRSI          float64 `json:"mean_rsi"`
	MeanMADistance   float64 `json:"mean_ma_distance"`
}
