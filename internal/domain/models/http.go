package models

// Requests for the regime HTTP endpoints. Dates travel as YYYY-MM-DD strings.

type AnalyzeHTTPRequest struct {
	Symbol      string `json:"symbol" validate:"required,max=32"`
	From        string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To          string `json:"to" validate:"omitempty,datetime=2006-01-02"`
	StateCounts []int  `json:"state_counts" validate:"omitempty,max=9,dive,gte=2,lte=10"`
	Restarts    int    `json:"restarts" validate:"gte=0,lte=100"`
}

type LatestRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,max=32"`
}

// ComparePoliciesRequest names up to eight alternative allocations to replay on the cached run.
type ComparePoliciesRequest struct {
	Symbol   string                        `json:"symbol" validate:"required,max=32"`
	Policies map[string]map[string]float64 `json:"policies" validate:"required,min=1,max=8,dive,keys,required,endkeys,required,min=1"`
}
