package models

import "time"

// FeatureCount is the dimensionality of every feature vector.
const FeatureCount = 5

// Feature column order. Scaled and raw matrices share it.
const (
	FeatLogReturn = iota
	FeatVol21d
	FeatVolRatio
	FeatRSI
	FeatMADistance
)

// FeatureNames lists the feature columns in matrix order.
var FeatureNames = [FeatureCount]string{"log_return", "vol_21d", "vol_ratio", "rsi", "ma_distance"}

// FeatureVector is one trading day of features.
type FeatureVector [FeatureCount]float64

// Candle represents a daily OHLCV bar.
type Candle struct {
	Day    time.Time
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// FeaturePanel is the dense, date-aligned output of feature engineering.
// Every slice has the same length and index i refers to Dates[i].
type FeaturePanel struct {
	Symbol     string
	Dates      []time.Time
	Close      []float64
	LogReturns []float64       // raw daily log returns
	Raw        []FeatureVector // unscaled features
	Scaled     [][]float64     // z-scored features, rows of length FeatureCount
}

// Len returns the number of rows.
func (p *FeaturePanel) Len() int { return len(p.Dates) }
