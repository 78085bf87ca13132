package usecase

import (
	"gonum.org/v1/gonum/stat"

	"RegimeLab/internal/domain/models"
)

// BuildProfiles summarises the raw features per regime. States that never
// occur keep zero-valued statistics.
func BuildProfiles(panel *models.FeaturePanel, regimes models.RegimeSequence, nStates int, names map[int]string) []models.RegimeProfile {
	cols := make([][models.FeatureCount][]float64, nStates)
	for t, r := range regimes {
		if r < 0 || r >= nStates || t >= len(panel.Raw) {
			continue
		}
		for j := 0; j < models.FeatureCount; j++ {
			cols[r][j] = append(cols[r][j], panel.Raw[t][j])
		}
	}

	out := make([]models.RegimeProfile, nStates)
	for r := 0; r < nStates; r++ {
		days := len(cols[r][models.FeatLogReturn])
		p := models.RegimeProfile{Regime: r, Name: names[r], Days: days}
		if days > 0 {
			p.Share = float64(days) / float64(len(regimes))
			p.AnnualizedReturn = stat.Mean(cols[r][models.FeatLogReturn], nil) * tradingDays
			p.MeanVol21d = stat.Mean(cols[r][models.FeatVol21d], nil)
			p.MeanRSI = stat.Mean(cols[r][models.FeatRSI], nil)
			p.MeanMADistance = stat.Mean(cols[r][models.FeatMADistance], nil)
		}
		out[r] = p
	}
	return out
}
