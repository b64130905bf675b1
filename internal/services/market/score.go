package market

import (
	"math"

	"github.com/shopspring/decimal"

	"AgriPulse/internal/domain/models"
)

// DefaultProfitReference is the average profit (currency units) treated as a
// maximal profit signal when normalizing the profit range.
const DefaultProfitReference = 100000.0

// Component weights. Supply and volatility are penalties.
const (
	WeightProfit     = 0.4
	WeightDemand     = 0.3
	WeightSupply     = 0.2
	WeightVolatility = 0.1
)

// Scorer blends profit, demand, supply and volatility into a 0-100 market score.
type Scorer struct {
	ProfitReference float64
}

// NewScorer returns a Scorer; a non-positive reference falls back to DefaultProfitReference.
func NewScorer(profitReference float64) Scorer {
	if profitReference <= 0 {
		profitReference = DefaultProfitReference
	}
	return Scorer{ProfitReference: profitReference}
}

// Score returns the composite score in [0, 100], rounded to two decimals.
func (s Scorer) Score(profit models.ProfitRange, demand, supply, volatility float64) float64 {
	ref := s.ProfitReference
	if ref <= 0 {
		ref = DefaultProfitReference
	}
	profitScore := math.Min(profit.Avg()/ref, 1)

	raw := WeightProfit*profitScore +
		WeightDemand*demand -
		WeightSupply*supply -
		WeightVolatility*volatility

	scaled := math.Max(0, math.Min(raw*100, 100))
	return decimal.NewFromFloat(scaled).Round(2).InexactFloat64()
}

// MarketScore scores with the default profit reference.
func MarketScore(profit models.ProfitRange, demand, supply, volatility float64) float64 {
	return NewScorer(DefaultProfitReference).Score(profit, demand, supply, volatility)
}
