package market

import "AgriPulse/internal/domain/models"

const weakMarketScore = 30.0

// ExplainInput carries the labels and figures the explanation rules look at.
type ExplainInput struct {
	Demand      models.Label
	Supply      models.Label
	Volatility  models.Label
	Profit      models.ProfitRange
	MarketScore float64
}

// Explain evaluates independent rules in a fixed order and returns every
// reason that fired, or a single neutral reason when none did.
func Explain(in ExplainInput) []string {
	reasons := make([]string, 0, 5)
	if in.Demand == models.LabelHigh {
		reasons = append(reasons, "Strong market demand")
	}
	if in.Supply == models.LabelLow {
		reasons = append(reasons, "Limited supply increases price potential")
	}
	if in.Volatility == models.LabelLow {
		reasons = append(reasons, "Stable prices reduce risk")
	}
	if in.Profit.Min < 0 {
		reasons = append(reasons, "Projected losses due to unfavorable pricing")
	}
	if in.MarketScore < weakMarketScore {
		reasons = append(reasons, "Overall market conditions are weak")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Moderate market conditions")
	}
	return reasons
}
