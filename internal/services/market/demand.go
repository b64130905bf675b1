package market

import "AgriPulse/internal/domain/models"

// MinDemandObservations is the price history needed for a demand signal.
const MinDemandObservations = 6

const (
	demandStrongMean = 30.0
	demandStableCV   = 0.25
	demandUnstableCV = 0.40

	demandHighIndex   = 0.7
	demandMediumIndex = 0.5
	demandLowIndex    = 0.3
)

// EstimateDemand reads demand from price strength and stability. A high and
// steady price level implies robust demand; erratic prices imply weak or
// speculative demand.
func EstimateDemand(prices []float64) (models.Label, float64) {
	if len(prices) < MinDemandObservations {
		return models.LabelMedium, demandMediumIndex
	}
	mean, std := popMeanStd(prices)
	cv := 1.0
	if mean > 0 {
		cv = std / mean
	}

	if mean >= demandStrongMean && cv < demandStableCV {
		return models.LabelHigh, demandHighIndex
	}
	if cv > demandUnstableCV {
		return models.LabelLow, demandLowIndex
	}
	return models.LabelMedium, demandMediumIndex
}
