package market

import (
	"sort"

	"AgriPulse/internal/domain/models"
)

// MinSupplyYears is the acreage history needed to detect a planting trend.
const MinSupplyYears = 2

const (
	supplyHighGrowth = 0.10
	supplyLowGrowth  = -0.05

	supplyHighIndex   = 0.7
	supplyMediumIndex = 0.5
	supplyLowIndex    = 0.3
)

// EstimateSupply derives a supply level from the average year-over-year change
// in planted area. Rising acreage means more produce reaching the market.
// Pairs whose earlier year has zero area carry no growth rate and are skipped.
func EstimateSupply(records []models.AcreageRecord) (models.Label, float64) {
	if len(records) < MinSupplyYears {
		return models.LabelMedium, supplyMediumIndex
	}
	sorted := append([]models.AcreageRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	var sum float64
	var n int
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1].AreaAcres
		if prev == 0 {
			continue
		}
		sum += (sorted[i].AreaAcres - prev) / prev
		n++
	}
	if n == 0 {
		return models.LabelMedium, supplyMediumIndex
	}

	avg := sum / float64(n)
	switch {
	case avg > supplyHighGrowth:
		return models.LabelHigh, supplyHighIndex
	case avg < supplyLowGrowth:
		return models.LabelLow, supplyLowIndex
	default:
		return models.LabelMedium, supplyMediumIndex
	}
}
