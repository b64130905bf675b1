package market

import (
	"fmt"

	"AgriPulse/internal/domain/errs"
	"AgriPulse/internal/domain/models"
)

const (
	highVolatilityCV   = 0.30
	mediumVolatilityCV = 0.15
)

// Volatility returns the coefficient of variation (population std / mean) of prices.
func Volatility(prices []float64) (float64, error) {
	if len(prices) == 0 {
		return 0, fmt.Errorf("volatility of empty series: %w", errs.ErrInsufficientData)
	}
	mean, std := popMeanStd(prices)
	if mean == 0 {
		return 0, fmt.Errorf("volatility of zero-mean series: %w", errs.ErrDivideByZero)
	}
	return std / mean, nil
}

func VolatilityLabel(cv float64) models.Label {
	switch {
	case cv > highVolatilityCV:
		return models.LabelHigh
	case cv > mediumVolatilityCV:
		return models.LabelMedium
	default:
		return models.LabelLow
	}
}

// ConfidenceFor inverts the volatility label: volatile prices mean low confidence.
func ConfidenceFor(volatility models.Label) models.Label {
	switch volatility {
	case models.LabelHigh:
		return models.LabelLow
	case models.LabelMedium:
		return models.LabelMedium
	default:
		return models.LabelHigh
	}
}
