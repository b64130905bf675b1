package market

import (
	"fmt"

	"AgriPulse/internal/domain/errs"
	"AgriPulse/internal/domain/models"
)

// DefaultLandSize is used when a request does not specify one (acres).
const DefaultLandSize = 1.0

// ProfitRange computes revenue minus cost at the low and high price for the
// given land size. Profit is not clamped; a negative minimum is a loss scenario.
func ProfitRange(priceLow, priceHigh, yieldPerAcre, costPerAcre, landSize float64) (models.ProfitRange, error) {
	if landSize <= 0 {
		return models.ProfitRange{}, fmt.Errorf("land size %v: %w", landSize, errs.ErrInvalidArgument)
	}
	cost := costPerAcre * landSize
	return models.ProfitRange{
		Min: priceLow*yieldPerAcre*landSize - cost,
		Max: priceHigh*yieldPerAcre*landSize - cost,
	}, nil
}
