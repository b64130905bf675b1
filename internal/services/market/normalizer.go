package market

import (
	"math"
	"sort"

	"AgriPulse/internal/domain/models"
)

// Plausible price band (currency per unit) applied to every forecast value
// consumed downstream. Guards against negative or runaway predictions.
const (
	MinPrice = 1.0
	MaxPrice = 200.0
)

// ClampPrice restricts v to [lo, hi]. NaN maps to lo.
func ClampPrice(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp applies ClampPrice with the default band.
func Clamp(v float64) float64 { return ClampPrice(v, MinPrice, MaxPrice) }

// PriceTrend returns the last k point estimates, clamped, oldest first.
func PriceTrend(points []models.ForecastPoint, k int) []float64 {
	if k <= 0 || len(points) == 0 {
		return []float64{}
	}
	if k > len(points) {
		k = len(points)
	}
	tail := points[len(points)-k:]
	out := make([]float64, len(tail))
	for i, p := range tail {
		out[i] = Clamp(p.Estimate)
	}
	return out
}

// PriceBand returns the clamped lower and upper bound of the most recent point.
// An inverted band is swapped so that low <= high always holds.
func PriceBand(points []models.ForecastPoint) (low, high float64) {
	if len(points) == 0 {
		return MinPrice, MinPrice
	}
	last := points[len(points)-1]
	low, high = Clamp(last.Lower), Clamp(last.Upper)
	if low > high {
		low, high = high, low
	}
	return low, high
}

// SmoothTrend returns the upper median of a trend, 0 for an empty one.
func SmoothTrend(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}
