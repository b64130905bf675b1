package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Label is a qualitative level. Only the three constants below are valid.
type Label string

const (
	LabelLow    Label = "Low"
	LabelMedium Label = "Medium"
	LabelHigh   Label = "High"
)

// Valid reports whether l is one of Low, Medium, High.
func (l Label) Valid() bool {
	switch l {
	case LabelLow, LabelMedium, LabelHigh:
		return true
	default:
		return false
	}
}

// PriceObservation is one historical price fact for (crop, market).
type PriceObservation struct {
	Crop   string    `json:"crop"`
	Market string    `json:"market"`
	Date   time.Time `json:"date"`
	Price  float64   `json:"price"`
	Source string    `json:"source,omitempty"`
}

// YieldRecord is per-crop reference data.
type YieldRecord struct {
	Crop         string  `json:"crop"`
	YieldPerAcre float64 `json:"yield_per_acre"`
}

// CostRecord is per-crop reference data.
type CostRecord struct {
	Crop        string  `json:"crop"`
	CostPerAcre float64 `json:"cost_per_acre"`
}

// AcreageRecord is planted area for (crop, market) in one year.
type AcreageRecord struct {
	Crop      string  `json:"crop"`
	Market    string  `json:"market"`
	Year      int     `json:"year"`
	AreaAcres float64 `json:"area_acres"`
}

// ForecastPoint is a single fitted or projected value with its uncertainty band.
type ForecastPoint struct {
	Date     time.Time `json:"date"`
	Estimate float64   `json:"yhat"`
	Lower    float64   `json:"yhat_lower"`
	Upper    float64   `json:"yhat_upper"`
	Future   bool      `json:"future"`
}

// ProfitRange is the (min, max) profit pair. Encoded as a two-element array.
type ProfitRange struct {
	Min float64
	Max float64
}

// Avg returns the midpoint of the range.
func (p ProfitRange) Avg() float64 { return (p.Min + p.Max) / 2 }

func (p ProfitRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Min, p.Max})
}

func (p *ProfitRange) UnmarshalJSON(b []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("profit range: %w", err)
	}
	p.Min, p.Max = pair[0], pair[1]
	return nil
}

// CropAnalysis is the per-crop result of a market analysis request.
// Error is set (and the numeric fields left zero) when the crop failed under
// the per-crop failure policy.
type CropAnalysis struct {
	Crop        string      `json:"crop"`
	PriceTrend  []float64   `json:"price_trend"`
	TrendMedian float64     `json:"trend_median"`
	ProfitRange ProfitRange `json:"profit_range"`
	Volatility  Label       `json:"volatility"`
	Confidence  Label       `json:"confidence"`
	Supply      Label       `json:"supply"`
	Demand      Label       `json:"demand"`
	MarketScore float64     `json:"market_score"`
	Explanation []string    `json:"explanation"`
	Error       string      `json:"error,omitempty"`
}

// MarketComparison is the response body of a market analysis.
type MarketComparison struct {
	Market     string         `json:"market"`
	LandSize   float64        `json:"land_size"`
	Comparison []CropAnalysis `json:"comparison"`
}

// AnalysisEvent is published after a completed analysis.
type AnalysisEvent struct {
	ID        string         `json:"id"`
	Market    string         `json:"market"`
	LandSize  float64        `json:"land_size"`
	Results   []CropAnalysis `json:"results"`
	Timestamp time.Time      `json:"timestamp"`
}
