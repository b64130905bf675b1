package market

import (
	"errors"
	"math"
	"testing"

	"AgriPulse/internal/domain/errs"
	"AgriPulse/internal/domain/models"
)

func TestVolatility_ConstantSeries(t *testing.T) {
	cv, err := Volatility([]float64{25, 25, 25, 25})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cv != 0 {
		t.Fatalf("cv = %v, want 0", cv)
	}
	label := VolatilityLabel(cv)
	if label != models.LabelLow {
		t.Fatalf("label = %s, want Low", label)
	}
	if c := ConfidenceFor(label); c != models.LabelHigh {
		t.Fatalf("confidence = %s, want High", c)
	}
}

func TestVolatility_PopulationStdDev(t *testing.T) {
	// mean 5, population std 2
	cv, err := Volatility([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(cv-0.4) > 1e-9 {
		t.Fatalf("cv = %v, want 0.4", cv)
	}
}

func TestVolatility_Errors(t *testing.T) {
	if _, err := Volatility(nil); !errors.Is(err, errs.ErrInsufficientData) {
		t.Fatalf("empty: err = %v", err)
	}
	if _, err := Volatility([]float64{0, 0, 0}); !errors.Is(err, errs.ErrDivideByZero) {
		t.Fatalf("zero mean: err = %v", err)
	}
}

func TestVolatilityLabelAndConfidence(t *testing.T) {
	tests := []struct {
		cv         float64
		label      models.Label
		confidence models.Label
	}{
		{0.0, models.LabelLow, models.LabelHigh},
		{0.15, models.LabelLow, models.LabelHigh},
		{0.16, models.LabelMedium, models.LabelMedium},
		{0.30, models.LabelMedium, models.LabelMedium},
		{0.31, models.LabelHigh, models.LabelLow},
	}
	for _, tt := range tests {
		label := VolatilityLabel(tt.cv)
		if label != tt.label {
			t.Fatalf("VolatilityLabel(%v) = %s, want %s", tt.cv, label, tt.label)
		}
		if c := ConfidenceFor(label); c != tt.confidence {
			t.Fatalf("ConfidenceFor(%s) = %s, want %s", label, c, tt.confidence)
		}
	}
}

func acreage(areas ...float64) []models.AcreageRecord {
	out := make([]models.AcreageRecord, len(areas))
	for i, a := range areas {
		out[i] = models.AcreageRecord{Crop: "Tomato", Market: "Kolar", Year: 2019 + i, AreaAcres: a}
	}
	return out
}

func TestEstimateSupply(t *testing.T) {
	tests := []struct {
		name  string
		in    []models.AcreageRecord
		label models.Label
		index float64
	}{
		{"flat", acreage(100, 100), models.LabelMedium, 0.5},
		{"growing", acreage(100, 120), models.LabelHigh, 0.7},
		{"shrinking", acreage(100, 90), models.LabelLow, 0.3},
		{"single year huge", acreage(1e9), models.LabelMedium, 0.5},
		{"single year tiny", acreage(0.001), models.LabelMedium, 0.5},
		{"none", nil, models.LabelMedium, 0.5},
		{"averaged", acreage(100, 130, 104), models.LabelMedium, 0.5},
		{"zero previous skipped", acreage(0, 100, 150), models.LabelHigh, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, index := EstimateSupply(tt.in)
			if label != tt.label || index != tt.index {
				t.Fatalf("EstimateSupply = (%s, %v), want (%s, %v)", label, index, tt.label, tt.index)
			}
		})
	}
}

func TestEstimateSupply_SortsByYear(t *testing.T) {
	recs := []models.AcreageRecord{
		{Year: 2021, AreaAcres: 120},
		{Year: 2020, AreaAcres: 100},
	}
	label, _ := EstimateSupply(recs)
	if label != models.LabelHigh {
		t.Fatalf("label = %s, want High", label)
	}
	if recs[0].Year != 2021 {
		t.Fatalf("input slice was reordered")
	}
}

func TestEstimateDemand(t *testing.T) {
	tests := []struct {
		name  string
		in    []float64
		label models.Label
		index float64
	}{
		{"short history high prices", []float64{100, 100, 100, 100, 100}, models.LabelMedium, 0.5},
		{"short history erratic", []float64{1, 500}, models.LabelMedium, 0.5},
		{"strong stable", []float64{40, 42, 41, 39, 40, 41}, models.LabelHigh, 0.7},
		{"erratic", []float64{5, 50, 5, 50, 5, 50}, models.LabelLow, 0.3},
		{"cheap but stable", []float64{10, 10, 11, 10, 10, 11}, models.LabelMedium, 0.5},
		{"non-positive mean", []float64{0, 0, 0, 0, 0, 0}, models.LabelLow, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, index := EstimateDemand(tt.in)
			if label != tt.label || index != tt.index {
				t.Fatalf("EstimateDemand = (%s, %v), want (%s, %v)", label, index, tt.label, tt.index)
			}
		})
	}
}
