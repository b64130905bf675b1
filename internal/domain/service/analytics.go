package service

import (
	"context"

	"AgriPulse/internal/domain/models"
)

// Forecaster fits a seasonal model on a price history and projects horizonMonths
// month-end points past the last observation. The returned slice contains the
// historical fit followed by the future points.
type Forecaster interface {
	Forecast(ctx context.Context, history []models.PriceObservation, horizonMonths int) ([]models.ForecastPoint, error)
}

// FertilizerClassifier maps soil/crop/environment readings to a fertilizer name.
type FertilizerClassifier interface {
	Classify(ctx context.Context, f models.FertilizerFeatures) (string, error)
}
