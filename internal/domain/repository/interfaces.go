package repository

import (
	"context"

	"AgriPulse/internal/domain/models"
)

// ReferenceStore provides read-only access to the reference tables used by the
// market analysis. Implementations must be safe for concurrent use.
type ReferenceStore interface {
	LoadPriceHistory(ctx context.Context, crop, market string) ([]models.PriceObservation, error)
	LoadYield(ctx context.Context, crop string) (float64, error)
	LoadCost(ctx context.Context, crop string) (float64, error)
	LoadAcreageHistory(ctx context.Context, crop, market string) ([]models.AcreageRecord, error)
	ListCrops(ctx context.Context) ([]string, error)
}

// PriceStream delivers live price observations from an upstream feed.
type PriceStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.PriceObservation, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// PricePublisher forwards observations to the message bus.
type PricePublisher interface {
	Publish(ctx context.Context, o *models.PriceObservation) error
	PublishBatch(ctx context.Context, obs []*models.PriceObservation) error
	Close() error
}

// PriceStorage persists observations into the price reference table.
type PriceStorage interface {
	Store(ctx context.Context, o *models.PriceObservation) error
	StoreBatch(ctx context.Context, obs []*models.PriceObservation) error
	Health(ctx context.Context) error
	Close() error
}

// AnalysisPublisher emits completed analyses for downstream consumers.
type AnalysisPublisher interface {
	PublishAnalysis(ctx context.Context, ev *models.AnalysisEvent) error
	Close() error
}

type Metrics interface {
	RecordAnalysis(market, result string)
	RecordMarketScore(crop, market string, score float64)
	RecordObservation(source, crop string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
