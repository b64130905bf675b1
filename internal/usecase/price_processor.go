package usecase

import (
	"context"
	"fmt"
	"time"

	"AgriPulse/internal/domain/models"
	drepo "AgriPulse/internal/domain/repository"
)

const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// Invalidator drops cached reference data after new prices land.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// PriceProcessor routes live observations to Kafka or straight into ClickHouse.
type PriceProcessor struct {
	pub     drepo.PricePublisher
	store   drepo.PriceStorage
	metrics drepo.Metrics
	backend string
	inval   Invalidator
}

func NewPriceProcessor(pub drepo.PricePublisher, store drepo.PriceStorage, metrics drepo.Metrics, backend string) *PriceProcessor {
	return &PriceProcessor{pub: pub, store: store, metrics: metrics, backend: backend}
}

// WithInvalidator makes direct ClickHouse writes drop the reference cache.
func (p *PriceProcessor) WithInvalidator(inv Invalidator) *PriceProcessor {
	p.inval = inv
	return p
}

// Process routes a single observation to the configured backend.
func (p *PriceProcessor) Process(ctx context.Context, o *models.PriceObservation) error {
	if o == nil {
		return fmt.Errorf("observation is nil")
	}
	return p.ProcessBatch(ctx, []*models.PriceObservation{o})
}

func (p *PriceProcessor) ProcessBatch(ctx context.Context, obs []*models.PriceObservation) error {
	if len(obs) == 0 {
		return nil
	}
	start := time.Now()
	var err error

	switch p.backend {
	case BackendKafka:
		if p.pub == nil {
			err = fmt.Errorf("kafka backend without publisher")
		} else {
			err = p.pub.PublishBatch(ctx, obs)
		}
	case BackendClickHouse:
		if p.store == nil {
			err = fmt.Errorf("clickhouse backend without storage")
		} else {
			err = p.store.StoreBatch(ctx, obs)
		}
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, o := range obs {
		p.metrics.RecordObservation(p.backend, o.Crop)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	if p.backend == BackendClickHouse && p.inval != nil {
		if err := p.inval.Invalidate(ctx); err != nil {
			p.metrics.RecordError("cache_invalidate")
		}
	}
	return nil
}
