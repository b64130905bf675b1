package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"AgriPulse/internal/domain/models"
	domrepo "AgriPulse/internal/domain/repository"
	mid "AgriPulse/internal/middleware"
	pkgkafka "AgriPulse/pkg/kafka"
)

// KafkaPricesHandler consumes price observations and writes them to storage.
type KafkaPricesHandler struct {
	topic   string
	storage domrepo.PriceStorage
	metrics domrepo.Metrics
	inval   Invalidator
}

func NewKafkaPricesHandler(topic string, storage domrepo.PriceStorage, metrics domrepo.Metrics, inval Invalidator) *KafkaPricesHandler {
	return &KafkaPricesHandler{topic: topic, storage: storage, metrics: metrics, inval: inval}
}

func (h *KafkaPricesHandler) Topic() string { return h.topic }

// Handle decodes a PriceObservation JSON payload.
func (h *KafkaPricesHandler) Handle(ctx context.Context, b []byte) error {
	var o models.PriceObservation
	if err := json.Unmarshal(b, &o); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode price: %w", err)
	}
	if err := mid.ValidateObservation(&o); err != nil {
		h.metrics.RecordError("consumer_invalid")
		return err
	}
	if o.Source == "" {
		o.Source = "kafka"
	}

	start := time.Now()
	err := h.storage.Store(ctx, &o)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordObservation(o.Source, o.Crop)
	if h.inval != nil {
		_ = h.inval.Invalidate(ctx)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaPricesHandler)(nil)
