package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"AgriPulse/internal/domain/models"
	"AgriPulse/pkg/metrics"
)

type batchRecorder struct {
	mu      sync.Mutex
	batches [][]*models.PriceObservation
	fails   int
}

func (r *batchRecorder) ProcessBatch(_ context.Context, obs []*models.PriceObservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails > 0 {
		r.fails--
		return errors.New("downstream unavailable")
	}
	r.batches = append(r.batches, append([]*models.PriceObservation(nil), obs...))
	return nil
}

func (r *batchRecorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func obs(crop string, price float64) *models.PriceObservation {
	return &models.PriceObservation{Crop: crop, Market: "Kolar", Date: time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), Price: price}
}

func TestPipelineBatchesBySize(t *testing.T) {
	rec := &batchRecorder{}
	p := NewRealtimePipeline(rec, metrics.Nop{}, WithBatching(3, time.Hour), WithMaxRPS(1000))
	p.Start(context.Background())

	crops := []string{"Tomato", "Onion", "Potato", "Beans", "Carrot", "Chilli"}
	for _, c := range crops {
		if err := p.Process(context.Background(), obs(c, 10)); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for rec.total() < 6 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	p.Stop()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.batches) != 2 || len(rec.batches[0]) != 3 {
		t.Fatalf("batches = %d", len(rec.batches))
	}
}

func TestPipelineFlushesOnStop(t *testing.T) {
	rec := &batchRecorder{}
	p := NewRealtimePipeline(rec, metrics.Nop{}, WithBatching(100, time.Hour))
	p.Start(context.Background())
	_ = p.Process(context.Background(), obs("Tomato", 10))
	_ = p.Process(context.Background(), obs("Onion", 11))
	p.Stop()
	if rec.total() != 2 {
		t.Fatalf("flushed = %d, want 2", rec.total())
	}
	p.Stop() // second stop is a no-op
}

func TestPipelineRetriesFailedBatch(t *testing.T) {
	rec := &batchRecorder{fails: 1}
	p := NewRealtimePipeline(rec, metrics.Nop{}, WithBatching(1, 10*time.Millisecond))
	p.Start(context.Background())
	_ = p.Process(context.Background(), obs("Tomato", 10))

	deadline := time.Now().Add(2 * time.Second)
	for rec.total() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	p.Stop()
	if rec.total() != 1 {
		t.Fatalf("delivered = %d, want 1 after retry", rec.total())
	}
}

func TestPipelineThrottlesPerSeries(t *testing.T) {
	rec := &batchRecorder{}
	p := NewRealtimePipeline(rec, metrics.Nop{}, WithMaxRPS(2), WithBatching(100, time.Hour))
	p.Start(context.Background())
	for i := 0; i < 5; i++ {
		_ = p.Process(context.Background(), obs("Tomato", float64(i)))
	}
	_ = p.Process(context.Background(), obs("Onion", 1))
	p.Stop()
	if got := rec.total(); got != 3 {
		t.Fatalf("accepted = %d, want 2 Tomato + 1 Onion", got)
	}
}

func TestPipelineValidates(t *testing.T) {
	p := NewRealtimePipeline(&batchRecorder{}, metrics.Nop{})
	bad := []*models.PriceObservation{
		nil,
		{Market: "Kolar", Date: time.Now(), Price: 1},
		{Crop: "Tomato", Date: time.Now(), Price: 1},
		{Crop: "Tomato", Market: "Kolar", Price: 1},
		{Crop: "Tomato", Market: "Kolar", Date: time.Now(), Price: -1},
	}
	for i, o := range bad {
		if err := p.Process(context.Background(), o); err == nil {
			t.Errorf("case %d accepted", i)
		}
	}
}

func TestPipelineTransform(t *testing.T) {
	rec := &batchRecorder{}
	upper := func(o *models.PriceObservation) *models.PriceObservation {
		if o == nil {
			return nil
		}
		c := *o
		c.Source = "normalized"
		return &c
	}
	p := NewRealtimePipeline(rec, metrics.Nop{}, WithTransform(upper), WithBatching(1, time.Hour))
	p.Start(context.Background())
	_ = p.Process(context.Background(), obs("Tomato", 5))
	p.Stop()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.batches) != 1 || rec.batches[0][0].Source != "normalized" {
		t.Fatalf("batches = %+v", rec.batches)
	}
}
