package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"AgriPulse/internal/domain/models"
	domrepo "AgriPulse/internal/domain/repository"
	"AgriPulse/internal/service/ratelimit"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	ProcessBatch(ctx context.Context, obs []*models.PriceObservation) error
}

// RealtimePipeline sits between the price feed and the processor. It validates,
// throttles per (crop, market), batches, and buffers while downstream fails.
type RealtimePipeline struct {
	proc      Proc
	metrics   domrepo.Metrics
	limiter   *ratelimit.Limiter
	maxRPS    float64
	bufSize   int
	batchSize int
	batchTO   time.Duration
	inCh      chan *models.PriceObservation
	stopCh    chan struct{}
	done      chan struct{}
	started   bool
	mu        sync.Mutex
	transform func(*models.PriceObservation) *models.PriceObservation
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS sets the max observations per second per crop/market.
func WithMaxRPS(n float64) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the queue size between the feed and the flusher.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBatching flushes after size observations or timeout, whichever first.
func WithBatching(size int, timeout time.Duration) PipelineOption {
	return func(p *RealtimePipeline) {
		if size > 0 {
			p.batchSize = size
		}
		if timeout > 0 {
			p.batchTO = timeout
		}
	}
}

// WithTransform sets a hook that rewrites observations before validation.
func WithTransform(fn func(*models.PriceObservation) *models.PriceObservation) PipelineOption {
	return func(p *RealtimePipeline) { p.transform = fn }
}

func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:      proc,
		metrics:   metrics,
		maxRPS:    20,
		bufSize:   1000,
		batchSize: 100,
		batchTO:   time.Second,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.inCh = make(chan *models.PriceObservation, p.bufSize)
	p.limiter = ratelimit.New(int(math.Ceil(p.maxRPS)), p.maxRPS)
	return p
}

// Start launches the batching flusher.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	go p.run(ctx)
}

// Stop flushes what is queued and stops the flusher.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.done
}

// Process validates, throttles and enqueues an observation. Throttled
// observations are dropped without error.
func (p *RealtimePipeline) Process(ctx context.Context, o *models.PriceObservation) error {
	if p.transform != nil {
		o = p.transform(o)
	}
	if err := ValidateObservation(o); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.limiter.Allow(o.Crop + "/" + o.Market) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}
	select {
	case p.inCh <- o:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		return fmt.Errorf("pipeline buffer full")
	}
}

func (p *RealtimePipeline) run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.batchTO)
	defer ticker.Stop()
	prune := time.NewTicker(time.Minute)
	defer prune.Stop()

	batch := make([]*models.PriceObservation, 0, p.batchSize)
	backoff := 50 * time.Millisecond
	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := p.proc.ProcessBatch(ctx, batch); err != nil {
			p.metrics.RecordError("pipeline_flush")
			// keep the batch unless it outgrew the buffer
			if len(batch) >= p.bufSize {
				p.metrics.RecordError("pipeline_buffer_drop")
				batch = batch[:0]
			}
			if backoff < 2*time.Second {
				backoff *= 2
			}
			select {
			case <-time.After(backoff):
			case <-p.stopCh:
			case <-ctx.Done():
			}
			return
		}
		backoff = 50 * time.Millisecond
		p.metrics.RecordLatency("pipeline_flush", time.Since(start).Seconds())
		batch = batch[:0]
	}

	for {
		select {
		case <-p.stopCh:
			for {
				select {
				case o := <-p.inCh:
					batch = append(batch, o)
				default:
					flush()
					return
				}
			}
		case <-ctx.Done():
			return
		case o := <-p.inCh:
			batch = append(batch, o)
			if len(batch) >= p.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-prune.C:
			p.limiter.Prune(10 * time.Minute)
		}
	}
}

// ValidateObservation rejects observations that cannot be stored.
func ValidateObservation(o *models.PriceObservation) error {
	switch {
	case o == nil:
		return fmt.Errorf("observation nil")
	case o.Crop == "":
		return fmt.Errorf("crop empty")
	case o.Market == "":
		return fmt.Errorf("market empty")
	case o.Date.IsZero():
		return fmt.Errorf("date missing")
	case o.Price < 0 || math.IsNaN(o.Price) || math.IsInf(o.Price, 0):
		return fmt.Errorf("invalid price %v", o.Price)
	}
	return nil
}
