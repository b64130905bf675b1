package usecase

import (
	"context"
	"sync"

	"AgriPulse/internal/domain/models"
	drepo "AgriPulse/internal/domain/repository"
	mid "AgriPulse/internal/middleware"
	"AgriPulse/pkg/logger"
)

// PriceCollector reads the live price feed and hands observations to the pipeline.
type PriceCollector struct {
	stream  drepo.PriceStream
	pipe    *mid.RealtimePipeline
	metrics drepo.Metrics
	log     *logger.Logger
	wg      sync.WaitGroup
}

func NewPriceCollector(stream drepo.PriceStream, pipe *mid.RealtimePipeline, metrics drepo.Metrics) *PriceCollector {
	return &PriceCollector{stream: stream, pipe: pipe, metrics: metrics, log: logger.NewNop()}
}

func (c *PriceCollector) SetLogger(l *logger.Logger) {
	if l != nil {
		c.log = l
	}
}

// IsConnected returns true if the feed is connected.
func (c *PriceCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *PriceCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	obsCh, errCh := c.stream.Read(ctx)
	c.wg.Add(1)
	go c.consume(ctx, obsCh, errCh)
	return nil
}

func (c *PriceCollector) consume(ctx context.Context, obsCh <-chan *models.PriceObservation, errCh <-chan error) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err == nil {
				continue
			}
			c.metrics.RecordError("stream")
			c.log.Warn("price feed error, reconnecting", logger.Error(err))
			if rerr := c.stream.Reconnect(ctx); rerr != nil {
				c.log.Error("price feed reconnect failed", logger.Error(rerr))
			}
		case o, ok := <-obsCh:
			if !ok {
				return
			}
			if o == nil {
				continue
			}
			if err := c.pipe.Process(ctx, o); err != nil {
				c.log.Debug("pipeline rejected observation",
					logger.String("crop", o.Crop),
					logger.String("market", o.Market),
					logger.Error(err))
			}
		}
	}
}

// Shutdown stops the pipeline, closes the feed and waits for the reader.
func (c *PriceCollector) Shutdown(ctx context.Context) error {
	c.pipe.Stop()
	err := c.stream.Close()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return err
}
