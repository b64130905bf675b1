package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"AgriPulse/internal/domain/errs"
	"AgriPulse/internal/domain/models"
	drepo "AgriPulse/internal/domain/repository"
	domsvc "AgriPulse/internal/domain/service"
	"AgriPulse/internal/services/market"
	"AgriPulse/pkg/logger"
)

const (
	DefaultMarket  = "Kolar"
	DefaultHorizon = 3
	DefaultWorkers = 4

	FailurePerCrop = "per_crop"
	FailureAbort   = "abort"

	publishTimeout = 2 * time.Second
)

// AnalyzerConfig tunes MarketAnalyzer.
type AnalyzerConfig struct {
	Horizon       int
	Workers       int
	FailurePolicy string
	Timeout       time.Duration
}

// MarketAnalyzer runs the per-crop pipeline: forecast, normalize, volatility,
// supply, demand, profit, score, explanation.
type MarketAnalyzer struct {
	store      drepo.ReferenceStore
	forecaster domsvc.Forecaster
	scorer     market.Scorer
	publisher  drepo.AnalysisPublisher
	metrics    drepo.Metrics
	cfg        AnalyzerConfig
	log        *logger.Logger
	now        func() time.Time
}

func NewMarketAnalyzer(
	store drepo.ReferenceStore,
	forecaster domsvc.Forecaster,
	scorer market.Scorer,
	publisher drepo.AnalysisPublisher,
	metrics drepo.Metrics,
	cfg AnalyzerConfig,
) *MarketAnalyzer {
	if cfg.Horizon < 1 {
		cfg.Horizon = DefaultHorizon
	}
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = FailurePerCrop
	}
	return &MarketAnalyzer{
		store:      store,
		forecaster: forecaster,
		scorer:     scorer,
		publisher:  publisher,
		metrics:    metrics,
		cfg:        cfg,
		log:        logger.NewNop(),
		now:        time.Now,
	}
}

func (a *MarketAnalyzer) SetLogger(l *logger.Logger) {
	if l != nil {
		a.log = l
	}
}

// Analyze evaluates every requested crop at req.Market. Results keep the
// request order. Under the abort policy the first crop failure fails the call;
// under per_crop failures are reported in CropAnalysis.Error, and the call
// only fails when every crop is missing reference data.
func (a *MarketAnalyzer) Analyze(ctx context.Context, req models.MarketAnalysisRequest) (*models.MarketComparison, error) {
	if len(req.Crops) == 0 {
		return nil, fmt.Errorf("no crops requested: %w", errs.ErrInvalidArgument)
	}
	if req.Market == "" {
		req.Market = DefaultMarket
	}
	if req.LandSize <= 0 {
		return nil, fmt.Errorf("land size %v: %w", req.LandSize, errs.ErrInvalidArgument)
	}
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	start := a.now()
	results := make([]models.CropAnalysis, len(req.Crops))
	failures := make([]error, len(req.Crops))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for i, crop := range req.Crops {
		g.Go(func() error {
			res, err := a.analyzeCrop(gctx, crop, req.Market, req.LandSize)
			if err != nil {
				a.metrics.RecordAnalysis(req.Market, "error")
				if a.cfg.FailurePolicy == FailureAbort {
					return fmt.Errorf("crop %s: %w", crop, err)
				}
				a.log.Warn("crop analysis failed",
					logger.String("crop", crop),
					logger.String("market", req.Market),
					logger.Error(err))
				failures[i] = err
				results[i] = failedAnalysis(crop, err)
				return nil
			}
			a.metrics.RecordAnalysis(req.Market, "ok")
			a.metrics.RecordMarketScore(crop, req.Market, res.MarketScore)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.metrics.RecordError(errorKind(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		a.metrics.RecordError("timeout")
		return nil, fmt.Errorf("market analysis: %w", err)
	}
	if allNotFound(failures) {
		a.metrics.RecordError(errorKind(errs.ErrNotFound))
		return nil, fmt.Errorf("no reference data for %v at %s: %w", req.Crops, req.Market, errs.ErrNotFound)
	}

	out := &models.MarketComparison{Market: req.Market, LandSize: req.LandSize, Comparison: results}
	a.metrics.RecordLatency("market_analysis", a.now().Sub(start).Seconds())
	a.publish(ctx, out)
	return out, nil
}

func (a *MarketAnalyzer) analyzeCrop(ctx context.Context, crop, mkt string, land float64) (models.CropAnalysis, error) {
	res := models.CropAnalysis{Crop: crop}

	history, err := a.store.LoadPriceHistory(ctx, crop, mkt)
	if err != nil {
		return res, fmt.Errorf("load prices: %w", err)
	}
	yield, err := a.store.LoadYield(ctx, crop)
	if err != nil {
		return res, fmt.Errorf("load yield: %w", err)
	}
	cost, err := a.store.LoadCost(ctx, crop)
	if err != nil {
		return res, fmt.Errorf("load cost: %w", err)
	}
	acreage, err := a.store.LoadAcreageHistory(ctx, crop, mkt)
	if err != nil {
		return res, fmt.Errorf("load acreage: %w", err)
	}

	fstart := a.now()
	points, err := a.forecaster.Forecast(ctx, history, a.cfg.Horizon)
	if err != nil {
		return res, fmt.Errorf("forecast: %w", err)
	}
	a.metrics.RecordLatency("forecast", a.now().Sub(fstart).Seconds())

	res.PriceTrend = market.PriceTrend(points, a.cfg.Horizon+1)
	res.TrendMedian = market.SmoothTrend(res.PriceTrend)
	low, high := market.PriceBand(points)

	prices := make([]float64, len(history))
	for i, o := range history {
		prices[i] = o.Price
	}
	cv, err := market.Volatility(prices)
	if err != nil {
		return res, fmt.Errorf("volatility: %w", err)
	}
	res.Volatility = market.VolatilityLabel(cv)
	res.Confidence = market.ConfidenceFor(res.Volatility)

	res.ProfitRange, err = market.ProfitRange(low, high, yield, cost, land)
	if err != nil {
		return res, fmt.Errorf("profit: %w", err)
	}

	var supplyIdx, demandIdx float64
	res.Supply, supplyIdx = market.EstimateSupply(acreage)
	res.Demand, demandIdx = market.EstimateDemand(prices)

	res.MarketScore = a.scorer.Score(res.ProfitRange, demandIdx, supplyIdx, cv)
	res.Explanation = market.Explain(market.ExplainInput{
		Demand:      res.Demand,
		Supply:      res.Supply,
		Volatility:  res.Volatility,
		Profit:      res.ProfitRange,
		MarketScore: res.MarketScore,
	})
	return res, nil
}

// publish emits the analysis event. Failures are logged and never reach the caller.
func (a *MarketAnalyzer) publish(ctx context.Context, out *models.MarketComparison) {
	if a.publisher == nil {
		return
	}
	ev := &models.AnalysisEvent{
		ID:        uuid.NewString(),
		Market:    out.Market,
		LandSize:  out.LandSize,
		Results:   out.Comparison,
		Timestamp: a.now().UTC(),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := a.publisher.PublishAnalysis(pctx, ev); err != nil {
		a.metrics.RecordError("publish_analysis")
		a.log.Warn("publish analysis event",
			logger.String("id", ev.ID),
			logger.String("market", ev.Market),
			logger.Error(err))
	}
}

func failedAnalysis(crop string, err error) models.CropAnalysis {
	return models.CropAnalysis{
		Crop:        crop,
		PriceTrend:  []float64{},
		Explanation: []string{},
		Error:       err.Error(),
	}
}

func allNotFound(failures []error) bool {
	for _, err := range failures {
		if err == nil || !errors.Is(err, errs.ErrNotFound) {
			return false
		}
	}
	return len(failures) > 0
}

// errorKind buckets an error for the errors_total metric.
func errorKind(err error) string {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, errs.ErrDivideByZero):
		return "divide_by_zero"
	case errors.Is(err, errs.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "internal"
	}
}
