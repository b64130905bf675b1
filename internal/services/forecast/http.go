package forecast

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"AgriPulse/internal/domain/errs"
	"AgriPulse/internal/domain/models"
	domsvc "AgriPulse/internal/domain/service"
	"AgriPulse/internal/services/analytics"
	"AgriPulse/pkg/util"
)

const prophetPath = "/forecast/prophet"

// HTTPForecaster delegates fitting to the Prophet sidecar.
type HTTPForecaster struct {
	base     *analytics.HTTPServiceBase
	attempts int
}

func NewHTTPForecaster(baseURL string, timeout time.Duration, attempts int) *HTTPForecaster {
	if attempts < 1 {
		attempts = 1
	}
	return &HTTPForecaster{base: analytics.NewHTTPServiceBase(baseURL, timeout), attempts: attempts}
}

type historyPoint struct {
	DS string  `json:"ds"`
	Y  float64 `json:"y"`
}

type prophetReq struct {
	Crop    string         `json:"crop"`
	Market  string         `json:"market"`
	History []historyPoint `json:"history"`
	Horizon int            `json:"horizon"`
}

type prophetPoint struct {
	DS    string  `json:"ds"`
	YHat  float64 `json:"yhat"`
	Lower float64 `json:"yhat_lower"`
	Upper float64 `json:"yhat_upper"`
}

type prophetResp struct {
	Forecast []prophetPoint `json:"forecast"`
}

func (f *HTTPForecaster) Forecast(ctx context.Context, history []models.PriceObservation, horizonMonths int) ([]models.ForecastPoint, error) {
	if horizonMonths < 1 {
		return nil, fmt.Errorf("forecast horizon %d: %w", horizonMonths, errs.ErrInsufficientData)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("empty price history: %w", errs.ErrInsufficientData)
	}

	req := prophetReq{
		Crop:    history[0].Crop,
		Market:  history[0].Market,
		History: make([]historyPoint, len(history)),
		Horizon: horizonMonths,
	}
	var last time.Time
	for i, o := range history {
		req.History[i] = historyPoint{DS: o.Date.Format("2006-01-02"), Y: o.Price}
		if o.Date.After(last) {
			last = o.Date
		}
	}

	var resp prophetResp
	if err := f.base.PostJSONWithRetry(ctx, prophetPath, req, &resp, f.attempts); err != nil {
		if analytics.StatusCode(err) == http.StatusUnprocessableEntity {
			return nil, fmt.Errorf("prophet sidecar rejected history: %w", errs.ErrInsufficientData)
		}
		return nil, fmt.Errorf("prophet forecast: %w", err)
	}
	if len(resp.Forecast) == 0 {
		return nil, fmt.Errorf("prophet returned no points: %w", errs.ErrInsufficientData)
	}

	out := make([]models.ForecastPoint, 0, len(resp.Forecast))
	for _, p := range resp.Forecast {
		d, ok := util.ParseDate(p.DS)
		if !ok {
			return nil, fmt.Errorf("prophet point date %q: %w", p.DS, errs.ErrInvalidArgument)
		}
		out = append(out, models.ForecastPoint{
			Date:     d,
			Estimate: p.YHat,
			Lower:    p.Lower,
			Upper:    p.Upper,
			Future:   d.After(last),
		})
	}
	return out, nil
}

var _ domsvc.Forecaster = (*HTTPForecaster)(nil)
