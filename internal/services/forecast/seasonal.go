package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"AgriPulse/internal/domain/errs"
	"AgriPulse/internal/domain/models"
	domsvc "AgriPulse/internal/domain/service"
	"AgriPulse/pkg/util"
)

const (
	// DefaultMinObservations is the shortest history that is fitted. A year of
	// monthly prices is the least that says anything about yearly seasonality.
	DefaultMinObservations = 12
	DefaultFourierOrder    = 3
	DefaultIntervalWidth   = 0.80

	yearDays = 365.25
)

// SeasonalForecaster fits y(t) = a + b*t + sum_k (c_k sin(2πkt/P) + d_k cos(2πkt/P))
// with P one year, by ordinary least squares, and projects month-end points.
// It holds no per-call state and is safe for concurrent use.
type SeasonalForecaster struct {
	minObservations int
	fourierOrder    int
	intervalWidth   float64
}

type Option func(*SeasonalForecaster)

func WithMinObservations(n int) Option {
	return func(f *SeasonalForecaster) {
		if n >= 2 {
			f.minObservations = n
		}
	}
}

func WithFourierOrder(k int) Option {
	return func(f *SeasonalForecaster) {
		if k >= 0 {
			f.fourierOrder = k
		}
	}
}

// WithIntervalWidth sets the coverage of the uncertainty band, in (0,1).
func WithIntervalWidth(w float64) Option {
	return func(f *SeasonalForecaster) {
		if w > 0 && w < 1 {
			f.intervalWidth = w
		}
	}
}

func NewSeasonalForecaster(opts ...Option) *SeasonalForecaster {
	f := &SeasonalForecaster{
		minObservations: DefaultMinObservations,
		fourierOrder:    DefaultFourierOrder,
		intervalWidth:   DefaultIntervalWidth,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forecast returns one fitted point per observation (sorted by date) followed
// by horizonMonths month-end points after the last observation.
func (f *SeasonalForecaster) Forecast(ctx context.Context, history []models.PriceObservation, horizonMonths int) ([]models.ForecastPoint, error) {
	if horizonMonths < 1 {
		return nil, fmt.Errorf("forecast horizon %d: %w", horizonMonths, errs.ErrInsufficientData)
	}
	n := len(history)
	if n < f.minObservations {
		return nil, fmt.Errorf("forecast needs %d observations, have %d: %w", f.minObservations, n, errs.ErrInsufficientData)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	obs := append([]models.PriceObservation(nil), history...)
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })

	origin := obs[0].Date
	ts := make([]float64, n)
	ys := make([]float64, n)
	for i, o := range obs {
		ts[i] = util.DaysBetween(origin, o.Date)
		ys[i] = o.Price
	}
	if ts[n-1] == 0 {
		return nil, fmt.Errorf("forecast history spans a single date: %w", errs.ErrInsufficientData)
	}

	m, err := fitModel(ts, ys, f.fourierOrder)
	if err != nil {
		return nil, err
	}

	fitted := make([]float64, n)
	resid := make([]float64, n)
	for i, t := range ts {
		fitted[i] = m.predict(t)
		resid[i] = ys[i] - fitted[i]
	}
	sigma := stat.PopStdDev(resid, nil)
	half := distuv.UnitNormal.Quantile(0.5+f.intervalWidth/2) * sigma

	out := make([]models.ForecastPoint, 0, n+horizonMonths)
	for i, o := range obs {
		out = append(out, models.ForecastPoint{
			Date:     o.Date,
			Estimate: fitted[i],
			Lower:    fitted[i] - half,
			Upper:    fitted[i] + half,
		})
	}
	for h, d := range util.NextMonthEnds(obs[n-1].Date, horizonMonths) {
		yhat := m.predict(util.DaysBetween(origin, d))
		w := half * math.Sqrt(1+float64(h+1)/float64(n))
		out = append(out, models.ForecastPoint{
			Date:     d,
			Estimate: yhat,
			Lower:    yhat - w,
			Upper:    yhat + w,
			Future:   true,
		})
	}
	return out, nil
}

type seasonalModel struct {
	order int
	coef  []float64
}

// design returns the regressor row for t (days since origin). The trend is in
// years so that all columns are of similar magnitude.
func design(t float64, order int, row []float64) {
	row[0] = 1
	row[1] = t / yearDays
	for k := 1; k <= order; k++ {
		arg := 2 * math.Pi * float64(k) * t / yearDays
		row[2*k] = math.Sin(arg)
		row[2*k+1] = math.Cos(arg)
	}
}

func (m seasonalModel) predict(t float64) float64 {
	row := make([]float64, len(m.coef))
	design(t, m.order, row)
	var y float64
	for i, c := range m.coef {
		y += c * row[i]
	}
	return y
}

// fitModel solves the least squares problem, lowering the Fourier order until
// the system is overdetermined and well posed.
func fitModel(ts, ys []float64, order int) (seasonalModel, error) {
	n := len(ts)
	y := mat.NewVecDense(n, ys)
	for k := order; k >= 0; k-- {
		p := 2 + 2*k
		if p >= n {
			continue
		}
		x := mat.NewDense(n, p, nil)
		for i, t := range ts {
			design(t, k, x.RawRowView(i))
		}
		var beta mat.VecDense
		if err := beta.SolveVec(x, y); err != nil {
			continue
		}
		coef := make([]float64, p)
		copy(coef, beta.RawVector().Data)
		if !allFinite(coef) {
			continue
		}
		return seasonalModel{order: k, coef: coef}, nil
	}
	return seasonalModel{}, fmt.Errorf("no well-posed seasonal fit for %d observations: %w", n, errs.ErrInsufficientData)
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

var _ domsvc.Forecaster = (*SeasonalForecaster)(nil)
