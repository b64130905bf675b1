package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"AgriPulse/internal/domain/errs"
	"AgriPulse/internal/domain/models"
)

// monthly builds n month-end observations of f(i).
func monthly(n int, f func(i int) float64) []models.PriceObservation {
	start := time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)
	out := make([]models.PriceObservation, n)
	for i := 0; i < n; i++ {
		d := time.Date(start.Year(), start.Month()+time.Month(i)+1, 0, 0, 0, 0, 0, time.UTC)
		out[i] = models.PriceObservation{Crop: "Tomato", Market: "Kolar", Date: d, Price: f(i)}
	}
	return out
}

func TestSeasonalForecasterShape(t *testing.T) {
	hist := monthly(36, func(i int) float64 {
		return 40 + 0.5*float64(i) + 8*math.Sin(2*math.Pi*float64(i)/12)
	})
	// feed reversed to check sorting
	rev := make([]models.PriceObservation, len(hist))
	for i := range hist {
		rev[len(hist)-1-i] = hist[i]
	}

	f := NewSeasonalForecaster()
	pts, err := f.Forecast(context.Background(), rev, 3)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(pts) != 39 {
		t.Fatalf("len = %d, want 39", len(pts))
	}
	last := hist[len(hist)-1].Date
	for i, p := range pts {
		if p.Lower > p.Estimate || p.Estimate > p.Upper {
			t.Errorf("point %d band not ordered: %+v", i, p)
		}
		if i > 0 && !p.Date.After(pts[i-1].Date) {
			t.Errorf("point %d not after previous", i)
		}
		wantFuture := i >= 36
		if p.Future != wantFuture {
			t.Errorf("point %d Future = %v", i, p.Future)
		}
		if p.Future && !p.Date.After(last) {
			t.Errorf("future point %d not after last observation", i)
		}
	}
	// future bands widen with the step
	w1 := pts[36].Upper - pts[36].Lower
	w3 := pts[38].Upper - pts[38].Lower
	if w3 < w1 {
		t.Errorf("band width shrank: %v -> %v", w1, w3)
	}
	// the trend keeps rising
	if pts[38].Estimate < pts[0].Estimate {
		t.Errorf("projected %v below start %v", pts[38].Estimate, pts[0].Estimate)
	}
}

func TestSeasonalForecasterFitsLinear(t *testing.T) {
	hist := monthly(24, func(i int) float64 { return 50 })
	pts, err := NewSeasonalForecaster(WithFourierOrder(0)).Forecast(context.Background(), hist, 2)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	for i, p := range pts {
		if math.Abs(p.Estimate-50) > 1e-6 {
			t.Errorf("point %d estimate = %v, want 50", i, p.Estimate)
		}
	}
}

func TestSeasonalForecasterErrors(t *testing.T) {
	tests := []struct {
		name    string
		hist    []models.PriceObservation
		horizon int
	}{
		{name: "too short", hist: monthly(11, func(int) float64 { return 10 }), horizon: 3},
		{name: "empty", hist: nil, horizon: 3},
		{name: "zero horizon", hist: monthly(24, func(int) float64 { return 10 }), horizon: 0},
	}
	f := NewSeasonalForecaster()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Forecast(context.Background(), tt.hist, tt.horizon)
			if !errors.Is(err, errs.ErrInsufficientData) {
				t.Fatalf("err = %v, want ErrInsufficientData", err)
			}
		})
	}
}

func TestSeasonalForecasterSingleDate(t *testing.T) {
	d := time.Date(2021, 5, 31, 0, 0, 0, 0, time.UTC)
	hist := make([]models.PriceObservation, 12)
	for i := range hist {
		hist[i] = models.PriceObservation{Date: d, Price: float64(10 + i)}
	}
	_, err := NewSeasonalForecaster().Forecast(context.Background(), hist, 1)
	if !errors.Is(err, errs.ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestHTTPForecaster(t *testing.T) {
	var got prophetReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != prophetPath {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(prophetResp{Forecast: []prophetPoint{
			{DS: "2021-12-31", YHat: 40, Lower: 35, Upper: 45},
			{DS: "2022-01-31", YHat: 42, Lower: 36, Upper: 48},
		}})
	}))
	defer srv.Close()

	hist := monthly(24, func(i int) float64 { return float64(30 + i) })
	pts, err := NewHTTPForecaster(srv.URL, time.Second, 1).Forecast(context.Background(), hist, 1)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if got.Crop != "Tomato" || got.Market != "Kolar" || got.Horizon != 1 || len(got.History) != 24 {
		t.Errorf("request = %+v", got)
	}
	if len(pts) != 2 || pts[0].Future || !pts[1].Future {
		t.Errorf("points = %+v", pts)
	}
}

func TestHTTPForecasterRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewHTTPForecaster(srv.URL, time.Second, 3).Forecast(context.Background(), monthly(12, func(int) float64 { return 1 }), 3)
	if !errors.Is(err, errs.ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}
