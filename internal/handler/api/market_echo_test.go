package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"AgriPulse/internal/domain/errs"
	"AgriPulse/internal/domain/models"
	xhttp "AgriPulse/pkg/http"
)

type fakeAnalyzer struct {
	got models.MarketAnalysisRequest
	err error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req models.MarketAnalysisRequest) (*models.MarketComparison, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	out := &models.MarketComparison{Market: req.Market, LandSize: req.LandSize}
	for _, c := range req.Crops {
		out.Comparison = append(out.Comparison, models.CropAnalysis{Crop: c, MarketScore: 50})
	}
	return out, nil
}

type fakeStore struct {
	crops []string
	err   error
}

func (s fakeStore) LoadPriceHistory(context.Context, string, string) ([]models.PriceObservation, error) {
	return nil, errs.ErrNotFound
}
func (s fakeStore) LoadYield(context.Context, string) (float64, error) { return 0, errs.ErrNotFound }
func (s fakeStore) LoadCost(context.Context, string) (float64, error)  { return 0, errs.ErrNotFound }
func (s fakeStore) LoadAcreageHistory(context.Context, string, string) ([]models.AcreageRecord, error) {
	return nil, nil
}
func (s fakeStore) ListCrops(context.Context) ([]string, error) { return s.crops, s.err }

type fakeClassifier struct {
	got models.FertilizerFeatures
	err error
}

func (f *fakeClassifier) Classify(_ context.Context, x models.FertilizerFeatures) (string, error) {
	f.got = x
	if f.err != nil {
		return "", f.err
	}
	return "Urea", nil
}

type healthFunc func(context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, an Analyzer, cl *fakeClassifier, opts ...HandlerOption) *echo.Echo {
	t.Helper()
	e := echo.New()
	if cl == nil {
		cl = &fakeClassifier{}
	}
	h := NewMarketEchoHandler(nil, an, fakeStore{crops: []string{"Beans", "Tomato"}}, cl, opts...)
	h.RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	e := newTestServer(t, &fakeAnalyzer{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "Backend running" {
		t.Fatalf("body = %v", body)
	}
}

func TestHealth_DependencyDown(t *testing.T) {
	down := healthFunc(func(context.Context) error { return errors.New("connection refused") })
	up := healthFunc(func(context.Context) error { return nil })
	e := newTestServer(t, &fakeAnalyzer{}, nil,
		WithHealthCheck("clickhouse", down),
		WithHealthCheck("redis", up))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Deps   map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Deps["clickhouse"] != "down" || body.Deps["redis"] != "up" {
		t.Fatalf("deps = %v", body.Deps)
	}
}

func TestCrops(t *testing.T) {
	e := newTestServer(t, &fakeAnalyzer{}, nil)
	rec, env := do(t, e, http.MethodGet, "/api/crops", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var crops []string
	if err := json.Unmarshal(env.Data, &crops); err != nil {
		t.Fatal(err)
	}
	if len(crops) != 2 || crops[0] != "Beans" {
		t.Fatalf("crops = %v", crops)
	}
}

func TestMarketAnalysis_AppliesDefaults(t *testing.T) {
	an := &fakeAnalyzer{}
	e := newTestServer(t, an, nil)
	rec, env := do(t, e, http.MethodPost, "/api/market-analysis", `{"crops":["Tomato","Onion"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if an.got.Market != "Kolar" || an.got.LandSize != 1 {
		t.Fatalf("request = %+v", an.got)
	}
	var res models.MarketComparison
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Comparison) != 2 || res.Comparison[1].Crop != "Onion" {
		t.Fatalf("comparison = %+v", res.Comparison)
	}
}

func TestMarketAnalysis_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"no crops", `{"crops":[]}`, "ERR_MIN"},
		{"missing crops", `{"market":"Kolar"}`, "ERR_REQUIRED"},
		{"duplicate crops", `{"crops":["Tomato","Tomato"]}`, "ERR_UNIQUE"},
		{"empty crop name", `{"crops":["Tomato",""]}`, "ERR_REQUIRED"},
		{"negative land", `{"crops":["Tomato"],"land_size":-2}`, "ERR_GT"},
		{"too many crops", `{"crops":["A","B","C","D","E"]}`, "ERR_BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			an := &fakeAnalyzer{}
			e := newTestServer(t, an, nil)
			rec, env := do(t, e, http.MethodPost, "/api/market-analysis", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(string(env.Data), tt.code) {
				t.Fatalf("data %s does not carry %s", env.Data, tt.code)
			}
			if an.got.Crops != nil {
				t.Fatal("analyzer should not be called")
			}
		})
	}
}

func TestMarketAnalysis_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("load prices: %w", errs.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("forecast: %w", errs.ErrInsufficientData), http.StatusUnprocessableEntity},
		{fmt.Errorf("volatility: %w", errs.ErrDivideByZero), http.StatusUnprocessableEntity},
		{fmt.Errorf("land: %w", errs.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("market analysis: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.want), func(t *testing.T) {
			e := newTestServer(t, &fakeAnalyzer{err: tt.err}, nil)
			rec, env := do(t, e, http.MethodPost, "/api/market-analysis", `{"crops":["Tomato"]}`)
			if rec.Code != tt.want || env.Status != tt.want {
				t.Fatalf("status = %d/%d, want %d", rec.Code, env.Status, tt.want)
			}
		})
	}
}

func TestFertilizer(t *testing.T) {
	cl := &fakeClassifier{}
	e := newTestServer(t, &fakeAnalyzer{}, cl)
	body := `{"temperature":26,"humidity":52,"moisture":38,"soil":"Sandy","crop":"Maize","nitrogen":37,"phosphorous":0,"potassium":0}`
	rec, env := do(t, e, http.MethodPost, "/api/fertilizer", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var res models.FertilizerRecommendation
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatal(err)
	}
	if res.Fertilizer != "Urea" {
		t.Fatalf("fertilizer = %q", res.Fertilizer)
	}
	if cl.got.SoilType != "Sandy" || cl.got.CropType != "Maize" || cl.got.Nitrogen != 37 {
		t.Fatalf("features = %+v", cl.got)
	}
}

func TestFertilizer_Errors(t *testing.T) {
	t.Run("unknown category", func(t *testing.T) {
		cl := &fakeClassifier{err: fmt.Errorf("soil %q: %w", "Peat", errs.ErrUnknownCategory)}
		e := newTestServer(t, &fakeAnalyzer{}, cl)
		rec, env := do(t, e, http.MethodPost, "/api/fertilizer", `{"soil":"Peat","crop":"Maize"}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d", rec.Code)
		}
		var appErrs []xhttp.AppError
		if err := json.Unmarshal(env.Data, &appErrs); err != nil {
			t.Fatal(err)
		}
		if len(appErrs) != 1 || appErrs[0].Code != "ERR_UNKNOWN_CATEGORY" {
			t.Fatalf("errors = %+v", appErrs)
		}
	})
	t.Run("missing soil", func(t *testing.T) {
		e := newTestServer(t, &fakeAnalyzer{}, nil)
		rec, _ := do(t, e, http.MethodPost, "/api/fertilizer", `{"crop":"Maize"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestRateLimit(t *testing.T) {
	e := newTestServer(t, &fakeAnalyzer{}, nil, WithRateLimit(1e-9, 1))
	if rec, _ := do(t, e, http.MethodGet, "/api/crops", ""); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec, env := do(t, e, http.MethodGet, "/api/crops", "")
	if rec.Code != http.StatusTooManyRequests || env.Status != http.StatusTooManyRequests {
		t.Fatalf("second status = %d", rec.Code)
	}

	// the health route is not limited
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	hrec := httptest.NewRecorder()
	e.ServeHTTP(hrec, req)
	if hrec.Code != http.StatusOK {
		t.Fatalf("health status = %d", hrec.Code)
	}
}
