package fertilizer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"AgriPulse/internal/domain/errs"
	"AgriPulse/internal/domain/models"
)

func loadRepoModel(t *testing.T) *ModelClassifier {
	t.Helper()
	m, err := LoadModel(filepath.Join("..", "..", "..", "models", "fertilizer.json"))
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	return m
}

func TestModelClassifier(t *testing.T) {
	m := loadRepoModel(t)
	if m.Depth() != 5 {
		t.Errorf("Depth = %d, want 5", m.Depth())
	}
	base := models.FertilizerFeatures{Temperature: 26, Humidity: 52, Moisture: 38, SoilType: "Sandy", CropType: "Maize"}
	tests := []struct {
		name    string
		n, p, k float64
		want    string
	}{
		{name: "high nitrogen", n: 37, p: 0, k: 0, want: "Urea"},
		{name: "phosphorous without potash", n: 12, p: 36, k: 0, want: "DAP"},
		{name: "phosphorous some potash", n: 12, p: 36, k: 10, want: "14-35-14"},
		{name: "phosphorous much potash", n: 8, p: 32, k: 16, want: "10-26-26"},
		{name: "balanced low", n: 10, p: 20, k: 5, want: "20-20"},
		{name: "balanced with potash", n: 13, p: 17, k: 13, want: "17-17-17"},
		{name: "mid nitrogen", n: 24, p: 20, k: 0, want: "28-28"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base
			f.Nitrogen, f.Phosphorous, f.Potassium = tt.n, tt.p, tt.k
			got, err := m.Classify(context.Background(), f)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestModelClassifierUnknownCategory(t *testing.T) {
	m := loadRepoModel(t)
	tests := []models.FertilizerFeatures{
		{SoilType: "Peaty", CropType: "Maize"},
		{SoilType: "Black", CropType: "Quinoa"},
		{SoilType: "black", CropType: "Maize"},
	}
	for _, f := range tests {
		_, err := m.Classify(context.Background(), f)
		if !errors.Is(err, errs.ErrUnknownCategory) {
			t.Errorf("%+v: err = %v, want ErrUnknownCategory", f, err)
		}
	}
}

func TestNewModelClassifierRejectsBadTrees(t *testing.T) {
	one, nine := 1, 9
	tests := []struct {
		name string
		a    Artifact
	}{
		{name: "no tree", a: Artifact{SoilTypes: []string{"a"}, CropTypes: []string{"b"}, Fertilizers: []string{"x"}}},
		{name: "leaf out of range", a: Artifact{SoilTypes: []string{"a"}, CropTypes: []string{"b"}, Fertilizers: []string{"x"}, Tree: &Node{Class: &nine}}},
		{name: "missing child", a: Artifact{SoilTypes: []string{"a"}, CropTypes: []string{"b"}, Fertilizers: []string{"x", "y"}, Tree: &Node{Feature: 1, Left: &Node{Class: &one}}}},
		{name: "duplicate soil", a: Artifact{SoilTypes: []string{"a", "a"}, CropTypes: []string{"b"}, Fertilizers: []string{"x"}, Tree: &Node{Class: new(int)}}},
		{name: "empty crops", a: Artifact{SoilTypes: []string{"a"}, Fertilizers: []string{"x"}, Tree: &Node{Class: new(int)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewModelClassifier(tt.a); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadModelMissingFile(t *testing.T) {
	if _, err := LoadModel(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error")
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadModel(bad); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestHTTPClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var f models.FertilizerFeatures
		_ = json.NewDecoder(r.Body).Decode(&f)
		if f.SoilType == "Peaty" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		_ = json.NewEncoder(w).Encode(models.FertilizerRecommendation{Fertilizer: "Urea"})
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, time.Second)
	got, err := c.Classify(context.Background(), models.FertilizerFeatures{SoilType: "Black", CropType: "Maize"})
	if err != nil || got != "Urea" {
		t.Fatalf("Classify = %q, %v", got, err)
	}
	_, err = c.Classify(context.Background(), models.FertilizerFeatures{SoilType: "Peaty"})
	if !errors.Is(err, errs.ErrUnknownCategory) {
		t.Fatalf("err = %v, want ErrUnknownCategory", err)
	}
}
