package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"AgriPulse/internal/domain/errs"
	"AgriPulse/internal/domain/models"
	"AgriPulse/pkg/cache"
)

func writeTables(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func sampleTables() map[string]string {
	return map[string]string{
		PricesFile: "crop,market,date,price\n" +
			"Tomato,Kolar,2021-03-31,30\n" +
			"Tomato,Kolar,2021-01-31,10\n" +
			"Tomato,Kolar,2021-02-28,20\n" +
			"Onion,Kolar,2021-01-31,15\n" +
			"Onion,Mysore,2021-01-31,16\n",
		YieldFile:   "crop,yield_per_acre\nTomato,2800\nOnion,2200\n",
		CostFile:    "cost_per_acre,crop\n45000,Tomato\n",
		AcreageFile: "crop,market,year,area_acres\nTomato,Kolar,2021,120\nTomato,Kolar,2020,100\n",
	}
}

func TestCSVReferenceStore(t *testing.T) {
	s, err := NewCSVReferenceStore(writeTables(t, sampleTables()))
	if err != nil {
		t.Fatalf("NewCSVReferenceStore: %v", err)
	}
	ctx := context.Background()

	obs, err := s.LoadPriceHistory(ctx, "Tomato", "Kolar")
	if err != nil {
		t.Fatalf("LoadPriceHistory: %v", err)
	}
	if len(obs) != 3 || obs[0].Price != 10 || obs[2].Price != 30 {
		t.Errorf("history not sorted by date: %+v", obs)
	}
	obs[0].Price = 999
	again, _ := s.LoadPriceHistory(ctx, "Tomato", "Kolar")
	if again[0].Price != 10 {
		t.Error("caller mutation leaked into the store")
	}

	if _, err := s.LoadPriceHistory(ctx, "Tomato", "Mysore"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("missing series err = %v", err)
	}
	if v, err := s.LoadYield(ctx, "Onion"); err != nil || v != 2200 {
		t.Errorf("LoadYield = %v, %v", v, err)
	}
	if v, err := s.LoadCost(ctx, "Tomato"); err != nil || v != 45000 {
		t.Errorf("LoadCost = %v, %v", v, err)
	}
	if _, err := s.LoadCost(ctx, "Onion"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("missing cost err = %v", err)
	}
	recs, err := s.LoadAcreageHistory(ctx, "Tomato", "Kolar")
	if err != nil || len(recs) != 2 || recs[0].Year != 2020 {
		t.Errorf("acreage = %+v, %v", recs, err)
	}
	if recs, err := s.LoadAcreageHistory(ctx, "Onion", "Kolar"); err != nil || len(recs) != 0 {
		t.Errorf("missing acreage = %+v, %v", recs, err)
	}
	crops, _ := s.ListCrops(ctx)
	if len(crops) != 2 || crops[0] != "Onion" || crops[1] != "Tomato" {
		t.Errorf("ListCrops = %v", crops)
	}
}

func TestCSVReferenceStoreBadInput(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "bad price", file: PricesFile, body: "crop,market,date,price\nTomato,Kolar,2021-01-31,abc\n"},
		{name: "bad date", file: PricesFile, body: "crop,market,date,price\nTomato,Kolar,someday,1\n"},
		{name: "missing column", file: YieldFile, body: "crop\nTomato\n"},
		{name: "bad year", file: AcreageFile, body: "crop,market,year,area_acres\nTomato,Kolar,20x1,5\n"},
		{name: "ragged row", file: CostFile, body: "crop,cost_per_acre\nTomato\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := sampleTables()
			files[tt.file] = tt.body
			if _, err := NewCSVReferenceStore(writeTables(t, files)); err == nil {
				t.Fatal("expected load error")
			}
		})
	}

	files := sampleTables()
	delete(files, AcreageFile)
	if _, err := NewCSVReferenceStore(writeTables(t, files)); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCSVReferenceStoreReloadKeepsSnapshotOnError(t *testing.T) {
	dir := writeTables(t, sampleTables())
	s, err := NewCSVReferenceStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, YieldFile), []byte("nope\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if v, err := s.LoadYield(context.Background(), "Tomato"); err != nil || v != 2800 {
		t.Errorf("LoadYield after failed reload = %v, %v", v, err)
	}
}

func TestBundledDataLoads(t *testing.T) {
	s, err := NewCSVReferenceStore(filepath.Join("..", "..", "data"))
	if err != nil {
		t.Fatalf("bundled data: %v", err)
	}
	crops, _ := s.ListCrops(context.Background())
	if len(crops) == 0 {
		t.Fatal("no crops in bundled data")
	}
	for _, c := range crops {
		if _, err := s.LoadYield(context.Background(), c); err != nil {
			t.Errorf("yield for %s: %v", c, err)
		}
		if _, err := s.LoadCost(context.Background(), c); err != nil {
			t.Errorf("cost for %s: %v", c, err)
		}
	}
}

type countingStore struct {
	inner  *CSVReferenceStore
	prices int32
	yield  int32
	gate   chan struct{}
}

func (c *countingStore) LoadPriceHistory(ctx context.Context, crop, market string) ([]models.PriceObservation, error) {
	atomic.AddInt32(&c.prices, 1)
	if c.gate != nil {
		<-c.gate
	}
	return c.inner.LoadPriceHistory(ctx, crop, market)
}

func (c *countingStore) LoadYield(ctx context.Context, crop string) (float64, error) {
	atomic.AddInt32(&c.yield, 1)
	return c.inner.LoadYield(ctx, crop)
}

func (c *countingStore) LoadCost(ctx context.Context, crop string) (float64, error) {
	return c.inner.LoadCost(ctx, crop)
}

func (c *countingStore) LoadAcreageHistory(ctx context.Context, crop, market string) ([]models.AcreageRecord, error) {
	return c.inner.LoadAcreageHistory(ctx, crop, market)
}

func (c *countingStore) ListCrops(ctx context.Context) ([]string, error) {
	return c.inner.ListCrops(ctx)
}

func newCounting(t *testing.T) *countingStore {
	inner, err := NewCSVReferenceStore(writeTables(t, sampleTables()))
	if err != nil {
		t.Fatal(err)
	}
	return &countingStore{inner: inner}
}

func TestCachedReferenceStore(t *testing.T) {
	next := newCounting(t)
	mc := cache.NewMemoryCache()
	defer mc.Close()
	s := NewCachedReferenceStore(next, mc, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		obs, err := s.LoadPriceHistory(ctx, "Tomato", "Kolar")
		if err != nil || len(obs) != 3 {
			t.Fatalf("LoadPriceHistory = %v, %v", obs, err)
		}
		if !obs[0].Date.Equal(time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("date after cache round trip = %v", obs[0].Date)
		}
	}
	if n := atomic.LoadInt32(&next.prices); n != 1 {
		t.Errorf("upstream price loads = %d, want 1", n)
	}

	// errors are not cached
	for i := 0; i < 2; i++ {
		if _, err := s.LoadYield(ctx, "Beans"); !errors.Is(err, errs.ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
	}
	if n := atomic.LoadInt32(&next.yield); n != 2 {
		t.Errorf("upstream yield loads = %d, want 2", n)
	}

	if err := s.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadPriceHistory(ctx, "Tomato", "Kolar"); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&next.prices); n != 2 {
		t.Errorf("upstream price loads after invalidate = %d, want 2", n)
	}
}

func TestCachedReferenceStoreCoalesces(t *testing.T) {
	next := newCounting(t)
	next.gate = make(chan struct{})
	mc := cache.NewMemoryCache()
	defer mc.Close()
	s := NewCachedReferenceStore(next, mc, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.LoadPriceHistory(context.Background(), "Onion", "Kolar"); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(next.gate)
	wg.Wait()
	if n := atomic.LoadInt32(&next.prices); n > 2 {
		t.Errorf("upstream loads = %d, want concurrent misses coalesced", n)
	}
}

func TestPriceRows(t *testing.T) {
	d := time.Date(2024, 5, 31, 15, 4, 5, 0, time.UTC)
	rows := priceRows([]*models.PriceObservation{
		{Crop: "Tomato", Market: "Kolar", Date: d, Price: 31.5},
		nil,
		{Crop: "", Market: "Kolar", Date: d, Price: 1},
		{Crop: "Onion", Market: "Kolar", Price: 1},
		{Crop: "Onion", Market: "Kolar", Date: d, Price: 2, Source: "csv"},
	})
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if day := rows[0][2].(time.Time); day.Hour() != 0 || day.Day() != 31 {
		t.Errorf("date not truncated to day: %v", day)
	}
	if rows[0][4] != "feed" || rows[1][4] != "csv" {
		t.Errorf("sources = %v, %v", rows[0][4], rows[1][4])
	}
}
