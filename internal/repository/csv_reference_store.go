package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"AgriPulse/internal/domain/errs"
	"AgriPulse/internal/domain/models"
	domrepo "AgriPulse/internal/domain/repository"
	applogger "AgriPulse/pkg/logger"
	"AgriPulse/pkg/util"
)

const (
	PricesFile  = "prices.csv"
	YieldFile   = "yield.csv"
	CostFile    = "cost.csv"
	AcreageFile = "acreage.csv"
)

type seriesKey struct{ crop, market string }

// referenceSnapshot is an immutable view of the four reference tables.
type referenceSnapshot struct {
	prices  map[seriesKey][]models.PriceObservation
	acreage map[seriesKey][]models.AcreageRecord
	yield   map[string]float64
	cost    map[string]float64
	crops   []string
}

// CSVReferenceStore serves reference tables loaded from a data directory.
// Reload swaps in a fresh snapshot; readers never see a partial load.
type CSVReferenceStore struct {
	dir  string
	snap atomic.Pointer[referenceSnapshot]
	l    *applogger.Logger
}

// NewCSVReferenceStore loads prices.csv, yield.csv, cost.csv and acreage.csv from dir.
func NewCSVReferenceStore(dir string) (*CSVReferenceStore, error) {
	s := &CSVReferenceStore{dir: dir, l: applogger.NewNop()}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CSVReferenceStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// Reload re-reads every table. On error the previous snapshot stays active.
func (s *CSVReferenceStore) Reload() error {
	start := time.Now()
	snap := &referenceSnapshot{
		prices:  make(map[seriesKey][]models.PriceObservation),
		acreage: make(map[seriesKey][]models.AcreageRecord),
		yield:   make(map[string]float64),
		cost:    make(map[string]float64),
	}

	err := readTable(filepath.Join(s.dir, PricesFile), []string{"crop", "market", "date", "price"}, func(r row) error {
		d, ok := util.ParseDate(r.get("date"))
		if !ok {
			return fmt.Errorf("bad date %q", r.get("date"))
		}
		p, err := r.float("price")
		if err != nil {
			return err
		}
		o := models.PriceObservation{Crop: r.get("crop"), Market: r.get("market"), Date: d, Price: p}
		k := seriesKey{o.Crop, o.Market}
		snap.prices[k] = append(snap.prices[k], o)
		return nil
	})
	if err != nil {
		return err
	}

	err = readTable(filepath.Join(s.dir, YieldFile), []string{"crop", "yield_per_acre"}, func(r row) error {
		v, err := r.float("yield_per_acre")
		if err != nil {
			return err
		}
		if _, dup := snap.yield[r.get("crop")]; !dup {
			snap.yield[r.get("crop")] = v
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = readTable(filepath.Join(s.dir, CostFile), []string{"crop", "cost_per_acre"}, func(r row) error {
		v, err := r.float("cost_per_acre")
		if err != nil {
			return err
		}
		if _, dup := snap.cost[r.get("crop")]; !dup {
			snap.cost[r.get("crop")] = v
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = readTable(filepath.Join(s.dir, AcreageFile), []string{"crop", "market", "year", "area_acres"}, func(r row) error {
		y, err := strconv.Atoi(r.get("year"))
		if err != nil {
			return fmt.Errorf("bad year %q", r.get("year"))
		}
		a, err := r.float("area_acres")
		if err != nil {
			return err
		}
		rec := models.AcreageRecord{Crop: r.get("crop"), Market: r.get("market"), Year: y, AreaAcres: a}
		k := seriesKey{rec.Crop, rec.Market}
		snap.acreage[k] = append(snap.acreage[k], rec)
		return nil
	})
	if err != nil {
		return err
	}

	seen := make(map[string]struct{})
	for k, obs := range snap.prices {
		sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })
		if _, ok := seen[k.crop]; !ok {
			seen[k.crop] = struct{}{}
			snap.crops = append(snap.crops, k.crop)
		}
	}
	sort.Strings(snap.crops)
	for _, recs := range snap.acreage {
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].Year < recs[j].Year })
	}

	s.snap.Store(snap)
	s.l.Info("reference tables loaded",
		applogger.String("dir", s.dir),
		applogger.Int("series", len(snap.prices)),
		applogger.Int("crops", len(snap.crops)),
		applogger.Duration("duration_ms", time.Since(start)))
	return nil
}

// LoadPriceHistory returns a copy of the (crop, market) series sorted by date.
func (s *CSVReferenceStore) LoadPriceHistory(ctx context.Context, crop, market string) ([]models.PriceObservation, error) {
	obs, ok := s.snap.Load().prices[seriesKey{crop, market}]
	if !ok {
		return nil, fmt.Errorf("prices for %s at %s: %w", crop, market, errs.ErrNotFound)
	}
	return append([]models.PriceObservation(nil), obs...), nil
}

func (s *CSVReferenceStore) LoadYield(ctx context.Context, crop string) (float64, error) {
	v, ok := s.snap.Load().yield[crop]
	if !ok {
		return 0, fmt.Errorf("yield for %s: %w", crop, errs.ErrNotFound)
	}
	return v, nil
}

func (s *CSVReferenceStore) LoadCost(ctx context.Context, crop string) (float64, error) {
	v, ok := s.snap.Load().cost[crop]
	if !ok {
		return 0, fmt.Errorf("cost for %s: %w", crop, errs.ErrNotFound)
	}
	return v, nil
}

// LoadAcreageHistory returns the records sorted by year. A missing series is
// not an error: supply estimation falls back to neutral.
func (s *CSVReferenceStore) LoadAcreageHistory(ctx context.Context, crop, market string) ([]models.AcreageRecord, error) {
	recs := s.snap.Load().acreage[seriesKey{crop, market}]
	return append([]models.AcreageRecord(nil), recs...), nil
}

func (s *CSVReferenceStore) ListCrops(ctx context.Context) ([]string, error) {
	return append([]string(nil), s.snap.Load().crops...), nil
}

type row struct {
	cols   map[string]int
	fields []string
}

func (r row) get(col string) string { return strings.TrimSpace(r.fields[r.cols[col]]) }

func (r row) float(col string) (float64, error) {
	v, err := strconv.ParseFloat(r.get(col), 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q", col, r.get(col))
	}
	return v, nil
}

// readTable streams a headed CSV file, locating required columns by name.
func readTable(path string, required []string, fn func(row) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.TrimLeadingSpace = true
	header, err := rd.Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return fmt.Errorf("%s: missing column %q", path, c)
		}
	}

	for line := 2; ; line++ {
		fields, err := rd.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := fn(row{cols: cols, fields: fields}); err != nil {
			return fmt.Errorf("%s line %d: %w", path, line, err)
		}
	}
}

var _ domrepo.ReferenceStore = (*CSVReferenceStore)(nil)
