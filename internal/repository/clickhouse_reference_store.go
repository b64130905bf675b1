package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"AgriPulse/internal/domain/errs"
	"AgriPulse/internal/domain/models"
	domrepo "AgriPulse/internal/domain/repository"
	pkgch "AgriPulse/pkg/clickhouse"
	applogger "AgriPulse/pkg/logger"
)

// CHReferenceStore implements ReferenceStore backed by ClickHouse.
type CHReferenceStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHReferenceStore(ch *pkgch.Client) *CHReferenceStore {
	return &CHReferenceStore{db: ch.DB(), database: ch.Database(), l: applogger.NewNop()}
}

// SetLogger injects a structured logger.
func (s *CHReferenceStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CHReferenceStore) table(name string) string { return s.database + "." + name }

func (s *CHReferenceStore) LoadPriceHistory(ctx context.Context, crop, market string) ([]models.PriceObservation, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT crop, market, date, price
        FROM %s FINAL
        WHERE crop = ? AND market = ?
        ORDER BY date ASC
    `, s.table(pkgch.TablePrices))
	rows, err := s.db.QueryContext(ctx, q, crop, market)
	if err != nil {
		s.l.Error("clickhouse price history query error",
			applogger.String("crop", crop),
			applogger.String("market", market),
			applogger.Error(err))
		return nil, fmt.Errorf("price history: %w", err)
	}
	defer rows.Close()

	out := make([]models.PriceObservation, 0, 64)
	for rows.Next() {
		var o models.PriceObservation
		if err := rows.Scan(&o.Crop, &o.Market, &o.Date, &o.Price); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		o.Date = o.Date.UTC()
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("prices for %s at %s: %w", crop, market, errs.ErrNotFound)
	}
	s.l.Debug("clickhouse price history ok",
		applogger.String("crop", crop),
		applogger.String("market", market),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

func (s *CHReferenceStore) LoadYield(ctx context.Context, crop string) (float64, error) {
	return s.scalar(ctx, "yield", fmt.Sprintf("SELECT yield_per_acre FROM %s FINAL WHERE crop = ? LIMIT 1", s.table(pkgch.TableYield)), crop)
}

func (s *CHReferenceStore) LoadCost(ctx context.Context, crop string) (float64, error) {
	return s.scalar(ctx, "cost", fmt.Sprintf("SELECT cost_per_acre FROM %s FINAL WHERE crop = ? LIMIT 1", s.table(pkgch.TableCost)), crop)
}

func (s *CHReferenceStore) scalar(ctx context.Context, what, q, crop string) (float64, error) {
	var v float64
	err := s.db.QueryRowContext(ctx, q, crop).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s for %s: %w", what, crop, errs.ErrNotFound)
	}
	if err != nil {
		s.l.Error("clickhouse reference query error",
			applogger.String("table", what),
			applogger.String("crop", crop),
			applogger.Error(err))
		return 0, fmt.Errorf("%s for %s: %w", what, crop, err)
	}
	return v, nil
}

func (s *CHReferenceStore) LoadAcreageHistory(ctx context.Context, crop, market string) ([]models.AcreageRecord, error) {
	q := fmt.Sprintf(`
        SELECT crop, market, year, area_acres
        FROM %s FINAL
        WHERE crop = ? AND market = ?
        ORDER BY year ASC
    `, s.table(pkgch.TableAcreage))
	rows, err := s.db.QueryContext(ctx, q, crop, market)
	if err != nil {
		s.l.Error("clickhouse acreage query error",
			applogger.String("crop", crop),
			applogger.String("market", market),
			applogger.Error(err))
		return nil, fmt.Errorf("acreage history: %w", err)
	}
	defer rows.Close()

	var out []models.AcreageRecord
	for rows.Next() {
		var (
			r    models.AcreageRecord
			year uint16
		)
		if err := rows.Scan(&r.Crop, &r.Market, &year, &r.AreaAcres); err != nil {
			return nil, fmt.Errorf("scan acreage: %w", err)
		}
		r.Year = int(year)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *CHReferenceStore) ListCrops(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT DISTINCT crop FROM %s ORDER BY crop", s.table(pkgch.TablePrices)))
	if err != nil {
		return nil, fmt.Errorf("list crops: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan crop: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ domrepo.ReferenceStore = (*CHReferenceStore)(nil)
