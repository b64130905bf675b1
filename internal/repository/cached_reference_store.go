package repository

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"AgriPulse/internal/domain/models"
	domrepo "AgriPulse/internal/domain/repository"
	"AgriPulse/pkg/cache"
)

const cachePrefix = "ref"

// CachedReferenceStore memoizes a ReferenceStore through pkg/cache. Concurrent
// misses for the same key share one upstream load.
type CachedReferenceStore struct {
	next  domrepo.ReferenceStore
	cache cache.Service
	ttl   time.Duration
	group singleflight.Group
}

func NewCachedReferenceStore(next domrepo.ReferenceStore, c cache.Service, ttl time.Duration) *CachedReferenceStore {
	return &CachedReferenceStore{next: next, cache: c, ttl: ttl}
}

func cached[T any](ctx context.Context, s *CachedReferenceStore, key string, load func(context.Context) (T, error)) (T, error) {
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return cache.GetOrLoad(ctx, s.cache, key, s.ttl, load)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (s *CachedReferenceStore) LoadPriceHistory(ctx context.Context, crop, market string) ([]models.PriceObservation, error) {
	obs, err := cached(ctx, s, cache.GenerateKeyWithParams(cachePrefix, "prices", crop, market), func(ctx context.Context) ([]models.PriceObservation, error) {
		return s.next.LoadPriceHistory(ctx, crop, market)
	})
	if err != nil {
		return nil, err
	}
	// callers sharing a flight must not alias one slice
	return append([]models.PriceObservation(nil), obs...), nil
}

func (s *CachedReferenceStore) LoadYield(ctx context.Context, crop string) (float64, error) {
	return cached(ctx, s, cache.GenerateKeyWithParams(cachePrefix, "yield", crop), func(ctx context.Context) (float64, error) {
		return s.next.LoadYield(ctx, crop)
	})
}

func (s *CachedReferenceStore) LoadCost(ctx context.Context, crop string) (float64, error) {
	return cached(ctx, s, cache.GenerateKeyWithParams(cachePrefix, "cost", crop), func(ctx context.Context) (float64, error) {
		return s.next.LoadCost(ctx, crop)
	})
}

func (s *CachedReferenceStore) LoadAcreageHistory(ctx context.Context, crop, market string) ([]models.AcreageRecord, error) {
	recs, err := cached(ctx, s, cache.GenerateKeyWithParams(cachePrefix, "acreage", crop, market), func(ctx context.Context) ([]models.AcreageRecord, error) {
		return s.next.LoadAcreageHistory(ctx, crop, market)
	})
	if err != nil {
		return nil, err
	}
	return append([]models.AcreageRecord(nil), recs...), nil
}

func (s *CachedReferenceStore) ListCrops(ctx context.Context) ([]string, error) {
	crops, err := cached(ctx, s, cache.GenerateKey(cachePrefix, "crops"), s.next.ListCrops)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), crops...), nil
}

// Invalidate drops every cached reference entry, e.g. after new prices were ingested.
func (s *CachedReferenceStore) Invalidate(ctx context.Context) error {
	return s.cache.DeleteByPattern(ctx, cache.BuildPattern(cachePrefix+":"))
}

var _ domrepo.ReferenceStore = (*CachedReferenceStore)(nil)
