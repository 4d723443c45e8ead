package storage

import (
	"context"
	"fmt"

	"github.com/timshannon/bolthold"

	"soundarr/internal/domain"
)

type analyticsRepository struct {
	store *bolthold.Store
}

// NewAnalyticsRepository opens the embedded analytics store. Analytics is a
// side-observer with its own store so its failures never touch the cache
// database.
func NewAnalyticsRepository(path string) (domain.AnalyticsRepository, error) {
	store, err := bolthold.Open(path, 0666, nil)
	if err != nil {
		return nil, fmt.Errorf("opening analytics store: %w", err)
	}
	return &analyticsRepository{store: store}, nil
}

func (r *analyticsRepository) Insert(ctx context.Context, record *domain.PlayRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := r.store.Upsert(record.ID, record); err != nil {
		return fmt.Errorf("inserting play record: %w", err)
	}
	return nil
}

func (r *analyticsRepository) Update(ctx context.Context, id string, fn func(*domain.PlayRecord)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var record domain.PlayRecord
	if err := r.store.Get(id, &record); err != nil {
		if err == bolthold.ErrNotFound {
			return fmt.Errorf("updating play record: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("getting play record: %w", err)
	}

	fn(&record)
	if err := r.store.Update(id, &record); err != nil {
		return fmt.Errorf("updating play record: %w", err)
	}
	return nil
}

func (r *analyticsRepository) Summary(ctx context.Context) (*domain.AnalyticsSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []domain.PlayRecord
	if err := r.store.Find(&records, &bolthold.Query{}); err != nil {
		return nil, fmt.Errorf("listing play records: %w", err)
	}

	summary := &domain.AnalyticsSummary{}
	for _, record := range records {
		summary.Requests++
		if record.CacheHitPre || record.CacheHitPost {
			summary.CacheHits++
		}
		if record.Downloaded {
			summary.Downloads++
		}
		if record.Failed {
			summary.Failures++
		}
	}
	return summary, nil
}

func (r *analyticsRepository) Close() error {
	return r.store.Close()
}
