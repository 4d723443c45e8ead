package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"soundarr/internal/domain"
)

func setupAnalyticsRepo(t *testing.T) domain.AnalyticsRepository {
	t.Helper()
	repo, err := NewAnalyticsRepository(filepath.Join(t.TempDir(), "analytics.db"))
	if err != nil {
		t.Fatalf("opening analytics store: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestAnalyticsRepository_InsertUpdateSummary(t *testing.T) {
	repo := setupAnalyticsRepo(t)
	ctx := context.Background()

	records := []*domain.PlayRecord{
		{ID: "req-1", GuildID: "guild-1", Search: "song a", RequestedAt: time.Now()},
		{ID: "req-2", GuildID: "guild-1", Search: "song b", RequestedAt: time.Now()},
		{ID: "req-3", GuildID: "guild-2", Search: "song c", RequestedAt: time.Now()},
	}
	for _, record := range records {
		if err := repo.Insert(ctx, record); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	if err := repo.Update(ctx, "req-1", func(r *domain.PlayRecord) {
		r.CacheHitPre = true
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := repo.Update(ctx, "req-2", func(r *domain.PlayRecord) {
		r.Downloaded = true
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := repo.Update(ctx, "req-3", func(r *domain.PlayRecord) {
		r.Failed = true
		r.FailureReason = "video_unavailable"
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	summary, err := repo.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.Requests != 3 {
		t.Errorf("Summary().Requests = %v, want 3", summary.Requests)
	}
	if summary.CacheHits != 1 {
		t.Errorf("Summary().CacheHits = %v, want 1", summary.CacheHits)
	}
	if summary.Downloads != 1 {
		t.Errorf("Summary().Downloads = %v, want 1", summary.Downloads)
	}
	if summary.Failures != 1 {
		t.Errorf("Summary().Failures = %v, want 1", summary.Failures)
	}
}

func TestAnalyticsRepository_UpdateMissing(t *testing.T) {
	repo := setupAnalyticsRepo(t)
	ctx := context.Background()

	err := repo.Update(ctx, "missing-id", func(*domain.PlayRecord) {})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}
