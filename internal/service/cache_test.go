package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"soundarr/internal/config"
	"soundarr/internal/domain"
	"soundarr/internal/storage"
)

func setupCacheService(t *testing.T) (*CacheService, domain.VideoCacheRepository, *config.Config) {
	t.Helper()

	dataDir := t.TempDir()
	cfg := &config.Config{
		DataDir:         dataDir,
		MaxCacheEntries: 3,
		MaxRetries:      1,
	}
	if err := os.MkdirAll(cfg.CacheDir(), 0o755); err != nil {
		t.Fatalf("creating cache dir: %v", err)
	}

	db, err := storage.Open(cfg.DBPath())
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}

	repo := storage.NewVideoCacheRepository(db)
	return NewCacheService(cfg, repo), repo, cfg
}

func cacheFile(t *testing.T, cfg *config.Config, name string) string {
	t.Helper()
	path := filepath.Join(cfg.CacheDir(), name)
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("writing cache file: %v", err)
	}
	return path
}

func seedEntry(t *testing.T, svc *CacheService, cfg *config.Config, videoID, guildID string) *domain.CacheEntry {
	t.Helper()
	path := cacheFile(t, cfg, "youtube-"+videoID+".opus")
	entry, err := svc.IterateFile(context.Background(), &domain.SourceDownload{
		Extractor: "youtube",
		VideoID:   videoID,
		URL:       "https://youtube.com/watch?v=" + videoID,
		Title:     "title " + videoID,
		FilePath:  path,
	}, guildID)
	if err != nil {
		t.Fatalf("seeding entry %s: %v", videoID, err)
	}
	return entry
}

func TestCacheService_IterateFileIdempotent(t *testing.T) {
	svc, repo, cfg := setupCacheService(t)
	ctx := context.Background()

	first := seedEntry(t, svc, cfg, "abc", "guild1")
	second, err := svc.Touch(ctx, first, "guild2")
	if err != nil {
		t.Fatalf("Touch() error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("Touch() created a new row: id %d != %d", second.ID, first.ID)
	}
	if second.Count != 2 {
		t.Errorf("Count = %d, want 2", second.Count)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}
}

func TestCacheService_EvictionPass(t *testing.T) {
	svc, repo, cfg := setupCacheService(t)
	ctx := context.Background()

	entries := make([]*domain.CacheEntry, 0, 5)
	for _, id := range []string{"v1", "v2", "v3", "v4", "v5"} {
		entries = append(entries, seedEntry(t, svc, cfg, id, "guild1"))
		time.Sleep(2 * time.Millisecond)
	}

	if err := svc.EvictionPass(ctx); err != nil {
		t.Fatalf("EvictionPass() error = %v", err)
	}

	marked, err := repo.MarkedForDeletion(ctx)
	if err != nil {
		t.Fatalf("MarkedForDeletion() error = %v", err)
	}
	if len(marked) != 2 {
		t.Fatalf("marked %d entries, want 2", len(marked))
	}

	markedIDs := map[uint]bool{marked[0].ID: true, marked[1].ID: true}
	if !markedIDs[entries[0].ID] || !markedIDs[entries[1].ID] {
		t.Errorf("marked ids %v, want the two oldest %d and %d", markedIDs, entries[0].ID, entries[1].ID)
	}
}

func TestCacheService_EvictionPassUnderLimit(t *testing.T) {
	svc, repo, cfg := setupCacheService(t)
	ctx := context.Background()

	seedEntry(t, svc, cfg, "only", "guild1")

	if err := svc.EvictionPass(ctx); err != nil {
		t.Fatalf("EvictionPass() error = %v", err)
	}

	marked, err := repo.MarkedForDeletion(ctx)
	if err != nil {
		t.Fatalf("MarkedForDeletion() error = %v", err)
	}
	if len(marked) != 0 {
		t.Errorf("marked %d entries under the limit, want 0", len(marked))
	}
}

func TestCacheService_PurgeMarked(t *testing.T) {
	svc, repo, cfg := setupCacheService(t)
	ctx := context.Background()

	victim := seedEntry(t, svc, cfg, "gone", "guild1")
	survivor := seedEntry(t, svc, cfg, "kept", "guild1")

	if err := repo.MarkReadyForDeletion(ctx, []uint{victim.ID}); err != nil {
		t.Fatalf("MarkReadyForDeletion() error = %v", err)
	}

	if err := svc.PurgeMarked(ctx); err != nil {
		t.Fatalf("PurgeMarked() error = %v", err)
	}

	if _, err := os.Stat(victim.BasePath); !os.IsNotExist(err) {
		t.Errorf("victim file still exists at %s", victim.BasePath)
	}
	if _, err := repo.GetByURL(ctx, victim.URL); err == nil {
		t.Error("victim row still present after purge")
	}
	if _, err := repo.GetByURL(ctx, survivor.URL); err != nil {
		t.Errorf("survivor row lost: %v", err)
	}
	if _, err := os.Stat(survivor.BasePath); err != nil {
		t.Errorf("survivor file lost: %v", err)
	}
}

func TestCacheService_PurgeMarkedToleratesMissingFile(t *testing.T) {
	svc, repo, cfg := setupCacheService(t)
	ctx := context.Background()

	victim := seedEntry(t, svc, cfg, "vanished", "guild1")
	if err := os.Remove(victim.BasePath); err != nil {
		t.Fatalf("removing file: %v", err)
	}
	if err := repo.MarkReadyForDeletion(ctx, []uint{victim.ID}); err != nil {
		t.Fatalf("MarkReadyForDeletion() error = %v", err)
	}

	if err := svc.PurgeMarked(ctx); err != nil {
		t.Fatalf("PurgeMarked() error = %v", err)
	}
	if _, err := repo.GetByURL(ctx, victim.URL); err == nil {
		t.Error("row still present after purging entry with missing file")
	}
}

func TestCacheService_Verify(t *testing.T) {
	svc, repo, cfg := setupCacheService(t)
	ctx := context.Background()

	healthy := seedEntry(t, svc, cfg, "healthy", "guild1")
	orphanRow := seedEntry(t, svc, cfg, "orphanrow", "guild1")
	if err := os.Remove(orphanRow.BasePath); err != nil {
		t.Fatalf("removing file: %v", err)
	}

	strayFile := cacheFile(t, cfg, "nobody-owns-this.opus")
	strayDir := filepath.Join(cfg.CacheDir(), "leftover")
	if err := os.MkdirAll(strayDir, 0o755); err != nil {
		t.Fatalf("creating stray dir: %v", err)
	}

	if err := svc.Verify(ctx); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if _, err := repo.GetByURL(ctx, orphanRow.URL); err == nil {
		t.Error("row without a file survived verification")
	}
	if _, err := os.Stat(strayFile); !os.IsNotExist(err) {
		t.Error("untracked file survived verification")
	}
	if _, err := os.Stat(strayDir); !os.IsNotExist(err) {
		t.Error("stray directory survived verification")
	}
	if _, err := repo.GetByURL(ctx, healthy.URL); err != nil {
		t.Errorf("healthy row lost: %v", err)
	}
	if _, err := os.Stat(healthy.BasePath); err != nil {
		t.Errorf("healthy file lost: %v", err)
	}
}
