package service

import (
	"context"
	"errors"
	"testing"

	"soundarr/internal/domain"
)

type fakeObjectStore struct {
	uploads    []string
	downloads  []string
	failKeys   map[string]int
	downloaded map[string]string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		failKeys:   make(map[string]int),
		downloaded: make(map[string]string),
	}
}

func (f *fakeObjectStore) Upload(_ context.Context, _, _, key string) error {
	if remaining := f.failKeys[key]; remaining > 0 {
		f.failKeys[key]--
		return &domain.ObjectStorageError{Op: "upload", Key: key, Err: errors.New("connection reset")}
	}
	f.uploads = append(f.uploads, key)
	return nil
}

func (f *fakeObjectStore) Download(_ context.Context, _, key, path string) error {
	if remaining := f.failKeys[key]; remaining > 0 {
		f.failKeys[key]--
		return &domain.ObjectStorageError{Op: "download", Key: key, Err: errors.New("connection reset")}
	}
	f.downloads = append(f.downloads, key)
	f.downloaded[key] = path
	return nil
}

func TestBackupService_Run(t *testing.T) {
	svc, repo, cfg := setupCacheService(t)
	cfg.S3Bucket = "soundarr-backup"
	ctx := context.Background()

	seedEntry(t, svc, cfg, "b1", "guild1")
	seedEntry(t, svc, cfg, "b2", "guild1")

	store := newFakeObjectStore()
	backup := NewBackupService(cfg, repo, store)

	if err := backup.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.uploads) != 2 {
		t.Fatalf("uploaded %d artifacts, want 2", len(store.uploads))
	}

	remaining, err := repo.WithoutBackup(ctx)
	if err != nil {
		t.Fatalf("WithoutBackup() error = %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("%d entries still unbacked after run, want 0", len(remaining))
	}

	// a second run finds nothing to do
	if err := backup.Run(ctx); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if len(store.uploads) != 2 {
		t.Errorf("second run uploaded again: %d total uploads, want 2", len(store.uploads))
	}
}

func TestBackupService_RunRetriesTransientFailures(t *testing.T) {
	svc, repo, cfg := setupCacheService(t)
	cfg.S3Bucket = "soundarr-backup"
	cfg.MaxRetries = 2
	ctx := context.Background()

	entry := seedEntry(t, svc, cfg, "flaky", "guild1")

	store := newFakeObjectStore()
	store.failKeys["youtube-flaky.opus"] = 1

	backup := NewBackupService(cfg, repo, store)
	if err := backup.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.uploads) != 1 {
		t.Fatalf("uploaded %d artifacts, want 1", len(store.uploads))
	}

	remaining, err := repo.WithoutBackup(ctx)
	if err != nil {
		t.Fatalf("WithoutBackup() error = %v", err)
	}
	for _, r := range remaining {
		if r.ID == entry.ID {
			t.Error("flaky entry still unbacked after retry")
		}
	}
}

func TestBackupService_RunSkipsPersistentFailures(t *testing.T) {
	svc, repo, cfg := setupCacheService(t)
	cfg.S3Bucket = "soundarr-backup"
	cfg.MaxRetries = 0
	ctx := context.Background()

	broken := seedEntry(t, svc, cfg, "broken", "guild1")
	seedEntry(t, svc, cfg, "fine", "guild1")

	store := newFakeObjectStore()
	store.failKeys["youtube-broken.opus"] = 100

	backup := NewBackupService(cfg, repo, store)
	if err := backup.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(store.uploads) != 1 {
		t.Fatalf("uploaded %d artifacts, want 1", len(store.uploads))
	}

	remaining, err := repo.WithoutBackup(ctx)
	if err != nil {
		t.Fatalf("WithoutBackup() error = %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != broken.ID {
		t.Errorf("unbacked entries = %v, want only the broken one", remaining)
	}
}

func TestBackupService_Restore(t *testing.T) {
	svc, repo, cfg := setupCacheService(t)
	cfg.S3Bucket = "soundarr-backup"
	ctx := context.Background()

	entry := seedEntry(t, svc, cfg, "restored", "guild1")

	store := newFakeObjectStore()
	backup := NewBackupService(cfg, repo, store)

	if err := backup.Restore(ctx, entry); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if got := store.downloaded["youtube-restored.opus"]; got != entry.BasePath {
		t.Errorf("restored to %q, want %q", got, entry.BasePath)
	}
}
