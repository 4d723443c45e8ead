package service

import (
	"context"
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"soundarr/internal/config"
	"soundarr/internal/domain"
	"soundarr/internal/retry"
)

// BackupService mirrors cache artifacts into durable object storage so a
// wiped cache directory can be repopulated without re-downloading.
type BackupService struct {
	cfg   *config.Config
	repo  domain.VideoCacheRepository
	store domain.ObjectStore
}

func NewBackupService(cfg *config.Config, repo domain.VideoCacheRepository, store domain.ObjectStore) *BackupService {
	return &BackupService{cfg: cfg, repo: repo, store: store}
}

func (s *BackupService) uploadRetryOpts() retry.Options {
	return retry.Options{
		MaxRetries: s.cfg.MaxRetries,
		Retryable:  []error{&domain.ObjectStorageError{}},
	}
}

// Run uploads every cache entry that has no backup record yet. Per-entry
// failures are logged and skipped; the batch always runs to completion.
func (s *BackupService) Run(ctx context.Context) error {
	entries, err := s.repo.WithoutBackup(ctx)
	if err != nil {
		return fmt.Errorf("listing unbacked entries: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	var uploaded int
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.backupEntry(ctx, &entries[i]); err != nil {
			log.WithFields(log.Fields{
				"url":   entries[i].URL,
				"error": err,
			}).Warn("failed to back up cache entry")
			continue
		}
		uploaded++
	}

	log.WithFields(log.Fields{
		"uploaded": uploaded,
		"total":    len(entries),
	}).Info("backup pass finished")
	return nil
}

func (s *BackupService) backupEntry(ctx context.Context, entry *domain.CacheEntry) error {
	key := filepath.Base(entry.BasePath)

	err := retry.DoContext(ctx, func() error {
		return s.store.Upload(ctx, s.cfg.S3Bucket, entry.BasePath, key)
	}, s.uploadRetryOpts())
	if err != nil {
		return fmt.Errorf("uploading artifact: %w", err)
	}

	if err := s.repo.CreateBackup(ctx, entry.ID, key); err != nil {
		return fmt.Errorf("recording backup: %w", err)
	}

	log.WithFields(log.Fields{
		"url": entry.URL,
		"key": key,
	}).Info("cache entry backed up")
	return nil
}

// Restore fetches a backed-up artifact into the entry's cache path.
func (s *BackupService) Restore(ctx context.Context, entry *domain.CacheEntry) error {
	key := filepath.Base(entry.BasePath)

	err := retry.DoContext(ctx, func() error {
		return s.store.Download(ctx, s.cfg.S3Bucket, key, entry.BasePath)
	}, s.uploadRetryOpts())
	if err != nil {
		return fmt.Errorf("restoring artifact: %w", err)
	}

	log.WithFields(log.Fields{
		"url": entry.URL,
		"key": key,
	}).Info("cache entry restored from backup")
	return nil
}
