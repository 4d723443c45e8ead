package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"soundarr/internal/config"
	"soundarr/internal/domain"
	"soundarr/internal/retry"
)

// CacheService owns the managed cache directory and the two-phase eviction
// lifecycle: entries are first marked ready_for_deletion, then purged, so an
// in-flight reader is never raced by removal.
type CacheService struct {
	cfg  *config.Config
	repo domain.VideoCacheRepository
}

func NewCacheService(cfg *config.Config, repo domain.VideoCacheRepository) *CacheService {
	return &CacheService{cfg: cfg, repo: repo}
}

func (s *CacheService) storeRetryOpts() retry.Options {
	return retry.Options{
		MaxRetries: s.cfg.MaxRetries,
		Retryable:  []error{domain.ErrStoreBusy},
	}
}

// IterateFile folds a completed download into the cache: first sight inserts
// the row, repeats bump count and refresh last_used.
func (s *CacheService) IterateFile(ctx context.Context, download *domain.SourceDownload, guildID string) (*domain.CacheEntry, error) {
	var entry *domain.CacheEntry
	err := retry.DoContext(ctx, func() error {
		var err error
		entry, err = s.repo.Upsert(ctx, download, guildID)
		return err
	}, s.storeRetryOpts())
	if err != nil {
		return nil, fmt.Errorf("iterating cache file: %w", err)
	}
	return entry, nil
}

// Touch registers a cache hit on an existing entry.
func (s *CacheService) Touch(ctx context.Context, entry *domain.CacheEntry, guildID string) (*domain.CacheEntry, error) {
	download := &domain.SourceDownload{
		Extractor: entry.Extractor,
		VideoID:   entry.VideoID,
		URL:       entry.URL,
		Title:     entry.Title,
		Uploader:  entry.Uploader,
		Duration:  entry.Duration,
		FilePath:  entry.BasePath,
	}
	return s.IterateFile(ctx, download, guildID)
}

func (s *CacheService) CheckCache(ctx context.Context, url string) (*domain.CacheEntry, error) {
	return s.repo.GetByURL(ctx, url)
}

// EvictionPass marks the count-max oldest entries ready for deletion.
// No-op while the cache is under its limit.
func (s *CacheService) EvictionPass(ctx context.Context) error {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting cache: %w", err)
	}

	excess := int(count) - s.cfg.MaxCacheEntries
	if excess <= 0 {
		return nil
	}

	victims, err := s.repo.OldestUsed(ctx, excess)
	if err != nil {
		return fmt.Errorf("selecting eviction victims: %w", err)
	}

	ids := make([]uint, len(victims))
	for i, victim := range victims {
		ids[i] = victim.ID
	}

	err = retry.DoContext(ctx, func() error {
		return s.repo.MarkReadyForDeletion(ctx, ids)
	}, s.storeRetryOpts())
	if err != nil {
		return fmt.Errorf("marking eviction victims: %w", err)
	}

	log.WithField("count", len(ids)).Info("cache entries marked for eviction")
	return nil
}

// PurgeMarked physically deletes every entry marked ready_for_deletion.
// Failures are logged per entry and never abort the batch.
func (s *CacheService) PurgeMarked(ctx context.Context) error {
	entries, err := s.repo.MarkedForDeletion(ctx)
	if err != nil {
		return fmt.Errorf("listing marked entries: %w", err)
	}

	for i := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.purgeEntry(ctx, &entries[i]); err != nil {
			s.logPurgeFailure(&entries[i], err)
		}
	}
	return nil
}

// purgeEntry runs the two-phase delete: unlink the file (absence is fine),
// drop guild associations, drop the row. Each step retries store busyness
// independently.
func (s *CacheService) purgeEntry(ctx context.Context, entry *domain.CacheEntry) error {
	if entry.BasePath != "" {
		if err := os.Remove(entry.BasePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing cache file: %w", err)
		}
	}

	err := retry.DoContext(ctx, func() error {
		return s.repo.DeleteAssociations(ctx, entry.ID)
	}, s.storeRetryOpts())
	if err != nil {
		return fmt.Errorf("removing guild associations: %w", err)
	}

	err = retry.DoContext(ctx, func() error {
		return s.repo.DeleteEntry(ctx, entry.ID)
	}, s.storeRetryOpts())
	if err != nil {
		return fmt.Errorf("removing cache row: %w", err)
	}

	log.WithFields(log.Fields{
		"url":  entry.URL,
		"path": entry.BasePath,
	}).Info("cache entry purged")
	return nil
}

// Verify reconciles the database against the cache directory: rows whose
// file vanished are purged, files and stray directories no row tracks are
// removed. One bad entry never stops the rest of the pass.
func (s *CacheService) Verify(ctx context.Context) error {
	entries, err := s.repo.All(ctx)
	if err != nil {
		return fmt.Errorf("listing cache entries: %w", err)
	}

	tracked := make(map[string]struct{}, len(entries))
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry := &entries[i]
		if _, statErr := os.Stat(entry.BasePath); statErr != nil {
			if err := s.purgeEntry(ctx, entry); err != nil {
				s.logPurgeFailure(entry, err)
			}
			continue
		}
		tracked[filepath.Clean(entry.BasePath)] = struct{}{}
	}

	return s.removeStrays(ctx, tracked)
}

func (s *CacheService) removeStrays(ctx context.Context, tracked map[string]struct{}) error {
	dirEntries, err := os.ReadDir(s.cfg.CacheDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading cache dir: %w", err)
	}

	for _, dirEntry := range dirEntries {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(s.cfg.CacheDir(), dirEntry.Name())
		if dirEntry.IsDir() {
			// the cache dir holds flat files only; a subdirectory is
			// leftover from an interrupted download
			if err := os.RemoveAll(path); err != nil {
				log.WithFields(log.Fields{"path": path, "error": err}).Warn("failed to remove stray directory")
			}
			continue
		}
		if _, ok := tracked[filepath.Clean(path)]; ok {
			continue
		}
		if err := os.Remove(path); err != nil {
			log.WithFields(log.Fields{"path": path, "error": err}).Warn("failed to remove stray file")
			continue
		}
		log.WithField("path", path).Info("stray cache file removed")
	}
	return nil
}

func (s *CacheService) logPurgeFailure(entry *domain.CacheEntry, err error) {
	log.WithFields(log.Fields{
		"url":   entry.URL,
		"path":  entry.BasePath,
		"error": err,
	}).Warn("failed to purge cache entry")
}
