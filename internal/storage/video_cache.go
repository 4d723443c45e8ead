package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"soundarr/internal/domain"
)

type videoCacheRepository struct {
	db *gorm.DB
}

func NewVideoCacheRepository(db *gorm.DB) domain.VideoCacheRepository {
	return &videoCacheRepository{db: db}
}

// Upsert records a successful download. An existing row for the canonical
// URL gets its count bumped, last_used refreshed and deletion mark cleared;
// a new URL inserts with count 1. The unique constraint on url makes
// concurrent duplicate calls converge on one row (at-least-once count
// semantics).
func (r *videoCacheRepository) Upsert(ctx context.Context, download *domain.SourceDownload, guildID string) (*domain.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now()
	entry := domain.CacheEntry{
		Extractor: download.Extractor,
		VideoID:   download.VideoID,
		URL:       download.URL,
		Title:     download.Title,
		Uploader:  download.Uploader,
		Duration:  download.Duration,
		BasePath:  download.FilePath,
		Count:     1,
		LastUsed:  now,
		CreatedAt: now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "url"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":              gorm.Expr("count + 1"),
			"last_used":          now,
			"ready_for_deletion": false,
			"title":              download.Title,
			"uploader":           download.Uploader,
			"base_path":          download.FilePath,
		}),
	}).Create(&entry).Error
	if err != nil {
		return nil, wrapDBErr("upserting cache entry", err)
	}

	stored, err := r.GetByURL(ctx, download.URL)
	if err != nil {
		return nil, err
	}

	if guildID != "" {
		if err := r.EnsureGuild(ctx, stored.ID, guildID); err != nil {
			return nil, err
		}
	}
	return stored, nil
}

func (r *videoCacheRepository) GetByURL(ctx context.Context, url string) (*domain.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry domain.CacheEntry
	err := r.db.WithContext(ctx).Where("url = ?", url).First(&entry).Error
	if err != nil {
		return nil, wrapDBErr("getting cache entry by url", err)
	}
	return &entry, nil
}

// SearchExisting looks up an artifact by extractor and upstream id. The
// fallback LIKE match on base path tolerates backend naming conventions for
// rows migrated from older layouts.
func (r *videoCacheRepository) SearchExisting(ctx context.Context, extractor, videoID string) (*domain.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry domain.CacheEntry
	err := r.db.WithContext(ctx).
		Where("extractor = ? AND video_id = ?", extractor, videoID).
		First(&entry).Error
	if err == nil {
		return &entry, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, wrapDBErr("searching cache entry", err)
	}

	pattern := fmt.Sprintf("%%%s-%s%%", extractor, videoID)
	err = r.db.WithContext(ctx).Where("base_path LIKE ?", pattern).First(&entry).Error
	if err != nil {
		return nil, wrapDBErr("searching cache entry by path", err)
	}
	return &entry, nil
}

func (r *videoCacheRepository) EnsureGuild(ctx context.Context, entryID uint, guildID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	assoc := domain.GuildVideo{GuildID: guildID, CacheEntryID: entryID, CreatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&assoc).Error
	if err != nil {
		return wrapDBErr("ensuring guild association", err)
	}
	return nil
}

func (r *videoCacheRepository) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&domain.CacheEntry{}).Count(&count).Error
	if err != nil {
		return 0, wrapDBErr("counting cache entries", err)
	}
	return count, nil
}

func (r *videoCacheRepository) OldestUsed(ctx context.Context, n int) ([]domain.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []domain.CacheEntry
	err := r.db.WithContext(ctx).
		Order("last_used ASC").
		Limit(n).
		Find(&entries).Error
	if err != nil {
		return nil, wrapDBErr("finding oldest cache entries", err)
	}
	return entries, nil
}

func (r *videoCacheRepository) MarkReadyForDeletion(ctx context.Context, ids []uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).
		Model(&domain.CacheEntry{}).
		Where("id IN ?", ids).
		Update("ready_for_deletion", true).Error
	if err != nil {
		return wrapDBErr("marking entries for deletion", err)
	}
	return nil
}

func (r *videoCacheRepository) MarkedForDeletion(ctx context.Context) ([]domain.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []domain.CacheEntry
	err := r.db.WithContext(ctx).Where("ready_for_deletion = ?", true).Find(&entries).Error
	if err != nil {
		return nil, wrapDBErr("finding entries marked for deletion", err)
	}
	return entries, nil
}

func (r *videoCacheRepository) DeleteAssociations(ctx context.Context, entryID uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := r.db.WithContext(ctx).
		Where("cache_entry_id = ?", entryID).
		Delete(&domain.GuildVideo{}).Error
	if err != nil {
		return wrapDBErr("deleting guild associations", err)
	}
	return nil
}

func (r *videoCacheRepository) DeleteEntry(ctx context.Context, entryID uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := r.db.WithContext(ctx).Delete(&domain.CacheEntry{}, entryID).Error
	if err != nil {
		return wrapDBErr("deleting cache entry", err)
	}
	return nil
}

func (r *videoCacheRepository) All(ctx context.Context) ([]domain.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []domain.CacheEntry
	err := r.db.WithContext(ctx).Find(&entries).Error
	if err != nil {
		return nil, wrapDBErr("listing cache entries", err)
	}
	return entries, nil
}

// WithoutBackup returns cache rows that have no backup record yet.
func (r *videoCacheRepository) WithoutBackup(ctx context.Context) ([]domain.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []domain.CacheEntry
	err := r.db.WithContext(ctx).
		Where("id NOT IN (?)", r.db.Model(&domain.BackupRecord{}).Select("cache_entry_id")).
		Find(&entries).Error
	if err != nil {
		return nil, wrapDBErr("finding entries without backup", err)
	}
	return entries, nil
}

func (r *videoCacheRepository) CreateBackup(ctx context.Context, entryID uint, objectKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	record := domain.BackupRecord{CacheEntryID: entryID, ObjectKey: objectKey, CreatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
	if err != nil {
		return wrapDBErr("creating backup record", err)
	}
	return nil
}

func (r *videoCacheRepository) DeleteBackup(ctx context.Context, entryID uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := r.db.WithContext(ctx).
		Where("cache_entry_id = ?", entryID).
		Delete(&domain.BackupRecord{}).Error
	if err != nil {
		return wrapDBErr("deleting backup record", err)
	}
	return nil
}
