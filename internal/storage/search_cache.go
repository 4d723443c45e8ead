package storage

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"soundarr/internal/domain"
)

type searchCacheRepository struct {
	db *gorm.DB
}

func NewSearchCacheRepository(db *gorm.DB) domain.SearchCacheRepository {
	return &searchCacheRepository{db: db}
}

// Upsert stores the resolved URL for a search string, refreshing last_used
// on repeat hits.
func (r *searchCacheRepository) Upsert(ctx context.Context, search, url, title string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now()
	entry := domain.SearchCacheEntry{
		Search:    search,
		URL:       url,
		Title:     title,
		LastUsed:  now,
		CreatedAt: now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "search"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"url":       url,
			"title":     title,
			"last_used": now,
		}),
	}).Create(&entry).Error
	if err != nil {
		return wrapDBErr("upserting search cache entry", err)
	}
	return nil
}

func (r *searchCacheRepository) Check(ctx context.Context, search string) (*domain.SearchCacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry domain.SearchCacheEntry
	err := r.db.WithContext(ctx).Where("search = ?", search).First(&entry).Error
	if err != nil {
		return nil, wrapDBErr("checking search cache", err)
	}

	err = r.db.WithContext(ctx).
		Model(&domain.SearchCacheEntry{}).
		Where("id = ?", entry.ID).
		Update("last_used", time.Now()).Error
	if err != nil {
		return nil, wrapDBErr("refreshing search cache entry", err)
	}
	return &entry, nil
}

func (r *searchCacheRepository) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&domain.SearchCacheEntry{}).Count(&count).Error
	if err != nil {
		return 0, wrapDBErr("counting search cache entries", err)
	}
	return count, nil
}

// Evict removes the n oldest entries by last_used. Returns how many rows
// were deleted.
func (r *searchCacheRepository) Evict(ctx context.Context, n int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, nil
	}

	var victims []domain.SearchCacheEntry
	err := r.db.WithContext(ctx).Order("last_used ASC").Limit(n).Find(&victims).Error
	if err != nil {
		return 0, wrapDBErr("finding eviction candidates", err)
	}
	if len(victims) == 0 {
		return 0, nil
	}

	ids := make([]uint, len(victims))
	for i, v := range victims {
		ids[i] = v.ID
	}

	result := r.db.WithContext(ctx).Delete(&domain.SearchCacheEntry{}, ids)
	if result.Error != nil {
		return 0, wrapDBErr("evicting search cache entries", result.Error)
	}
	return result.RowsAffected, nil
}
