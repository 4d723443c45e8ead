package domain

import "context"

// VideoCacheRepository is the relational store behind the video cache.
type VideoCacheRepository interface {
	Upsert(ctx context.Context, download *SourceDownload, guildID string) (*CacheEntry, error)
	GetByURL(ctx context.Context, url string) (*CacheEntry, error)
	SearchExisting(ctx context.Context, extractor, videoID string) (*CacheEntry, error)
	EnsureGuild(ctx context.Context, entryID uint, guildID string) error
	Count(ctx context.Context) (int64, error)
	OldestUsed(ctx context.Context, n int) ([]CacheEntry, error)
	MarkReadyForDeletion(ctx context.Context, ids []uint) error
	MarkedForDeletion(ctx context.Context) ([]CacheEntry, error)
	DeleteAssociations(ctx context.Context, entryID uint) error
	DeleteEntry(ctx context.Context, entryID uint) error
	All(ctx context.Context) ([]CacheEntry, error)
	WithoutBackup(ctx context.Context) ([]CacheEntry, error)
	CreateBackup(ctx context.Context, entryID uint, objectKey string) error
	DeleteBackup(ctx context.Context, entryID uint) error
}

// SearchCacheRepository stores resolved search strings.
type SearchCacheRepository interface {
	Upsert(ctx context.Context, search, url, title string) error
	Check(ctx context.Context, search string) (*SearchCacheEntry, error)
	Count(ctx context.Context) (int64, error)
	Evict(ctx context.Context, n int) (int64, error)
}

// AnalyticsRepository stores play records. Callers treat every operation as
// best effort.
type AnalyticsRepository interface {
	Insert(ctx context.Context, record *PlayRecord) error
	Update(ctx context.Context, id string, fn func(*PlayRecord)) error
	Summary(ctx context.Context) (*AnalyticsSummary, error)
	Close() error
}
