package domain

import "time"

// CacheEntry is one downloaded media artifact tracked by the video cache.
// The canonical URL is the deduplication key.
type CacheEntry struct {
	ID               uint   `gorm:"primaryKey"`
	Extractor        string `gorm:"index:idx_extractor_video"`
	VideoID          string `gorm:"index:idx_extractor_video"`
	URL              string `gorm:"uniqueIndex"`
	Title            string
	Uploader         string
	Duration         int64
	BasePath         string
	Count            int64
	LastUsed         time.Time
	CreatedAt        time.Time
	ReadyForDeletion bool
}

// GuildVideo associates a cache entry with a guild that requested it, so a
// shared artifact is downloaded once across guilds.
type GuildVideo struct {
	ID           uint   `gorm:"primaryKey"`
	GuildID      string `gorm:"uniqueIndex:idx_guild_entry"`
	CacheEntryID uint   `gorm:"uniqueIndex:idx_guild_entry"`
	CreatedAt    time.Time
}

// BackupRecord marks a cache entry as uploaded to durable object storage.
// Its lifecycle is independent of the cache row.
type BackupRecord struct {
	ID           uint `gorm:"primaryKey"`
	CacheEntryID uint `gorm:"uniqueIndex"`
	ObjectKey    string
	CreatedAt    time.Time
}

// SearchCacheEntry maps an original fuzzy search string to its resolved URL.
type SearchCacheEntry struct {
	ID        uint   `gorm:"primaryKey"`
	Search    string `gorm:"uniqueIndex"`
	URL       string
	Title     string
	LastUsed  time.Time
	CreatedAt time.Time
}

// SourceDownload is the normalized result of a backend extraction. Only the
// metadata the pipeline needs, never the backend's full payload.
type SourceDownload struct {
	Extractor string
	VideoID   string
	URL       string
	Title     string
	Uploader  string
	Duration  int64
	FilePath  string
	Request   *MediaRequest
}

// OutcomeKind tags the result of a CreateSource call.
type OutcomeKind int

const (
	OutcomeFresh OutcomeKind = iota
	OutcomeCacheHit
	OutcomeRejected
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFresh:
		return "fresh"
	case OutcomeCacheHit:
		return "cache_hit"
	case OutcomeRejected:
		return "rejected"
	}
	return "unknown"
}

// DownloadOutcome is the tagged result of resolving a media request: a fresh
// download, a redirect to an existing cache entry, or an admission rejection.
type DownloadOutcome struct {
	Kind     OutcomeKind
	Download *SourceDownload
	Entry    *CacheEntry
	Reason   error
}

func FreshOutcome(download *SourceDownload) *DownloadOutcome {
	return &DownloadOutcome{Kind: OutcomeFresh, Download: download}
}

func CacheHitOutcome(entry *CacheEntry) *DownloadOutcome {
	return &DownloadOutcome{Kind: OutcomeCacheHit, Entry: entry}
}

func RejectedOutcome(reason error) *DownloadOutcome {
	return &DownloadOutcome{Kind: OutcomeRejected, Reason: reason}
}

// PlayRecord is one analytics sample for a media request, keyed by an opaque
// id. Best-effort telemetry, never on the pipeline's critical path.
type PlayRecord struct {
	ID            string
	GuildID       string `boltholdIndex:"GuildID"`
	RequesterID   string
	Search        string
	Kind          string
	CacheHitPre   bool
	CacheHitPost  bool
	Downloaded    bool
	Failed        bool
	FailureReason string
	RequestedAt   time.Time
	CompletedAt   time.Time
}

// AnalyticsSummary aggregates play records for the status surface.
type AnalyticsSummary struct {
	Requests  int64
	CacheHits int64
	Downloads int64
	Failures  int64
}
