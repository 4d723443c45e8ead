package domain

import "context"

// ExtractResult is the structured result of a backend extraction call.
type ExtractResult struct {
	Extractor  string
	ID         string
	Title      string
	Uploader   string
	Duration   int64
	WebpageURL string
	FilePath   string
}

// MediaBackend is the narrow contract with the media extraction backend.
// With download false only metadata is fetched; with download true the
// artifact lands in the backend's scratch location.
type MediaBackend interface {
	ExtractInfo(ctx context.Context, query string, download bool) (*ExtractResult, error)
}

// PlaylistResolver expands third-party playlist, album and track URLs into
// concrete search strings. Implementations require credentials; a nil
// resolver means the source type is unsupported.
type PlaylistResolver interface {
	ResolveTrack(ctx context.Context, url string) (string, error)
	ResolveCollection(ctx context.Context, url string) ([]string, error)
}

// ObjectStore is the contract with durable object storage for cache backups.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, path, key string) error
	Download(ctx context.Context, bucket, key, path string) error
}
