package downloader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"soundarr/internal/domain"
	"soundarr/internal/failure"
)

const shuffleSuffix = "shuffle"

// CacheLookup is the slice of the video cache the admission chain needs.
type CacheLookup interface {
	SearchExisting(ctx context.Context, extractor, videoID string) (*domain.CacheEntry, error)
}

// Client resolves media requests against the extraction backend. It owns
// the admission filter chain (duration ceiling, ban list, cache lookup) that
// runs before any network transfer, and feeds the failure tracker used for
// circuit-breaking.
type Client struct {
	backend     domain.MediaBackend
	resolver    domain.PlaylistResolver
	cacheRepo   CacheLookup
	downloadDir string
	maxDuration time.Duration
	banlist     map[string]struct{}

	trackerMu        sync.Mutex
	tracker          *failure.Tracker
	breakerThreshold int
}

type Config struct {
	DownloadDir      string
	MaxDuration      time.Duration
	Banlist          map[string]struct{}
	TrackerSize      int
	TrackerWindow    time.Duration
	BreakerThreshold int
}

func NewClient(backend domain.MediaBackend, resolver domain.PlaylistResolver, cacheRepo CacheLookup, cfg Config) *Client {
	return &Client{
		backend:          backend,
		resolver:         resolver,
		cacheRepo:        cacheRepo,
		downloadDir:      cfg.DownloadDir,
		maxDuration:      cfg.MaxDuration,
		banlist:          cfg.Banlist,
		tracker:          failure.NewTracker(cfg.TrackerSize, cfg.TrackerWindow),
		breakerThreshold: cfg.BreakerThreshold,
	}
}

// CheckSource classifies a query and expands it into one or more media
// requests, resolving third-party collections through the injected resolver.
// limit caps how many requests a single collection may produce.
func (c *Client) CheckSource(ctx context.Context, query, guildID, requesterID, requesterName string, limit int) ([]*domain.MediaRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	query, shuffle := stripShuffleSuffix(query)

	kind := Classify(query)
	base := domain.MediaRequest{
		GuildID:        guildID,
		RequesterID:    requesterID,
		RequesterName:  requesterName,
		OriginalSearch: query,
		Kind:           kind,
		Download:       true,
		Shuffle:        shuffle,
	}

	switch kind {
	case domain.KindSpotifyTrack:
		resolved, err := c.resolveTrack(ctx, query)
		if err != nil {
			return nil, err
		}
		req := base
		req.ID = uuid.NewString()
		req.Search = resolved
		return []*domain.MediaRequest{&req}, nil

	case domain.KindSpotifyAlbum, domain.KindSpotifyPlaylist, domain.KindPlaylist:
		searches, err := c.resolveCollection(ctx, query)
		if err != nil {
			return nil, err
		}
		if limit > 0 && len(searches) > limit {
			searches = searches[:limit]
		}
		requests := make([]*domain.MediaRequest, 0, len(searches))
		for _, search := range searches {
			req := base
			req.ID = uuid.NewString()
			req.Search = search
			requests = append(requests, &req)
		}
		return requests, nil

	default:
		req := base
		req.ID = uuid.NewString()
		req.Search = query
		return []*domain.MediaRequest{&req}, nil
	}
}

func (c *Client) resolveTrack(ctx context.Context, query string) (string, error) {
	if c.resolver == nil {
		return "", fmt.Errorf("resolving track %q: %w", query, domain.ErrInvalidSearchURL)
	}
	resolved, err := c.resolver.ResolveTrack(ctx, query)
	if err != nil {
		return "", fmt.Errorf("resolving track: %w", err)
	}
	return resolved, nil
}

func (c *Client) resolveCollection(ctx context.Context, query string) ([]string, error) {
	if c.resolver == nil {
		return nil, fmt.Errorf("resolving collection %q: %w", query, domain.ErrInvalidSearchURL)
	}
	searches, err := c.resolver.ResolveCollection(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("resolving collection: %w", err)
	}
	return searches, nil
}

// CreateSource resolves one request to a tagged outcome. The admission chain
// runs strictly in order: duration ceiling, ban list, cache lookup. A cache
// hit or an admission rejection is a non-error outcome; only backend and
// store failures return an error.
func (c *Client) CreateSource(ctx context.Context, req *domain.MediaRequest) (*domain.DownloadOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	probe, err := c.backend.ExtractInfo(ctx, req.Search, false)
	if err != nil {
		c.recordFailure(err)
		return nil, fmt.Errorf("probing source: %w", err)
	}
	req.Resolve(probe.WebpageURL)

	if c.maxDuration > 0 && time.Duration(probe.Duration)*time.Second > c.maxDuration {
		c.logRejected(req, "too_long")
		return domain.RejectedOutcome(domain.ErrVideoTooLong), nil
	}

	if _, banned := c.banlist[probe.WebpageURL]; banned {
		c.logRejected(req, "banned")
		return domain.RejectedOutcome(domain.ErrVideoBanned), nil
	}

	entry, err := c.cacheRepo.SearchExisting(ctx, probe.Extractor, probe.ID)
	if err == nil {
		return domain.CacheHitOutcome(entry), nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("checking cache: %w", err)
	}

	if !req.Download {
		return domain.FreshOutcome(c.normalize(probe, req)), nil
	}

	// a distinct sentinel so callers fail fast instead of retrying into a
	// breaker that is known open
	if c.circuitOpen() {
		return nil, fmt.Errorf("creating source: %w", domain.ErrCircuitOpen)
	}

	result, err := c.backend.ExtractInfo(ctx, req.Search, true)
	if err != nil {
		c.recordFailure(err)
		return nil, fmt.Errorf("downloading source: %w", err)
	}

	if result.FilePath != "" {
		moved, err := c.relocate(result.FilePath)
		if err != nil {
			return nil, fmt.Errorf("relocating artifact: %w", err)
		}
		result.FilePath = moved
	}

	c.recordSuccess()
	return domain.FreshOutcome(c.normalize(result, req)), nil
}

// normalize keeps only the metadata fields the pipeline needs.
func (c *Client) normalize(result *domain.ExtractResult, req *domain.MediaRequest) *domain.SourceDownload {
	return &domain.SourceDownload{
		Extractor: result.Extractor,
		VideoID:   result.ID,
		URL:       result.WebpageURL,
		Title:     result.Title,
		Uploader:  result.Uploader,
		Duration:  result.Duration,
		FilePath:  result.FilePath,
		Request:   req,
	}
}

// relocate moves an artifact from the backend's scratch location into the
// managed download directory, removing the scratch dir afterwards. Rename
// first, copy as the cross-device fallback; a failed copy never leaves a
// partial file behind.
func (c *Client) relocate(scratchPath string) (string, error) {
	dest := filepath.Join(c.downloadDir, filepath.Base(scratchPath))

	if err := os.Rename(scratchPath, dest); err == nil {
		os.RemoveAll(filepath.Dir(scratchPath))
		return dest, nil
	}

	if err := copyFile(scratchPath, dest); err != nil {
		os.Remove(dest)
		return "", err
	}
	os.RemoveAll(filepath.Dir(scratchPath))
	return dest, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating destination file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying file: %w", err)
	}
	return out.Sync()
}

func (c *Client) recordFailure(err error) {
	var downloadErr *domain.DownloadError
	kind := "unknown"
	if errors.As(err, &downloadErr) {
		kind = downloadErr.Kind.String()
	}

	c.trackerMu.Lock()
	defer c.trackerMu.Unlock()
	c.tracker.Record(failure.Status{OK: false, Kind: kind})
}

func (c *Client) recordSuccess() {
	c.trackerMu.Lock()
	defer c.trackerMu.Unlock()
	c.tracker.Record(failure.Status{OK: true})
}

func (c *Client) circuitOpen() bool {
	if c.breakerThreshold <= 0 {
		return false
	}
	c.trackerMu.Lock()
	defer c.trackerMu.Unlock()
	return c.tracker.Saturated(c.breakerThreshold)
}

// FailureSummary exposes the tracker state for the status surface.
func (c *Client) FailureSummary() failure.Summary {
	c.trackerMu.Lock()
	defer c.trackerMu.Unlock()
	return c.tracker.Summary()
}

func (c *Client) logRejected(req *domain.MediaRequest, reason string) {
	log.WithFields(log.Fields{
		"guild":  req.GuildID,
		"search": req.Search,
		"reason": reason,
	}).Info("request rejected by admission filter")
}

// Classify maps a query onto its search kind.
func Classify(query string) domain.SearchKind {
	parsed, err := url.Parse(query)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return domain.KindSearch
	}

	host := strings.ToLower(parsed.Host)
	if strings.Contains(host, "spotify.com") {
		path := parsed.Path
		switch {
		case strings.Contains(path, "/playlist/"):
			return domain.KindSpotifyPlaylist
		case strings.Contains(path, "/album/"):
			return domain.KindSpotifyAlbum
		case strings.Contains(path, "/track/"):
			return domain.KindSpotifyTrack
		}
		return domain.KindSearch
	}

	if parsed.Query().Get("list") != "" {
		return domain.KindPlaylist
	}
	return domain.KindDirectURL
}

func stripShuffleSuffix(query string) (string, bool) {
	fields := strings.Fields(query)
	if len(fields) < 2 {
		return query, false
	}
	if !strings.EqualFold(fields[len(fields)-1], shuffleSuffix) {
		return query, false
	}
	// only URL queries carry the shuffle suffix; a plain search ending in
	// the word is a search for that word
	head := strings.Join(fields[:len(fields)-1], " ")
	if Classify(head) == domain.KindSearch {
		return query, false
	}
	return head, true
}

// LoadBanlist reads one canonical URL per line; a missing file is an empty
// list.
func LoadBanlist(path string) (map[string]struct{}, error) {
	banlist := make(map[string]struct{})

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return banlist, nil
		}
		return nil, fmt.Errorf("opening banlist: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		banlist[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading banlist: %w", err)
	}
	return banlist, nil
}
