package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"soundarr/internal/domain"
)

const defaultBinary = "yt-dlp"

var retryAfterPattern = regexp.MustCompile(`(?i)retry (?:in|after) (\d+)`)

// YTDLPBackend runs the yt-dlp binary and implements domain.MediaBackend.
// Downloads land in a per-call scratch directory; the caller owns moving the
// artifact into managed storage.
type YTDLPBackend struct {
	binary     string
	proxy      string
	scratchDir string
}

func NewYTDLPBackend(scratchDir, proxy string) *YTDLPBackend {
	return &YTDLPBackend{
		binary:     defaultBinary,
		proxy:      proxy,
		scratchDir: scratchDir,
	}
}

type ytdlpInfo struct {
	Extractor  string  `json:"extractor"`
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	Duration   float64 `json:"duration"`
	WebpageURL string  `json:"webpage_url"`
}

// ExtractInfo probes the query's metadata; with download true it also
// transfers the media into a scratch directory and reports its path.
func (b *YTDLPBackend) ExtractInfo(ctx context.Context, query string, download bool) (*domain.ExtractResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !download {
		return b.probe(ctx, query)
	}
	return b.download(ctx, query)
}

func (b *YTDLPBackend) probe(ctx context.Context, query string) (*domain.ExtractResult, error) {
	stdout, stderr, err := b.run(ctx,
		"--no-warnings",
		"--no-playlist",
		"--skip-download",
		"--dump-single-json",
		"--default-search", "ytsearch",
		query,
	)
	if err != nil {
		return nil, classifyBackendError(stderr)
	}
	return parseInfo(stdout)
}

func (b *YTDLPBackend) download(ctx context.Context, query string) (*domain.ExtractResult, error) {
	tmpDir, err := os.MkdirTemp(b.scratchDir, "soundarr_*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}

	outTemplate := filepath.Join(tmpDir, "%(extractor)s-%(id)s.%(ext)s")
	stdout, stderr, err := b.run(ctx,
		"--no-warnings",
		"--no-playlist",
		"-f", "bestaudio/best",
		"-o", outTemplate,
		"--default-search", "ytsearch",
		"--print-json",
		query,
	)
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, classifyBackendError(stderr)
	}

	result, err := parseInfo(stdout)
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, err
	}

	result.FilePath = findArtifact(tmpDir, result.Extractor, result.ID)
	if result.FilePath == "" {
		os.RemoveAll(tmpDir)
		return nil, &domain.DownloadError{Kind: domain.DownloadGeneric, Msg: "no file produced"}
	}
	return result, nil
}

func (b *YTDLPBackend) run(ctx context.Context, args ...string) (string, string, error) {
	if b.proxy != "" {
		args = append([]string{"--proxy", b.proxy}, args...)
	}

	log.WithFields(log.Fields{
		"binary": b.binary,
		"args":   strings.Join(args, " "),
	}).Debug("running media backend")

	cmd := exec.CommandContext(ctx, b.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func parseInfo(stdout string) (*domain.ExtractResult, error) {
	// with --print-json the metadata line is the last non-empty one
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	payload := lines[len(lines)-1]

	var info ytdlpInfo
	if err := json.Unmarshal([]byte(payload), &info); err != nil {
		return nil, &domain.DownloadError{Kind: domain.DownloadGeneric, Msg: "unparseable backend output"}
	}

	return &domain.ExtractResult{
		Extractor:  strings.ToLower(info.Extractor),
		ID:         info.ID,
		Title:      info.Title,
		Uploader:   info.Uploader,
		Duration:   int64(info.Duration),
		WebpageURL: info.WebpageURL,
	}, nil
}

// findArtifact locates the produced file regardless of the extension the
// backend settled on.
func findArtifact(dir, extractor, id string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	prefix := fmt.Sprintf("%s-%s", extractor, id)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(strings.ToLower(entry.Name()), prefix) {
			return filepath.Join(dir, entry.Name())
		}
	}
	// fall back to the only file present
	for _, entry := range entries {
		if !entry.IsDir() {
			return filepath.Join(dir, entry.Name())
		}
	}
	return ""
}

// classifyBackendError pattern-matches backend stderr into the closed error
// taxonomy so callers can decide whether to retry, skip, or surface a
// message.
func classifyBackendError(stderr string) error {
	msg := strings.TrimSpace(stderr)
	lower := strings.ToLower(msg)

	kind := domain.DownloadGeneric
	switch {
	case strings.Contains(lower, "private video"):
		kind = domain.DownloadPrivate
	case strings.Contains(lower, "video unavailable"),
		strings.Contains(lower, "this video is not available"),
		strings.Contains(lower, "has been removed"):
		kind = domain.DownloadUnavailable
	case strings.Contains(lower, "confirm your age"),
		strings.Contains(lower, "age-restricted"):
		kind = domain.DownloadAgeRestricted
	case strings.Contains(lower, "not a bot"),
		strings.Contains(lower, "sign in to confirm"),
		strings.Contains(lower, "429"):
		kind = domain.DownloadBotDetected
	}

	return &domain.DownloadError{
		Kind:       kind,
		Msg:        msg,
		RetryAfter: parseRetryAfter(lower),
	}
}

func parseRetryAfter(msg string) time.Duration {
	match := retryAfterPattern.FindStringSubmatch(msg)
	if match == nil {
		return 0
	}
	seconds, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
