package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	defaultDataDir          = "."
	defaultServerPort       = "0.0.0.0:3000"
	defaultMaxCacheEntries  = 200
	defaultMaxSearchEntries = 500
	defaultMaxDuration      = time.Hour
	defaultQueuePerGuild    = 50
	defaultWorkers          = 2
	defaultPollInterval     = 500 * time.Millisecond
	defaultMaxRetries       = 3
	defaultPlaylistLimit    = 25
	defaultTrackerSize      = 20
	defaultTrackerWindow    = 10 * time.Minute
	defaultBreakerThreshold = 10
	defaultTaskInterval     = time.Hour
	defaultHTTPTimeout      = 30 * time.Second
	defaultShutdownTimeout  = 30 * time.Second
)

type Config struct {
	DataDir    string
	ServerPort string

	MaxCacheEntries       int
	MaxSearchCacheEntries int
	MaxVideoDuration      time.Duration
	QueuePerGuild         int
	Workers               int
	PollInterval          time.Duration
	MaxRetries            int
	PlaylistLimit         int

	TrackerSize      int
	TrackerWindow    time.Duration
	BreakerThreshold int

	TaskInterval    time.Duration
	HTTPTimeout     time.Duration
	ShutdownTimeout time.Duration

	Proxy               string
	SpotifyClientID     string
	SpotifyClientSecret string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
}

func Load() (*Config, error) {
	cfg := &Config{
		DataDir:               getEnvOrDefault("DATA_DIR", defaultDataDir),
		ServerPort:            getEnvOrDefault("SERVER_PORT", defaultServerPort),
		MaxCacheEntries:       defaultMaxCacheEntries,
		MaxSearchCacheEntries: defaultMaxSearchEntries,
		MaxVideoDuration:      defaultMaxDuration,
		QueuePerGuild:         defaultQueuePerGuild,
		Workers:               defaultWorkers,
		PollInterval:          defaultPollInterval,
		MaxRetries:            defaultMaxRetries,
		PlaylistLimit:         defaultPlaylistLimit,
		TrackerSize:           defaultTrackerSize,
		TrackerWindow:         defaultTrackerWindow,
		BreakerThreshold:      defaultBreakerThreshold,
		TaskInterval:          defaultTaskInterval,
		HTTPTimeout:           defaultHTTPTimeout,
		ShutdownTimeout:       defaultShutdownTimeout,
		Proxy:                 os.Getenv("DOWNLOAD_PROXY"),
		SpotifyClientID:       os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret:   os.Getenv("SPOTIFY_CLIENT_SECRET"),
		S3Endpoint:            os.Getenv("S3_ENDPOINT"),
		S3AccessKey:           os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:           os.Getenv("S3_SECRET_KEY"),
		S3Bucket:              os.Getenv("S3_BUCKET"),
	}

	if err := cfg.loadOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadOverrides() error {
	intOverrides := map[string]*int{
		"MAX_CACHE_ENTRIES":        &c.MaxCacheEntries,
		"MAX_SEARCH_CACHE_ENTRIES": &c.MaxSearchCacheEntries,
		"QUEUE_PER_GUILD":          &c.QueuePerGuild,
		"WORKERS":                  &c.Workers,
		"MAX_RETRIES":              &c.MaxRetries,
		"PLAYLIST_LIMIT":           &c.PlaylistLimit,
		"BREAKER_THRESHOLD":        &c.BreakerThreshold,
	}
	for key, ptr := range intOverrides {
		value := os.Getenv(key)
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		*ptr = parsed
	}

	durationOverrides := map[string]*time.Duration{
		"MAX_VIDEO_DURATION": &c.MaxVideoDuration,
		"TASK_INTERVAL":      &c.TaskInterval,
		"TRACKER_WINDOW":     &c.TrackerWindow,
	}
	for key, ptr := range durationOverrides {
		value := os.Getenv(key)
		if value == "" {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		*ptr = parsed
	}

	if value := os.Getenv("S3_USE_SSL"); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("parsing S3_USE_SSL: %w", err)
		}
		c.S3UseSSL = parsed
	}
	return nil
}

func (c *Config) validate() error {
	if (c.SpotifyClientID == "") != (c.SpotifyClientSecret == "") {
		return fmt.Errorf("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET must be set together")
	}
	if c.S3Endpoint != "" {
		required := map[string]string{
			"S3_ACCESS_KEY": c.S3AccessKey,
			"S3_SECRET_KEY": c.S3SecretKey,
			"S3_BUCKET":     c.S3Bucket,
		}
		for key, value := range required {
			if value == "" {
				return fmt.Errorf("required environment variable missing: %s", key)
			}
		}
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != ""
}

func (c *Config) BackupEnabled() bool {
	return c.S3Endpoint != ""
}

func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "cache")
}

func (c *Config) ScratchDir() string {
	return filepath.Join(c.DataDir, "tmp")
}

func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "soundarr.db")
}

func (c *Config) AnalyticsPath() string {
	return filepath.Join(c.DataDir, "analytics.db")
}

func (c *Config) BanlistPath() string {
	return filepath.Join(c.DataDir, "banlist.txt")
}
