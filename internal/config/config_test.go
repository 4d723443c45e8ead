package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		setup   func()
		cleanup func()
		wantErr bool
	}{
		{
			name:    "defaults only",
			setup:   func() {},
			cleanup: func() {},
			wantErr: false,
		},
		{
			name: "spotify credentials incomplete",
			setup: func() {
				os.Setenv("SPOTIFY_CLIENT_ID", "id-only")
			},
			cleanup: func() {
				os.Unsetenv("SPOTIFY_CLIENT_ID")
			},
			wantErr: true,
		},
		{
			name: "s3 endpoint without credentials",
			setup: func() {
				os.Setenv("S3_ENDPOINT", "minio:9000")
			},
			cleanup: func() {
				os.Unsetenv("S3_ENDPOINT")
			},
			wantErr: true,
		},
		{
			name: "bad integer override",
			setup: func() {
				os.Setenv("MAX_CACHE_ENTRIES", "lots")
			},
			cleanup: func() {
				os.Unsetenv("MAX_CACHE_ENTRIES")
			},
			wantErr: true,
		},
		{
			name: "duration override",
			setup: func() {
				os.Setenv("MAX_VIDEO_DURATION", "45m")
			},
			cleanup: func() {
				os.Unsetenv("MAX_VIDEO_DURATION")
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.cleanup()

			cfg, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if cfg.Workers != defaultWorkers {
					t.Errorf("Workers = %v, want %v", cfg.Workers, defaultWorkers)
				}
				if cfg.MaxRetries != defaultMaxRetries {
					t.Errorf("MaxRetries = %v, want %v", cfg.MaxRetries, defaultMaxRetries)
				}
			}
		})
	}
}

func TestConfig_Paths(t *testing.T) {
	cfg := &Config{DataDir: "/test/data"}

	tests := []struct {
		name   string
		method func() string
		want   string
	}{
		{name: "CacheDir", method: cfg.CacheDir, want: filepath.Join("/test/data", "cache")},
		{name: "ScratchDir", method: cfg.ScratchDir, want: filepath.Join("/test/data", "tmp")},
		{name: "DBPath", method: cfg.DBPath, want: filepath.Join("/test/data", "soundarr.db")},
		{name: "AnalyticsPath", method: cfg.AnalyticsPath, want: filepath.Join("/test/data", "analytics.db")},
		{name: "BanlistPath", method: cfg.BanlistPath, want: filepath.Join("/test/data", "banlist.txt")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.method(); got != tt.want {
				t.Errorf("%s() = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestConfig_FeatureFlags(t *testing.T) {
	cfg := &Config{}
	if cfg.SpotifyEnabled() {
		t.Error("SpotifyEnabled() = true without credentials")
	}
	if cfg.BackupEnabled() {
		t.Error("BackupEnabled() = true without endpoint")
	}

	cfg.SpotifyClientID = "id"
	cfg.S3Endpoint = "minio:9000"
	if !cfg.SpotifyEnabled() {
		t.Error("SpotifyEnabled() = false with credentials")
	}
	if !cfg.BackupEnabled() {
		t.Error("BackupEnabled() = false with endpoint")
	}
}
