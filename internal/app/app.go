package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"soundarr/internal/clients"
	"soundarr/internal/config"
	"soundarr/internal/domain"
	"soundarr/internal/downloader"
	"soundarr/internal/handler"
	"soundarr/internal/service"
	"soundarr/internal/storage"
)

type App struct {
	cfg           *config.Config
	server        *http.Server
	db            *gorm.DB
	analyticsRepo domain.AnalyticsRepository
	client        *downloader.Client
	pipeline      *service.Pipeline
	orchestrator  *Orchestrator
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := ensureDirs(cfg); err != nil {
		return nil, fmt.Errorf("preparing data dirs: %w", err)
	}

	db, err := storage.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	analyticsRepo, err := storage.NewAnalyticsRepository(cfg.AnalyticsPath())
	if err != nil {
		return nil, fmt.Errorf("opening analytics store: %w", err)
	}

	app := &App{
		cfg:           cfg,
		db:            db,
		analyticsRepo: analyticsRepo,
	}

	if err := app.wireServices(); err != nil {
		return nil, fmt.Errorf("wiring services: %w", err)
	}

	return app, nil
}

func ensureDirs(cfg *config.Config) error {
	for _, dir := range []string{cfg.CacheDir(), cfg.ScratchDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) wireServices() error {
	videoRepo := storage.NewVideoCacheRepository(a.db)
	searchRepo := storage.NewSearchCacheRepository(a.db)

	client, err := a.createDownloadClient(videoRepo)
	if err != nil {
		return err
	}
	a.client = client

	cacheSvc := service.NewCacheService(a.cfg, videoRepo)
	analyticsSvc := service.NewAnalyticsService(a.analyticsRepo)
	a.pipeline = service.NewPipeline(a.cfg, client, cacheSvc, searchRepo, analyticsSvc)

	backupSvc, err := a.createBackupService(videoRepo)
	if err != nil {
		return err
	}
	a.orchestrator = NewOrchestrator(a.cfg, cacheSvc, a.pipeline, backupSvc)

	a.setupHTTPServer(cacheSvc, analyticsSvc, client)
	return nil
}

func (a *App) createDownloadClient(videoRepo domain.VideoCacheRepository) (*downloader.Client, error) {
	banlist, err := downloader.LoadBanlist(a.cfg.BanlistPath())
	if err != nil {
		return nil, fmt.Errorf("loading banlist: %w", err)
	}

	backend := clients.NewYTDLPBackend(a.cfg.ScratchDir(), a.cfg.Proxy)

	var resolver domain.PlaylistResolver
	if a.cfg.SpotifyEnabled() {
		resolver = clients.NewSpotifyResolver(a.cfg.SpotifyClientID, a.cfg.SpotifyClientSecret, a.cfg.HTTPTimeout)
	}

	return downloader.NewClient(backend, resolver, videoRepo, downloader.Config{
		DownloadDir:      a.cfg.CacheDir(),
		MaxDuration:      a.cfg.MaxVideoDuration,
		Banlist:          banlist,
		TrackerSize:      a.cfg.TrackerSize,
		TrackerWindow:    a.cfg.TrackerWindow,
		BreakerThreshold: a.cfg.BreakerThreshold,
	}), nil
}

func (a *App) createBackupService(videoRepo domain.VideoCacheRepository) (*service.BackupService, error) {
	if !a.cfg.BackupEnabled() {
		return nil, nil
	}

	store, err := clients.NewMinioStore(a.cfg.S3Endpoint, a.cfg.S3AccessKey, a.cfg.S3SecretKey, a.cfg.S3UseSSL)
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}
	return service.NewBackupService(a.cfg, videoRepo, store), nil
}

func (a *App) setupHTTPServer(cacheSvc *service.CacheService, analyticsSvc *service.AnalyticsService, client *downloader.Client) {
	httpHandler := handler.NewHTTPHandler(a.pipeline, cacheSvc, analyticsSvc, client)

	mux := http.NewServeMux()
	httpHandler.RegisterRoutes(mux)

	a.server = &http.Server{
		Addr:         a.cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  a.cfg.HTTPTimeout,
		WriteTimeout: a.cfg.HTTPTimeout,
	}
}

// Pipeline exposes the request intake for the embedding frontend.
func (a *App) Pipeline() *service.Pipeline {
	return a.pipeline
}

// Downloader exposes query classification and expansion, so the frontend
// can turn raw user input into media requests before enqueueing them.
func (a *App) Downloader() *downloader.Client {
	return a.client
}

// PlaylistLimit is the cap a frontend should pass to CheckSource.
func (a *App) PlaylistLimit() int {
	return a.cfg.PlaylistLimit
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.pipeline.Run(ctx)
	go a.orchestrator.RunPeriodically(ctx)
	go a.startServer()

	return a.waitForShutdown(ctx, cancel)
}

func (a *App) startServer() {
	log.WithFields(log.Fields{
		"component": "server",
		"address":   a.cfg.ServerPort,
	}).Info("http server listening")

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithFields(log.Fields{
			"component": "server",
			"error":     err,
		}).Fatal("http server failed to start")
	}
}

func (a *App) waitForShutdown(ctx context.Context, cancel context.CancelFunc) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		log.WithField("reason", "context_cancelled").Info("initiating graceful shutdown")
	case sig := <-sigChan:
		log.WithField("signal", sig).Info("received shutdown signal")
	}

	a.pipeline.BlockAll()
	cancel()
	return a.shutdown()
}

func (a *App) shutdown() error {
	log.Info("graceful shutdown started")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		log.WithFields(log.Fields{
			"component": "server",
			"error":     err,
		}).Error("http server shutdown failed")
	}

	if err := a.analyticsRepo.Close(); err != nil {
		log.WithFields(log.Fields{
			"component": "analytics",
			"error":     err,
		}).Error("analytics store close failed")
	}

	sqlDB, err := a.db.DB()
	if err == nil {
		if err := sqlDB.Close(); err != nil {
			log.WithFields(log.Fields{
				"component": "database",
				"error":     err,
			}).Error("database connection close failed")
			return err
		}
	}

	log.Info("graceful shutdown completed")
	return nil
}
