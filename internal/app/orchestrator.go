package app

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"soundarr/internal/config"
	"soundarr/internal/service"
)

// Orchestrator drives the periodic maintenance cycle: verify the cache
// against disk, mark and purge evictions, trim the search cache and mirror
// new artifacts to object storage.
type Orchestrator struct {
	cfg       *config.Config
	cacheSvc  *service.CacheService
	pipeline  *service.Pipeline
	backupSvc *service.BackupService
}

type orchestratorTask struct {
	name string
	run  func(context.Context) error
}

func NewOrchestrator(cfg *config.Config, cacheSvc *service.CacheService, pipeline *service.Pipeline, backupSvc *service.BackupService) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		cacheSvc:  cacheSvc,
		pipeline:  pipeline,
		backupSvc: backupSvc,
	}
}

func (o *Orchestrator) RunPeriodically(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.TaskInterval)
	defer ticker.Stop()

	o.runTasks(ctx)

	for {
		select {
		case <-ctx.Done():
			log.WithField("component", "orchestrator").Info("stopping background task scheduler")
			return
		case <-ticker.C:
			o.runTasks(ctx)
		}
	}
}

func (o *Orchestrator) runTasks(ctx context.Context) {
	log.WithField("component", "orchestrator").Info("starting scheduled task cycle")

	tasks := []orchestratorTask{
		{name: "verify", run: o.cacheSvc.Verify},
		{name: "evict", run: o.evictCache},
		{name: "search_evict", run: o.pipeline.EvictSearchCache},
	}
	if o.backupSvc != nil {
		tasks = append(tasks, orchestratorTask{name: "backup", run: o.backupSvc.Run})
	}

	for _, task := range tasks {
		if ctx.Err() != nil {
			return
		}
		if err := task.run(ctx); err != nil {
			log.WithFields(log.Fields{
				"task":  task.name,
				"error": err,
			}).Error("scheduled task failed")
		}
	}

	log.WithField("component", "orchestrator").Info("completed scheduled task cycle")
}

func (o *Orchestrator) evictCache(ctx context.Context) error {
	if err := o.cacheSvc.EvictionPass(ctx); err != nil {
		return err
	}
	return o.cacheSvc.PurgeMarked(ctx)
}
