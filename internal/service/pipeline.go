package service

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"soundarr/internal/config"
	"soundarr/internal/domain"
	"soundarr/internal/downloader"
	"soundarr/internal/queue"
	"soundarr/internal/retry"
)

// Pipeline ties the stages together: requests enter a per-guild fair queue,
// workers pull them out, resolve them through the download client and fold
// fresh artifacts into the cache. Workers never die with a request; a failed
// request is reported and dropped.
type Pipeline struct {
	cfg        *config.Config
	requests   *queue.Fair[*domain.MediaRequest]
	client     *downloader.Client
	cache      *CacheService
	searchRepo domain.SearchCacheRepository
	analytics  *AnalyticsService
}

func NewPipeline(
	cfg *config.Config,
	client *downloader.Client,
	cache *CacheService,
	searchRepo domain.SearchCacheRepository,
	analytics *AnalyticsService,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		requests:   queue.NewFair[*domain.MediaRequest](cfg.QueuePerGuild),
		client:     client,
		cache:      cache,
		searchRepo: searchRepo,
		analytics:  analytics,
	}
}

// Enqueue admits a request with the default priority.
func (p *Pipeline) Enqueue(ctx context.Context, req *domain.MediaRequest) error {
	return p.EnqueuePriority(ctx, req, queue.DefaultPriority)
}

// EnqueuePriority admits a request to its guild's queue. The cache probe here
// is telemetry only; the authoritative lookup happens in the worker.
func (p *Pipeline) EnqueuePriority(ctx context.Context, req *domain.MediaRequest, priority int) error {
	cacheHit := false
	if req.Kind == domain.KindDirectURL {
		if _, err := p.cache.CheckCache(ctx, req.Search); err == nil {
			cacheHit = true
		}
	}
	p.analytics.RecordRequest(ctx, req, cacheHit)

	if err := p.requests.PutPriority(req.GuildID, req, priority); err != nil {
		p.analytics.RecordFailure(ctx, req, err)
		return err
	}

	log.WithFields(log.Fields{
		"guild":   req.GuildID,
		"request": req.ID,
		"search":  req.OriginalSearch,
	}).Info("request queued")
	return nil
}

// Run starts the worker pool and blocks until ctx is cancelled and every
// worker has drained out.
func (p *Pipeline) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.work(ctx, worker)
		}(i)
	}
	wg.Wait()
}

func (p *Pipeline) work(ctx context.Context, worker int) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		req, guild, err := p.requests.GetNext()
		if err != nil {
			continue
		}

		logFields := log.Fields{
			"worker":  worker,
			"guild":   guild,
			"request": req.ID,
		}
		log.WithFields(logFields).Debug("processing request")

		if err := p.process(ctx, req); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithFields(logFields).WithField("error", err).Warn("request failed")
		}
	}
}

// process resolves one request end to end. All errors terminate the request,
// never the worker.
func (p *Pipeline) process(ctx context.Context, req *domain.MediaRequest) error {
	p.applySearchCache(ctx, req)

	outcome, err := p.createWithRetry(ctx, req)
	if err != nil {
		p.analytics.RecordFailure(ctx, req, err)
		req.NotifyNotFound()
		return err
	}

	switch outcome.Kind {
	case domain.OutcomeFresh:
		entry, err := p.cache.IterateFile(ctx, outcome.Download, req.GuildID)
		if err != nil {
			p.analytics.RecordFailure(ctx, req, err)
			req.NotifyNotFound()
			return err
		}
		outcome.Entry = entry
		p.storeSearchCache(ctx, req, outcome.Download)

	case domain.OutcomeCacheHit:
		entry, err := p.cache.Touch(ctx, outcome.Entry, req.GuildID)
		if err != nil {
			p.analytics.RecordFailure(ctx, req, err)
			req.NotifyNotFound()
			return err
		}
		outcome.Entry = entry

	case domain.OutcomeRejected:
		log.WithFields(log.Fields{
			"request": req.ID,
			"reason":  outcome.Reason,
		}).Info("request rejected")
	}

	p.analytics.RecordOutcome(ctx, req, outcome)
	req.NotifyComplete(outcome)
	return nil
}

// createWithRetry wraps the download in the retry policy: only transient
// backend failures consume attempts, and a backend-provided retry-after
// replaces the exponential backoff for that attempt.
func (p *Pipeline) createWithRetry(ctx context.Context, req *domain.MediaRequest) (*domain.DownloadOutcome, error) {
	var outcome *domain.DownloadOutcome

	honorRetryAfter := func(failure error, last bool) error {
		if last {
			return nil
		}
		var downloadErr *domain.DownloadError
		if !errors.As(failure, &downloadErr) || downloadErr.RetryAfter <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(downloadErr.RetryAfter):
			return retry.ErrSkipSleep
		}
	}

	err := retry.DoContext(ctx, func() error {
		var err error
		outcome, err = p.client.CreateSource(ctx, req)
		return err
	}, retry.Options{
		MaxRetries: p.cfg.MaxRetries,
		Retryable:  []error{domain.ErrDownloadGeneric, domain.ErrAgeRestricted},
		Hooks:      []retry.Hook{honorRetryAfter},
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// applySearchCache swaps a previously resolved search string in before the
// backend is asked, saving a resolver round trip.
func (p *Pipeline) applySearchCache(ctx context.Context, req *domain.MediaRequest) {
	if !req.Kind.Cacheable() {
		return
	}
	entry, err := p.searchRepo.Check(ctx, req.OriginalSearch)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.WithField("error", err).Warn("search cache lookup failed")
		}
		return
	}
	req.Resolve(entry.URL)
	log.WithFields(log.Fields{
		"request": req.ID,
		"url":     entry.URL,
	}).Debug("search resolved from cache")
}

func (p *Pipeline) storeSearchCache(ctx context.Context, req *domain.MediaRequest, download *domain.SourceDownload) {
	if !req.Kind.Cacheable() || download.URL == "" {
		return
	}
	if err := p.searchRepo.Upsert(ctx, req.OriginalSearch, download.URL, download.Title); err != nil {
		log.WithField("error", err).Warn("search cache store failed")
	}
}

// EvictSearchCache trims the search cache back under its limit.
func (p *Pipeline) EvictSearchCache(ctx context.Context) error {
	count, err := p.searchRepo.Count(ctx)
	if err != nil {
		return err
	}
	excess := int(count) - p.cfg.MaxSearchCacheEntries
	if excess <= 0 {
		return nil
	}
	evicted, err := p.searchRepo.Evict(ctx, excess)
	if err != nil {
		return err
	}
	log.WithField("count", evicted).Info("search cache entries evicted")
	return nil
}

// Queue surface passthroughs for the status API and guild commands.

func (p *Pipeline) QueueSize(guild string) int { return p.requests.Size(guild) }

func (p *Pipeline) TotalQueued() int { return p.requests.TotalSize() }

func (p *Pipeline) QueuedGuilds() []string { return p.requests.Tenants() }

func (p *Pipeline) BlockGuild(guild string) bool { return p.requests.Block(guild) }

func (p *Pipeline) ShuffleGuild(guild string) bool { return p.requests.Shuffle(guild) }

// ClearGuild drops a guild's pending requests, notifying each one.
func (p *Pipeline) ClearGuild(guild string) int {
	dropped := p.requests.Clear(guild)
	for _, req := range dropped {
		req.NotifyNotFound()
	}
	return len(dropped)
}

func (p *Pipeline) RemoveQueued(guild string, i int) (*domain.MediaRequest, error) {
	return p.requests.RemoveAt(guild, i)
}

func (p *Pipeline) BumpQueued(guild string, i int) error {
	return p.requests.BumpToFront(guild, i)
}

// BlockAll stops every guild queue from accepting work, used during
// shutdown so workers can drain what is already queued.
func (p *Pipeline) BlockAll() {
	for _, guild := range p.requests.Tenants() {
		p.requests.Block(guild)
	}
}
