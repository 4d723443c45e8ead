package service

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"soundarr/internal/domain"
)

// AnalyticsService records play telemetry. Every write is best effort:
// failures are logged and swallowed so analytics can never stall or fail the
// pipeline.
type AnalyticsService struct {
	repo domain.AnalyticsRepository
}

func NewAnalyticsService(repo domain.AnalyticsRepository) *AnalyticsService {
	return &AnalyticsService{repo: repo}
}

// RecordRequest samples a request as it enters the queue.
func (s *AnalyticsService) RecordRequest(ctx context.Context, req *domain.MediaRequest, cacheHitPre bool) {
	record := &domain.PlayRecord{
		ID:          req.ID,
		GuildID:     req.GuildID,
		RequesterID: req.RequesterID,
		Search:      req.OriginalSearch,
		Kind:        req.Kind.String(),
		CacheHitPre: cacheHitPre,
		RequestedAt: time.Now(),
	}
	if err := s.repo.Insert(ctx, record); err != nil {
		s.logDropped(req.ID, err)
	}
}

// RecordOutcome finalizes the sample for a processed request.
func (s *AnalyticsService) RecordOutcome(ctx context.Context, req *domain.MediaRequest, outcome *domain.DownloadOutcome) {
	err := s.repo.Update(ctx, req.ID, func(record *domain.PlayRecord) {
		record.CompletedAt = time.Now()
		switch outcome.Kind {
		case domain.OutcomeFresh:
			record.Downloaded = true
		case domain.OutcomeCacheHit:
			record.CacheHitPost = true
		case domain.OutcomeRejected:
			record.Failed = true
			if outcome.Reason != nil {
				record.FailureReason = outcome.Reason.Error()
			}
		}
	})
	if err != nil {
		s.logDropped(req.ID, err)
	}
}

// RecordFailure finalizes the sample for a request that errored out.
func (s *AnalyticsService) RecordFailure(ctx context.Context, req *domain.MediaRequest, cause error) {
	err := s.repo.Update(ctx, req.ID, func(record *domain.PlayRecord) {
		record.CompletedAt = time.Now()
		record.Failed = true
		if cause != nil {
			record.FailureReason = cause.Error()
		}
	})
	if err != nil {
		s.logDropped(req.ID, err)
	}
}

func (s *AnalyticsService) Summary(ctx context.Context) (*domain.AnalyticsSummary, error) {
	return s.repo.Summary(ctx)
}

func (s *AnalyticsService) logDropped(id string, err error) {
	log.WithFields(log.Fields{
		"request": id,
		"error":   err,
	}).Warn("analytics record dropped")
}
