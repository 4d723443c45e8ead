package handler

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"soundarr/internal/domain"
	"soundarr/internal/downloader"
	"soundarr/internal/service"
)

const contentTypeJSON = "application/json"

type HTTPHandler struct {
	pipeline  *service.Pipeline
	cache     *service.CacheService
	analytics *service.AnalyticsService
	client    *downloader.Client
}

func NewHTTPHandler(pipeline *service.Pipeline, cache *service.CacheService, analytics *service.AnalyticsService, client *downloader.Client) *HTTPHandler {
	return &HTTPHandler{
		pipeline:  pipeline,
		cache:     cache,
		analytics: analytics,
		client:    client,
	}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/queue", h.handleQueue)
	mux.HandleFunc("/cache/check", h.handleCacheCheck)
	mux.HandleFunc("/stats", h.handleStats)
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *HTTPHandler) handleQueue(w http.ResponseWriter, r *http.Request) {
	if guild := r.URL.Query().Get("guild"); guild != "" {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"guild": guild,
			"size":  h.pipeline.QueueSize(guild),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":  h.pipeline.TotalQueued(),
		"guilds": h.pipeline.QueuedGuilds(),
	})
}

func (h *HTTPHandler) handleCacheCheck(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "Missing url parameter", http.StatusBadRequest)
		return
	}

	entry, err := h.cache.CheckCache(r.Context(), url)
	if err != nil {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"cached": false})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"cached": true,
		"title":  entry.Title,
		"count":  entry.Count,
		"path":   entry.BasePath,
	})
}

func (h *HTTPHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.Summary(r.Context())
	if err != nil {
		log.WithField("error", err).Error("failed to retrieve analytics summary")
		summary = &domain.AnalyticsSummary{}
	}

	failures := h.client.FailureSummary()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"requests":        summary.Requests,
		"cache_hits":      summary.CacheHits,
		"downloads":       summary.Downloads,
		"failures":        summary.Failures,
		"recent_failures": failures.Count,
		"queued":          h.pipeline.TotalQueued(),
	})
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithField("error", err).Error("failed to encode json response")
	}
}
