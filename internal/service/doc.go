// Package service contains business logic for soundarr operations.
//
// Services orchestrate between domain repositories and external clients:
// - Pipeline: fair-queues requests and runs the download workers
// - CacheService: cache bookkeeping, eviction and disk reconciliation
// - BackupService: mirrors cache artifacts to object storage
// - AnalyticsService: best-effort play telemetry
//
// All services accept context for cancellation support.
package service
