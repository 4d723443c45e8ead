// Package app provides application initialization and lifecycle management.
//
// The App type wires all dependencies together and manages:
// - Configuration loading
// - Database and analytics store initialization
// - Service creation
// - HTTP server lifecycle
// - Graceful shutdown
//
// The Orchestrator runs periodic background tasks for cache verification,
// eviction, search cache trimming and backups.
package app
