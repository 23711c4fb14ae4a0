// Package server manages the lifecycle of the sidecar HTTP listener
// that exposes Prometheus metrics, health, and version endpoints next
// to the MCP transport.
//
// Manager wraps net/http.Server with non-blocking Start, graceful
// Shutdown with a configurable drain timeout, and an async error
// channel so the main loop can notice a dead listener without
// polling.
package server
