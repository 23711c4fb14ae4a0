// Package types defines the error taxonomy shared across webpilot.
//
// It is the bottom of the dependency graph: every other package maps
// its failures into a *types.Error carrying a stable machine-readable
// code, an HTTP-style status, and a retryable hint. Tool handlers and
// the MCP server render these into the error payloads a model client
// sees, so the codes here are part of the observed contract.
package types
