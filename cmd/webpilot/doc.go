// Command webpilot runs the browser automation MCP server.
//
// It speaks the Model Context Protocol over stdio (the default, for
// clients that spawn the server as a child process) or over an
// outbound WebSocket connection, and exposes Prometheus metrics plus
// health and version endpoints on a sidecar HTTP port.
//
// Usage:
//
//	webpilot serve                        # start with defaults (stdio)
//	webpilot serve --config config.yaml   # start with a config file
//	webpilot version                      # print version information
//	webpilot health                       # probe a running server
//
// Configuration comes from defaults, an optional YAML file, and
// WEBPILOT_* environment variables, in that order. The Gemini API key
// is read from GEMINI_API_KEY when not set explicitly.
package main
