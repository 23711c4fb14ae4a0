// Package telemetry wraps OpenTelemetry SDK initialization, providing
// webpilot with centralized TracerProvider and MeterProvider setup.
// When telemetry is disabled, noop implementations are used and no
// external service is contacted.
package telemetry
