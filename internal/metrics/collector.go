// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// Metrics collector
// =============================================================================

// Collector records webpilot service metrics.
type Collector struct {
	// Task metrics
	tasksStarted  prometheus.Counter
	tasksFinished *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	taskTurns     prometheus.Histogram
	tasksRunning  prometheus.Gauge
	tasksEvicted  prometheus.Counter

	// Model metrics
	modelRequestsTotal   *prometheus.CounterVec
	modelRequestDuration *prometheus.HistogramVec
	modelTokensUsed      *prometheus.CounterVec

	// Browser action metrics
	actionsTotal   *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec

	// Screenshot metrics
	screenshotsSaved prometheus.Counter
	screenshotBytes  prometheus.Histogram

	// Tool metrics
	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector creates a metrics collector. Instruments register on the
// default registry, so construct at most one per namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// Task metrics
	c.tasksStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_started_total",
			Help:      "Total number of browsing tasks started",
		},
	)

	c.tasksFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Total number of browsing tasks reaching a terminal status",
		},
		[]string{"status"},
	)

	c.taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Browsing task duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	c.taskTurns = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_turns",
			Help:      "Agent turns consumed per finished task",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 30},
		},
	)

	c.tasksRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_running",
			Help:      "Number of tasks currently running",
		},
	)

	c.tasksEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_evicted_total",
			Help:      "Total number of terminal task records evicted by retention",
		},
	)

	// Model metrics
	c.modelRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_requests_total",
			Help:      "Total number of vision model requests",
		},
		[]string{"model", "status"},
	)

	c.modelRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_request_duration_seconds",
			Help:      "Vision model request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	c.modelTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"model", "type"}, // type: prompt, completion
	)

	// Browser action metrics
	c.actionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "browser_actions_total",
			Help:      "Total number of browser actions executed",
		},
		[]string{"action", "status"},
	)

	c.actionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "browser_action_duration_seconds",
			Help:      "Browser action duration in seconds, settle included",
			Buckets:   []float64{0.1, 0.3, 0.5, 1, 2, 5, 10},
		},
		[]string{"action"},
	)

	// Screenshot metrics
	c.screenshotsSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "screenshots_saved_total",
			Help:      "Total number of screenshots written to disk",
		},
	)

	c.screenshotBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "screenshot_size_bytes",
			Help:      "Screenshot size in bytes",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)

	// Tool metrics
	c.toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls",
		},
		[]string{"tool", "status"},
	)

	c.toolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool call duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 30, 60, 300, 600},
		},
		[]string{"tool"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// Task metrics recording
// =============================================================================

// RecordTaskStarted records a task entering the running state.
func (c *Collector) RecordTaskStarted() {
	c.tasksStarted.Inc()
	c.tasksRunning.Inc()
}

// RecordTaskFinished records a task reaching a terminal status.
func (c *Collector) RecordTaskFinished(status string, duration time.Duration, turns int) {
	c.tasksFinished.WithLabelValues(status).Inc()
	c.taskDuration.WithLabelValues(status).Observe(duration.Seconds())
	c.taskTurns.Observe(float64(turns))
	c.tasksRunning.Dec()
}

// RecordTasksEvicted records retention sweep evictions.
func (c *Collector) RecordTasksEvicted(n int) {
	c.tasksEvicted.Add(float64(n))
}

// =============================================================================
// Model metrics recording
// =============================================================================

// RecordModelRequest records a vision model request.
func (c *Collector) RecordModelRequest(model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.modelRequestsTotal.WithLabelValues(model, status).Inc()
	c.modelRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		c.modelTokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		c.modelTokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// =============================================================================
// Browser action metrics recording
// =============================================================================

// RecordAction records a browser action execution.
func (c *Collector) RecordAction(action, status string, duration time.Duration) {
	c.actionsTotal.WithLabelValues(action, status).Inc()
	c.actionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordScreenshot records a screenshot written to disk.
func (c *Collector) RecordScreenshot(sizeBytes int) {
	c.screenshotsSaved.Inc()
	c.screenshotBytes.Observe(float64(sizeBytes))
}

// =============================================================================
// Tool metrics recording
// =============================================================================

// RecordToolCall records a tool invocation.
func (c *Collector) RecordToolCall(tool, status string, duration time.Duration) {
	c.toolCallsTotal.WithLabelValues(tool, status).Inc()
	c.toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}
