/*
Package metrics provides Prometheus-based metrics collection across the
task, model, browser action, screenshot and tool dimensions.

# Overview

The package registers and records Prometheus instruments through a single
Collector, using promauto auto-registration so no Registry bookkeeping is
needed. All instruments share one namespace and carry labels suitable for
Grafana dashboards and alerting.

# Core types

  - Collector: the metrics collector, holding Counter, Histogram and
    Gauge instruments grouped by business domain.

# Capabilities

  - Task metrics: started/finished counters by terminal status, duration
    and turn histograms, a running-tasks gauge and an eviction counter.
  - Model metrics: request totals and latency by model, token usage split
    into prompt and completion.
  - Browser action metrics: per-action totals and durations, settle time
    included.
  - Screenshot metrics: files written and size distribution.
  - Tool metrics: per-tool call totals and durations.
*/
package metrics
