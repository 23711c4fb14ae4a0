/*
Package agent owns webpilot's task lifecycle: the task records, the
concurrent task manager, the model-driven browsing loop, and a
synchronous facade over the three.

# Core structs

  - Task — one browsing task: status, append-only progress log, result
    or error, timestamps; guarded by its own lock
  - Manager — the task registry; spawns one detached worker goroutine
    per task, enforces the optional concurrency cap, sweeps expired
    terminal records, and fans Stop requests into cooperative cancel
    flags
  - Loop — the screenshot -> model -> action cycle, bounded by the turn
    budget; implements TaskRunner
  - Facade — Browse: start, poll until terminal, stop on timeout

# Lifecycle

Tasks move pending -> running -> completed | failed | cancelled. Terminal
states are sticky. Cancellation is cooperative: Stop sets a flag, the
loop observes it at turn boundaries and the worker performs the single
terminal transition. Stopping an already-terminal task succeeds without
touching the record; stopping an unknown or evicted id is NotFound.

Time is injected through the Clock interface so retention sweeps and
poll hints are testable without sleeping.
*/
package agent
