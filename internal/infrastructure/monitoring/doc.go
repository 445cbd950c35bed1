/*
Package monitoring provides Prometheus-based metrics collection.

Tracked surfaces:

  - HTTP requests (count, latency)
  - Generation pipeline (per-intent outcomes, per-stage durations)
  - Model-provider calls (count, latency per model)
  - Tool-broker calls and tool invocations
  - Bridge mounts and bridge messages
  - Sessions and WebSocket connections

Usage:

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))

	timer := monitoring.NewStageTimer(metrics, "classify")
	// ... run stage ...
	timer.Stop()

Metrics are exposed on /metrics via promhttp.
*/
package monitoring
