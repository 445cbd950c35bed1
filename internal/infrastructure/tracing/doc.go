// Package tracing provides lightweight in-process request tracing.
//
// Each HTTP request gets a trace id; pipeline stages open child spans under
// it. Completed spans are logged through zap rather than exported to an
// external collector. Trace context propagates via X-Trace-ID / X-Span-ID
// headers so a browser client can correlate its requests.
package tracing
