// Package telemetry defines the logging, metrics, and tracing interfaces used
// throughout the gateway. Components depend on these interfaces, never on a
// concrete backend, so the production Clue/OTEL implementation and the noop
// test implementation are interchangeable.
package telemetry

import (
	"context"
	"time"
)

type (
	// Logger emits structured log messages. Implementations must be safe for
	// concurrent use; the gateway logs from many goroutines (one per in-flight
	// request, plus the session sweep and keep-alive tickers).
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters and timers for operational dashboards.
	Metrics interface {
		// IncCounter increments a named counter by delta, with optional
		// "key", "value" label pairs appended as tags.
		IncCounter(name string, delta float64, tags ...string)
		// RecordTimer records a duration against a named timer.
		RecordTimer(name string, d time.Duration, tags ...string)
	}

	// Tracer creates spans for request-scoped tracing.
	Tracer interface {
		StartSpan(ctx context.Context, name string) (context.Context, Span)
	}

	// Span is an in-flight trace span.
	Span interface {
		SetAttribute(key string, value any)
		RecordError(err error)
		End()
	}
)
