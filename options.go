package emb3d

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/emb3d/stix"
)

// Option configures a Converter.
type Option func(*options)

// options holds the optional collaborators of a Converter.
type options struct {
	logger *slog.Logger
	tracer trace.Tracer
	meter  metric.Meter
	ids    stix.Generator
	now    func() time.Time
}

// WithLogger sets a custom logger for the converter.
// If not provided, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer. Each pipeline stage runs in its own
// span. If not provided, the global tracer provider is used.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithMeter sets an OpenTelemetry meter for run counters. Without a meter no
// metrics are recorded.
func WithMeter(meter metric.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithIDGenerator overrides the identifier generator selected by the
// configuration.
func WithIDGenerator(gen stix.Generator) Option {
	return func(o *options) {
		o.ids = gen
	}
}

// WithClock sets the time source for created and modified timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
