package emb3d

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/zero-day-ai/emb3d/stix"
)

func TestConverterOptions(t *testing.T) {
	t.Run("WithLogger", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
		o := &options{}
		WithLogger(logger)(o)

		if o.logger != logger {
			t.Error("expected logger to be set")
		}
	})

	t.Run("WithTracer", func(t *testing.T) {
		tracer := sdktrace.NewTracerProvider().Tracer("test")
		o := &options{}
		WithTracer(tracer)(o)

		if o.tracer != tracer {
			t.Error("expected tracer to be set")
		}
	})

	t.Run("WithMeter", func(t *testing.T) {
		meter := noop.NewMeterProvider().Meter("test")
		o := &options{}
		WithMeter(meter)(o)

		if o.meter == nil {
			t.Error("expected meter to be set")
		}
	})

	t.Run("WithIDGenerator", func(t *testing.T) {
		gen := stix.NewDeterministicGenerator(uuid.New())
		o := &options{}
		WithIDGenerator(gen)(o)

		if o.ids != gen {
			t.Error("expected generator to be set")
		}
	})

	t.Run("WithClock", func(t *testing.T) {
		fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		o := &options{}
		WithClock(func() time.Time { return fixed })(o)

		if o.now == nil || !o.now().Equal(fixed) {
			t.Error("expected clock to be set")
		}
	})
}

func TestNewDefaults(t *testing.T) {
	c, err := New(nil)
	if err != nil {
		t.Fatalf("New(nil) error = %v", err)
	}

	if c.logger == nil {
		t.Error("expected default logger")
	}
	if c.tracer == nil {
		t.Error("expected global tracer")
	}
	if c.metrics != nil {
		t.Error("expected no metrics without a meter")
	}
	if _, ok := c.ids.(stix.RandomGenerator); !ok {
		t.Errorf("expected random generator, got %T", c.ids)
	}
}

func TestNewOptionsOverrideConfig(t *testing.T) {
	gen := stix.NewDeterministicGenerator(uuid.New())
	c, err := New(nil, WithIDGenerator(gen), WithMeter(noop.NewMeterProvider().Meter("test")))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if c.ids != gen {
		t.Error("WithIDGenerator did not override the configured generator")
	}
	if c.metrics == nil {
		t.Error("expected metrics with a meter")
	}
}
