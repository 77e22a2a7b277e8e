// Command emb3d2stix converts an EMB3D knowledge-base checkout into a STIX 2.1
// bundle.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/zero-day-ai/emb3d"
	"github.com/zero-day-ai/emb3d/config"
)

const serviceName = "emb3d2stix"

type flags struct {
	config        string
	out           string
	baseDir       string
	logLevel      string
	deterministic bool
	trace         bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		var logged loggedError
		if !errors.As(err, &logged) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// loggedError marks a failure already reported through the run's logger.
type loggedError struct{ error }

func (e loggedError) Unwrap() error { return e.error }

func newRootCommand() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   serviceName,
		Short: "Convert the EMB3D knowledge base to a STIX 2.1 bundle",
		Long: `Reads the EMB3D mapping sources and threat and mitigation pages from a
knowledge-base checkout and writes one STIX 2.1 bundle.

Without --config the checkout is expected in ./emb3d and the bundle is written
to OUT/out_stix.json.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.config, "config", "", "config file or directory containing emb3d.yaml")
	fs.StringVarP(&f.out, "out", "o", "", "bundle output path (default "+config.DefaultOutput+")")
	fs.StringVar(&f.baseDir, "base-dir", "", "knowledge-base checkout (default "+config.DefaultBaseDir+")")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.BoolVar(&f.deterministic, "deterministic", false, "mint name-based identifiers so runs are reproducible")
	fs.BoolVar(&f.trace, "trace", false, "export pipeline spans to stdout")

	return cmd
}

func run(cmd *cobra.Command, f *flags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err := convert(cmd, cfg, logger); err != nil {
		logger.Error("conversion failed", "error", err)
		return loggedError{err}
	}
	return nil
}

func convert(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	opts := []emb3d.Option{emb3d.WithLogger(logger)}
	if cfg.Trace.IsStdout() {
		tp, err := newTracerProvider(cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			if err := tp.Shutdown(context.WithoutCancel(cmd.Context())); err != nil {
				logger.Warn("failed to flush spans", "error", err)
			}
		}()
		otel.SetTracerProvider(tp)
		opts = append(opts, emb3d.WithTracer(tp.Tracer(emb3d.TracerName)))
	}

	conv, err := emb3d.New(cfg, opts...)
	if err != nil {
		return err
	}

	stats, err := conv.Convert(cmd.Context())
	if err != nil {
		return err
	}

	logger.Info("conversion complete", "output", cfg.GetOutput(), "stats", stats)
	return nil
}

// loadConfig reads the configuration and applies the flags the user set.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		loaded, err := config.Load(f.config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fs := cmd.Flags()
	if fs.Changed("out") {
		cfg.Output = f.out
	}
	if fs.Changed("base-dir") {
		cfg.BaseDir = f.baseDir
	}
	if fs.Changed("log-level") {
		if cfg.Log == nil {
			cfg.Log = &config.LogConfig{}
		}
		cfg.Log.Level = f.logLevel
	}
	if fs.Changed("deterministic") {
		if cfg.IDs == nil {
			cfg.IDs = &config.IDsConfig{}
		}
		cfg.IDs.Deterministic = f.deterministic
	}
	if fs.Changed("trace") {
		if cfg.Trace == nil {
			cfg.Trace = &config.TraceConfig{}
		}
		cfg.Trace.Stdout = f.trace
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(lc *config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lc.GetLevel()}
	if lc.GetFormat() == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}
