// Package telemetry installs the process-wide slog logger and, when an OTLP
// endpoint is configured, the OpenTelemetry log and trace pipelines.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"recipebox/internal/config"
)

type ShutdownFunc func(context.Context) error

// Setup installs slog.Default. Logs always go to stderr as JSON; the OTLP
// bridge and the append blob sink are added when configured.
func Setup(ctx context.Context, cfg *config.Config) (ShutdownFunc, error) {
	return setup(ctx, cfg, os.Stderr)
}

func setup(ctx context.Context, cfg *config.Config, stderr io.Writer) (ShutdownFunc, error) {
	level := ParseLevel(cfg.Telemetry.LogLevel)
	handlers := []slog.Handler{slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level})}
	var shutdowns []ShutdownFunc

	if cfg.Telemetry.OTLPEndpoint != "" {
		res, err := resource.Merge(resource.Default(),
			resource.NewSchemaless(attribute.String("service.name", cfg.Telemetry.ServiceName)))
		if err != nil {
			return nil, fmt.Errorf("otel resource: %w", err)
		}

		logExporter, err := otlploghttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("otlp log exporter: %w", err)
		}
		lp := sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)
		shutdowns = append(shutdowns, lp.Shutdown)
		handlers = append(handlers, otelslog.NewHandler(cfg.Telemetry.ServiceName, otelslog.WithLoggerProvider(lp)))

		traceExporter, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("otlp trace exporter: %w", err), lp.Shutdown(ctx))
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		shutdowns = append(shutdowns, tp.Shutdown)
	}

	if cfg.Telemetry.LogContainer != "" {
		sink, err := NewBlobSink(ctx, cfg.Storage.BlobAccountName, cfg.Storage.BlobAccountKey, cfg.Telemetry.LogContainer, level, 0)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("log sink: %w", err), shutdownAll(shutdowns)(ctx))
		}
		handlers = append(handlers, sink)
		shutdowns = append(shutdowns, func(context.Context) error { return sink.Close() })
	}

	var h slog.Handler = handlers[0]
	if len(handlers) > 1 {
		h = Fanout(handlers...)
	}
	slog.SetDefault(slog.New(h))
	return shutdownAll(shutdowns), nil
}

func shutdownAll(fns []ShutdownFunc) ShutdownFunc {
	return func(ctx context.Context) error {
		var errs []error
		for _, fn := range fns {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}
}

// ParseLevel maps debug, info, warn and error; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type fanout []slog.Handler

// Fanout sends each record to every handler that accepts its level.
func Fanout(handlers ...slog.Handler) slog.Handler {
	return fanout(handlers)
}

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// FlushTimeout bounds how long Shutdown waits for exporters.
const FlushTimeout = 5 * time.Second
