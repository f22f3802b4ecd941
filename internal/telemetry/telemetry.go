// Package telemetry wires up the vault's ambient structured logging,
// tracing, and metrics: a log/slog logger fanned out to a console
// handler and an OpenTelemetry log bridge via samber/slog-multi, and
// stdout-backed OpenTelemetry trace/metric providers. There is no
// remote collector in this module's scope; the stdout exporters give
// the CLI host something real to attach to without standing up
// infrastructure.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	stdoutmetric "go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	logsdk "go.opentelemetry.io/otel/sdk/log"
	metricsdk "go.opentelemetry.io/otel/sdk/metric"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Settings configures a Service.
type Settings struct {
	ServiceName string
	Verbose     bool
}

// Service bundles the logger, tracer provider, and meter provider for
// one running vault process.
type Service struct {
	Slogger         *slog.Logger
	TracesProvider  trace.TracerProvider
	MetricsProvider metric.MeterProvider
	StartTime       time.Time
	Verbose         bool

	logsProviderSdk    *logsdk.LoggerProvider
	tracesProviderSdk  *tracesdk.TracerProvider
	metricsProviderSdk *metricsdk.MeterProvider
}

// New builds a Service: a console slog handler fanned out alongside an
// OpenTelemetry log bridge, and stdout trace/metric exporters.
func New(ctx context.Context, settings Settings) (*Service, error) {
	level := slog.LevelInfo
	if settings.Verbose {
		level = slog.LevelDebug
	}

	logsProvider := logsdk.NewLoggerProvider()
	otelHandler := otelslog.NewHandler(settings.ServiceName, otelslog.WithLoggerProvider(logsProvider))

	consoleHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	logger := slog.New(slogmulti.Fanout(consoleHandler, otelHandler))

	tracesProvider, err := initTraces(ctx)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to init traces: %w", err)
	}

	metricsProvider, err := initMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to init metrics: %w", err)
	}

	return &Service{
		Slogger:            logger,
		TracesProvider:     tracesProvider,
		MetricsProvider:    metricsProvider,
		StartTime:          time.Now().UTC(),
		Verbose:            settings.Verbose,
		logsProviderSdk:    logsProvider,
		tracesProviderSdk:  tracesProvider,
		metricsProviderSdk: metricsProvider,
	}, nil
}

func initTraces(ctx context.Context) (*tracesdk.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create STDOUT traces failed: %w", err)
	}

	return tracesdk.NewTracerProvider(tracesdk.WithBatcher(exporter)), nil
}

func initMetrics(ctx context.Context) (*metricsdk.MeterProvider, error) {
	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("create STDOUT metrics failed: %w", err)
	}

	reader := metricsdk.NewPeriodicReader(exporter, metricsdk.WithInterval(time.Minute))

	return metricsdk.NewMeterProvider(metricsdk.WithReader(reader)), nil
}

// Shutdown flushes and releases every provider. Errors are logged, not
// returned: a telemetry shutdown failure must never fail the vault
// operation it's wrapping.
func (s *Service) Shutdown(ctx context.Context) {
	if s.tracesProviderSdk != nil {
		if err := s.tracesProviderSdk.Shutdown(ctx); err != nil {
			s.Slogger.Error("telemetry: traces shutdown failed", "error", err)
		}
	}

	if s.metricsProviderSdk != nil {
		if err := s.metricsProviderSdk.Shutdown(ctx); err != nil {
			s.Slogger.Error("telemetry: metrics shutdown failed", "error", err)
		}
	}

	if s.logsProviderSdk != nil {
		if err := s.logsProviderSdk.Shutdown(ctx); err != nil {
			s.Slogger.Error("telemetry: logs shutdown failed", "error", err)
		}
	}
}
