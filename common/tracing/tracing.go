package tracing

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/buscafornecedor/vllm-gateway/common/config"
	"github.com/buscafornecedor/vllm-gateway/common/logger"
)

const tracerName = "github.com/buscafornecedor/vllm-gateway"

// Setup configures the global tracer provider to export spans to the Phoenix
// collector over OTLP/HTTP (http/protobuf), grouped under the configured
// project name. Returns a shutdown function that flushes pending spans.
//
// When no collector endpoint is configured a no-op provider is installed and
// span creation becomes free.
func Setup(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if cfg.PhoenixCollectorEndpoint == "" {
		otel.SetTracerProvider(noop.NewTracerProvider())
		logger.Logger.Info("trace collector not configured, tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	endpoint := cfg.PhoenixCollectorEndpoint + "/v1/traces"
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, errors.Wrap(err, "create otlp trace exporter")
	}

	res, err := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.PhoenixProjectName),
	))
	if err != nil {
		return nil, errors.Wrap(err, "build trace resource")
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	logger.Logger.Info("trace exporter configured",
		zap.String("endpoint", endpoint),
		zap.String("project", cfg.PhoenixProjectName))

	return provider.Shutdown, nil
}

// Tracer returns the tracer used for backend call spans.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
