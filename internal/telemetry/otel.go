package telemetry

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/AnthonyGillesRudolfo/Payment-Intent-Gateway/internal/config"
)

const serviceVersion = "1.0.0"

// InitTracer installs a global OTLP/HTTP tracer provider and W3C propagators.
// The returned shutdown flushes pending spans. When telemetry is disabled only
// the propagators are installed and shutdown is a no-op.
func InitTracer(ctx context.Context, serviceName string, cfg config.TelemetryConfig, logger *log.Logger) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Disabled {
		logger.Printf("[telemetry] tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(exporterOptions(cfg.TracesEndpoint)...))
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(1.0))),
	)
	otel.SetTracerProvider(tp)

	logger.Printf("[telemetry] OpenTelemetry initialized for service: %s", serviceName)
	return tp.Shutdown, nil
}

// endpoint accepts either a full URL or the host:port form.
type endpoint struct {
	host     string
	path     string
	insecure bool
}

func parseEndpoint(raw string) endpoint {
	ep := endpoint{host: "localhost:4318", path: "/v1/traces", insecure: true}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ep
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		ep.host = raw
		return ep
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ep
	}
	if u.Host != "" {
		ep.host = u.Host
	}
	if u.Path != "" {
		ep.path = u.Path
	}
	ep.insecure = u.Scheme == "http"
	return ep
}

func exporterOptions(raw string) []otlptracehttp.Option {
	ep := parseEndpoint(raw)
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(ep.host),
		otlptracehttp.WithURLPath(ep.path),
	}
	if ep.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}
