package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "icelake"

// Config selects the span exporter used by Setup. It mirrors the otel section
// of the icelake configuration file.
type Config struct {
	Exporter       string
	Endpoint       string
	SampleRatio    float64
	ServiceVersion string
}

// Setup builds the TracerProvider for cfg and installs it, together with the
// W3C trace context propagator, as the otel globals. The returned shutdown
// function flushes pending spans.
//
// Exporter "none" (or empty) returns a noop provider and installs nothing.
// Exporter "otlp" talks gRPC to Endpoint, or to OTEL_EXPORTER_OTLP_ENDPOINT
// when Endpoint is empty. A SampleRatio <= 0 samples every root span.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (trace.TracerProvider, func(), error) {
	if cfg.Exporter == "" || cfg.Exporter == "none" {
		return noop.NewTracerProvider(), func() {}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tracing")

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := newResource(cfg.ServiceVersion)
	if err != nil {
		return nil, nil, err
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 {
		ratio = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	logger.Info("tracing enabled", "exporter", cfg.Exporter, "sample_ratio", ratio)

	return tp, func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("flush spans on shutdown", "error", err)
		}
	}, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("stdout span exporter: %w", err)
		}
		return exp, nil
	case "otlp":
		var opts []otlptracegrpc.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otlp span exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unknown otel exporter: %q (expected none, stdout, or otlp)", cfg.Exporter)
	}
}

func newResource(version string) (*resource.Resource, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}
	return res, nil
}

// Middleware starts a server span per HTTP request, continuing any W3C trace
// context the client sent, and echoes the span as a traceparent response
// header. The span is named after the matched chi route pattern.
func Middleware(tp trace.TracerProvider) func(http.Handler) http.Handler {
	tracer := tp.Tracer(serviceName + "/http")
	propagator := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", r.Method),
					attribute.String("url.path", r.URL.Path),
				),
			)
			defer span.End()

			if h := FormatTraceparent(span.SpanContext()); h != "" {
				w.Header().Set("Traceparent", h)
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))

			if rc := chi.RouteContext(r.Context()); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" {
					span.SetName(r.Method + " " + pattern)
					span.SetAttributes(attribute.String("http.route", pattern))
				}
			}
			span.SetAttributes(attribute.Int("http.response.status_code", sw.status))
			if sw.status >= 500 {
				span.SetStatus(codes.Error, http.StatusText(sw.status))
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// FormatTraceparent returns the W3C traceparent string for a SpanContext,
// or empty string if the SpanContext is not valid.
func FormatTraceparent(sc trace.SpanContext) string {
	if !sc.IsValid() {
		return ""
	}
	return fmt.Sprintf("00-%s-%s-%s",
		sc.TraceID().String(),
		sc.SpanID().String(),
		sc.TraceFlags().String(),
	)
}
