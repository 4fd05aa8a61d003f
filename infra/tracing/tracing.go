// Package tracing wires OpenTelemetry for the vending service: the OTLP
// exporter, a span per HTTP request and trace propagation into event headers.
package tracing

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/giovaniif/vending-machine/infra/requestid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName      = "vending-machine"
	defaultOTLPPort = "4318"
	shutdownTimeout = 5 * time.Second
)

var propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// Probes and scrapes would drown the vend spans.
var untracedPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// Init installs the global tracer provider. It returns nil when
// OTEL_EXPORTER_OTLP_ENDPOINT is unset or the exporter cannot be built.
func Init(serviceName string) func() {
	endpoint, err := parseOTLPEndpoint(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil || endpoint == "" {
		return nil
	}
	tp, err := newProvider(context.Background(), endpoint, serviceName)
	if err != nil {
		return nil
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagator)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}
}

func newProvider(ctx context.Context, endpoint, serviceName string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	res, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", semconv.ServiceNameKey.String(serviceName)),
	)
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Middleware opens a server span per request, continuing any trace the
// caller sent. It runs after requestid.Middleware so the span carries the id.
func Middleware() gin.HandlerFunc {
	tracer := Tracer()
	return func(c *gin.Context) {
		if untracedPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		if id := requestid.FromContext(ctx); id != "" {
			span.SetAttributes(attribute.String("vending.request_id", id))
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// Inject returns the trace context of ctx as string pairs for kafka headers.
func Inject(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	propagator.Inject(ctx, carrier)
	return carrier
}

// parseOTLPEndpoint reduces a collector URL to the host:port otlptracehttp wants.
func parseOTLPEndpoint(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.Contains(raw, "://") {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	port := u.Port()
	if port == "" {
		port = defaultOTLPPort
	}
	return u.Hostname() + ":" + port, nil
}
