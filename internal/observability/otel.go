package observability

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/archvision/archvision-backend/internal/platform/envutil"
	"github.com/archvision/archvision-backend/internal/platform/logger"
)

const serviceName = "archvision-backend"

var (
	otelOnce     sync.Once
	otelShutdown func(context.Context) error
)

// Setup installs a global tracer provider when OTEL_ENABLED is set. The
// exporter defaults to OTLP/HTTP; OTEL_EXPORTER=stdout switches to the
// stdout exporter for local debugging. Tracing failures never take the
// service down.
func Setup(log *logger.Logger) {
	otelOnce.Do(func() {
		if !envutil.Bool("OTEL_ENABLED", false) {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		))
		if err != nil {
			log.Warn("otel resource init failed (continuing)", "error", err)
			res = resource.Default()
		}

		var exporter sdktrace.SpanExporter
		switch strings.ToLower(envutil.Str("OTEL_EXPORTER", "otlp")) {
		case "stdout":
			exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		default:
			exporter, err = otlptracehttp.New(ctx)
		}
		if err != nil {
			log.Warn("otel exporter init failed (continuing)", "error", err)
			return
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio()))),
		)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		otelShutdown = tp.Shutdown
		log.Info("otel tracing enabled", "exporter", envutil.Str("OTEL_EXPORTER", "otlp"))
	})
}

// Shutdown flushes pending spans; safe to call when tracing is disabled.
func Shutdown(ctx context.Context) error {
	if otelShutdown == nil {
		return nil
	}
	return otelShutdown(ctx)
}

func sampleRatio() float64 {
	v := strings.TrimSpace(envutil.Str("OTEL_SAMPLE_RATIO", ""))
	if v == "" {
		return 1.0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		return 1.0
	}
	return f
}
