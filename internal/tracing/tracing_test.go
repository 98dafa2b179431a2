package tracing

import (
	"context"
	"net/http"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"admin-bff/internal/config"
)

func TestInit_Disabled(t *testing.T) {
	p, err := Init(context.Background(), &config.TracingConfig{Enabled: false}, "test")
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if p != nil {
		t.Errorf("Init() = %v, want nil provider when disabled", p)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() on nil provider error = %v", err)
	}
}

func TestInjectExtract_RoundTrip(t *testing.T) {
	if _, err := Init(context.Background(), &config.TracingConfig{}, "test"); err != nil {
		t.Fatal(err)
	}

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "outbound")
	defer span.End()

	h := http.Header{}
	Inject(ctx, h)

	if h.Get("traceparent") == "" {
		t.Error("traceparent header not injected")
	}
	if h.Get("X-B3-Traceid") == "" {
		t.Error("B3 trace id header not injected")
	}

	got := trace.SpanContextFromContext(Extract(context.Background(), h))
	if got.TraceID() != span.SpanContext().TraceID() {
		t.Errorf("extracted trace id = %s, want %s", got.TraceID(), span.SpanContext().TraceID())
	}
}
