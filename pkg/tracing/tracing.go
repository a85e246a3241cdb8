// Package tracing wraps OpenTelemetry + the Jaeger exporter, off by
// default and enabled only when cfg.Tracing.Enabled is set. Adapted
// from the teacher's own pkg/tracing/tracing.go: same Init/Shutdown/
// StartSpan shape, re-pointed at this service's span kinds (HTTP Surface
// requests, dispatched signaling messages, rendezvous operations) instead
// of media/mesh operations that don't exist here.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// Config controls whether tracing is active and where spans are shipped.
type Config struct {
	Enabled     bool
	ServiceName string
	JaegerURL   string
	SampleRate  float64
}

// Provider wraps the OpenTelemetry tracer provider. The zero value (from
// a disabled Config) is a harmless no-op: Shutdown is safe to call.
type Provider struct {
	tp *tracesdk.TracerProvider
}

// Init sets up the global tracer provider. A disabled Config returns a
// no-op Provider without touching the otel globals.
func Init(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
	if err != nil {
		return nil, fmt.Errorf("create jaeger exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create tracing resource: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.TraceIDRatioBased(cfg.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{tp: tp}, nil
}

// Shutdown drains pending spans. Safe to call on a disabled Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

const tracerName = "bootstrap-signaling"

// PeerIDKey, NamespaceKey, RoomKey are the attributes every span in this
// service tags a peer/room by.
var (
	PeerIDKey    = attribute.Key("peer.id")
	NamespaceKey = attribute.Key("namespace")
	RoomKey      = attribute.Key("room")
)

func startSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, name, opts...)
}

// TraceHTTPRequest starts a span for one HTTP Surface request.
func TraceHTTPRequest(ctx context.Context, method, path string) (context.Context, trace.Span) {
	return startSpan(ctx, fmt.Sprintf("http.%s", method),
		trace.WithAttributes(
			semconv.HTTPMethodKey.String(method),
			semconv.HTTPRouteKey.String(path),
		),
	)
}

// TraceSignalingMessage starts a span for one dispatched WebSocket frame.
func TraceSignalingMessage(ctx context.Context, messageType, peerID, namespace, room string) (context.Context, trace.Span) {
	return startSpan(ctx, fmt.Sprintf("signaling.%s", messageType),
		trace.WithAttributes(
			attribute.String("message.type", messageType),
			PeerIDKey.String(peerID),
			NamespaceKey.String(namespace),
			RoomKey.String(room),
		),
	)
}

// TraceRendezvousOperation starts a span for a register/discover/remove call.
func TraceRendezvousOperation(ctx context.Context, operation, namespace, room string) (context.Context, trace.Span) {
	return startSpan(ctx, fmt.Sprintf("rendezvous.%s", operation),
		trace.WithAttributes(
			attribute.String("rendezvous.operation", operation),
			NamespaceKey.String(namespace),
			RoomKey.String(room),
		),
	)
}

// RecordError marks a span as failed.
func RecordError(span trace.Span, err error) {
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
