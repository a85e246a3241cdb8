package tracing

import (
	"context"
	"errors"
	"testing"
)

func TestInit_DisabledReturnsNoopProvider(t *testing.T) {
	p, err := Init(Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected no-op shutdown to succeed, got %v", err)
	}
}

func TestTraceHTTPRequest(t *testing.T) {
	ctx := context.Background()
	_, span := TraceHTTPRequest(ctx, "GET", "/bootstrap")
	if span == nil {
		t.Fatal("expected non-nil span")
	}
	span.End()
}

func TestTraceSignalingMessage(t *testing.T) {
	ctx := context.Background()
	_, span := TraceSignalingMessage(ctx, "heartbeat", "peer-123", "n", "r")
	if span == nil {
		t.Fatal("expected non-nil span")
	}
	span.End()
}

func TestTraceRendezvousOperation(t *testing.T) {
	ctx := context.Background()
	_, span := TraceRendezvousOperation(ctx, "register", "n", "r")
	if span == nil {
		t.Fatal("expected non-nil span")
	}
	span.End()
}

func TestRecordError_NilErrIsNoop(t *testing.T) {
	ctx := context.Background()
	_, span := TraceHTTPRequest(ctx, "GET", "/health")
	defer span.End()

	RecordError(span, nil)
	RecordError(span, errors.New("boom"))
}
