package pruner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"bootstrap-signaling/pkg/clock"
)

type countingRegistry struct {
	calls atomic.Int64
}

func (r *countingRegistry) PruneExpired(now int64) {
	r.calls.Add(1)
}

func TestRun_SweepsOnEveryTickUntilCancelled(t *testing.T) {
	reg := &countingRegistry{}
	p := New(reg, clock.New(), 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Run to return promptly after cancellation")
	}

	if reg.calls.Load() == 0 {
		t.Fatalf("expected at least one sweep before cancellation")
	}
}

func TestNew_DefaultsIntervalWhenNonPositive(t *testing.T) {
	p := New(&countingRegistry{}, clock.New(), 0, nil)
	if p.interval != 30*time.Second {
		t.Fatalf("expected default interval of 30s, got %v", p.interval)
	}
}
