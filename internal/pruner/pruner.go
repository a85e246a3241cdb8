// Package pruner runs the periodic rendezvous expiry sweep. Grounded on
// the teacher's internal/infrastructure/monitoring/health_check.go
// runCheckPeriodically: a ticker loop selecting on ctx.Done() so
// process shutdown is never blocked by a background task.
package pruner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bootstrap-signaling/pkg/clock"
)

// Registry is the subset of rendezvous.Registry the pruner depends on.
type Registry interface {
	PruneExpired(now int64)
}

// Pruner calls Registry.PruneExpired on a fixed cadence until stopped.
type Pruner struct {
	registry Registry
	clock    clock.Clock
	interval time.Duration
	logger   *zap.SugaredLogger
	runID    string
}

// New builds a Pruner with the given sweep interval (default 30s per
// spec §4.8 when interval <= 0). logger may be nil; sweeps are then
// silent. Each Pruner gets its own run id so sweep log lines can be
// correlated across a process's lifetime independent of the rendezvous
// registry's own ids.
func New(registry Registry, c clock.Clock, interval time.Duration, logger *zap.SugaredLogger) *Pruner {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Pruner{registry: registry, clock: c, interval: interval, logger: logger, runID: uuid.NewString()}
}

// Run blocks, sweeping on every tick, until ctx is done. Must not
// prevent process shutdown: the caller runs this in its own goroutine
// and cancels ctx to stop it.
func (p *Pruner) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if p.logger != nil {
		p.logger.Debugw("pruner.started", "runId", p.runID, "interval", p.interval)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.registry.PruneExpired(p.clock.NowMS())
			if p.logger != nil {
				p.logger.Debugw("pruner.swept", "runId", p.runID)
			}
		}
	}
}
