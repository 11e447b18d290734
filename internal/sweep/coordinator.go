package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reportsweep/reportsweep/internal/kv"
	"github.com/reportsweep/reportsweep/internal/lock"
	"github.com/reportsweep/reportsweep/internal/metrics"
)

// Trigger carries scheduling metadata for one invocation. It is used for
// logging only; control flow never depends on it.
type Trigger struct {
	RunID        string
	ScheduledFor time.Time
	FiredAt      time.Time
	Late         bool
}

// LockManager brackets a run with mutual exclusion.
type LockManager interface {
	IsHeld(ctx context.Context, key string) bool
	Acquire(ctx context.Context, key, ownerID string) error
	Release(ctx context.Context, key string)
}

// Enumerator lists the item identifiers eligible for processing.
type Enumerator interface {
	List(ctx context.Context) ([]string, error)
}

// BatchRunner produces one outcome per item.
type BatchRunner interface {
	Run(ctx context.Context, items []string) []Outcome
}

// OutcomeRouter relocates failed items after a run.
type OutcomeRouter interface {
	Route(ctx context.Context, outcomes []Outcome)
}

// RunRecorder persists run summaries. Best-effort.
type RunRecorder interface {
	Record(ctx context.Context, rec *kv.RunRecord) error
}

// Coordinator is the top-level control flow of one sweep run: lock,
// enumerate, orchestrate, route, release.
type Coordinator struct {
	JobName string

	Locks   LockManager
	Items   Enumerator
	Engine  BatchRunner
	Routing OutcomeRouter
	Runs    RunRecorder

	// Ensure creates the supporting storage locations. Idempotent.
	Ensure func(ctx context.Context) error

	now func() time.Time
}

// Run executes one sweep. It returns nil on completion and on the expected
// early exits (lock held, nothing to process); the first fatal error is
// logged and returned after lock release has been attempted. The lock is
// released only if this invocation acquired it.
func (c *Coordinator) Run(ctx context.Context, trig Trigger) (err error) {
	start := c.clock()()
	key := lock.Key(c.JobName, start)

	slog.Info("sweep starting",
		"run_id", trig.RunID,
		"lock_key", key,
		"scheduled_for", trig.ScheduledFor.Format(time.RFC3339),
		"late", trig.Late,
	)

	if c.Locks.IsHeld(ctx, key) {
		slog.Info("another run holds the lock, skipping", "run_id", trig.RunID, "lock_key", key)
		metrics.RunsTotal.WithLabelValues(metrics.RunSkipped).Inc()
		return nil
	}

	if err := c.Locks.Acquire(ctx, key, trig.RunID); err != nil {
		slog.Error("lock acquisition failed, aborting run", "run_id", trig.RunID, "lock_key", key, "error", err)
		metrics.RunsTotal.WithLabelValues(metrics.RunFailed).Inc()
		return fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		c.Locks.Release(ctx, key)
		if err != nil {
			metrics.RunsTotal.WithLabelValues(metrics.RunFailed).Inc()
		}
	}()

	if c.Ensure != nil {
		if err := c.Ensure(ctx); err != nil {
			slog.Error("storage initialization failed, aborting run", "run_id", trig.RunID, "error", err)
			c.record(ctx, trig, key, start, Stats{}, err.Error())
			return fmt.Errorf("ensure storage locations: %w", err)
		}
	}

	items, err := c.Items.List(ctx)
	if err != nil {
		slog.Error("item enumeration failed, aborting run", "run_id", trig.RunID, "error", err)
		c.record(ctx, trig, key, start, Stats{}, err.Error())
		return fmt.Errorf("enumerate items: %w", err)
	}

	if len(items) == 0 {
		slog.Info("no items to process", "run_id", trig.RunID)
		metrics.RunsTotal.WithLabelValues(metrics.RunCompleted).Inc()
		c.record(ctx, trig, key, start, Stats{}, "")
		return nil
	}

	outcomes := c.Engine.Run(ctx, items)
	stats := Summarize(outcomes, c.clock()().Sub(start))

	slog.Info("sweep processing finished",
		"run_id", trig.RunID,
		"total", stats.Total,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"retries", stats.Retries,
		"success_rate", stats.SuccessRate(),
		"elapsed", stats.Elapsed.String(),
	)

	c.Routing.Route(ctx, outcomes)

	metrics.RunsTotal.WithLabelValues(metrics.RunCompleted).Inc()
	metrics.RunDuration.Observe(stats.Elapsed.Seconds())
	metrics.ObserveOutcomes(stats.Succeeded, stats.Failed, stats.Retries)

	c.record(ctx, trig, key, start, stats, "")
	return nil
}

func (c *Coordinator) record(ctx context.Context, trig Trigger, key string, start time.Time, stats Stats, runErr string) {
	if c.Runs == nil {
		return
	}
	rec := &kv.RunRecord{
		RunID:       trig.RunID,
		LockKey:     key,
		StartedAt:   start.UTC().Format(time.RFC3339),
		FinishedAt:  c.clock()().UTC().Format(time.RFC3339),
		Total:       stats.Total,
		Succeeded:   stats.Succeeded,
		Failed:      stats.Failed,
		Retries:     stats.Retries,
		SuccessRate: stats.SuccessRate(),
		Error:       runErr,
	}
	if err := c.Runs.Record(ctx, rec); err != nil {
		slog.Warn("failed to record run", "run_id", trig.RunID, "error", err)
	}
}

func (c *Coordinator) clock() func() time.Time {
	if c.now != nil {
		return c.now
	}
	return time.Now
}
