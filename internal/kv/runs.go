package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const totalsKey = "totals"

// RunRecord is the persisted summary of one completed sweep run.
type RunRecord struct {
	RunID       string `json:"run_id"`
	LockKey     string `json:"lock_key"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at"`
	Total       int    `json:"total"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
	Retries     int    `json:"retries"`
	SuccessRate string `json:"success_rate"`
	Error       string `json:"error,omitempty"`
}

// RunTotals aggregates counts across all recorded runs.
type RunTotals struct {
	Runs      int `json:"runs"`
	Items     int `json:"items"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// RunStore persists run history in a NATS KV bucket.
type RunStore struct {
	store *Store
}

// NewRunStore creates a new RunStore.
func NewRunStore(kv jetstream.KeyValue) *RunStore {
	return &RunStore{store: NewStore(kv)}
}

// Record stores a run record and folds it into the aggregate totals.
func (r *RunStore) Record(ctx context.Context, rec *RunRecord) error {
	if _, err := r.store.PutJSON(ctx, runKey(rec), rec); err != nil {
		return fmt.Errorf("record run %s: %w", rec.RunID, err)
	}

	var totals RunTotals
	if err := r.store.UpdateJSON(ctx, totalsKey, &totals, func() {
		totals.Runs++
		totals.Items += rec.Total
		totals.Succeeded += rec.Succeeded
		totals.Failed += rec.Failed
	}); err != nil {
		return fmt.Errorf("update run totals: %w", err)
	}
	return nil
}

// Get retrieves a run record by key.
func (r *RunStore) Get(ctx context.Context, key string) (*RunRecord, error) {
	var rec RunRecord
	if _, err := r.store.GetJSON(ctx, key, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Latest returns the most recently started run, or nil when none exist.
func (r *RunStore) Latest(ctx context.Context) (*RunRecord, error) {
	keys, err := r.store.Keys(ctx)
	if err != nil {
		return nil, err
	}

	var latest *RunRecord
	for _, key := range keys {
		if key == totalsKey {
			continue
		}
		rec, err := r.Get(ctx, key)
		if err != nil {
			continue
		}
		if latest == nil || rec.StartedAt > latest.StartedAt {
			latest = rec
		}
	}
	return latest, nil
}

// Totals returns the aggregate counts across all runs.
func (r *RunStore) Totals(ctx context.Context) (*RunTotals, error) {
	var totals RunTotals
	if _, err := r.store.GetJSON(ctx, totalsKey, &totals); err != nil {
		if err == jetstream.ErrKeyNotFound {
			return &RunTotals{}, nil
		}
		return nil, err
	}
	return &totals, nil
}

// Ping measures a KV round trip for health reporting.
func (r *RunStore) Ping(ctx context.Context) time.Duration {
	start := time.Now()
	r.store.Exists(ctx, totalsKey)
	return time.Since(start)
}

// runKey orders run records chronologically; the run ID breaks ties.
// KV keys cannot contain colons, so the timestamp is compacted.
func runKey(rec *RunRecord) string {
	started, err := time.Parse(time.RFC3339, rec.StartedAt)
	if err != nil {
		started = time.Now()
	}
	return fmt.Sprintf("run.%s.%s", started.UTC().Format("20060102T150405"), rec.RunID)
}
