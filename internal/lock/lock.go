// Package lock implements the date-scoped mutual-exclusion token that
// guarantees at most one sweep run at a time across a scheduler fleet.
//
// The token lives in a NATS KV bucket. Acquisition uses the bucket's atomic
// create-if-absent, so there is no window between checking and claiming the
// key. Staleness is a recovery heuristic for crashed holders, not a
// revocation protocol: a token older than the threshold is presumed
// abandoned and reclaimed.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// DefaultStaleAfter is the default token age beyond which a lock is
// presumed abandoned.
const DefaultStaleAfter = time.Hour

// Token is the JSON payload stored under the lock key.
type Token struct {
	StartedAt time.Time `json:"started_at"`
	OwnerID   string    `json:"owner_id"`
}

// TokenStore is the KV surface the manager needs.
type TokenStore interface {
	Create(ctx context.Context, key string, value []byte) (uint64, error)
	Entry(ctx context.Context, key string) ([]byte, time.Time, error)
	Delete(ctx context.Context, key string) error
}

// Manager acquires, inspects, and releases lock tokens.
type Manager struct {
	store      TokenStore
	staleAfter time.Duration
	now        func() time.Time
}

// New creates a Manager. A non-positive staleAfter falls back to
// DefaultStaleAfter.
func New(store TokenStore, staleAfter time.Duration) *Manager {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Manager{store: store, staleAfter: staleAfter, now: time.Now}
}

// Key derives the lock key for a job on a given day: "<job>-lock-<YYYY-MM-DD>".
func Key(job string, day time.Time) string {
	return fmt.Sprintf("%s-lock-%s", job, day.UTC().Format("2006-01-02"))
}

// IsHeld reports whether a live token exists for key. A token older than the
// staleness threshold is deleted as a side effect and reported as not held.
// Store errors also report not held: a missed mutual-exclusion window is
// cheaper than a sweep that can never run (fail-open policy).
func (m *Manager) IsHeld(ctx context.Context, key string) bool {
	_, created, err := m.store.Entry(ctx, key)
	if err != nil {
		if !errors.Is(err, jetstream.ErrKeyNotFound) {
			slog.Warn("lock check failed, treating as not held", "key", key, "error", err)
		}
		return false
	}

	age := m.now().Sub(created)
	if age >= m.staleAfter {
		slog.Info("reclaiming stale lock", "key", key, "age", age.String())
		if err := m.store.Delete(ctx, key); err != nil {
			slog.Warn("failed to delete stale lock", "key", key, "error", err)
		}
		return false
	}
	return true
}

// Acquire writes a token for key owned by ownerID. It fails if another
// holder's live token exists or the store write fails; the caller must abort
// the run in that case. A stale token found during acquisition is reclaimed
// and acquisition retried once.
func (m *Manager) Acquire(ctx context.Context, key, ownerID string) error {
	data, err := json.Marshal(Token{StartedAt: m.now(), OwnerID: ownerID})
	if err != nil {
		return fmt.Errorf("marshal lock token: %w", err)
	}

	_, err = m.store.Create(ctx, key, data)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrKeyExists) {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}

	// Lost a race or a holder crashed. Reclaim only if the token is stale.
	_, created, entryErr := m.store.Entry(ctx, key)
	if entryErr == nil && m.now().Sub(created) >= m.staleAfter {
		if delErr := m.store.Delete(ctx, key); delErr == nil {
			if _, retryErr := m.store.Create(ctx, key, data); retryErr == nil {
				return nil
			}
		}
	}
	return fmt.Errorf("acquire lock %s: already held", key)
}

// Release deletes the token for key. Idempotent and never fails the caller:
// a leaked token self-heals through the staleness check on the next run.
func (m *Manager) Release(ctx context.Context, key string) {
	if err := m.store.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		slog.Warn("failed to release lock", "key", key, "error", err)
	}
}
