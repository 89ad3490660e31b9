// Package checkpoint provides a durable, TTL-bounded key/value store for
// DeliberationState snapshots, keyed by (session_id, step_id), so a session
// can be paused and resumed from the last completed graph node (spec §4.4).
//
// The Store interface mirrors the teacher's small-composable-repository
// idiom (internal/storage/interface.go): callers depend on an interface,
// not a backend, and two backends exist — an in-memory store for tests and
// local dev, and a modernc.org/sqlite-backed durable store for production,
// the same memory/sqlite pairing the teacher ships.
package checkpoint

import (
	"context"
	"time"
)

// Key identifies one checkpoint: a session and the graph step it was taken
// after.
type Key struct {
	SessionID string
	StepID    string
}

// Record is one stored checkpoint: an opaque state blob plus the metadata
// needed to find, order, and expire it.
type Record struct {
	Key       Key
	State     []byte // JSON-encoded types.DeliberationState
	Sequence  int64  // monotonic within a session, for Latest()
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store is the checkpoint persistence contract. Implementations must be
// safe for concurrent use.
type Store interface {
	// Put stores a checkpoint, overwriting any existing record with the
	// same Key.
	Put(ctx context.Context, sessionID, stepID string, state []byte, ttl time.Duration) error

	// Get retrieves a specific checkpoint by key. Returns (nil, false, nil)
	// if the key does not exist or has expired.
	Get(ctx context.Context, sessionID, stepID string) (*Record, bool, error)

	// Latest retrieves the most recently stored, unexpired checkpoint for
	// a session. Returns (nil, false, nil) if none exist.
	Latest(ctx context.Context, sessionID string) (*Record, bool, error)

	// Delete removes every checkpoint for a session (used once a session
	// reaches a terminal state and its checkpoints are no longer needed
	// for resume).
	Delete(ctx context.Context, sessionID string) error

	// Purge removes all expired checkpoints across every session. Callers
	// run this periodically rather than on every Put, matching the
	// teacher's lazy-eviction idiom in internal/storage/memory.go's
	// content index (evictLRUIndexEntries is triggered by size, not by a
	// background sweep; Purge here is the time-bounded analogue).
	Purge(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
