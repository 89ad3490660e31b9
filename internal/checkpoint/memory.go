package checkpoint

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore is an in-memory Store, used for tests and local development.
// Thread-safety follows the teacher's internal/storage/memory.go pattern:
// a single RWMutex guards all maps, and readers receive copies rather than
// references to stored records.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[Key]*Record
	sequence atomic.Int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[Key]*Record),
	}
}

func (m *MemoryStore) Put(ctx context.Context, sessionID, stepID string, state []byte, ttl time.Duration) error {
	now := time.Now()
	stateCopy := make([]byte, len(state))
	copy(stateCopy, state)

	rec := &Record{
		Key:       Key{SessionID: sessionID, StepID: stepID},
		State:     stateCopy,
		Sequence:  m.sequence.Add(1),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	m.mu.Lock()
	m.records[rec.Key] = rec
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, sessionID, stepID string) (*Record, bool, error) {
	m.mu.RLock()
	rec, ok := m.records[Key{SessionID: sessionID, StepID: stepID}]
	m.mu.RUnlock()
	if !ok || time.Now().After(rec.ExpiresAt) {
		return nil, false, nil
	}
	return copyRecord(rec), true, nil
}

func (m *MemoryStore) Latest(ctx context.Context, sessionID string) (*Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *Record
	now := time.Now()
	for key, rec := range m.records {
		if key.SessionID != sessionID || now.After(rec.ExpiresAt) {
			continue
		}
		if latest == nil || rec.Sequence > latest.Sequence {
			latest = rec
		}
	}
	if latest == nil {
		return nil, false, nil
	}
	return copyRecord(latest), true, nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.records {
		if key.SessionID == sessionID {
			delete(m.records, key)
		}
	}
	return nil
}

func (m *MemoryStore) Purge(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	purged := 0
	for key, rec := range m.records {
		if now.After(rec.ExpiresAt) {
			delete(m.records, key)
			purged++
		}
	}
	return purged, nil
}

func (m *MemoryStore) Close() error { return nil }

func copyRecord(rec *Record) *Record {
	out := *rec
	out.State = make([]byte, len(rec.State))
	copy(out.State, rec.State)
	return &out
}
