package checkpoint

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlitePath := filepath.Join(t.TempDir(), "checkpoints.db")
	sqliteStore, err := NewSQLiteStore(sqlitePath, 2000)
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Put(ctx, "sess-1", "decompose", []byte(`{"step":"decompose"}`), time.Hour)
			require.NoError(t, err)

			rec, ok, err := store.Get(ctx, "sess-1", "decompose")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, `{"step":"decompose"}`, string(rec.State))
		})
	}
}

func TestGetMissingKey(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Get(ctx, "sess-missing", "step-missing")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestLatestReturnsMostRecent(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "sess-1", "decompose", []byte("1"), time.Hour))
			require.NoError(t, store.Put(ctx, "sess-1", "round-1", []byte("2"), time.Hour))
			require.NoError(t, store.Put(ctx, "sess-1", "round-2", []byte("3"), time.Hour))

			rec, ok, err := store.Latest(ctx, "sess-1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "round-2", rec.Key.StepID)
		})
	}
}

func TestExpiredCheckpointNotReturned(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "sess-1", "decompose", []byte("1"), -time.Second))

			_, ok, err := store.Get(ctx, "sess-1", "decompose")
			require.NoError(t, err)
			assert.False(t, ok)

			_, ok, err = store.Latest(ctx, "sess-1")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestDeleteRemovesAllStepsForSession(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "sess-1", "decompose", []byte("1"), time.Hour))
			require.NoError(t, store.Put(ctx, "sess-1", "round-1", []byte("2"), time.Hour))

			require.NoError(t, store.Delete(ctx, "sess-1"))

			_, ok, _ := store.Get(ctx, "sess-1", "decompose")
			assert.False(t, ok)
			_, ok, _ = store.Get(ctx, "sess-1", "round-1")
			assert.False(t, ok)
		})
	}
}

func TestPurgeRemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "sess-1", "expired", []byte("1"), -time.Second))
			require.NoError(t, store.Put(ctx, "sess-1", "fresh", []byte("2"), time.Hour))

			n, err := store.Purge(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			_, ok, _ := store.Get(ctx, "sess-1", "fresh")
			assert.True(t, ok)
		})
	}
}

func TestPutOverwritesSameKey(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "sess-1", "decompose", []byte("first"), time.Hour))
			require.NoError(t, store.Put(ctx, "sess-1", "decompose", []byte("second"), time.Hour))

			rec, ok, err := store.Get(ctx, "sess-1", "decompose")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "second", string(rec.State))
		})
	}
}
