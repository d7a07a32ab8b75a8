package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/calc/pkg/calc/session"
)

// storeFactory creates a store instance for testing.
type storeFactory func(t *testing.T) session.Store

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newSession(id string, lastAccess time.Time) *session.Session {
	s := session.New(id, epoch)
	s.Touch(lastAccess)
	return s
}

// storeContractTest runs contract tests against any Store implementation.
func storeContractTest(t *testing.T, name string, factory storeFactory) {
	t.Run(name+"/Save_and_Load", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		s := newSession("sess-1", epoch)
		s.Expression = "a + b * 2"
		s.Vars["a"] = 3
		s.Vars["b"] = -4
		require.NoError(t, store.Save(s))

		loaded, err := store.Load("sess-1")
		require.NoError(t, err)
		assert.Equal(t, "sess-1", loaded.ID)
		assert.Equal(t, session.Version, loaded.Version)
		assert.Equal(t, "a + b * 2", loaded.Expression)
		assert.Equal(t, map[string]int{"a": 3, "b": -4}, loaded.Vars)
		assert.True(t, loaded.CreatedAt.Equal(epoch))
		assert.True(t, loaded.LastAccess.Equal(epoch))
	})

	t.Run(name+"/Load_NotFound", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Load("sess-missing")
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run(name+"/Save_Overwrite", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		s := newSession("sess-1", epoch)
		s.Expression = "1"
		require.NoError(t, store.Save(s))

		s.Expression = "2"
		s.Touch(epoch.Add(time.Minute))
		require.NoError(t, store.Save(s))

		loaded, err := store.Load("sess-1")
		require.NoError(t, err)
		assert.Equal(t, "2", loaded.Expression)
		assert.True(t, loaded.LastAccess.Equal(epoch.Add(time.Minute)))

		n, err := store.Len()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run(name+"/Delete", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save(newSession("sess-1", epoch)))
		require.NoError(t, store.Delete("sess-1"))

		_, err := store.Load("sess-1")
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run(name+"/Delete_Nonexistent", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		assert.NoError(t, store.Delete("sess-missing"))
	})

	t.Run(name+"/ListIdle", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save(newSession("c", epoch)))
		require.NoError(t, store.Save(newSession("a", epoch.Add(-time.Hour))))
		require.NoError(t, store.Save(newSession("b", epoch.Add(time.Hour))))

		ids, err := store.ListIdle(epoch.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, ids)

		// The cutoff itself is not idle.
		ids, err = store.ListIdle(epoch)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, ids)
	})

	t.Run(name+"/DeleteIfIdle", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save(newSession("idle", epoch.Add(-time.Hour))))
		require.NoError(t, store.Save(newSession("busy", epoch)))

		ok, err := store.DeleteIfIdle("busy", epoch)
		require.NoError(t, err)
		assert.False(t, ok, "cutoff itself is not idle")
		_, err = store.Load("busy")
		assert.NoError(t, err)

		ok, err = store.DeleteIfIdle("idle", epoch)
		require.NoError(t, err)
		assert.True(t, ok)
		_, err = store.Load("idle")
		assert.ErrorIs(t, err, session.ErrNotFound)

		ok, err = store.DeleteIfIdle("missing", epoch)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run(name+"/ListIdle_Empty", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		ids, err := store.ListIdle(epoch)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run(name+"/DataCopy", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		s := newSession("sess-1", epoch)
		s.Vars["x"] = 1
		require.NoError(t, store.Save(s))

		// Modify after save
		s.Vars["x"] = 99

		loaded, err := store.Load("sess-1")
		require.NoError(t, err)
		assert.Equal(t, 1, loaded.Vars["x"])

		// Modify after load
		loaded.Vars["x"] = 42
		again, err := store.Load("sess-1")
		require.NoError(t, err)
		assert.Equal(t, 1, again.Vars["x"])
	})

	t.Run(name+"/Close_ThenError", func(t *testing.T) {
		store := factory(t)

		require.NoError(t, store.Close())
		require.NoError(t, store.Close())

		_, err := store.Load("sess-1")
		assert.ErrorIs(t, err, session.ErrStoreClosed)
		assert.ErrorIs(t, store.Save(newSession("sess-1", epoch)), session.ErrStoreClosed)
		assert.ErrorIs(t, store.Delete("sess-1"), session.ErrStoreClosed)
		_, err = store.DeleteIfIdle("sess-1", epoch)
		assert.ErrorIs(t, err, session.ErrStoreClosed)
		_, err = store.ListIdle(epoch)
		assert.ErrorIs(t, err, session.ErrStoreClosed)
		_, err = store.Len()
		assert.ErrorIs(t, err, session.ErrStoreClosed)
	})
}

func TestMemoryStore(t *testing.T) {
	factory := func(t *testing.T) session.Store {
		return session.NewMemoryStore()
	}
	storeContractTest(t, "MemoryStore", factory)
}

func TestSQLiteStore(t *testing.T) {
	factory := func(t *testing.T) session.Store {
		store, err := session.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	}
	storeContractTest(t, "SQLiteStore", factory)
}
