package device

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kvStore interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	Close() error
}

func TestStores(t *testing.T) {
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "device.db"))
	require.NoError(t, err)

	stores := []struct {
		name  string
		store kvStore
	}{
		{name: "sqlite", store: sqlite},
		{name: "memory", store: NewMemoryStore()},
	}
	for _, tt := range stores {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			defer func() { assert.NoError(t, tt.store.Close()) }()

			_, ok, err := tt.store.GetItem(ctx, "pense.auth.token")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, tt.store.SetItem(ctx, "pense.auth.token", `{"a":1}`))
			require.NoError(t, tt.store.SetItem(ctx, "pense.auth.token", `{"a":2}`))
			v, ok, err := tt.store.GetItem(ctx, "pense.auth.token")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `{"a":2}`, v)

			require.NoError(t, tt.store.RemoveItem(ctx, "pense.auth.token"))
			_, ok, _ = tt.store.GetItem(ctx, "pense.auth.token")
			assert.False(t, ok)

			// removing a missing key is not an error
			assert.NoError(t, tt.store.RemoveItem(ctx, "missing"))
		})
	}
}

func TestSQLiteStore_persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "device.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.SetItem(ctx, "k", "v"))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	v, ok, err := s.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
