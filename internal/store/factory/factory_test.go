package factory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analysis-backend/internal/store/gormstore"
	"analysis-backend/internal/store/memory"
	"analysis-backend/internal/store/types"
)

func TestNewStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		store, err := NewStore(&types.Config{Type: "memory"})
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := NewStore(&types.Config{
			Type:   "sqlite",
			SQLite: types.SQLiteConfig{Path: filepath.Join(t.TempDir(), "tasks.db")},
		})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &gormstore.Store{}, store)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewStore(&types.Config{Type: "redis"})
		assert.EqualError(t, err, "unknown storage type: redis")
	})
}
