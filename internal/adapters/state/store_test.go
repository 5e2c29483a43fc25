package state_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lpkg/internal/adapters/state"
	"go.trai.ch/lpkg/internal/core/domain"
)

func TestStore_PutGet(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	store := state.NewStore(tmpDir)

	st := domain.BuildState{
		Node:           "mlfs/binutils@pass-1",
		DefinitionHash: "0123456789abcdef",
		LastPhase:      2,
		Status:         domain.StatusFailed,
		Timestamp:      time.Now().Truncate(time.Second).UTC(),
	}

	t.Run("put and get", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, store.Put(st))

		got, err := store.Get("mlfs/binutils@pass-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, st, *got)
	})

	t.Run("get missing", func(t *testing.T) {
		t.Parallel()
		got, err := store.Get("lfs/missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestStore_Overwrite(t *testing.T) {
	store := state.NewStore(t.TempDir())

	require.NoError(t, store.Put(domain.BuildState{Node: "lfs/zlib", LastPhase: 0, Status: domain.StatusFailed}))
	require.NoError(t, store.Put(domain.BuildState{Node: "lfs/zlib", LastPhase: 3, Status: domain.StatusSucceeded}))

	got, err := store.Get("lfs/zlib")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.LastPhase)
	assert.Equal(t, domain.StatusSucceeded, got.Status)
}

func TestStore_GetCorrupt(t *testing.T) {
	tmpDir := t.TempDir()
	store := state.NewStore(tmpDir)
	require.NoError(t, store.Put(domain.BuildState{Node: "lfs/zlib"}))

	// Corrupt the file. We find it by listing the directory.
	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, entries[0].Name()), []byte("{ invalid json"), 0o600))

	_, err = store.Get("lfs/zlib")
	assert.ErrorIs(t, err, domain.ErrStateReadFailed)
}
