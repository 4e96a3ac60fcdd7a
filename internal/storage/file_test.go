package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreContract(t *testing.T) {
	exerciseStore(t, NewFileStore(t.TempDir()))
}

func TestFileStoreWritesRawTable(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewFileStore(root)
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.SavePolicy(ctx, samplePolicy("p1")))

	raw, err := os.ReadFile(filepath.Join(root, policiesDir, "p1"+tableExt))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, raw)

	meta, err := os.ReadFile(filepath.Join(root, policiesDir, "p1"+recordExt))
	require.NoError(t, err)
	assert.NotContains(t, string(meta), `"table"`)

	require.NoError(t, os.Remove(filepath.Join(root, policiesDir, "p1"+tableExt)))
	_, _, err = store.GetPolicy(ctx, "p1")
	require.Error(t, err)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	first := NewFileStore(root)
	require.NoError(t, first.Init(ctx))
	require.NoError(t, first.SaveRun(ctx, sampleRun("r1", "2026-01-01T00:00:00Z")))

	second := NewFileStore(root)
	require.NoError(t, second.Init(ctx))
	runs, err := second.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "r1", runs[0].ID)
}

func TestFileStoreRejectsPathIDs(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())
	require.NoError(t, store.Init(ctx))

	for _, id := range []string{"", "..", "a/b", `a\b`} {
		require.Error(t, store.SavePolicy(ctx, samplePolicy(id)), "id %q", id)
		_, _, err := store.GetRun(ctx, id)
		require.Error(t, err, "id %q", id)
	}
}

func TestFileStoreRequiresRoot(t *testing.T) {
	require.Error(t, NewFileStore("").Init(context.Background()))
}
