package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Lifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	data := []byte(`{"type":"relation","id":1}`)
	require.NoError(t, store.Put(ctx, "pass1/input.ndjson", data))

	_, err := os.Stat(filepath.Join(tmpDir, "pass1", "input.ndjson"))
	require.NoError(t, err)

	rc, err := store.Open(ctx, "pass1/input.ndjson")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, got)

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "pass1/input.ndjson", []byte("v2")))
		rc, err := store.Open(ctx, "pass1/input.ndjson")
		require.NoError(t, err)
		defer rc.Close()
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got))
	})

	t.Run("list", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "report.json", []byte("{}")))
		names, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"pass1/input.ndjson", "report.json"}, names)

		names, err = store.List(ctx, "pass1/")
		require.NoError(t, err)
		assert.Equal(t, []string{"pass1/input.ndjson"}, names)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := store.Open(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.Open(cctx, "report.json")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "b", data))
	require.NoError(t, store.Put(ctx, "a", []byte("x")))
	data[0] = 'z'

	rc, err := store.Open(ctx, "b")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got), "put must copy")

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	_, err = store.Open(ctx, "c")
	assert.ErrorIs(t, err, ErrNotFound)
}
