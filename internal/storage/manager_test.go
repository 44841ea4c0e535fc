// manager_test.go - Tests for the staging store
package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates staging directory", func(t *testing.T) {
		stagingDir := filepath.Join(t.TempDir(), "staging")

		store, err := NewLocalStore(stagingDir)
		require.NoError(t, err)
		require.NotNil(t, store)

		if _, err := os.Stat(stagingDir); os.IsNotExist(err) {
			t.Error("Expected staging directory to be created")
		}
	})
}

func TestNewLocalStore_RemovesStaleFiles(t *testing.T) {
	stagingDir := t.TempDir()

	previous, err := NewLocalStore(stagingDir)
	require.NoError(t, err)
	_, err = previous.Save("left-behind.txt", "text/plain", strings.NewReader("stale"))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(stagingDir, "partial"), 0755))

	store, err := NewLocalStore(stagingDir)
	require.NoError(t, err)

	entries, err := os.ReadDir(stagingDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "files from a previous run cannot be reached and must not pile up")
	assert.Equal(t, 0, store.Count())
}

func TestLocalStore_Save(t *testing.T) {
	t.Run("saves file from reader", func(t *testing.T) {
		store := createTestStore(t)

		file, err := store.Save("notes.txt", "text/plain", strings.NewReader("Hello, World!"))
		require.NoError(t, err)

		assert.NotEmpty(t, file.ID)
		assert.Equal(t, "notes.txt", file.Name)
		assert.Equal(t, int64(13), file.Size)
		assert.Equal(t, "text/plain", file.MediaType)
		assert.False(t, file.AddedAt.IsZero())
	})

	t.Run("keeps empty media type", func(t *testing.T) {
		store := createTestStore(t)

		file, err := store.Save("blob", "", strings.NewReader("x"))
		require.NoError(t, err)
		assert.Empty(t, file.MediaType)
	})

	t.Run("creates physical file", func(t *testing.T) {
		store := createTestStore(t)

		file, err := store.Save("doc.pdf", "application/pdf", strings.NewReader("%PDF"))
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(store.stagingDir, file.ID))
		require.NoError(t, err)
		assert.Equal(t, "%PDF", string(data))
	})

	t.Run("same name gets distinct ids", func(t *testing.T) {
		store := createTestStore(t)

		a, err := store.Save("dup.txt", "", strings.NewReader("a"))
		require.NoError(t, err)
		b, err := store.Save("dup.txt", "", strings.NewReader("b"))
		require.NoError(t, err)

		assert.NotEqual(t, a.ID, b.ID)
		assert.Equal(t, 2, store.Count())
	})
}

func TestLocalStore_Open(t *testing.T) {
	store := createTestStore(t)

	file, err := store.Save("a.txt", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)

	rc, err := store.Open(file.ID)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = store.Open("missing")
	assert.Error(t, err)
}

func TestLocalStore_Delete(t *testing.T) {
	store := createTestStore(t)

	file, err := store.Save("a.txt", "", strings.NewReader("hello"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(file.ID))

	_, err = store.Open(file.ID)
	assert.Error(t, err)
	_, err = os.Stat(filepath.Join(store.stagingDir, file.ID))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, store.Delete(file.ID), "second delete should report missing file")
}
