package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect_MissingArtifact(t *testing.T) {
	info, err := Inspect(filepath.Join(t.TempDir(), "missing.index"))

	require.NoError(t, err)
	assert.False(t, info.Exists)
	assert.Empty(t, info.Hash)
}

func TestInspect_FileArtifact(t *testing.T) {
	// Given: a single-file artifact with a known mtime
	path := filepath.Join(t.TempDir(), "docs.index")
	require.NoError(t, os.WriteFile(path, []byte("index bytes"), 0o644))
	created := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, created, created))

	// When: inspecting it
	info, err := Inspect(path)
	require.NoError(t, err)

	// Then: existence, creation time, size, and a stable hash
	assert.True(t, info.Exists)
	assert.True(t, info.CreatedAt.Equal(created))
	assert.Equal(t, int64(len("index bytes")), info.SizeBytes)
	assert.Len(t, info.Hash, 64)

	again, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, info.Hash, again.Hash)
}

func TestInspect_FileHashChangesWithContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.index")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	first, err := Inspect(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	second, err := Inspect(path)
	require.NoError(t, err)

	assert.NotEqual(t, first.Hash, second.Hash)
}

func TestInspect_DirectoryArtifact(t *testing.T) {
	// Given: a directory artifact with two segment files
	dir := filepath.Join(t.TempDir(), "code.index")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg0"), []byte("aaaa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg1"), []byte("bb"), 0o644))

	// When: inspecting it
	info, err := Inspect(dir)
	require.NoError(t, err)

	// Then: size aggregates over entries and the manifest hash is stable
	assert.True(t, info.Exists)
	assert.Equal(t, int64(6), info.SizeBytes)
	assert.Len(t, info.Hash, 64)

	again, err := Inspect(dir)
	require.NoError(t, err)
	assert.Equal(t, info.Hash, again.Hash)
}

func TestInspect_DirectoryHashChangesWithEntries(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "code.index")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg0"), []byte("aaaa"), 0o644))

	first, err := Inspect(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg1"), []byte("bb"), 0o644))
	second, err := Inspect(dir)
	require.NoError(t, err)

	assert.NotEqual(t, first.Hash, second.Hash)
}
