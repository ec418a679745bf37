package storage

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	dir := t.TempDir()
	store, err := NewLocalStore(filepath.Join(dir, "uploads"), filepath.Join(dir, "merged"))
	require.NoError(t, err)
	return store
}

func TestSaveUploadKeepsReUploadsApart(t *testing.T) {
	store := newTestStore(t)

	first, n1, err := store.SaveUpload("sess-1", "patient", "take1.webm", bytes.NewReader([]byte("first")))
	require.NoError(t, err)
	second, n2, err := store.SaveUpload("sess-1", "patient", "take2.webm", bytes.NewReader([]byte("second!")))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, int64(5), n1)
	assert.Equal(t, int64(7), n2)
	assert.True(t, store.Exists(first))
	assert.True(t, store.Exists(second))
}

func TestSafeExt(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		want     string
	}{
		{name: "webm kept", fileName: "recording.webm", want: ".webm"},
		{name: "uppercase lowered", fileName: "RECORDING.OGG", want: ".ogg"},
		{name: "no extension defaults", fileName: "recording", want: ".webm"},
		{name: "path traversal chars rejected", fileName: "x.we/bm", want: ".webm"},
		{name: "oversized extension rejected", fileName: "x.verylongext", want: ".webm"},
		{name: "mp4 kept", fileName: "clip.mp4", want: ".mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, safeExt(tt.fileName))
		})
	}
}

func TestSaveUploadSanitizesHostileNames(t *testing.T) {
	store := newTestStore(t)

	path, _, err := store.SaveUpload("sess-1", "doctor", "../../etc/passwd", bytes.NewReader([]byte("data")))
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(path, ".webm"))
	assert.Equal(t, store.uploadDir, filepath.Dir(path))
}

func TestCopyPromotesSingleTrack(t *testing.T) {
	store := newTestStore(t)

	src, _, err := store.SaveUpload("sess-2", "patient", "only.webm", bytes.NewReader([]byte("solo track")))
	require.NoError(t, err)

	dst := store.MergedPath("sess-2", ".webm")
	require.NoError(t, store.Copy(src, dst))

	size, err := store.Size(dst)
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)
}

func TestRemoveIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	path, _, err := store.SaveUpload("sess-3", "patient", "x.webm", bytes.NewReader([]byte("abc")))
	require.NoError(t, err)

	require.NoError(t, store.Remove(path))
	require.NoError(t, store.Remove(path))
	assert.False(t, store.Exists(path))
}
