package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-extractor/constants"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	data := []byte("%PDF-1.4\n%test\n")
	path := filepath.Join(dir, "Receipt.PDF")
	writeFile(t, path, data)

	lf, err := ReadFile(path)
	require.NoError(t, err)

	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), lf.HashHex)
	assert.Equal(t, path, lf.Path)
	assert.Equal(t, "Receipt.PDF", lf.Input.FileName)
	assert.Equal(t, constants.MimePDF, lf.Input.MimeType)
	assert.Equal(t, int64(len(data)), lf.Input.Size)
	assert.Equal(t, data, lf.Input.Data)
	assert.NotEmpty(t, lf.Input.FileID)
}

func TestReadFileUnknownExtensionLeavesMimeEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.bin")
	writeFile(t, path, []byte("%PDF-1.7\n%%EOF\n"))

	lf, err := ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, lf.Input.MimeType)
	assert.NotEmpty(t, lf.Input.Data)
}

func TestReadFileFreshIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	writeFile(t, path, []byte{0x89, 'P', 'N', 'G'})

	a, err := ReadFile(path)
	require.NoError(t, err)
	b, err := ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, a.Input.FileID, b.Input.FileID)
	assert.Equal(t, a.HashHex, b.HashHex)
}

func TestReadFileOversizeNotRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.pdf")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(constants.MaxFileSizeBytes+1))
	require.NoError(t, f.Close())

	lf, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, constants.MaxFileSizeBytes+1, lf.Input.Size)
	assert.Empty(t, lf.Input.Data)
	assert.Empty(t, lf.HashHex)
}

func TestReadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadFile(filepath.Join(dir, "missing.pdf"))
	require.Error(t, err)

	_, err = ReadFile(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
}

func TestAllowedExt(t *testing.T) {
	tests := []struct {
		ext  string
		want bool
	}{
		{".pdf", true},
		{"PDF", true},
		{".JPEG", true},
		{".webp", true},
		{".gif", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want, AllowedExt(tt.ext))
		})
	}
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/tmp/.cache"))
	assert.True(t, IsHidden(".receipt.pdf"))
	assert.False(t, IsHidden("receipt.pdf"))
	assert.False(t, IsHidden("."))
	assert.False(t, IsHidden(".."))
}

func TestWalkDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.pdf"), []byte("x"))
	writeFile(t, filepath.Join(root, "a.JPG"), []byte("x"))
	writeFile(t, filepath.Join(root, "notes.txt"), []byte("x"))
	writeFile(t, filepath.Join(root, "sub", "c.png"), []byte("x"))
	writeFile(t, filepath.Join(root, ".hidden", "d.pdf"), []byte("x"))
	writeFile(t, filepath.Join(root, ".e.pdf"), []byte("x"))

	paths, stats, err := WalkDirectory(root, true, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.JPG"),
		filepath.Join(root, "b.pdf"),
		filepath.Join(root, "sub", "c.png"),
	}, paths)
	assert.Equal(t, uint32(3), stats.Matched)
	assert.Zero(t, stats.Failed)

	paths, _, err = WalkDirectory(root, false, nil)
	require.NoError(t, err)
	assert.Len(t, paths, 5)
}

func TestWalkDirectoryErrors(t *testing.T) {
	_, _, err := WalkDirectory("  ", true, nil)
	require.Error(t, err)

	_, _, err = WalkDirectory(filepath.Join(t.TempDir(), "nope"), true, nil)
	require.Error(t, err)
}

func TestStartWatcherRequiresRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	require.Error(t, err)
}

func TestStartWatcherInitialScanAndCreate(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "old.pdf")
	writeFile(t, existing, []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		SkipHidden:  true,
		Debounce:    20 * time.Millisecond,
	})
	require.NoError(t, err)

	select {
	case p := <-events:
		assert.Equal(t, existing, p)
	case <-time.After(5 * time.Second):
		t.Fatal("initial scan path not emitted")
	}

	created := filepath.Join(root, "new.png")
	writeFile(t, filepath.Join(root, "ignored.txt"), []byte("x"))
	writeFile(t, created, []byte("x"))

	select {
	case p := <-events:
		assert.Equal(t, created, p)
	case <-time.After(5 * time.Second):
		t.Fatal("created path not emitted")
	}

	cancel()
	for range events {
	}
}
