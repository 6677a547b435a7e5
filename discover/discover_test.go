package discover

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var layout = Layout{Suffix: "_proofread"}

func touch(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLayout(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "scan_proofread.txt"), layout.OutputPath(filepath.Join("a", "scan.txt")))
	assert.Equal(t, "notes_proofread", layout.OutputPath("notes"))

	assert.True(t, layout.IsInput("a/scan.txt"))
	assert.True(t, layout.IsInput("a/SCAN.TXT"))
	assert.False(t, layout.IsInput("a/scan.md"))
	assert.False(t, layout.IsInput("a/scan_proofread.txt"))
	assert.False(t, layout.IsInput("a/scan_proofread_v2.txt"))
	assert.True(t, layout.IsOutput("scan_proofread.txt"))

	md := Layout{Suffix: "_fixed", Ext: ".md"}
	assert.True(t, md.IsInput("x.md"))
	assert.False(t, md.IsInput("x.txt"))
}

func TestWalk(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "b.txt"), "second")
	touch(t, filepath.Join(base, "a.txt"), "first")
	touch(t, filepath.Join(base, "nested", "deep", "c.txt"), "third")
	touch(t, filepath.Join(base, "done.txt"), "already")
	touch(t, filepath.Join(base, "done_proofread.txt"), "result")
	touch(t, filepath.Join(base, "orphan_proofread.txt"), "result without input")
	touch(t, filepath.Join(base, "readme.md"), "ignored")

	docs, err := Walk(base, layout, quiet)
	require.NoError(t, err)

	var paths []string
	for _, d := range docs {
		paths = append(paths, d.Path)
		assert.Equal(t, layout.OutputPath(d.Path), d.Output)
		assert.False(t, d.Processed())
	}
	assert.Equal(t, []string{
		filepath.Join(base, "a.txt"),
		filepath.Join(base, "b.txt"),
		filepath.Join(base, "nested", "deep", "c.txt"),
	}, paths)
}

func TestWalk_MissingBase(t *testing.T) {
	_, err := Walk(filepath.Join(t.TempDir(), "nope"), layout, quiet)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan_proofread.txt")

	require.NoError(t, WriteAtomic(path, []byte("first")))
	require.NoError(t, WriteAtomic(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")

	err = WriteAtomic(filepath.Join(dir, "missing", "x.txt"), []byte("x"))
	assert.Error(t, err)
}

func receive(t *testing.T, ch <-chan Document) Document {
	t.Helper()
	select {
	case d, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for document")
		return Document{}
	}
}

func TestWatch(t *testing.T) {
	base := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := Watch(ctx, base, WatchOptions{Layout: layout, Settle: 50 * time.Millisecond, Logger: quiet})
	require.NoError(t, err)

	touch(t, filepath.Join(base, "skip_proofread.txt"), "output")
	touch(t, filepath.Join(base, "new.txt"), "hello")

	d := receive(t, ch)
	assert.Equal(t, filepath.Join(base, "new.txt"), d.Path)
	assert.Equal(t, filepath.Join(base, "new_proofread.txt"), d.Output)

	touch(t, filepath.Join(base, "sub", "inner.txt"), "nested")
	d = receive(t, ch)
	assert.Equal(t, filepath.Join(base, "sub", "inner.txt"), d.Path)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestWatch_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f.txt")
	touch(t, file, "x")

	_, err := Watch(context.Background(), file, WatchOptions{Layout: layout})
	assert.ErrorIs(t, err, ErrNotDirectory)
}
