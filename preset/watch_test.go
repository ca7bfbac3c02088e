package preset

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		require.True(t, ok, "events closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
	}
	return Event{}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	shader := filepath.Join(dir, "crt.slang")
	include := filepath.Join(dir, "inc", "common.inc")
	other := filepath.Join(dir, "notes.txt")
	writeFile(t, shader, "#version 450\n")
	writeFile(t, include, "// common\n")
	writeFile(t, other, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := Watch(ctx, []string{shader, include}, WatchOptions{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(shader, []byte("#version 450\n// edit\n"), 0o644))
	require.NoError(t, os.WriteFile(include, []byte("// edit\n"), 0o644))
	// The writes may straddle debounce windows.
	seen := make(map[string]bool)
	for !seen[shader] || !seen[include] {
		for _, p := range nextEvent(t, w).Paths {
			seen[p] = true
		}
	}
	assert.Len(t, seen, 2, "unwatched files in the same directory are ignored")

	// Replacing by rename is seen on the watched name.
	tmp := filepath.Join(dir, "crt.slang.tmp")
	writeFile(t, tmp, "#version 450\n// renamed\n")
	require.NoError(t, os.Rename(tmp, shader))
	for !slices.Contains(nextEvent(t, w).Paths, shader) {
	}

	cancel()
	select {
	case _, ok := <-w.Events():
		for ok {
			_, ok = <-w.Events()
		}
	case <-time.After(5 * time.Second):
		t.Fatal("events not closed after cancel")
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	_, err := Watch(context.Background(), []string{filepath.Join(t.TempDir(), "gone", "a.slang")}, WatchOptions{})
	assert.Error(t, err)
}
