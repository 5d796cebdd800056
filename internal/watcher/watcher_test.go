package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string) (<-chan string, *Watcher) {
	t.Helper()
	changes := make(chan string, 64)
	w := New(Options{
		Root:  root,
		Match: func(p string) bool { return strings.HasSuffix(p, ".re") },
	}, func(p string) { changes <- p })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})

	// wait until the watch is established
	touched := filepath.Join(root, "touch.re")
	require.Eventually(t, func() bool {
		_ = os.WriteFile(touched, []byte("x"), 0o644)
		select {
		case <-changes:
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	drain(changes)
	return changes, w
}

func drain(ch <-chan string) {
	for {
		select {
		case <-ch:
		case <-time.After(100 * time.Millisecond):
			return
		}
	}
}

func next(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	return ""
}

func TestWatcherReportsSourceWrites(t *testing.T) {
	root := t.TempDir()
	changes, w := startWatcher(t, root)

	file := filepath.Join(root, "a.re")
	require.NoError(t, os.WriteFile(file, []byte("let x = 1;"), 0o644))
	assert.Equal(t, file, next(t, changes))
	assert.Positive(t, w.Events())
}

func TestWatcherSkipsNonMatchingFiles(t *testing.T) {
	root := t.TempDir()
	changes, _ := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"), []byte("hi"), 0o644))
	file := filepath.Join(root, "b.re")
	require.NoError(t, os.WriteFile(file, []byte("let y = 2;"), 0o644))

	assert.Equal(t, file, next(t, changes))
}

func TestWatcherIgnoresBuildDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "_build", "default"), 0o755))
	changes, _ := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "_build", "default", "c.re"), []byte("x"), 0o644))
	file := filepath.Join(root, "d.re")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.Equal(t, file, next(t, changes))
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	changes, _ := startWatcher(t, root)

	dir := filepath.Join(root, "nested")
	require.NoError(t, os.Mkdir(dir, 0o755))

	file := filepath.Join(dir, "e.re")
	require.Eventually(t, func() bool {
		_ = os.WriteFile(file, []byte("x"), 0o644)
		select {
		case p := <-changes:
			return p == file
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcherMissingRoot(t *testing.T) {
	w := New(Options{Root: filepath.Join(t.TempDir(), "missing")}, func(string) {})
	assert.Error(t, w.Run(context.Background()))
}

func TestIgnoredPatterns(t *testing.T) {
	w := New(Options{}, nil)
	for _, p := range []string{"/p/_build", "/p/node_modules", "/p/.git", "/p/src/.a.re.swp", "/p/src/a.re~", "/p/src/.#a.re"} {
		assert.True(t, w.ignored(p), p)
	}
	assert.False(t, w.ignored("/p/src/a.re"))
}
