// Package watcher reports edits to source files so the next successful build
// knows which modules to hot update.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultIgnore are directory and file name patterns never reported
var DefaultIgnore = []string{"_build", "_opam", "node_modules", ".git", ".*.swp", "*~", "#*#", ".#*"}

// Options configures a Watcher
type Options struct {
	// Root is the directory watched recursively
	Root string

	// Match selects which files are reported. Nil reports every file.
	Match func(path string) bool

	// Ignore overrides DefaultIgnore
	Ignore []string

	Logger *zap.Logger
}

// Watcher turns fsnotify events into changed-file callbacks
type Watcher struct {
	opts     Options
	log      *zap.Logger
	onChange func(path string)
	events   atomic.Int64
}

// New creates a watcher that calls onChange from a single goroutine
func New(opts Options, onChange func(path string)) *Watcher {
	if opts.Ignore == nil {
		opts.Ignore = DefaultIgnore
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Watcher{
		opts:     opts,
		log:      opts.Logger.With(zap.String("root", opts.Root)),
		onChange: onChange,
	}
}

// Events returns how many changes have been reported
func (w *Watcher) Events() int64 {
	return w.events.Load()
}

// Run watches until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addRecursive(fw, w.opts.Root); err != nil {
		return err
	}
	w.log.Debug("watching source tree")

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(fw, ev)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event) {
	if w.ignored(ev.Name) {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(fw, ev.Name); err != nil {
				w.log.Warn("cannot watch new directory", zap.String("dir", ev.Name), zap.Error(err))
			}
			return
		}
	}

	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}
	if w.opts.Match != nil && !w.opts.Match(ev.Name) {
		return
	}

	w.events.Add(1)
	w.log.Debug("source changed", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
	w.onChange(ev.Name)
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

// ignored matches the base name against the ignore patterns
func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.opts.Ignore {
		if base == pattern {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
