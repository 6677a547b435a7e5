package discover

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a file must go without writes before it is
// reported by Watch.
const DefaultSettle = 500 * time.Millisecond

// WatchOptions configures Watch.
type WatchOptions struct {
	Layout Layout

	// Settle is the quiet period before a new file is reported.
	// Zero means DefaultSettle.
	Settle time.Duration

	// Logger receives watcher errors. Nil means slog.Default().
	Logger *slog.Logger
}

// Watch reports inputs created or written under base until ctx ends.
// Subdirectories created later are watched too. Inputs whose output exists
// when they settle are not reported. The channel is closed when ctx ends or
// the watcher fails.
func Watch(ctx context.Context, base string, opts WatchOptions) (<-chan Document, error) {
	if err := checkDir(base); err != nil {
		return nil, fmt.Errorf("watch %s: %w", base, err)
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &dirWatcher{
		watcher: watcher,
		layout:  opts.Layout,
		logger:  logger,
		pending: make(map[string]time.Time),
	}
	if err := w.addTree(base, false); err != nil {
		watcher.Close()
		return nil, err
	}

	ch := make(chan Document)
	go func() {
		defer close(ch)
		defer watcher.Close()
		w.run(ctx, ch, settle)
	}()
	return ch, nil
}

type dirWatcher struct {
	watcher *fsnotify.Watcher
	layout  Layout
	logger  *slog.Logger

	// pending maps an input path to its last write.
	pending map[string]time.Time
}

// addTree watches dir and every directory below it. With enqueue set, inputs
// already present are queued; they may have been written before the watch
// was in place.
func (w *dirWatcher) addTree(dir string, enqueue bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			return nil
		}
		if enqueue && w.layout.IsInput(path) {
			w.pending[path] = time.Now()
		}
		return nil
	})
}

func (w *dirWatcher) run(ctx context.Context, ch chan<- Document, settle time.Duration) {
	tick := settle / 2
	if tick <= 0 {
		tick = settle
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.Any("error", err))

		case now := <-ticker.C:
			for _, doc := range w.settled(now, settle) {
				select {
				case ch <- doc:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (w *dirWatcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name, true); err != nil {
				w.logger.Warn("watch new directory", slog.String("path", event.Name), slog.Any("error", err))
			}
			return
		}
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		delete(w.pending, event.Name)
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if w.layout.IsInput(event.Name) {
		w.pending[event.Name] = time.Now()
	}
}

// settled removes and returns the pending inputs quiet for at least settle.
func (w *dirWatcher) settled(now time.Time, settle time.Duration) []Document {
	var docs []Document
	for path, last := range w.pending {
		if now.Sub(last) < settle {
			continue
		}
		delete(w.pending, path)
		doc := Document{Path: path, Output: w.layout.OutputPath(path)}
		if doc.Processed() {
			continue
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs
}
