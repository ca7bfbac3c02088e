package preset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a Watcher waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// Event reports files that changed since the previous event.
type Event struct {
	Paths []string
}

// WatchOptions configure a Watcher.
type WatchOptions struct {
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration

	Logger *slog.Logger
}

// Watcher reports changes to a fixed set of files. Directories are watched
// rather than the files themselves so editors that replace a file by
// renaming still produce events.
type Watcher struct {
	fs       *fsnotify.Watcher
	files    map[string]bool
	debounce time.Duration
	log      *slog.Logger
	events   chan Event
}

// Watch starts watching files. Events are delivered on Events until ctx is
// cancelled, after which the channel is closed.
func Watch(ctx context.Context, files []string, opts WatchOptions) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("preset: watch: %w", err)
	}
	w := &Watcher{
		fs:       fw,
		files:    make(map[string]bool, len(files)),
		debounce: opts.Debounce,
		log:      log,
		events:   make(chan Event, 1),
	}
	dirs := make(map[string]bool)
	for _, f := range files {
		f = filepath.Clean(f)
		w.files[f] = true
		dir := filepath.Dir(f)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("preset: watch %s: %w", dir, err)
		}
	}
	go w.run(ctx)
	return w, nil
}

// Events returns the event channel.
func (w *Watcher) Events() <-chan Event { return w.events }

func (w *Watcher) run(ctx context.Context) {
	defer close(w.events)
	defer w.fs.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			name := filepath.Clean(ev.Name)
			if !w.files[name] || !ev.Op.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) {
				continue
			}
			w.log.Debug("preset: file changed", "path", name, "op", ev.Op.String())
			pending[name] = true
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("preset: watch error", "err", err)

		case <-timer.C:
			ev := Event{Paths: make([]string, 0, len(pending))}
			for p := range pending {
				ev.Paths = append(ev.Paths, p)
			}
			slices.Sort(ev.Paths)
			clear(pending)
			select {
			case w.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
