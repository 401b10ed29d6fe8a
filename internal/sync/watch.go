package sync

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event reports a change-triggered re-sync of one source.
type Event struct {
	Source string
	Result
}

// Watch re-syncs a source whenever files under its root change, after a
// debounce window so bursts of writes collapse into one pass. Results
// land on events when non-nil; a full channel drops them. Blocks until
// ctx is cancelled.
func (s *Syncer) Watch(ctx context.Context, debounce time.Duration, events chan<- Event) error {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	roots := make(map[string]string)
	for _, a := range s.registry.Available() {
		root := a.Root()
		if err := watchTree(watcher, root); err != nil {
			s.log.Warn("watching source", "source", a.Name(), "path", root, "error", err)
			continue
		}
		roots[root] = a.Name()
	}
	if len(roots) == 0 {
		return errors.New("no sources available to watch")
	}

	// Baseline pass so the watch loop only ever handles deltas.
	if _, err := s.SyncOnce(ctx, "", false); err != nil {
		return err
	}

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					watcher.Add(ev.Name)
				}
			}
			name := sourceForPath(roots, ev.Name)
			if name == "" {
				continue
			}
			pending[name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Stop()
				timer.Reset(debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			for name := range pending {
				delete(pending, name)
				results, err := s.SyncOnce(ctx, name, false)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					s.log.Warn("re-syncing after change", "source", name, "error", err)
					continue
				}
				if events != nil {
					select {
					case events <- Event{Source: name, Result: results[name]}:
					default:
					}
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("watcher error", "error", err)
		}
	}
}

// watchTree registers root and, for directories, every subdirectory.
// A file root watches its parent so replace-style writes are seen.
func watchTree(watcher *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return watcher.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return err
		}
		return nil
	})
}

// sourceForPath maps a changed path to the source whose root contains
// it. File roots also claim their sqlite sidecar files so WAL commits
// trigger a re-sync.
func sourceForPath(roots map[string]string, path string) string {
	for root, name := range roots {
		if path == root ||
			strings.HasPrefix(path, root+string(os.PathSeparator)) ||
			path == root+"-wal" || path == root+"-shm" || path == root+"-journal" {
			return name
		}
	}
	return ""
}
