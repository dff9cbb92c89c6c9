package filesystem

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/docchat/internal/logger"
)

// DefaultDebounce is how long a path must stay quiet before it is reported.
const DefaultDebounce = 500 * time.Millisecond

// Watch reports files under root that are created or written. Bursts of
// events for the same path are coalesced and reported once after debounce.
// The channel closes when ctx is cancelled.
func (l *Loader) Watch(ctx context.Context, root string, debounce time.Duration) (<-chan string, error) {
	absRoot, err := checkRoot(root)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := l.addTree(w, absRoot); err != nil {
		w.Close()
		return nil, err
	}

	out := make(chan string)
	go l.watchLoop(ctx, w, out, debounce)
	return out, nil
}

func (l *Loader) watchLoop(ctx context.Context, w *fsnotify.Watcher, out chan<- string, debounce time.Duration) {
	defer close(out)
	defer w.Close()

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if path, ok := l.handleFsEvent(w, event); ok {
				pending[path] = time.Now()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("watch error: %v", err)

		case now := <-ticker.C:
			var ready []string
			for path, seen := range pending {
				if now.Sub(seen) >= debounce {
					ready = append(ready, path)
				}
			}
			sort.Strings(ready)
			for _, path := range ready {
				delete(pending, path)
				select {
				case out <- path:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// handleFsEvent returns the path to report for event, if any. New
// directories are added to the watch list.
func (l *Loader) handleFsEvent(w *fsnotify.Watcher, event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	if l.skip(filepath.Base(event.Name)) {
		return "", false
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) && w != nil {
			if err := l.addTree(w, event.Name); err != nil {
				logger.Warn("watch %s: %v", event.Name, err)
			}
		}
		return "", false
	}
	if !info.Mode().IsRegular() {
		return "", false
	}

	if l.supports != nil && !l.supports(detectMIMEType(event.Name)) {
		logger.Debug("ignoring change to %s: unsupported type", event.Name)
		return "", false
	}
	return event.Name, true
}

// addTree watches root and every non-hidden directory below it.
func (l *Loader) addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return fs.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && l.skip(d.Name()) {
			return fs.SkipDir
		}
		return w.Add(path)
	})
}
