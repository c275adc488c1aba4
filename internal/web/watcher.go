package web

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/slacksift/slacksift/internal/logging"
	"github.com/slacksift/slacksift/internal/platform"
)

const stateDebounce = 300 * time.Millisecond

// stateWatcher notices the sync state record being rewritten by another
// process (a CLI sync in a different terminal) so connected clients hear
// about it without polling.
type stateWatcher struct {
	watcher   *fsnotify.Watcher
	stateFile string
	onChange  func()
	log       *slog.Logger
}

func newStateWatcher(statePath string, onChange func()) (*stateWatcher, error) {
	log := logging.ForComponent(logging.CompWeb)
	if warning := platform.FsnotifyWarning(statePath); warning != "" {
		log.Warn("state_watcher_degraded", slog.String("reason", warning))
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: atomic saves swap the file out with
	// a rename, which would silently detach a file-level watch.
	if err := w.Add(filepath.Dir(statePath)); err != nil {
		w.Close()
		return nil, err
	}
	return &stateWatcher{
		watcher:   w,
		stateFile: filepath.Base(statePath),
		onChange:  onChange,
		log:       log,
	}, nil
}

func (sw *stateWatcher) run(ctx context.Context) {
	defer sw.watcher.Close()

	var mu sync.Mutex
	var pending *time.Timer
	defer func() {
		mu.Lock()
		if pending != nil {
			pending.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != sw.stateFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			// Debounce: a save shows up as a write plus a rename.
			mu.Lock()
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(stateDebounce, sw.onChange)
			mu.Unlock()
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.log.Warn("state_watcher_error", slog.String("error", err.Error()))
		}
	}
}
