package control

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jienfak/jack-sin/pkg/framework/debug"
)

// DefaultSettle is how long the watcher waits for writes to stop
const DefaultSettle = 50 * time.Millisecond

// Watcher re-applies a control file whenever it changes on disk
type Watcher struct {
	path   string
	target Target
	log    *debug.Logger

	// Settle coalesces bursts of events from editors that write in pieces
	Settle time.Duration
	// OnApply, if set, is called after every application attempt
	OnApply func(applied int, err error)
}

// NewWatcher creates a watcher for path. A nil logger discards output.
func NewWatcher(path string, t Target, log *debug.Logger) *Watcher {
	if log == nil {
		log = debug.Discard()
	}
	return &Watcher{
		path:   filepath.Clean(path),
		target: t,
		log:    log,
		Settle: DefaultSettle,
	}
}

// Run applies the file once if it exists, then watches its directory until
// ctx is done. Application errors are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("control: %w", err)
	}
	defer fw.Close()

	// editors replace files by rename, which drops a watch on the file itself
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("control: watch %s: %w", dir, err)
	}
	w.log.Info("watching %s", w.path)
	w.apply()

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			settle = time.After(w.Settle)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch %s: %v", w.path, err)
		case <-settle:
			settle = nil
			w.apply()
		}
	}
}

func (w *Watcher) apply() {
	n, err := ApplyFile(w.path, w.target)
	if errors.Is(err, os.ErrNotExist) {
		w.log.Debug("%s not present", w.path)
		return
	}
	if err != nil {
		w.log.Warn("%v", err)
	} else {
		w.log.Debug("applied %s to %d oscillators", w.path, n)
	}
	if w.OnApply != nil {
		w.OnApply(n, err)
	}
}
