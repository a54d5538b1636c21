package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/untoldecay/roadmap/internal/debug"
)

// DefaultDebounce is the quiet window after the last filesystem event
// before a watch run fires. Editors save in bursts.
const DefaultDebounce = 500 * time.Millisecond

// Debouncer coalesces a burst of Trigger calls into one invocation of
// fn, fired once the interval passes without another Trigger.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	fn       func()
	timer    *time.Timer
}

// NewDebouncer returns a debouncer that calls fn on its own goroutine.
func NewDebouncer(interval time.Duration, fn func()) *Debouncer {
	return &Debouncer{interval: interval, fn: fn}
}

// Trigger arms the timer, restarting the quiet window if one is
// already pending.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.fn)
}

// Cancel drops any pending invocation.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Watch runs once, then re-runs on managed-tree changes until ctx is
// canceled. Each event batch is debounced into a single run; onRun
// receives every run's outcome. Runs triggered by the engine's own
// file writes see no changed hashes and quiesce on their own.
func (e *Engine) Watch(ctx context.Context, opts Options, onRun func(*RunStats, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(e.cfg.RoadmapDir); err != nil {
		return err
	}
	for _, dir := range kindDirs {
		path := filepath.Join(e.cfg.RoadmapDir, dir)
		if _, err := os.Stat(path); err == nil {
			if err := watcher.Add(path); err != nil {
				debug.Logf("engine: watching %s: %v", path, err)
			}
		}
	}

	// A full buffer means a run is already queued; the pending run
	// will pick the new changes up.
	runCh := make(chan struct{}, 1)
	debouncer := NewDebouncer(DefaultDebounce, func() {
		select {
		case runCh <- struct{}{}:
		default:
		}
	})
	defer debouncer.Cancel()

	report := func(stats *RunStats, err error) {
		if onRun != nil {
			onRun(stats, err)
		}
	}
	report(e.Run(ctx, opts))

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				// New directories under a kind dir need their own
				// watch; fsnotify is not recursive.
				if event.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						_ = watcher.Add(event.Name)
						debouncer.Trigger()
						continue
					}
				}
				if !strings.HasSuffix(event.Name, ".md") {
					continue
				}
				debouncer.Trigger()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				debug.Logf("engine: watcher error: %v", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-runCh:
			report(e.Run(ctx, opts))
		}
	}
}
