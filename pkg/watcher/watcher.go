// Package watcher monitors the config file so a running TUI can pick up a
// changed backend URL or poll interval without a restart. It uses fsnotify
// with a polling fallback for filesystems that don't deliver events.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/risksurface/surf/pkg/debug"
)

// DefaultDebounce coalesces editor write bursts into one change event.
const DefaultDebounce = 250 * time.Millisecond

// DefaultPollInterval is the fallback polling interval.
const DefaultPollInterval = 2 * time.Second

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce duration.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.pollInterval = d }
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) { w.forcePoll = force }
}

// Watcher monitors a single file for changes.
type Watcher struct {
	path         string
	debounce     time.Duration
	pollInterval time.Duration
	forcePoll    bool

	mu        sync.Mutex
	started   bool
	lastMtime time.Time
	lastSize  int64

	ctx      context.Context
	cancel   context.CancelFunc
	changeCh chan struct{}
	done     chan struct{}
}

// New creates a watcher for path. The file does not need to exist yet; its
// creation counts as a change.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:         abs,
		debounce:     DefaultDebounce,
		pollInterval: DefaultPollInterval,
		changeCh:     make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Changed returns a channel that receives after the file changed (debounced).
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

// Start begins watching. Safe to call once.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.mu.Unlock()

	if info, err := os.Stat(w.path); err == nil {
		w.lastMtime = info.ModTime()
		w.lastSize = info.Size()
	}

	if !w.forcePoll {
		if fw, err := fsnotify.NewWatcher(); err == nil {
			// Watch the directory: editors replace files, which drops the
			// watch on the file itself.
			if err := fw.Add(filepath.Dir(w.path)); err == nil {
				go w.eventLoop(fw)
				return nil
			}
			fw.Close()
		}
		debug.Log("watcher: fsnotify unavailable, falling back to polling")
	}

	go w.pollLoop()
	return nil
}

// Stop ends watching and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.started = false
	w.cancel()
	<-w.done
}

func (w *Watcher) eventLoop(fw *fsnotify.Watcher) {
	defer close(w.done)
	defer fw.Close()

	var timer *time.Timer
	fire := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, w.notify)
	}

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				fire()
			}
		case _, ok := <-fw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) pollLoop() {
	defer close(w.done)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(w.path)
			if err != nil {
				continue
			}
			if !info.ModTime().Equal(w.lastMtime) || info.Size() != w.lastSize {
				w.lastMtime = info.ModTime()
				w.lastSize = info.Size()
				w.notify()
			}
		}
	}
}

// notify sends a change signal without blocking; a pending signal is enough.
func (w *Watcher) notify() {
	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}
