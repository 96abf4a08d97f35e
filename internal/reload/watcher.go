// Package reload applies configuration changes to a running updater, driven
// by file polling or SIGHUP.
package reload

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
)

const defaultPollInterval = 5 * time.Second

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// ConfigPath is the file to watch.
	ConfigPath string

	// PollInterval defaults to 5 seconds.
	PollInterval time.Duration

	// Fs defaults to the OS filesystem.
	Fs afero.Fs
}

// Event reports that the watched file changed.
type Event struct {
	ConfigPath string
	ModTime    time.Time
}

// fingerprint identifies a version of the file. A write that keeps the
// modification time (coarse filesystem clocks) is still caught by size.
type fingerprint struct {
	mod  time.Time
	size int64
}

func (f fingerprint) equal(o fingerprint) bool {
	return f.size == o.size && f.mod.Equal(o.mod)
}

// Watcher polls a configuration file for modifications.
type Watcher struct {
	cfg     WatcherConfig
	events  chan Event
	stop    chan struct{}
	stopped chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWatcher creates a watcher. Nothing is polled until Start.
func NewWatcher(cfg WatcherConfig) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	return &Watcher{
		cfg:     cfg,
		events:  make(chan Event, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins polling. Only the first call has an effect.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go w.poll(ctx)
	})
}

// Events returns the change notifications. Bursts collapse into one
// pending event.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop stops the watcher. Safe to call multiple times and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	if w.started.Load() {
		<-w.stopped
	}
}

func (w *Watcher) poll(ctx context.Context) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	last, _ := w.stat()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			current, ok := w.stat()
			if !ok || current.equal(last) {
				continue
			}
			last = current
			select {
			case w.events <- Event{ConfigPath: w.cfg.ConfigPath, ModTime: current.mod}:
			default:
			}
		}
	}
}

// stat reports false while the file is missing, so a delete followed by a
// rewrite is seen as one change.
func (w *Watcher) stat() (fingerprint, bool) {
	info, err := w.cfg.Fs.Stat(w.cfg.ConfigPath)
	if err != nil {
		return fingerprint{}, false
	}
	return fingerprint{mod: info.ModTime(), size: info.Size()}, true
}
