// Package device polls for the previously-selected capture device's
// return after it vanishes mid-session, the same ticking-inspection
// shape as the cooking session watcher, repointed from recipe step
// context at a single device name.
package device

import (
	"context"
	"sync"
	"time"

	"github.com/whiskerware/voicecore/internal/logger"
)

// ExistsFunc reports whether a named device is currently enumerable.
// Matches internal/audio.DeviceExists; injectable so tests never touch
// real hardware enumeration.
type ExistsFunc func(name string) (bool, error)

// Option configures a Watcher.
type Option func(*Watcher)

// WithPollInterval overrides the default 2-second poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.interval = d }
}

// Watcher polls for one named device's return once it has gone
// missing. It does not itself decide that a device is missing — that
// is detected by the capture thread's stream failure — it only knows
// when to stop looking.
type Watcher struct {
	exists   ExistsFunc
	log      *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// New creates a Watcher. exists is usually internal/audio.DeviceExists.
func New(exists ExistsFunc, log *logger.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		exists:   exists,
		log:      log,
		interval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WatchForReturn begins polling for deviceName. onRestored is called
// exactly once, from the watcher's own goroutine, the first time the
// device is seen again; the watcher then stops itself. Calling
// WatchForReturn while already watching replaces the previous watch.
func (w *Watcher) WatchForReturn(deviceName string, onRestored func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		w.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.running = true

	go w.loop(ctx, deviceName, onRestored)
	w.log.Info("device watcher: watching for %q to return (interval=%s)", deviceName, w.interval)
}

// Stop cancels any in-progress watch.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		w.cancel()
		w.running = false
	}
}

// Watching reports whether a watch is currently active.
func (w *Watcher) Watching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) loop(ctx context.Context, deviceName string, onRestored func()) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			back, err := w.exists(deviceName)
			if err != nil {
				w.log.Debug("device watcher: checking %q: %v", deviceName, err)
				continue
			}
			if back {
				w.mu.Lock()
				w.running = false
				w.mu.Unlock()
				onRestored()
				return
			}
		}
	}
}
