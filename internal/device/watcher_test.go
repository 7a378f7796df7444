package device

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/whiskerware/voicecore/internal/logger"
)

func testLogger() *logger.Logger { return logger.New(logger.LevelOff, nil) }

func TestWatchForReturnFiresOnceDeviceComesBack(t *testing.T) {
	var mu sync.Mutex
	seen := 0
	exists := func(name string) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		seen++
		return seen >= 2, nil
	}

	w := New(exists, testLogger(), WithPollInterval(5*time.Millisecond))
	restored := make(chan struct{}, 1)
	w.WatchForReturn("Built-in Mic", func() { restored <- struct{}{} })

	select {
	case <-restored:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for onRestored")
	}

	time.Sleep(20 * time.Millisecond)
	if w.Watching() {
		t.Error("expected watcher to stop itself after the device returned")
	}
}

func TestStopCancelsInProgressWatch(t *testing.T) {
	exists := func(name string) (bool, error) { return false, nil }
	w := New(exists, testLogger(), WithPollInterval(5*time.Millisecond))

	w.WatchForReturn("Mic", func() {})
	if !w.Watching() {
		t.Fatal("expected watcher to be running")
	}
	w.Stop()
	if w.Watching() {
		t.Error("expected watcher stopped")
	}
}

func TestWatchForReturnToleratesExistsError(t *testing.T) {
	calls := 0
	exists := func(name string) (bool, error) {
		calls++
		if calls < 3 {
			return false, errors.New("enumeration failed")
		}
		return true, nil
	}

	w := New(exists, testLogger(), WithPollInterval(5*time.Millisecond))
	restored := make(chan struct{}, 1)
	w.WatchForReturn("Mic", func() { restored <- struct{}{} })

	select {
	case <-restored:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for onRestored despite transient errors")
	}
}
