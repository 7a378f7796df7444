package transcribe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/whiskerware/voicecore/internal/domain"
	"github.com/whiskerware/voicecore/internal/logger"
)

func newTestModel() *Model {
	m := New(Config{}, logger.New(logger.LevelOff, nil))
	m.MarkLoaded()
	return m
}

func TestAcquireGuardFailsFastWhenUnloaded(t *testing.T) {
	m := New(Config{}, logger.New(logger.LevelOff, nil))
	_, err := acquireGuard(context.Background(), m)
	if !errors.Is(err, domain.ErrModelNotLoaded) {
		t.Fatalf("err = %v, want ErrModelNotLoaded", err)
	}
	if m.getState() != domain.TranscriptionUnloaded {
		t.Errorf("state = %v, want still Unloaded (no permit should have been touched)", m.getState())
	}
}

func TestGuardReleaseRestoresIdleOnSuccess(t *testing.T) {
	m := newTestModel()
	guard, err := acquireGuard(context.Background(), m)
	if err != nil {
		t.Fatalf("acquireGuard: %v", err)
	}
	if m.getState() != domain.TranscriptionTranscribing {
		t.Fatalf("state = %v, want Transcribing", m.getState())
	}
	guard.release()

	if m.getState() != domain.TranscriptionIdle {
		t.Errorf("state = %v, want Idle", m.getState())
	}
	if !permit.TryAcquire(1) {
		t.Fatal("permit not released")
	}
	permit.Release(1)
}

func TestGuardReleaseSetsErrorStateOnFailure(t *testing.T) {
	m := newTestModel()
	guard, err := acquireGuard(context.Background(), m)
	if err != nil {
		t.Fatalf("acquireGuard: %v", err)
	}
	guard.fail("boom")
	guard.release()

	if m.getState() != domain.TranscriptionError {
		t.Errorf("state = %v, want Error", m.getState())
	}
	if !permit.TryAcquire(1) {
		t.Fatal("permit not released after failure path")
	}
	permit.Release(1)
}

func TestGuardReleaseRunsOnPanic(t *testing.T) {
	m := newTestModel()

	func() {
		guard, err := acquireGuard(context.Background(), m)
		if err != nil {
			t.Fatalf("acquireGuard: %v", err)
		}
		defer guard.release()
		defer func() { recover() }()
		panic("simulated transcription panic")
	}()

	if m.getState() != domain.TranscriptionIdle {
		t.Errorf("state = %v, want Idle after panic unwound through the guard", m.getState())
	}
	if !permit.TryAcquire(1) {
		t.Fatal("permit not released after panic")
	}
	permit.Release(1)
}

func TestMutualExclusionAcrossConcurrentCallers(t *testing.T) {
	m := newTestModel()

	const n = 8
	var active, maxActive int32
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			guard, err := acquireGuard(context.Background(), m)
			if err != nil {
				t.Errorf("acquireGuard: %v", err)
				return
			}
			defer guard.release()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent transcriptions = %d, want 1", maxActive)
	}
}
