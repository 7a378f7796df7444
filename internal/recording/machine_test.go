package recording

import (
	"errors"
	"testing"
	"time"

	"github.com/whiskerware/voicecore/internal/domain"
	"github.com/whiskerware/voicecore/internal/logger"
	"github.com/whiskerware/voicecore/internal/storage"
)

type fakeBuffer struct {
	drained    []float32
	drainErr   error
	discarded  bool
	markedAt   int
}

func (f *fakeBuffer) Push(frame []float32)                          {}
func (f *fakeBuffer) SnapshotLast(secs float64) []float32            { return nil }
func (f *fakeBuffer) SnapshotSince(c uint64) ([]float32, uint64)     { return nil, c }
func (f *fakeBuffer) MarkRecordingStart()                            { f.markedAt++ }
func (f *fakeBuffer) DrainRecording() ([]float32, error)             { return f.drained, f.drainErr }
func (f *fakeBuffer) DiscardRecording()                              { f.discarded = true }
func (f *fakeBuffer) Clear()                                         {}

var _ domain.AudioBuffer = (*fakeBuffer)(nil)

type fakeTranscriber struct {
	result domain.TranscriptionResult
	err    error
}

func (f *fakeTranscriber) TranscribeFile(path string) (string, error) { return f.result.Text, f.err }
func (f *fakeTranscriber) TranscribeSamples(samples []float32) (domain.TranscriptionResult, error) {
	return f.result, f.err
}

var _ domain.Transcriber = (*fakeTranscriber)(nil)

type fakeEmitter struct {
	events []string
}

func (e *fakeEmitter) RecordingStarted()   { e.events = append(e.events, "recording_started") }
func (e *fakeEmitter) RecordingStopped()   { e.events = append(e.events, "recording_stopped") }
func (e *fakeEmitter) RecordingError(err error) {
	e.events = append(e.events, "recording_error:"+err.Error())
}
func (e *fakeEmitter) RecordingCancelled() { e.events = append(e.events, "recording_cancelled") }
func (e *fakeEmitter) TranscriptionStarted() {
	e.events = append(e.events, "transcription_started")
}
func (e *fakeEmitter) TranscriptionCompleted(text string, durationMs int64) {
	e.events = append(e.events, "transcription_completed:"+text)
}
func (e *fakeEmitter) TranscriptionError(message string) {
	e.events = append(e.events, "transcription_error:"+message)
}
func (e *fakeEmitter) ListeningStarted()     { e.events = append(e.events, "listening_started") }
func (e *fakeEmitter) ListeningStopped()     { e.events = append(e.events, "listening_stopped") }
func (e *fakeEmitter) ListeningUnavailable(reason string) {
	e.events = append(e.events, "listening_unavailable:"+reason)
}
func (e *fakeEmitter) WakeWordDetected(text string, confidence float64) {
	e.events = append(e.events, "wake_word_detected:"+text)
}
func (e *fakeEmitter) ModelDownloadCompleted(kind domain.ModelKind) {}
func (e *fakeEmitter) KeyBlockingUnavailable(reason string, timestampMs int64) {}

var _ domain.EventEmitter = (*fakeEmitter)(nil)

func setup(t *testing.T) (*Machine, *fakeBuffer, *fakeTranscriber, *fakeEmitter) {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	buf := &fakeBuffer{}
	stt := &fakeTranscriber{result: domain.TranscriptionResult{Text: "hello world", Confidence: 0.9}}
	emitter := &fakeEmitter{}
	store := storage.NewRecordingStore(log)
	m := New(buf, stt, emitter, store, log, WithRecordingsDir(t.TempDir()))
	return m, buf, stt, emitter
}

func TestEnableListeningFromIdle(t *testing.T) {
	m, _, _, emitter := setup(t)

	if err := m.EnableListening(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.State() != domain.StateListening {
		t.Fatalf("state = %v, want Listening", m.State())
	}
	if !m.ListeningEnabled() {
		t.Error("expected listening_enabled = true")
	}
	if emitter.events[len(emitter.events)-1] != "listening_started" {
		t.Errorf("last event = %q, want listening_started", emitter.events[len(emitter.events)-1])
	}
}

func TestEnableListeningRejectedOutsideIdle(t *testing.T) {
	m, _, _, _ := setup(t)
	m.EnableListening()

	err := m.EnableListening()
	if err == nil {
		t.Fatal("expected rejection")
	}
	var te *domain.TransitionError
	if !errors.As(err, &te) {
		t.Errorf("err = %v, want *domain.TransitionError", err)
	}
}

func TestDisableListeningReturnsToIdle(t *testing.T) {
	m, _, _, _ := setup(t)
	m.EnableListening()

	if err := m.DisableListening(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.State() != domain.StateIdle {
		t.Fatalf("state = %v, want Idle", m.State())
	}
	if m.ListeningEnabled() {
		t.Error("expected listening_enabled = false")
	}
}

func TestWakeWordDetectedStartsRecording(t *testing.T) {
	m, buf, _, emitter := setup(t)
	m.EnableListening()

	if err := m.WakeWordDetected("hey cat", 0.9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.State() != domain.StateRecording {
		t.Fatalf("state = %v, want Recording", m.State())
	}
	if buf.markedAt != 1 {
		t.Errorf("markedAt = %d, want 1", buf.markedAt)
	}
	foundWake, foundStart := false, false
	for _, e := range emitter.events {
		if e == "wake_word_detected:hey cat" {
			foundWake = true
		}
		if e == "recording_started" {
			foundStart = true
		}
	}
	if !foundWake || !foundStart {
		t.Errorf("events = %v, want wake_word_detected and recording_started", emitter.events)
	}
}

func TestWakeWordDetectedIsNoOpWhileRecording(t *testing.T) {
	m, _, _, emitter := setup(t)
	m.EnableListening()
	m.WakeWordDetected("hey cat", 0.9)
	before := len(emitter.events)

	if err := m.WakeWordDetected("hey cat", 0.9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emitter.events) != before {
		t.Errorf("expected no new events, got %d new", len(emitter.events)-before)
	}
}

func TestHotkeyPressedFromIdleGoesDirectlyToRecording(t *testing.T) {
	m, _, _, _ := setup(t)

	if err := m.HotkeyPressed(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.State() != domain.StateRecording {
		t.Fatalf("state = %v, want Recording", m.State())
	}
}

func TestStopRecordingDrainsAndTranscribes(t *testing.T) {
	m, buf, _, emitter := setup(t)
	buf.drained = []float32{0.1, 0.2, 0.3}
	m.EnableListening()
	m.WakeWordDetected("hey cat", 0.9)

	if err := m.StopRecording(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.State() != domain.StateListening {
		t.Fatalf("state = %v, want Listening (listening_enabled was true)", m.State())
	}

	want := []string{"recording_stopped", "transcription_started", "transcription_completed:hello world"}
	for _, w := range want {
		found := false
		for _, e := range emitter.events {
			if e == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected event %q in %v", w, emitter.events)
		}
	}

	got, err := m.store.LastRecordingBuffer()
	if err != nil {
		t.Fatalf("unexpected error reading last recording buffer: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("len(got) = %d, want 3", len(got))
	}
}

func TestStopRecordingReturnsToIdleWhenListeningDisabled(t *testing.T) {
	m, _, _, _ := setup(t)
	m.HotkeyPressed()

	if err := m.StopRecording(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.State() != domain.StateIdle {
		t.Fatalf("state = %v, want Idle", m.State())
	}
}

func TestStopRecordingRejectedOutsideRecording(t *testing.T) {
	m, _, _, _ := setup(t)
	if err := m.StopRecording(); err == nil {
		t.Fatal("expected rejection from Idle")
	}
}

func TestSilenceDetectedBehavesLikeStopRecording(t *testing.T) {
	m, _, _, emitter := setup(t)
	m.HotkeyPressed()

	if err := m.SilenceDetected(domain.SilenceAfterSpeech); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, e := range emitter.events {
		if e == "recording_stopped" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected recording_stopped in %v", emitter.events)
	}
}

func TestCancelDetectedDiscardsBufferNoTranscription(t *testing.T) {
	m, buf, _, emitter := setup(t)
	buf.drained = []float32{1, 2, 3}
	m.EnableListening()
	m.WakeWordDetected("hey cat", 0.9)

	if err := m.CancelDetected(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !buf.discarded {
		t.Error("expected buffer discarded")
	}
	if m.State() != domain.StateListening {
		t.Fatalf("state = %v, want Listening", m.State())
	}
	for _, e := range emitter.events {
		if e == "transcription_started" {
			t.Error("expected no transcription after cancel")
		}
	}
	found := false
	for _, e := range emitter.events {
		if e == "recording_cancelled" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected recording_cancelled in %v", emitter.events)
	}
}

func TestMicUnavailableOnlyValidWhileListening(t *testing.T) {
	m, _, _, _ := setup(t)
	if err := m.MicUnavailable("device removed"); err == nil {
		t.Fatal("expected rejection from Idle")
	}

	m.EnableListening()
	if err := m.MicUnavailable("device removed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Degraded() {
		t.Error("expected degraded = true")
	}
	if m.State() != domain.StateListening {
		t.Fatalf("state = %v, want Listening", m.State())
	}
}

func TestMicRestoredClearsDegraded(t *testing.T) {
	m, _, _, _ := setup(t)
	m.EnableListening()
	m.MicUnavailable("device removed")

	if err := m.MicRestored(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Degraded() {
		t.Error("expected degraded = false")
	}
}

func TestHooksFireOnTransitions(t *testing.T) {
	var started, stopped, paused, resumed bool

	log := logger.New(logger.LevelOff, nil)
	buf := &fakeBuffer{drained: []float32{1}}
	stt := &fakeTranscriber{result: domain.TranscriptionResult{Text: "x"}}
	emitter := &fakeEmitter{}
	store := storage.NewRecordingStore(log)
	m := New(buf, stt, emitter, store, log, WithRecordingsDir(t.TempDir()), WithHooks(Hooks{
		StartCapture:      func() error { started = true; return nil },
		StopCapture:       func() { stopped = true },
		PauseWakeWord:     func() { paused = true },
		ResumeWakeWord:    func() { resumed = true },
		StartCancelWindow: func(recordingStart time.Time) {},
	}))

	m.EnableListening()
	if !started {
		t.Error("expected StartCapture hook to fire")
	}
	m.WakeWordDetected("hey cat", 0.9)
	if !paused {
		t.Error("expected PauseWakeWord hook to fire")
	}
	m.StopRecording()
	if !resumed {
		t.Error("expected ResumeWakeWord hook to fire")
	}
	m.DisableListening()
	if !stopped {
		t.Error("expected StopCapture hook to fire")
	}
}
