// Package recording implements the unified recording/listening state
// machine: guarded transitions over a small, store-backed struct, the
// same shape as a cooking-session engine's Advance/Skip/Pause/Resume
// methods, repointed at audio-capture events instead of recipe steps.
package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/whiskerware/voicecore/internal/audio"
	"github.com/whiskerware/voicecore/internal/domain"
	"github.com/whiskerware/voicecore/internal/logger"
	"github.com/whiskerware/voicecore/internal/storage"
)

// Hooks are the side effects a transition triggers outside the
// machine's own state: starting/stopping capture, pausing/resuming
// the wake-word analysis loop, and opening/closing the cancel-phrase
// detector's session window. Every hook is optional; a nil hook is a
// no-op. Keeping these as injected functions rather than concrete
// dependencies keeps the machine itself free of import-level
// knowledge of the capture thread or the detectors, mirroring how the
// cooking engine only knows domain.RecipeSource/domain.SessionStore.
type Hooks struct {
	StartCapture      func() error
	StopCapture       func()
	PauseWakeWord     func()
	ResumeWakeWord    func()
	StartCancelWindow func(recordingStart time.Time)
	EndCancelWindow   func()
}

// Option configures a Machine.
type Option func(*Machine)

// WithHooks installs the transition side-effect hooks.
func WithHooks(h Hooks) Option {
	return func(m *Machine) { m.hooks = h }
}

// WithListeningEnabled seeds the listening_enabled preference flag.
func WithListeningEnabled(enabled bool) Option {
	return func(m *Machine) { m.listeningEnabled = enabled }
}

// WithRecordingsDir overrides where finished recordings are persisted
// as WAV files before batch transcription. Defaults to os.TempDir()
// if never set.
func WithRecordingsDir(dir string) Option {
	return func(m *Machine) { m.recordingsDir = dir }
}

// Machine is the guarded Idle/Listening/Recording/Processing state
// machine from the recording-state-machine contract. It depends only
// on interfaces (domain.AudioBuffer, domain.Transcriber,
// domain.EventEmitter) and is fully testable with fakes.
type Machine struct {
	buf      domain.AudioBuffer
	stt      domain.Transcriber
	emitter  domain.EventEmitter
	store    *storage.RecordingStore
	log      *logger.Logger
	hooks    Hooks

	recordingsDir string

	state            domain.RecordingState
	listeningEnabled bool
	degraded         bool
	recordingStart   time.Time
}

// New creates a Machine in the Idle state.
func New(buf domain.AudioBuffer, stt domain.Transcriber, emitter domain.EventEmitter, store *storage.RecordingStore, log *logger.Logger, opts ...Option) *Machine {
	m := &Machine{
		buf:     buf,
		stt:     stt,
		emitter: emitter,
		store:   store,
		log:     log,
		state:   domain.StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current recording state.
func (m *Machine) State() domain.RecordingState { return m.state }

// ListeningEnabled returns the current value of the listening_enabled
// preference flag.
func (m *Machine) ListeningEnabled() bool { return m.listeningEnabled }

func (m *Machine) reject(event domain.RecordingEvent) error {
	return &domain.TransitionError{From: m.state, Event: event}
}

// EnableListening: Idle -> Listening. Starts capture and sets
// listening_enabled.
func (m *Machine) EnableListening() error {
	if m.state != domain.StateIdle {
		return m.reject(domain.EventEnableListening)
	}
	if m.hooks.StartCapture != nil {
		if err := m.hooks.StartCapture(); err != nil {
			m.emitter.RecordingError(err)
			return fmt.Errorf("starting capture: %w", err)
		}
	}
	m.listeningEnabled = true
	m.state = domain.StateListening
	m.emitter.ListeningStarted()
	m.log.Info("recording: idle -> listening")
	return nil
}

// DisableListening: Listening -> Idle. Stops capture and clears
// listening_enabled.
func (m *Machine) DisableListening() error {
	if m.state != domain.StateListening {
		return m.reject(domain.EventDisableListening)
	}
	if m.hooks.StopCapture != nil {
		m.hooks.StopCapture()
	}
	m.listeningEnabled = false
	m.degraded = false
	m.state = domain.StateIdle
	m.emitter.ListeningStopped()
	m.log.Info("recording: listening -> idle")
	return nil
}

// WakeWordDetected: Listening -> Recording. Ignored (no-op) while
// already Recording, per the transition table.
func (m *Machine) WakeWordDetected(text string, confidence float64) error {
	if m.state == domain.StateRecording {
		return nil
	}
	if m.state != domain.StateListening {
		return m.reject(domain.EventWakeWordDetected)
	}
	m.emitter.WakeWordDetected(text, confidence)
	m.beginRecording()
	return nil
}

// HotkeyPressed: Listening -> Recording, or Idle -> Recording when
// listening is disabled (direct path).
func (m *Machine) HotkeyPressed() error {
	switch m.state {
	case domain.StateListening, domain.StateIdle:
		m.beginRecording()
		return nil
	default:
		return m.reject(domain.EventHotkeyPressed)
	}
}

// beginRecording marks the buffer's recording start, pauses wake-word
// analysis, opens the cancel-phrase detector's window, and emits
// recording_started. Shared by WakeWordDetected and HotkeyPressed.
func (m *Machine) beginRecording() {
	m.recordingStart = time.Now()
	m.buf.MarkRecordingStart()
	if m.hooks.PauseWakeWord != nil {
		m.hooks.PauseWakeWord()
	}
	if m.hooks.StartCancelWindow != nil {
		m.hooks.StartCancelWindow(m.recordingStart)
	}
	m.state = domain.StateRecording
	m.emitter.RecordingStarted()
	m.log.Info("recording: -> recording")
}

// StopRecording: Recording -> Processing -> (Listening|Idle). Drains
// the buffer and submits it to the shared transcription model,
// exactly as silence-triggered auto-stop does.
func (m *Machine) StopRecording() error {
	if m.state != domain.StateRecording {
		return m.reject(domain.EventStopRecording)
	}
	return m.finishRecording()
}

// SilenceDetected: Recording -> Processing -> (Listening|Idle). Same
// effect as StopRecording; reason is carried only for logging, the
// contract makes no distinction downstream.
func (m *Machine) SilenceDetected(reason domain.SilenceReason) error {
	if m.state != domain.StateRecording {
		return m.reject(domain.EventSilenceDetected)
	}
	m.log.Debug("recording: auto-stop (%s)", reason)
	return m.finishRecording()
}

func (m *Machine) finishRecording() error {
	m.endCancelWindow()
	samples, err := m.buf.DrainRecording()
	if err != nil {
		m.emitter.RecordingError(err)
		m.state = domain.StateListening
		if !m.listeningEnabled {
			m.state = domain.StateIdle
		}
		return fmt.Errorf("draining recording: %w", err)
	}
	m.store.RecordDrained(samples)
	m.state = domain.StateProcessing
	m.emitter.RecordingStopped()
	m.emitter.TranscriptionStarted()

	started := time.Now()
	text, err := m.transcribeRecording(samples)
	durationMs := time.Since(started).Milliseconds()
	if err != nil {
		m.emitter.TranscriptionError(err.Error())
	} else {
		m.emitter.TranscriptionCompleted(text, durationMs)
	}
	return m.completeProcessing()
}

// transcribeRecording persists samples as a WAV file under the
// recordings directory and runs the batch transcription path against
// it, subject to the batch timeout — unlike the wake/cancel detectors'
// streaming path, which discards its scratch WAV immediately and runs
// under the shorter streaming timeout.
func (m *Machine) transcribeRecording(samples []float32) (string, error) {
	dir := m.recordingsDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating recordings dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("recording-%d.wav", m.recordingStart.UnixNano()))
	if err := audio.WriteWAV(path, samples); err != nil {
		return "", fmt.Errorf("writing recording wav: %w", err)
	}

	return m.stt.TranscribeFile(path)
}

// CancelDetected: Recording -> (Listening|Idle). Discards the buffer;
// no transcription is attempted.
func (m *Machine) CancelDetected() error {
	if m.state != domain.StateRecording {
		return m.reject(domain.EventCancelDetected)
	}
	m.endCancelWindow()
	m.buf.DiscardRecording()
	m.store.RecordDiscarded()
	m.emitter.RecordingCancelled()
	return m.completeProcessing()
}

func (m *Machine) endCancelWindow() {
	if m.hooks.EndCancelWindow != nil {
		m.hooks.EndCancelWindow()
	}
}

// completeProcessing resolves Processing -> Listening or Idle
// depending on listening_enabled, resuming wake-word analysis if
// listening stays active.
func (m *Machine) completeProcessing() error {
	if m.listeningEnabled {
		if m.hooks.ResumeWakeWord != nil {
			m.hooks.ResumeWakeWord()
		}
		m.state = domain.StateListening
	} else {
		m.state = domain.StateIdle
	}
	return nil
}

// MicUnavailable: Listening -> Listening (degraded). Only valid while
// Listening; emits listening_unavailable.
func (m *Machine) MicUnavailable(reason string) error {
	if m.state != domain.StateListening {
		return m.reject(domain.EventMicUnavailable)
	}
	m.degraded = true
	m.emitter.ListeningUnavailable(reason)
	return nil
}

// MicRestored clears the degraded flag once the device returns,
// resuming normal listening automatically.
func (m *Machine) MicRestored() error {
	if m.state != domain.StateListening {
		return m.reject(domain.EventMicRestored)
	}
	if !m.degraded {
		return nil
	}
	m.degraded = false
	m.emitter.ListeningStarted()
	return nil
}

// Degraded reports whether the machine is Listening in a degraded
// (mic unavailable) sub-state.
func (m *Machine) Degraded() bool { return m.degraded }
