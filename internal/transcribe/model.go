// Package transcribe wraps the shared speech-to-text model: a single
// handle used by both the batch (end-of-recording) and streaming
// (wake/cancel detector) callers, serialized behind one permit.
package transcribe

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/whiskerware/voicecore/internal/audio"
	"github.com/whiskerware/voicecore/internal/domain"
	"github.com/whiskerware/voicecore/internal/logger"
)

// Config holds the whisper binary/model paths and scratch directory.
// The host CLI sets WhisperBin from its -whisper-bin flag and ModelPath
// from the VOICECORE_STT_MODEL setting.
type Config struct {
	WhisperBin string
	ModelPath  string
	TempDir    string
	Verbose    bool
}

// Model is the process-wide Shared Transcription Model. It loads once
// at startup and is shared via a handle so recording start never pays
// a multi-second model-load cost.
type Model struct {
	cfg Config
	log *logger.Logger

	stateMu sync.Mutex
	state   domain.TranscriptionState
}

// New constructs a Model in the Unloaded state. Call MarkLoaded once
// the whisper binary and model file have been verified present.
func New(cfg Config, log *logger.Logger) *Model {
	return &Model{cfg: cfg, log: log, state: domain.TranscriptionUnloaded}
}

// MarkLoaded transitions Unloaded → Idle. Called once at startup
// after verifying the whisper binary and model are reachable.
func (m *Model) MarkLoaded() {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if m.state == domain.TranscriptionUnloaded {
		m.state = domain.TranscriptionIdle
	}
}

func (m *Model) getState() domain.TranscriptionState {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.state
}

func (m *Model) setState(s domain.TranscriptionState) {
	m.stateMu.Lock()
	m.state = s
	m.stateMu.Unlock()
}

// transcribeWAV runs one whisper session against a WAV file and
// returns the recognized text, or an error on timeout or runtime
// failure. Shared by both the batch and streaming entry points; each
// passes its own timeout here and uses the same timeout to wait for
// the permit (see guard.go).
func (m *Model) transcribeWAV(path string, timeout time.Duration) (string, error) {
	dir := m.cfg.TempDir
	if dir == "" {
		dir = os.TempDir()
	}

	resultCh := make(chan string, 1)
	callback := func(text string) {
		select {
		case resultCh <- text:
		default:
		}
	}

	t, err := audiotranscriber.NewTranscriber(m.cfg.WhisperBin, m.cfg.ModelPath, dir, "wav", callback, m.cfg.Verbose)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrModelLoadFailed, err)
	}
	if err := t.Start(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTranscriptionFailed, err)
	}

	select {
	case text := <-resultCh:
		t.Stop()
		return strings.TrimSpace(text), nil
	case <-time.After(timeout):
		t.Stop()
		return "", &domain.TimeoutError{Operation: "transcription", After: timeout}
	}
}

// writeSamplesToTemp encodes samples as a temp WAV for the streaming
// path, which hands whisper a file path rather than raw samples.
func (m *Model) writeSamplesToTemp(samples []float32) (string, error) {
	dir := m.cfg.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	return audio.WriteTempWAV(dir, samples)
}
