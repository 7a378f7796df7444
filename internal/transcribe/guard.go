package transcribe

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/semaphore"

	"github.com/whiskerware/voicecore/internal/domain"
)

// permit is the single global transcription permit: at most one
// decode may run globally, batch and streaming callers alike.
var permit = semaphore.NewWeighted(1)

// transcribingGuard is a scoped handle whose release restores
// TranscriptionState to Idle (or leaves it at Error if one was
// recorded) and releases the permit, regardless of exit path —
// success, error, panic, or timeout.
type transcribingGuard struct {
	m         *Model
	errMsg    string
	acquired  bool
}

// acquireGuard blocks until the permit is available or ctx is
// cancelled, then flips state to Transcribing. Fails immediately with
// domain.ErrModelNotLoaded if the model is Unloaded, before
// acquiring any permit.
func acquireGuard(ctx context.Context, m *Model) (*transcribingGuard, error) {
	if m.getState() == domain.TranscriptionUnloaded {
		return nil, domain.ErrModelNotLoaded
	}

	if err := permit.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	m.setState(domain.TranscriptionTranscribing)
	return &transcribingGuard{m: m, acquired: true}, nil
}

// fail records an error message to be set on release instead of
// resetting to Idle.
func (g *transcribingGuard) fail(msg string) {
	g.errMsg = msg
}

// release is the guard's destructor equivalent: always called via
// defer, so it runs on every exit path including panics.
func (g *transcribingGuard) release() {
	if !g.acquired {
		return
	}
	if g.errMsg != "" {
		g.m.setState(domain.TranscriptionError)
	} else {
		g.m.setState(domain.TranscriptionIdle)
	}
	permit.Release(1)
	g.acquired = false
}

// TranscribeFile runs the batch path used by the end-of-recording
// flow, subject to the batch timeout.
func (m *Model) TranscribeFile(path string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), domain.DefaultBatchTimeout)
	defer cancel()

	guard, err := acquireGuard(ctx, m)
	if err != nil {
		return "", err
	}
	defer guard.release()

	if _, err := os.Stat(path); err != nil {
		guard.fail(err.Error())
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidAudio, err)
	}

	text, err := m.transcribeWAV(path, domain.DefaultBatchTimeout)
	if err != nil {
		guard.fail(err.Error())
		return "", err
	}
	return text, nil
}

// TranscribeSamples runs the streaming path used by the wake-word and
// cancel-phrase detectors, subject to the streaming timeout.
func (m *Model) TranscribeSamples(samples []float32) (domain.TranscriptionResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), domain.DefaultStreamingTimeout)
	defer cancel()

	guard, err := acquireGuard(ctx, m)
	if err != nil {
		return domain.TranscriptionResult{}, err
	}
	defer guard.release()

	if len(samples) == 0 {
		guard.fail("empty sample window")
		return domain.TranscriptionResult{}, domain.ErrInvalidAudio
	}

	path, err := m.writeSamplesToTemp(samples)
	if err != nil {
		guard.fail(err.Error())
		return domain.TranscriptionResult{}, fmt.Errorf("%w: %v", domain.ErrTranscriptionFailed, err)
	}
	defer os.Remove(path)

	text, err := m.transcribeWAV(path, domain.DefaultStreamingTimeout)
	if err != nil {
		guard.fail(err.Error())
		return domain.TranscriptionResult{}, err
	}

	return domain.TranscriptionResult{Text: text, Confidence: confidenceFor(text)}, nil
}

// confidenceFor derives a coarse confidence score. Whisper text
// output carries no native confidence; text of four or more bytes
// scores 0.9, a shorter non-empty fragment 0.5, and empty text 0.
func confidenceFor(text string) float64 {
	if text == "" {
		return 0
	}
	if len(text) < 4 {
		return 0.5
	}
	return 0.9
}

var _ domain.Transcriber = (*Model)(nil)
