// Package cancel implements the cancel-phrase detector: a
// session-scoped, time-windowed variant of the wake-word detector's
// matching logic, active only for a short window after a recording
// starts.
package cancel

import (
	"sync"
	"time"

	"github.com/whiskerware/voicecore/internal/domain"
	"github.com/whiskerware/voicecore/internal/phrase"
)

// AnalysisWindowSecs is the duration of audio Analyze snapshots each
// tick, matching the cancellation window's own granularity rather
// than the wake-word detector's longer 2-second window.
const AnalysisWindowSecs = 1.0

// Config holds the cancellation window, matching configuration
// derived from cancellation_window_secs (default 3).
type Config struct {
	WindowSecs float64
}

// DefaultConfig returns the spec default of a 3-second window.
func DefaultConfig() Config {
	return Config{WindowSecs: 3}
}

// Detector reuses the wake-word detector's phrase-matching approach
// but is scoped to one recording session and only analyzes audio
// within WindowSecs of the recording's start.
type Detector struct {
	cfg     Config
	matcher *phrase.Matcher

	mu            sync.Mutex
	active        bool
	recordingAt   time.Time
}

// New constructs a cancel-phrase detector using the default
// cancel/rejection phrase sets.
func New(cfg Config) *Detector {
	return &Detector{
		cfg:     cfg,
		matcher: phrase.New(phrase.CancelTargets, phrase.CancelRejections),
	}
}

// StartSession begins a new cancellation window anchored at
// recordingStart.
func (d *Detector) StartSession(recordingStart time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = true
	d.recordingAt = recordingStart
}

// EndSession closes the window; subsequent Check calls always report
// no detection.
func (d *Detector) EndSession() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = false
}

// inWindow reports whether now still falls within the cancellation
// window. Outside it, Check always returns no-detection, matching the
// contract that cancel phrases only abort the first few seconds.
func (d *Detector) inWindow(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return false
	}
	return now.Sub(d.recordingAt) <= time.Duration(d.cfg.WindowSecs*float64(time.Second))
}

// Check analyzes a transcribed text window (already produced by the
// shared transcription model's streaming path) and reports whether a
// cancel phrase was detected.
func (d *Detector) Check(now time.Time, text string) bool {
	if !d.inWindow(now) {
		return false
	}
	_, matched := d.matcher.Match(text)
	return matched
}

// Analyze snapshots the most recent audio, transcribes it through the
// shared model, and checks it against the cancel-phrase set. Returns
// false without calling the transcriber at all once now falls outside
// the cancellation window, so the expensive streaming decode is only
// paid for while a cancel phrase could actually still land.
func (d *Detector) Analyze(now time.Time, buf domain.AudioBuffer, stt domain.Transcriber) (bool, error) {
	if !d.inWindow(now) {
		return false, nil
	}

	window := buf.SnapshotLast(AnalysisWindowSecs)
	if len(window) == 0 {
		return false, nil
	}

	result, err := stt.TranscribeSamples(window)
	if err != nil {
		return false, err
	}

	return d.Check(now, result.Text), nil
}

// AbortTarget returns the state the recording state machine should
// transition to on a cancel detection: Listening if listening is
// enabled, else Idle.
func AbortTarget(listeningEnabled bool) domain.RecordingState {
	if listeningEnabled {
		return domain.StateListening
	}
	return domain.StateIdle
}
