package events

import (
	"fmt"
	"sync"

	"github.com/whiskerware/voicecore/internal/domain"
)

// Recorder captures every event call verbatim, in order, for
// assertions in tests that exercise a full component wired against
// domain.EventEmitter.
type Recorder struct {
	mu    sync.Mutex
	calls []string
}

var _ domain.EventEmitter = (*Recorder)(nil)

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Calls returns a copy of every event recorded so far, in order.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *Recorder) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *Recorder) RecordingStarted()   { r.record("recording_started") }
func (r *Recorder) RecordingStopped()   { r.record("recording_stopped") }
func (r *Recorder) RecordingError(err error) {
	r.record(fmt.Sprintf("recording_error:%v", err))
}
func (r *Recorder) RecordingCancelled()   { r.record("recording_cancelled") }
func (r *Recorder) TranscriptionStarted() { r.record("transcription_started") }
func (r *Recorder) TranscriptionCompleted(text string, durationMs int64) {
	r.record(fmt.Sprintf("transcription_completed:%s:%d", text, durationMs))
}
func (r *Recorder) TranscriptionError(message string) {
	r.record(fmt.Sprintf("transcription_error:%s", message))
}
func (r *Recorder) ListeningStarted() { r.record("listening_started") }
func (r *Recorder) ListeningStopped() { r.record("listening_stopped") }
func (r *Recorder) ListeningUnavailable(reason string) {
	r.record(fmt.Sprintf("listening_unavailable:%s", reason))
}
func (r *Recorder) WakeWordDetected(text string, confidence float64) {
	r.record(fmt.Sprintf("wake_word_detected:%s:%.2f", text, confidence))
}
func (r *Recorder) ModelDownloadCompleted(kind domain.ModelKind) {
	r.record(fmt.Sprintf("model_download_completed:%s", kind))
}
func (r *Recorder) KeyBlockingUnavailable(reason string, timestampMs int64) {
	r.record(fmt.Sprintf("key_blocking_unavailable:%s:%d", reason, timestampMs))
}
