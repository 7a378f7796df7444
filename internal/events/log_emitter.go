// Package events implements the EventEmitter capability surface: a
// logging implementation for hosts with no richer UI, and an
// in-memory recorder for tests. Both are adapted from the CLI
// notifier's "print formatted lines through an injected function"
// shape, minus ANSI — this layer has no terminal of its own.
package events

import (
	"github.com/whiskerware/voicecore/internal/domain"
	"github.com/whiskerware/voicecore/internal/logger"
)

var _ domain.EventEmitter = (*LogEmitter)(nil)

// LogEmitter reports every event as a log line at Info level (Warn
// level for the two unavailability events, Error level for failures). Suitable as the default emitter for the CLI
// entrypoint, or as a fallback wrapped by a fan-out emitter that also
// forwards to a richer host.
type LogEmitter struct {
	log *logger.Logger
}

// NewLogEmitter creates an emitter writing through log.
func NewLogEmitter(log *logger.Logger) *LogEmitter {
	return &LogEmitter{log: log}
}

func (e *LogEmitter) RecordingStarted() { e.log.Info("event: recording_started") }
func (e *LogEmitter) RecordingStopped() { e.log.Info("event: recording_stopped") }
func (e *LogEmitter) RecordingError(err error) {
	e.log.Error("event: recording_error: %v", err)
}
func (e *LogEmitter) RecordingCancelled() { e.log.Info("event: recording_cancelled") }
func (e *LogEmitter) TranscriptionStarted() {
	e.log.Info("event: transcription_started")
}
func (e *LogEmitter) TranscriptionCompleted(text string, durationMs int64) {
	e.log.Info("event: transcription_completed: %q (%dms)", text, durationMs)
}
func (e *LogEmitter) TranscriptionError(message string) {
	e.log.Error("event: transcription_error: %s", message)
}
func (e *LogEmitter) ListeningStarted() { e.log.Info("event: listening_started") }
func (e *LogEmitter) ListeningStopped() { e.log.Info("event: listening_stopped") }
func (e *LogEmitter) ListeningUnavailable(reason string) {
	e.log.Warn("event: listening_unavailable: %s", reason)
}
func (e *LogEmitter) WakeWordDetected(text string, confidence float64) {
	e.log.Info("event: wake_word_detected: %q (confidence=%.2f)", text, confidence)
}
func (e *LogEmitter) ModelDownloadCompleted(kind domain.ModelKind) {
	e.log.Info("event: model_download_completed: %s", kind)
}
func (e *LogEmitter) KeyBlockingUnavailable(reason string, timestampMs int64) {
	e.log.Warn("event: key_blocking_unavailable: %s (ts=%d)", reason, timestampMs)
}

// FanOut forwards every event to all of its emitters in order,
// adapted from the notifier package's idea of composing a speaking
// notifier on top of a base one.
type FanOut struct {
	emitters []domain.EventEmitter
}

var _ domain.EventEmitter = (*FanOut)(nil)

// NewFanOut creates an emitter that forwards to every given emitter.
func NewFanOut(emitters ...domain.EventEmitter) *FanOut {
	return &FanOut{emitters: emitters}
}

func (f *FanOut) RecordingStarted() {
	for _, e := range f.emitters {
		e.RecordingStarted()
	}
}
func (f *FanOut) RecordingStopped() {
	for _, e := range f.emitters {
		e.RecordingStopped()
	}
}
func (f *FanOut) RecordingError(err error) {
	for _, e := range f.emitters {
		e.RecordingError(err)
	}
}
func (f *FanOut) RecordingCancelled() {
	for _, e := range f.emitters {
		e.RecordingCancelled()
	}
}
func (f *FanOut) TranscriptionStarted() {
	for _, e := range f.emitters {
		e.TranscriptionStarted()
	}
}
func (f *FanOut) TranscriptionCompleted(text string, durationMs int64) {
	for _, e := range f.emitters {
		e.TranscriptionCompleted(text, durationMs)
	}
}
func (f *FanOut) TranscriptionError(message string) {
	for _, e := range f.emitters {
		e.TranscriptionError(message)
	}
}
func (f *FanOut) ListeningStarted() {
	for _, e := range f.emitters {
		e.ListeningStarted()
	}
}
func (f *FanOut) ListeningStopped() {
	for _, e := range f.emitters {
		e.ListeningStopped()
	}
}
func (f *FanOut) ListeningUnavailable(reason string) {
	for _, e := range f.emitters {
		e.ListeningUnavailable(reason)
	}
}
func (f *FanOut) WakeWordDetected(text string, confidence float64) {
	for _, e := range f.emitters {
		e.WakeWordDetected(text, confidence)
	}
}
func (f *FanOut) ModelDownloadCompleted(kind domain.ModelKind) {
	for _, e := range f.emitters {
		e.ModelDownloadCompleted(kind)
	}
}
func (f *FanOut) KeyBlockingUnavailable(reason string, timestampMs int64) {
	for _, e := range f.emitters {
		e.KeyBlockingUnavailable(reason, timestampMs)
	}
}
