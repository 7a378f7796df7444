// Package domain defines the core types, interfaces, and errors shared
// across the voice-capture backend. All other packages depend on
// domain; domain depends on nothing in this module.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors used across layers. Named to match the taxonomy in
// the error-handling design: Configuration, Resource, Runtime, Timeout.
var (
	// Configuration errors — fatal to the subsystem, no retry.
	ErrConfigurationInvalid = errors.New("configuration invalid")

	// Resource errors — recoverable by user action.
	ErrModelNotLoaded   = errors.New("model not loaded")
	ErrModelNotFound    = errors.New("model not found")
	ErrModelLoadFailed  = errors.New("model load failed")
	ErrDeviceNotFound   = errors.New("audio device not found")
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// Runtime errors — reported as an error event, state resets.
	ErrInferenceFailed     = errors.New("inference failed")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrInvalidAudio        = errors.New("invalid audio")
	ErrLockPoisoned        = errors.New("lock poisoned")

	// Timeout.
	ErrTimeout = errors.New("timeout")

	// State-machine / buffer errors.
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrNoRecordingBuffer  = errors.New("no recording buffer available")
	ErrBufferDiscarded    = errors.New("recording buffer was discarded")
	ErrNotImplemented     = errors.New("not implemented")
)

// ConfigError describes an invalid configuration value with enough
// context to report to a caller.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration invalid: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfigurationInvalid }

// UnsupportedSampleRateError reports a VAD sample rate outside {8000,
// 16000}, matching the exact message shape spec §4.E requires.
func UnsupportedSampleRateError(rate int) error {
	return &ConfigError{
		Field:  "sample_rate",
		Reason: fmt.Sprintf("Unsupported sample rate: %d. Must be 8000 or 16000 Hz.", rate),
	}
}

// ModelKind identifies which on-disk weight file an error concerns.
type ModelKind int

const (
	ModelKindDenoiseStage1 ModelKind = iota
	ModelKindDenoiseStage2
	ModelKindSTT
	// ModelKindVAD identifies the Silero VAD weight file. Not tracked
	// by the model registry's download surface (only the three
	// downloadable weight files are), but still a valid ModelError
	// subject for load failures.
	ModelKindVAD
)

func (k ModelKind) String() string {
	switch k {
	case ModelKindDenoiseStage1:
		return "denoise-stage1"
	case ModelKindDenoiseStage2:
		return "denoise-stage2"
	case ModelKindSTT:
		return "stt"
	case ModelKindVAD:
		return "vad"
	default:
		return "unknown"
	}
}

// ModelError wraps a resource failure for a specific model file.
type ModelError struct {
	Kind ModelKind
	Path string
	Err  error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s at %q: %v", e.Kind, e.Path, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// TimeoutError reports a transcription timeout, formatted to match the
// user-visible string the spec mandates.
type TimeoutError struct {
	Operation string
	After     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %d seconds", e.Operation, int(e.After.Seconds()))
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// TransitionError reports a recording-state-machine event rejected
// because it has no entry for the current state.
type TransitionError struct {
	From  RecordingState
	Event RecordingEvent
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %s not valid from state %s", e.Event, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
