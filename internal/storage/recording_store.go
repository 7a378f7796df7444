// Package storage retains the outcome of the most recently finished
// recording so a caller can inspect it after the fact.
package storage

import (
	"sync"

	"github.com/whiskerware/voicecore/internal/domain"
	"github.com/whiskerware/voicecore/internal/logger"
)

// RecordingStore tracks the last drained or discarded recording
// buffer. Safe for concurrent access.
type RecordingStore struct {
	mu        sync.RWMutex
	samples   []float32
	discarded bool
	set       bool
	log       *logger.Logger
}

// NewRecordingStore creates an empty store.
func NewRecordingStore(log *logger.Logger) *RecordingStore {
	return &RecordingStore{log: log}
}

// RecordDrained records a successfully drained recording buffer,
// e.g. after stop_recording or an auto-stop on silence.
func (s *RecordingStore) RecordDrained(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = samples
	s.discarded = false
	s.set = true
	s.log.Debug("recording store: recorded drained buffer (%d samples)", len(samples))
}

// RecordDiscarded records that the in-flight recording was discarded,
// e.g. after a cancel-phrase abort.
func (s *RecordingStore) RecordDiscarded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = nil
	s.discarded = true
	s.set = true
	s.log.Debug("recording store: recorded discarded buffer")
}

// LastRecordingBuffer returns the last drained samples, or
// domain.ErrBufferDiscarded if the last recording was discarded, or
// domain.ErrNoRecordingBuffer if no recording has finished yet.
func (s *RecordingStore) LastRecordingBuffer() ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.set {
		return nil, domain.ErrNoRecordingBuffer
	}
	if s.discarded {
		return nil, domain.ErrBufferDiscarded
	}
	return s.samples, nil
}
