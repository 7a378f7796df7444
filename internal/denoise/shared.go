package denoise

import (
	"sync"

	"github.com/whiskerware/voicecore/internal/domain"
	"github.com/whiskerware/voicecore/internal/logger"
)

// Shared is the process-wide denoiser handle. It loads weights once
// at startup via TryLoad and guards every Process call with a single
// lock so at most one frame is denoised at a time globally. The
// capture thread holds this lock for the duration of its callback.
type Shared struct {
	mu      sync.Mutex
	dtln    *DTLN
	log     *logger.Logger
	loadErr error
}

// TryLoad attempts to load the DTLN weights. On failure it records
// the error (reported by LoadError) and logs it, but the returned
// Shared handle remains usable:
// Process then passes frames through unmodified so the capture thread
// can degrade gracefully instead of refusing to start.
func TryLoad(cfg Config, log *logger.Logger) *Shared {
	s := &Shared{dtln: New(cfg), log: log}
	if err := s.dtln.Load(); err != nil {
		s.loadErr = err
		log.Warn("denoise: load failed, denoising disabled: %v", err)
	}
	return s
}

// LoadError returns the error recorded by TryLoad, or nil if the
// model loaded successfully.
func (s *Shared) LoadError() error {
	return s.loadErr
}

// Process denoises one frame under the shared lock. If the model
// failed to load, it returns the frame unmodified.
func (s *Shared) Process(frame []float32) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadErr != nil {
		return frame, nil
	}
	return s.dtln.Process(frame)
}

// Reset zeroes the denoiser's per-session state. Called at the start
// of each capture session.
func (s *Shared) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dtln.Reset()
}

// Destroy releases the underlying ONNX sessions.
func (s *Shared) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr == nil {
		s.dtln.Destroy()
	}
}

var _ domain.Denoiser = (*Shared)(nil)
