// Package listening owns the background analysis thread that drives
// the wake-word and cancel-phrase detectors on a fixed tick, the same
// Start/Stop-over-a-ticker shape as the cooking session timer
// supervisor, generalized to a bounded-timeout stop instead of plain
// context cancellation.
package listening

import (
	"context"
	"sync"
	"time"

	"github.com/whiskerware/voicecore/internal/cancel"
	"github.com/whiskerware/voicecore/internal/domain"
	"github.com/whiskerware/voicecore/internal/logger"
	"github.com/whiskerware/voicecore/internal/wakeword"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTickInterval overrides the default 150 ms analysis interval.
func WithTickInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.tickInterval = d }
}

// WithEventBuffer sets the capacity of the wake-word event channel.
func WithEventBuffer(n int) Option {
	return func(p *Pipeline) { p.eventBuf = n }
}

// WithCancelInputs wires the shared audio buffer and transcription
// model the cancel-phrase detector needs to analyze each tick. Only
// meaningful when a cancel.Detector was passed to New.
func WithCancelInputs(buf domain.AudioBuffer, stt domain.Transcriber) Option {
	return func(p *Pipeline) {
		p.cancelBuf = buf
		p.cancelSTT = stt
	}
}

// Pipeline runs the 150 ms analysis loop on its own goroutine. The
// capture thread writes to the shared buffer; this loop only reads
// snapshots; the recording state machine only reads events off the
// channel returned by SubscribeEvents. No lock is ever held across a
// call into the shared transcription model, and no detector callback
// ever reaches back into the pipeline — events flow one way, out.
type Pipeline struct {
	wake   *wakeword.Detector
	cancel *cancel.Detector
	log    *logger.Logger

	tickInterval time.Duration
	eventBuf     int
	cancelBuf    domain.AudioBuffer
	cancelSTT    domain.Transcriber

	mu      sync.Mutex
	running bool
	cancelFn context.CancelFunc
	done    chan struct{}
	events  chan domain.WakeWordEvent
}

// New creates a Pipeline driving the given wake-word detector and an
// optional cancel-phrase detector (nil disables cancel analysis).
func New(wake *wakeword.Detector, cancelDetector *cancel.Detector, log *logger.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		wake:         wake,
		cancel:       cancelDetector,
		log:          log,
		tickInterval: domain.AnalysisIntervalMs * time.Millisecond,
		eventBuf:     8,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.events = make(chan domain.WakeWordEvent, p.eventBuf)
	return p
}

// SubscribeEvents returns the receive side of the wake-word event
// channel. Safe to call before or after Start.
func (p *Pipeline) SubscribeEvents() <-chan domain.WakeWordEvent {
	return p.events
}

// Start begins the background analysis loop. Non-blocking. Calling
// Start while already running is a no-op, matching the supervisor's
// idempotent Start.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		p.log.Warn("listening pipeline already running")
		return
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	p.cancelFn = cancelFn
	p.done = make(chan struct{})
	p.running = true

	go p.loop(ctx, p.done)
	p.log.Info("listening pipeline started (tick=%s)", p.tickInterval)
}

// Stop cancels the analysis loop without waiting for it to exit.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Pipeline) stopLocked() {
	if !p.running {
		return
	}
	p.cancelFn()
	p.running = false
}

// StopWithTimeout cancels the analysis loop and blocks until it
// confirms exit or the timeout elapses, whichever comes first. The
// loop itself never calls back into the pipeline, so this can never
// deadlock against a pending detector callback — there isn't one.
func (p *Pipeline) StopWithTimeout(timeout time.Duration) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	done := p.done
	p.stopLocked()
	p.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return &domain.TimeoutError{Operation: "listening pipeline stop", After: timeout}
	}
}

// Running reports whether the analysis loop is currently active.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pipeline) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Pipeline) tick() {
	if p.wake != nil && p.wake.ShouldAnalyze() {
		if event, ok := p.wake.Tick(); ok {
			select {
			case p.events <- event:
			default:
				p.log.Debug("listening: dropping wake-word event, channel full")
			}
		}
	}

	if p.cancel != nil {
		p.cancelTick()
	}
}

func (p *Pipeline) cancelTick() {
	// The cancel detector's own inWindow check makes this cheap once
	// the cancellation window has closed; Analyze only transcribes
	// while there is still a chance of a match.
	matched, err := p.analyzeCancel()
	if err != nil {
		p.log.Debug("listening: cancel analysis failed: %v", err)
		return
	}
	if matched {
		select {
		case p.events <- domain.WakeWordEvent{Kind: domain.CancelPhraseDetected}:
		default:
			p.log.Debug("listening: dropping cancel event, channel full")
		}
	}
}

// analyzeCancel delegates to the wired cancel.Detector, which needs
// the shared buffer and transcriber supplied at construction time via
// WithCancelInputs. Without them, cancel analysis is a no-op.
func (p *Pipeline) analyzeCancel() (bool, error) {
	if p.cancelBuf == nil || p.cancelSTT == nil {
		return false, nil
	}
	return p.cancel.Analyze(time.Now(), p.cancelBuf, p.cancelSTT)
}
