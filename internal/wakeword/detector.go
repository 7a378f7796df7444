// Package wakeword implements the rolling-window wake-phrase detector
// that periodically submits its window to the shared transcription
// model rather than running its own ONNX classifier pipeline.
package wakeword

import (
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/whiskerware/voicecore/internal/domain"
	"github.com/whiskerware/voicecore/internal/logger"
	"github.com/whiskerware/voicecore/internal/phrase"
)

// wakeRMSThreshold gates NoteFrame's RMS-only fallback when no VAD is
// wired, matching the silence detector's own RMS default.
const wakeRMSThreshold = 0.01

// Config holds the detector's tuning knobs, matching configuration
// options wakeWord.confidenceThreshold and wakeWord.windowDurationSecs.
type Config struct {
	ConfidenceThreshold float64
	WindowDurationSecs  float64
	MinVoicedFrames     int
	FingerprintOverlap  float64
}

// DefaultConfig returns the spec defaults.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.8,
		WindowDurationSecs:  2.0,
		MinVoicedFrames:     4,
		FingerprintOverlap:  0.5,
	}
}

// Detector analyzes a rolling window of the shared audio buffer every
// tick and emits a Detected event on a match. All mutable state — the
// last-analysis counter, the VAD-voiced-frame count, and the bounded
// fingerprint history — is consolidated behind one lock to eliminate
// lock ordering, per the cyclic-pipeline-graph design note.
type Detector struct {
	cfg     Config
	buf     domain.AudioBuffer
	vad     domain.VoiceActivityDetector
	stt     domain.Transcriber
	matcher *phrase.Matcher
	log     *logger.Logger

	mu    sync.Mutex
	state innerState
}

type innerState struct {
	lastCounter  uint64
	voicedFrames int
	fingerprints *lru.Cache[uint32, domain.AudioFingerprint]
	paused       bool
}

// New constructs a Detector wired to the shared buffer, an optional
// VAD (nil leaves the voiced-frame gate on RMS alone), and the shared
// transcription model.
func New(cfg Config, buf domain.AudioBuffer, vad domain.VoiceActivityDetector, stt domain.Transcriber, log *logger.Logger) *Detector {
	cache, _ := lru.New[uint32, domain.AudioFingerprint](domain.FingerprintHistorySize)
	return &Detector{
		cfg:     cfg,
		buf:     buf,
		vad:     vad,
		stt:     stt,
		matcher: phrase.New(phrase.WakeWordTargets, phrase.WakeWordRejections),
		log:     log,
		state:   innerState{fingerprints: cache},
	}
}

// Pause stops analysis (e.g. while the system is already Recording).
func (d *Detector) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.paused = true
}

// Resume re-enables analysis.
func (d *Detector) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.paused = false
}

// NoteFrame feeds one capture-thread frame into the voiced-frame gate,
// using the wired VAD's probability alongside an RMS floor and falling
// back to RMS alone when no VAD is wired, the same fusion the silence
// detector uses. Called by the capture thread before Tick so the gate
// reflects current audio, not the window's average.
func (d *Detector) NoteFrame(frame []float32) {
	voiced := d.isVoiced(frame)

	d.mu.Lock()
	defer d.mu.Unlock()
	if voiced {
		d.state.voicedFrames++
		if d.state.voicedFrames > d.cfg.MinVoicedFrames {
			d.state.voicedFrames = d.cfg.MinVoicedFrames
		}
	} else {
		d.state.voicedFrames = 0
	}
}

func (d *Detector) isVoiced(frame []float32) bool {
	rmsSpeech := rms(frame) >= wakeRMSThreshold
	if d.vad == nil {
		return rmsSpeech
	}
	prob, err := d.vad.Infer(frame)
	if err != nil {
		return rmsSpeech
	}
	return rmsSpeech && prob >= domain.VADBalancedThreshold
}

func rms(frame []float32) float64 {
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// Tick runs one analysis step. Returns a WakeWordEvent when a wake
// phrase is detected; otherwise ok is false and no event is
// produced — skipping a tick is never fatal, the detector just
// re-evaluates on the next one.
func (d *Detector) Tick() (domain.WakeWordEvent, bool) {
	d.mu.Lock()
	paused := d.state.paused
	voicedFrames := d.state.voicedFrames
	d.mu.Unlock()

	if paused {
		return domain.WakeWordEvent{}, false
	}

	if voicedFrames < d.cfg.MinVoicedFrames {
		return domain.WakeWordEvent{}, false
	}

	window := d.buf.SnapshotLast(d.cfg.WindowDurationSecs)
	if len(window) == 0 {
		return domain.WakeWordEvent{}, false
	}

	fp := domain.NewAudioFingerprint(window)
	if d.seenRecently(fp) {
		return domain.WakeWordEvent{}, false
	}
	d.remember(fp)

	result, err := d.stt.TranscribeSamples(window)
	if err != nil {
		d.log.Debug("wakeword: transcribe_samples failed: %v", err)
		return domain.WakeWordEvent{}, false
	}

	target, matched := d.matcher.Match(result.Text)
	if !matched {
		return domain.WakeWordEvent{}, false
	}

	confidence := result.Confidence
	if confidence < d.cfg.ConfidenceThreshold {
		return domain.WakeWordEvent{}, false
	}

	return domain.WakeWordEvent{
		Kind:       domain.WakeWordDetected,
		Text:       target,
		Confidence: confidence,
	}, true
}

func (d *Detector) seenRecently(fp domain.AudioFingerprint) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.fingerprints == nil {
		return false
	}
	for _, key := range d.state.fingerprints.Keys() {
		prior, ok := d.state.fingerprints.Peek(key)
		if !ok {
			continue
		}
		if fp.Overlap(prior) > d.cfg.FingerprintOverlap {
			return true
		}
	}
	return false
}

func (d *Detector) remember(fp domain.AudioFingerprint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.fingerprints == nil {
		return
	}
	d.state.fingerprints.Add(fp.Checksum, fp)
}

// AnalysisTick is the minimum interval between Tick calls.
// minNewSamples is the minimum number of newly-pushed samples needed
// before a tick runs at all — below that, the window has barely moved
// and re-analysis would just repeat the previous result.
const (
	AnalysisTick  = domain.AnalysisIntervalMs * time.Millisecond
	minNewSamples = 12000
)

// ShouldAnalyze reports whether enough new audio has accumulated
// since the last tick to justify a fresh analysis pass.
func (d *Detector) ShouldAnalyze() bool {
	d.mu.Lock()
	lastCounter := d.state.lastCounter
	d.mu.Unlock()

	_, newCounter := d.buf.SnapshotSince(lastCounter)
	delta := newCounter - lastCounter

	d.mu.Lock()
	d.state.lastCounter = newCounter
	d.mu.Unlock()

	return delta >= minNewSamples
}
