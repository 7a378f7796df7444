// Package silence implements the hybrid RMS + VAD auto-stop detector.
package silence

import (
	"math"
	"time"

	"github.com/whiskerware/voicecore/internal/domain"
)

// Config holds the silence detector's tunable thresholds, matching
// configuration options silence.durationMs and
// silence.noSpeechTimeoutMs.
type Config struct {
	RMSThreshold      float64
	SilenceDurationMs int
	NoSpeechTimeoutMs int
	PauseToleranceMs  int
	MinSpeechFrames   int
}

// DefaultConfig returns the defaults named in the configuration table.
func DefaultConfig() Config {
	return Config{
		RMSThreshold:      0.01,
		SilenceDurationMs: 2000,
		NoSpeechTimeoutMs: 5000,
		PauseToleranceMs:  1000,
		MinSpeechFrames:   2,
	}
}

// Detector fuses frame RMS and VAD probability to decide when a
// recording should auto-stop. Reset at the start of every recording.
type Detector struct {
	cfg Config
	vad domain.VoiceActivityDetector

	hasSpeech      bool
	stopped        bool
	speechFrames   int
	sessionStart   time.Time
	lastSpeechTime time.Time
}

// New constructs a Detector. vad may be nil to run on RMS alone.
func New(cfg Config, vad domain.VoiceActivityDetector) *Detector {
	return &Detector{cfg: cfg, vad: vad}
}

// Reset starts a new session, clearing speech history.
func (d *Detector) Reset() {
	d.hasSpeech = false
	d.stopped = false
	d.speechFrames = 0
	d.sessionStart = time.Now()
	d.lastSpeechTime = time.Time{}
}

// Feed evaluates one frame and returns Continue, or Stop with the
// reason the recording should end. Stop is reported once per session:
// after it, Feed returns Continue until the next Reset.
func (d *Detector) Feed(frame []float32) (domain.SilenceVerdict, domain.SilenceReason) {
	now := time.Now()
	if d.sessionStart.IsZero() {
		d.sessionStart = now
	}
	if d.stopped {
		return domain.SilenceContinue, 0
	}

	speaking := d.isSpeaking(frame)

	if speaking {
		d.speechFrames++
		if d.speechFrames >= d.cfg.MinSpeechFrames {
			d.hasSpeech = true
		}
		d.lastSpeechTime = now
		return domain.SilenceContinue, 0
	}

	if d.hasSpeech {
		if now.Sub(d.lastSpeechTime) >= time.Duration(d.cfg.SilenceDurationMs)*time.Millisecond {
			d.stopped = true
			return domain.SilenceStop, domain.SilenceAfterSpeech
		}
		return domain.SilenceContinue, 0
	}

	if now.Sub(d.sessionStart) >= time.Duration(d.cfg.NoSpeechTimeoutMs)*time.Millisecond {
		d.stopped = true
		return domain.SilenceStop, domain.NoSpeechTimeout
	}
	return domain.SilenceContinue, 0
}

func (d *Detector) isSpeaking(frame []float32) bool {
	frameRMS := rms(frame)
	rmsSpeech := frameRMS >= d.cfg.RMSThreshold

	if d.vad == nil {
		return rmsSpeech
	}

	prob, err := d.vad.Infer(frame)
	if err != nil {
		// Detector errors are logged by the caller and never fatal;
		// fall back to RMS alone for this frame.
		return rmsSpeech
	}
	return rmsSpeech && prob >= domain.VADBalancedThreshold
}

func rms(xs []float32) float64 {
	var sum float64
	for _, x := range xs {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum / float64(len(xs)))
}
