package wakeword

import (
	"errors"
	"testing"

	"github.com/whiskerware/voicecore/internal/domain"
	"github.com/whiskerware/voicecore/internal/logger"
)

type fakeBuffer struct {
	last    []float32
	counter uint64
}

func (f *fakeBuffer) Push(frame []float32)     {}
func (f *fakeBuffer) SnapshotLast(secs float64) []float32 { return f.last }
func (f *fakeBuffer) SnapshotSince(counter uint64) ([]float32, uint64) {
	return f.last, f.counter
}
func (f *fakeBuffer) MarkRecordingStart()        {}
func (f *fakeBuffer) DrainRecording() ([]float32, error) { return nil, nil }
func (f *fakeBuffer) DiscardRecording()          {}
func (f *fakeBuffer) Clear()                     {}

var _ domain.AudioBuffer = (*fakeBuffer)(nil)

type fakeTranscriber struct {
	result domain.TranscriptionResult
	err    error
	calls  int
}

func (f *fakeTranscriber) TranscribeFile(path string) (string, error) { return "", nil }
func (f *fakeTranscriber) TranscribeSamples(samples []float32) (domain.TranscriptionResult, error) {
	f.calls++
	return f.result, f.err
}

var _ domain.Transcriber = (*fakeTranscriber)(nil)

func sampleWindow(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i%7) * 0.01
	}
	return out
}

func testLogger() *logger.Logger {
	return logger.New(logger.LevelOff, nil)
}

func newTestDetector(buf *fakeBuffer, stt *fakeTranscriber) *Detector {
	d := New(DefaultConfig(), buf, nil, stt, testLogger())
	d.state.voicedFrames = d.cfg.MinVoicedFrames
	return d
}

func TestTickSkipsWhenPaused(t *testing.T) {
	buf := &fakeBuffer{last: sampleWindow(1000)}
	stt := &fakeTranscriber{result: domain.TranscriptionResult{Text: "hey cat", Confidence: 0.9}}
	d := newTestDetector(buf, stt)
	d.Pause()

	if _, ok := d.Tick(); ok {
		t.Error("expected no detection while paused")
	}
	if stt.calls != 0 {
		t.Errorf("expected transcriber not called while paused, got %d calls", stt.calls)
	}
}

func TestTickGatesOnVoicedFrames(t *testing.T) {
	buf := &fakeBuffer{last: sampleWindow(1000)}
	stt := &fakeTranscriber{result: domain.TranscriptionResult{Text: "hey cat", Confidence: 0.9}}
	d := New(DefaultConfig(), buf, nil, stt, testLogger())

	if _, ok := d.Tick(); ok {
		t.Error("expected no detection before voiced-frame threshold is reached")
	}
	if stt.calls != 0 {
		t.Errorf("expected transcriber not called below voiced-frame gate, got %d calls", stt.calls)
	}
}

func TestTickDetectsWakePhrase(t *testing.T) {
	buf := &fakeBuffer{last: sampleWindow(1000)}
	stt := &fakeTranscriber{result: domain.TranscriptionResult{Text: "hey cat can you help", Confidence: 0.9}}
	d := newTestDetector(buf, stt)

	event, ok := d.Tick()
	if !ok {
		t.Fatal("expected a wake-word detection")
	}
	if event.Kind != domain.WakeWordDetected {
		t.Errorf("event.Kind = %v, want WakeWordDetected", event.Kind)
	}
	if event.Text != "hey cat" {
		t.Errorf("event.Text = %q, want %q", event.Text, "hey cat")
	}
}

func TestTickRejectsBelowConfidenceThreshold(t *testing.T) {
	buf := &fakeBuffer{last: sampleWindow(1000)}
	stt := &fakeTranscriber{result: domain.TranscriptionResult{Text: "hey cat", Confidence: 0.2}}
	d := newTestDetector(buf, stt)

	if _, ok := d.Tick(); ok {
		t.Error("expected no detection below confidence threshold")
	}
}

func TestTickRejectsFalsePositivePhrase(t *testing.T) {
	buf := &fakeBuffer{last: sampleWindow(1000)}
	stt := &fakeTranscriber{result: domain.TranscriptionResult{Text: "hey matt", Confidence: 0.9}}
	d := newTestDetector(buf, stt)

	if _, ok := d.Tick(); ok {
		t.Error("expected rejection filter to suppress this phrase")
	}
}

func TestTickSuppressesDuplicateWindow(t *testing.T) {
	buf := &fakeBuffer{last: sampleWindow(1000)}
	stt := &fakeTranscriber{result: domain.TranscriptionResult{Text: "hey cat", Confidence: 0.9}}
	d := newTestDetector(buf, stt)

	if _, ok := d.Tick(); !ok {
		t.Fatal("expected first tick to detect")
	}
	if _, ok := d.Tick(); ok {
		t.Error("expected second tick on the identical window to be suppressed as a repeat")
	}
	if stt.calls != 1 {
		t.Errorf("expected transcriber called once, got %d calls", stt.calls)
	}
}

func TestTickHandlesTranscriberError(t *testing.T) {
	buf := &fakeBuffer{last: sampleWindow(1000)}
	stt := &fakeTranscriber{err: errors.New("model busy")}
	d := newTestDetector(buf, stt)

	if _, ok := d.Tick(); ok {
		t.Error("expected no detection on transcriber error")
	}
}

func TestNoteFrameResetsOnSilence(t *testing.T) {
	buf := &fakeBuffer{last: sampleWindow(1000)}
	stt := &fakeTranscriber{result: domain.TranscriptionResult{Text: "hey cat", Confidence: 0.9}}
	d := New(DefaultConfig(), buf, nil, stt, testLogger())

	loud := make([]float32, 160)
	for i := range loud {
		loud[i] = 0.5
	}
	silent := make([]float32, 160)

	for i := 0; i < d.cfg.MinVoicedFrames; i++ {
		d.NoteFrame(loud)
	}
	d.NoteFrame(silent)

	if _, ok := d.Tick(); ok {
		t.Error("expected voiced-frame count to reset on a silent frame")
	}
}

func TestShouldAnalyzeRequiresMinimumNewSamples(t *testing.T) {
	buf := &fakeBuffer{last: nil, counter: 100}
	stt := &fakeTranscriber{}
	d := New(DefaultConfig(), buf, nil, stt, testLogger())

	if d.ShouldAnalyze() {
		t.Error("expected ShouldAnalyze to be false below minNewSamples")
	}

	buf.counter = 100 + minNewSamples
	if !d.ShouldAnalyze() {
		t.Error("expected ShouldAnalyze to be true once minNewSamples have accumulated")
	}
}
