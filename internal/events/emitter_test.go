package events

import (
	"errors"
	"testing"

	"github.com/whiskerware/voicecore/internal/domain"
	"github.com/whiskerware/voicecore/internal/logger"
)

func TestLogEmitterSatisfiesInterface(t *testing.T) {
	var _ domain.EventEmitter = NewLogEmitter(logger.New(logger.LevelOff, nil))
}

func TestRecorderCapturesEventsInOrder(t *testing.T) {
	r := NewRecorder()
	r.RecordingStarted()
	r.WakeWordDetected("hey cat", 0.91)
	r.TranscriptionCompleted("set a timer", 842)
	r.RecordingError(errors.New("boom"))
	r.ModelDownloadCompleted(domain.ModelKindSTT)

	calls := r.Calls()
	want := []string{
		"recording_started",
		"wake_word_detected:hey cat:0.91",
		"transcription_completed:set a timer:842",
		"recording_error:boom",
		"model_download_completed:" + domain.ModelKindSTT.String(),
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestFanOutForwardsToAllEmitters(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	fan := NewFanOut(a, b)

	fan.ListeningStarted()
	fan.ListeningUnavailable("device missing")

	for _, r := range []*Recorder{a, b} {
		calls := r.Calls()
		if len(calls) != 2 || calls[0] != "listening_started" || calls[1] != "listening_unavailable:device missing" {
			t.Errorf("calls = %v", calls)
		}
	}
}
