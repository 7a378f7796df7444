package vad

import (
	"errors"
	"testing"

	"github.com/whiskerware/voicecore/internal/domain"
)

func TestConfigValidateRejectsUnsupportedSampleRate(t *testing.T) {
	cases := []int{8000, 16000, 44100, 0, -1}
	for _, rate := range cases {
		c := Config{SampleRate: rate, ModelPath: "model.onnx"}
		err := c.Validate()
		supported := rate == 8000 || rate == 16000
		if supported && err != nil {
			t.Errorf("rate=%d: unexpected error %v", rate, err)
		}
		if !supported && err == nil {
			t.Errorf("rate=%d: expected an error, got nil", rate)
		}
	}
}

func TestConfigValidateErrorMessage(t *testing.T) {
	c := Config{SampleRate: 44100}
	err := c.Validate()
	if err == nil {
		t.Fatal("expected an error")
	}
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error is not a *domain.ConfigError: %v", err)
	}
	want := "Unsupported sample rate: 44100. Must be 8000 or 16000 Hz."
	if cfgErr.Reason != want {
		t.Errorf("Reason = %q, want %q", cfgErr.Reason, want)
	}
}

func TestChunkSizeLaw(t *testing.T) {
	cases := []struct {
		rate int
		want int
	}{
		{8000, 256},
		{16000, 512},
	}
	for _, tc := range cases {
		c := Config{SampleRate: tc.rate}
		if got := c.ChunkSize(); got != tc.want {
			t.Errorf("rate=%d: ChunkSize() = %d, want %d", tc.rate, got, tc.want)
		}
	}
}

func TestThresholdValues(t *testing.T) {
	cases := []struct {
		t    Threshold
		want float64
	}{
		{ThresholdWakeWord, 0.3},
		{ThresholdBalanced, 0.4},
		{ThresholdSilence, 0.5},
		{ThresholdAggressive, 0.6},
	}
	for _, tc := range cases {
		if got := tc.t.Value(); got != tc.want {
			t.Errorf("%s.Value() = %v, want %v", tc.t, got, tc.want)
		}
	}
}

func TestResetClearsState(t *testing.T) {
	d := &Detector{cfg: Config{SampleRate: 16000}}
	d.state[0] = 1
	d.ctx[0] = 1
	d.currSample = 5

	d.Reset()

	if d.state[0] != 0 || d.ctx[0] != 0 || d.currSample != 0 {
		t.Errorf("Reset did not clear state: state[0]=%v ctx[0]=%v currSample=%d", d.state[0], d.ctx[0], d.currSample)
	}
}

func TestInferRejectsWrongLength(t *testing.T) {
	d := &Detector{cfg: Config{SampleRate: 16000}}
	_, err := d.Infer(make([]float32, 10))
	if !errors.Is(err, domain.ErrInvalidAudio) {
		t.Fatalf("err = %v, want ErrInvalidAudio", err)
	}
}
