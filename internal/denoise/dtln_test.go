package denoise

import (
	"testing"

	"github.com/whiskerware/voicecore/internal/domain"
)

func TestResetZeroesState(t *testing.T) {
	d := New(Config{})
	d.state.Stage1Hidden[0] = 1
	d.state.Stage2Cell[0] = 1
	d.state.OLABuffer[0] = 1

	d.Reset()

	if d.state.Stage1Hidden[0] != 0 || d.state.Stage2Cell[0] != 0 || d.state.OLABuffer[0] != 0 {
		t.Errorf("Reset did not zero state: %+v", d.state)
	}
}

func TestProcessPassesThroughWhenNotLoaded(t *testing.T) {
	d := New(Config{})
	frame := make([]float32, domain.FrameSamples)
	for i := range frame {
		frame[i] = float32(i) / float32(domain.FrameSamples)
	}

	out, err := d.Process(frame)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != len(frame) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(frame))
	}
	for i := range frame {
		if out[i] != frame[i] {
			t.Fatalf("out[%d] = %v, want passthrough %v", i, out[i], frame[i])
		}
	}
}

func TestProcessRejectsWrongFrameLength(t *testing.T) {
	d := New(Config{})
	d.loaded = true // force past the passthrough shortcut

	_, err := d.Process(make([]float32, 10))
	if err == nil {
		t.Fatal("Process did not reject a short frame")
	}
}

func TestHannWindowIsSymmetric(t *testing.T) {
	w := hannWindow(8)
	for i := 0; i < len(w)/2; i++ {
		if w[i] != w[len(w)-1-i] {
			t.Errorf("hann[%d] = %v, hann[%d] = %v, want equal", i, w[i], len(w)-1-i, w[len(w)-1-i])
		}
	}
	if w[0] != 0 {
		t.Errorf("hann[0] = %v, want 0", w[0])
	}
}
