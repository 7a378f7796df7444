// Package denoise implements the two-stage DTLN neural denoiser and
// the process-wide shared handle that guards it with a single lock.
package denoise

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/whiskerware/voicecore/internal/domain"
)

const (
	fftBins    = domain.FrameSamples/2 + 1
	hiddenSize = 128
)

// Config names the two DTLN stage weight files and the ONNX Runtime
// shared library.
type Config struct {
	Stage1Model string
	Stage2Model string
	OnnxLib     string
}

// DTLN is the two-stage frequency/time denoiser. Stage 1 runs
// magnitude masking in the frequency domain with Hann windowing and
// FFT; Stage 2 runs a time-domain LSTM with overlap-add at a
// 128-sample hop (75% overlap of the 512-sample frame).
type DTLN struct {
	cfg Config

	stage1 *ort.AdvancedSession
	stage2 *ort.AdvancedSession

	stage1In, stage1H, stage1C, stage1Out *ort.Tensor[float32]
	stage2In, stage2H, stage2C, stage2Out *ort.Tensor[float32]

	state *domain.DTLNState
	hann  []float32
	fft   *fourier.FFT

	loaded bool
}

// New constructs a DTLN denoiser without loading the ONNX sessions.
// Call Load before Process.
func New(cfg Config) *DTLN {
	return &DTLN{
		cfg:   cfg,
		state: domain.NewDTLNState(hiddenSize),
		hann:  hannWindow(domain.FrameSamples),
		fft:   fourier.NewFFT(domain.FrameSamples),
	}
}

// Load initializes the ONNX Runtime environment and both stage
// sessions. Returns a wrapped domain.ErrModelNotFound /
// domain.ErrModelLoadFailed on failure; callers must degrade
// gracefully (pass audio through unmodified) rather than fail startup.
func (d *DTLN) Load() error {
	ort.SetSharedLibraryPath(d.cfg.OnnxLib)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("%w: onnx runtime init: %v", domain.ErrModelLoadFailed, err)
	}

	var err error
	if d.stage1In, err = ort.NewEmptyTensor[float32](ort.NewShape(1, fftBins)); err != nil {
		return d.loadErr(domain.ModelKindDenoiseStage1, err)
	}
	if d.stage1H, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, hiddenSize)); err != nil {
		return d.loadErr(domain.ModelKindDenoiseStage1, err)
	}
	if d.stage1C, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, hiddenSize)); err != nil {
		return d.loadErr(domain.ModelKindDenoiseStage1, err)
	}
	if d.stage1Out, err = ort.NewEmptyTensor[float32](ort.NewShape(1, fftBins)); err != nil {
		return d.loadErr(domain.ModelKindDenoiseStage1, err)
	}

	in1, out1, err := ort.GetInputOutputInfo(d.cfg.Stage1Model)
	if err != nil {
		return d.loadErr(domain.ModelKindDenoiseStage1, err)
	}
	d.stage1, err = ort.NewAdvancedSession(
		d.cfg.Stage1Model,
		namesOf(in1), namesOf(out1),
		[]ort.Value{d.stage1In, d.stage1H, d.stage1C},
		[]ort.Value{d.stage1Out, d.stage1H, d.stage1C},
		nil,
	)
	if err != nil {
		return d.loadErr(domain.ModelKindDenoiseStage1, err)
	}

	if d.stage2In, err = ort.NewEmptyTensor[float32](ort.NewShape(1, domain.FrameSamples)); err != nil {
		return d.loadErr(domain.ModelKindDenoiseStage2, err)
	}
	if d.stage2H, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, hiddenSize)); err != nil {
		return d.loadErr(domain.ModelKindDenoiseStage2, err)
	}
	if d.stage2C, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, hiddenSize)); err != nil {
		return d.loadErr(domain.ModelKindDenoiseStage2, err)
	}
	if d.stage2Out, err = ort.NewEmptyTensor[float32](ort.NewShape(1, domain.FrameSamples)); err != nil {
		return d.loadErr(domain.ModelKindDenoiseStage2, err)
	}

	in2, out2, err := ort.GetInputOutputInfo(d.cfg.Stage2Model)
	if err != nil {
		return d.loadErr(domain.ModelKindDenoiseStage2, err)
	}
	d.stage2, err = ort.NewAdvancedSession(
		d.cfg.Stage2Model,
		namesOf(in2), namesOf(out2),
		[]ort.Value{d.stage2In, d.stage2H, d.stage2C},
		[]ort.Value{d.stage2Out, d.stage2H, d.stage2C},
		nil,
	)
	if err != nil {
		return d.loadErr(domain.ModelKindDenoiseStage2, err)
	}

	d.loaded = true
	return nil
}

func (d *DTLN) loadErr(kind domain.ModelKind, err error) error {
	path := d.cfg.Stage1Model
	if kind == domain.ModelKindDenoiseStage2 {
		path = d.cfg.Stage2Model
	}
	return &domain.ModelError{Kind: kind, Path: path, Err: fmt.Errorf("%w: %v", domain.ErrModelLoadFailed, err)}
}

func namesOf(infos []ort.InputOutputInfo) []string {
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names
}

// Process denoises one frame, returning a frame of the same length
// (modulo the fixed one-frame warm-up latency at session start).
// Returns domain.ErrInferenceFailed on a runtime failure; callers
// should pass the frame through unmodified on error.
func (d *DTLN) Process(frame []float32) ([]float32, error) {
	if !d.loaded {
		return frame, nil
	}
	if len(frame) != domain.FrameSamples {
		return nil, fmt.Errorf("%w: frame length %d, want %d", domain.ErrInvalidAudio, len(frame), domain.FrameSamples)
	}

	windowed := applyHann(frame, d.hann)
	mag, phase := d.magnitudePhase(windowed)

	copy(d.stage1In.GetData(), mag)
	copy(d.stage1H.GetData(), d.state.Stage1Hidden)
	copy(d.stage1C.GetData(), d.state.Stage1Cell)
	if err := d.stage1.Run(); err != nil {
		return nil, fmt.Errorf("%w: stage1: %v", domain.ErrInferenceFailed, err)
	}
	copy(d.state.Stage1Hidden, d.stage1H.GetData())
	copy(d.state.Stage1Cell, d.stage1C.GetData())

	masked := applyMask(mag, d.stage1Out.GetData())
	timeDomain := d.inverseFFT(masked, phase)

	copy(d.stage2In.GetData(), timeDomain)
	copy(d.stage2H.GetData(), d.state.Stage2Hidden)
	copy(d.stage2C.GetData(), d.state.Stage2Cell)
	if err := d.stage2.Run(); err != nil {
		return nil, fmt.Errorf("%w: stage2: %v", domain.ErrInferenceFailed, err)
	}
	copy(d.state.Stage2Hidden, d.stage2H.GetData())
	copy(d.state.Stage2Cell, d.stage2C.GetData())

	return overlapAdd(d.stage2Out.GetData(), d.state.OLABuffer), nil
}

// Reset zeroes both LSTMs and the overlap buffers. Called by the
// shared denoiser at the start of each session; must never be called
// mid-session.
func (d *DTLN) Reset() {
	d.state.Reset()
}

// Destroy releases the ONNX sessions and tensors.
func (d *DTLN) Destroy() {
	for _, v := range []interface{ Destroy() }{d.stage1In, d.stage1H, d.stage1C, d.stage1Out, d.stage2In, d.stage2H, d.stage2C, d.stage2Out} {
		if v != nil {
			v.Destroy()
		}
	}
	if d.stage1 != nil {
		d.stage1.Destroy()
	}
	if d.stage2 != nil {
		d.stage2.Destroy()
	}
	ort.DestroyEnvironment()
}

var _ domain.Denoiser = (*DTLN)(nil)

func hannWindow(n int) []float32 {
	w := make([]float32, n)
	for i := range w {
		w[i] = float32(0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1))))
	}
	return w
}

func applyHann(frame, hann []float32) []float32 {
	out := make([]float32, len(frame))
	for i := range frame {
		out[i] = frame[i] * hann[i]
	}
	return out
}

// magnitudePhase runs a real FFT (gonum's dsp/fourier) and returns the
// magnitude and phase spectra, each of length fftBins.
func (d *DTLN) magnitudePhase(windowed []float32) (mag, phase []float32) {
	seq := make([]float64, len(windowed))
	for i, s := range windowed {
		seq[i] = float64(s)
	}
	coeff := d.fft.Coefficients(nil, seq)

	mag = make([]float32, fftBins)
	phase = make([]float32, fftBins)
	for i, c := range coeff {
		mag[i] = float32(math.Hypot(real(c), imag(c)))
		phase[i] = float32(math.Atan2(imag(c), real(c)))
	}
	return mag, phase
}

func applyMask(mag, mask []float32) []float32 {
	out := make([]float32, len(mag))
	for i := range mag {
		out[i] = mag[i] * mask[i]
	}
	return out
}

func (d *DTLN) inverseFFT(mag, phase []float32) []float32 {
	coeff := make([]complex128, len(mag))
	for i := range mag {
		m, p := float64(mag[i]), float64(phase[i])
		coeff[i] = complex(m*math.Cos(p), m*math.Sin(p))
	}
	seq := d.fft.Sequence(nil, coeff)

	// gonum's Sequence is unnormalized (Coefficients followed by
	// Sequence scales by the length), so divide by n here.
	n := float64(len(seq))
	out := make([]float32, len(seq))
	for i, s := range seq {
		out[i] = float32(s / n)
	}
	return out
}

// overlapAdd accumulates the stage-2 output into the OLA buffer using
// a 128-sample hop and returns the next hop's worth of finished
// samples.
func overlapAdd(frame, ola []float32) []float32 {
	out := make([]float32, domain.OverlapAddHop)
	copy(out, ola[:domain.OverlapAddHop])

	for i := 0; i < len(ola); i++ {
		shifted := i + domain.OverlapAddHop
		if shifted < len(frame) {
			ola[i] = frame[shifted]
		} else {
			ola[i] = 0
		}
	}
	for i := 0; i < domain.OverlapAddHop && i < len(frame); i++ {
		out[i] += frame[i]
	}
	return out
}
