// Package vad provides fixed-window voice-activity detection using the
// Silero ONNX model: one probability per 32 ms frame at 8 kHz or
// 16 kHz.
package vad

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/whiskerware/voicecore/internal/domain"
)

const (
	stateLen   = 2 * 1 * 128
	contextLen = 64
)

// Threshold names one of the VAD's fixed operating points, matching
// configuration option vad.threshold.
type Threshold = domain.VADThreshold

const (
	ThresholdWakeWord   = domain.VADWakeWord
	ThresholdBalanced   = domain.VADBalanced
	ThresholdSilence    = domain.VADSilence
	ThresholdAggressive = domain.VADAggressive
)

// Config holds the model path and sample rate for a Detector.
type Config struct {
	ModelPath  string
	SampleRate int
	OnnxLib    string
}

// ChunkSize returns the exact number of samples Infer accepts:
// sample_rate * 32 / 1000, i.e. 256 at 8 kHz or 512 at 16 kHz. Not
// independently configurable.
func (c Config) ChunkSize() int {
	return c.SampleRate * domain.FrameDurationMs / 1000
}

// Validate rejects any sample rate other than 8000 or 16000.
func (c Config) Validate() error {
	if c.SampleRate != 8000 && c.SampleRate != 16000 {
		return domain.UnsupportedSampleRateError(c.SampleRate)
	}
	return nil
}

// Detector wraps a Silero VAD ONNX session with its persistent LSTM
// state and rolling context buffer, carried frame to frame.
type Detector struct {
	cfg     Config
	session *ort.DynamicAdvancedSession

	state      [stateLen]float32
	ctx        [contextLen]float32
	currSample int
}

// New creates a Detector. The ONNX Runtime environment must already
// be initialized (ort.InitializeEnvironment). Returns
// domain.ErrConfigurationInvalid for an unsupported sample rate and a
// wrapped domain.ModelError on load failure.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ort.SetSharedLibraryPath(cfg.OnnxLib)

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, &domain.ModelError{Kind: domain.ModelKindVAD, Path: cfg.ModelPath, Err: err}
	}
	defer options.Destroy()
	_ = options.SetIntraOpNumThreads(1)
	_ = options.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		options,
	)
	if err != nil {
		return nil, &domain.ModelError{Kind: domain.ModelKindVAD, Path: cfg.ModelPath, Err: fmt.Errorf("%w: %v", domain.ErrModelLoadFailed, err)}
	}

	return &Detector{cfg: cfg, session: session}, nil
}

// SampleRate returns the configured sample rate.
func (d *Detector) SampleRate() int { return d.cfg.SampleRate }

// ChunkSize returns the exact input length Infer requires.
func (d *Detector) ChunkSize() int { return d.cfg.ChunkSize() }

// Infer returns a speech probability in [0, 1] for exactly ChunkSize
// samples. Any other length is an error (the VAD chunk-size law).
func (d *Detector) Infer(samples []float32) (float64, error) {
	if len(samples) != d.ChunkSize() {
		return 0, fmt.Errorf("%w: got %d samples, want %d", domain.ErrInvalidAudio, len(samples), d.ChunkSize())
	}

	pcm := samples
	if d.currSample > 0 {
		pcm = append(append([]float32(nil), d.ctx[:]...), samples...)
	}
	if len(samples) >= contextLen {
		copy(d.ctx[:], samples[len(samples)-contextLen:])
	}
	d.currSample += len(samples)

	inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(pcm))), pcm)
	if err != nil {
		return 0, fmt.Errorf("%w: input tensor: %v", domain.ErrInferenceFailed, err)
	}
	defer inputTensor.Destroy()

	stateTensor, err := ort.NewTensor(ort.NewShape(2, 1, 128), d.state[:])
	if err != nil {
		return 0, fmt.Errorf("%w: state tensor: %v", domain.ErrInferenceFailed, err)
	}
	defer stateTensor.Destroy()

	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(d.cfg.SampleRate)})
	if err != nil {
		return 0, fmt.Errorf("%w: sr tensor: %v", domain.ErrInferenceFailed, err)
	}
	defer srTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return 0, fmt.Errorf("%w: output tensor: %v", domain.ErrInferenceFailed, err)
	}
	defer outputTensor.Destroy()

	stateNTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128))
	if err != nil {
		return 0, fmt.Errorf("%w: stateN tensor: %v", domain.ErrInferenceFailed, err)
	}
	defer stateNTensor.Destroy()

	inputs := []ort.Value{inputTensor, stateTensor, srTensor}
	outputs := []ort.Value{outputTensor, stateNTensor}
	if err := d.session.Run(inputs, outputs); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInferenceFailed, err)
	}

	copy(d.state[:], stateNTensor.GetData())

	out := outputTensor.GetData()
	if len(out) == 0 {
		return 0, fmt.Errorf("%w: empty VAD output", domain.ErrInferenceFailed)
	}
	return float64(out[0]), nil
}

// Reset clears the LSTM state and context buffer. Call at the start
// of each session.
func (d *Detector) Reset() {
	for i := range d.state {
		d.state[i] = 0
	}
	for i := range d.ctx {
		d.ctx[i] = 0
	}
	d.currSample = 0
}

// Destroy releases the underlying ONNX session.
func (d *Detector) Destroy() {
	if d.session != nil {
		_ = d.session.Destroy()
		d.session = nil
	}
}

var _ domain.VoiceActivityDetector = (*Detector)(nil)
