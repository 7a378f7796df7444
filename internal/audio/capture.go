package audio

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/whiskerware/voicecore/internal/domain"
	"github.com/whiskerware/voicecore/internal/logger"
)

// deviceHealthPollInterval is how often Start's monitor goroutine
// checks stream liveness between frame deliveries.
const deviceHealthPollInterval = 500 * time.Millisecond

// CaptureConfig configures a Capture session.
type CaptureConfig struct {
	Device           string // empty = system default
	Denoiser         domain.Denoiser
	NoiseSuppression bool
}

// FrameHandler receives each processed (resampled, optionally
// denoised) frame as it becomes available.
type FrameHandler func(frame []float32)

// Capture owns the OS audio stream on a dedicated goroutine, because
// the underlying stream object is not movable across threads — the
// same invariant the wake-word detector's malgo device and the
// whisper monitor stream both rely on. PortAudio is initialized once
// for the process lifetime; repeated Init/Terminate cycles corrupt
// platform audio HALs.
type Capture struct {
	log *logger.Logger
	buf domain.AudioBuffer

	mu        sync.Mutex
	running   bool
	stream    *portaudio.Stream
	cancel    func()
	monitorCh chan struct{}

	handlers     []FrameHandler
	onDeviceLost func(deviceName string)
}

// NewCapture creates a capture thread that mirrors every processed
// frame into buf in addition to any registered handlers.
func NewCapture(buf domain.AudioBuffer, log *logger.Logger) *Capture {
	return &Capture{log: log, buf: buf}
}

// OnFrame registers a handler invoked with every processed frame, in
// addition to the mirror into the shared buffer. Must be called
// before Start.
func (c *Capture) OnFrame(h FrameHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// OnDeviceLost registers a callback invoked once from the monitor
// goroutine the first time the open stream reports itself inactive —
// the signal a mid-session unplug surfaces as, since the callback-based
// stream never gets an explicit error for it. Must be called before
// Start.
func (c *Capture) OnDeviceLost(h func(deviceName string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDeviceLost = h
}

// Start opens the device, resets the denoiser if one is configured,
// and begins emitting frames. Returns domain.ErrConfigurationInvalid
// if no usable device configuration exists.
func (c *Capture) Start(cfg CaptureConfig) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("capture: already running")
	}
	c.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("capture: portaudio init: %w", err)
	}

	dev, nativeRate, channels, err := resolveDevice(cfg.Device)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: %v", domain.ErrConfigurationInvalid, err)
	}

	if cfg.Denoiser != nil {
		cfg.Denoiser.Reset()
	}

	frameIn := int(float64(domain.FrameSamples) * nativeRate / float64(domain.SampleRate))
	if frameIn < 1 {
		frameIn = domain.FrameSamples
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      nativeRate,
		FramesPerBuffer: frameIn,
	}

	callback := func(in []float32) {
		mono := ToMono(in, channels)
		frame := Resample(mono, int(nativeRate), domain.SampleRate)
		c.deliver(frame, cfg)
	}

	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("capture: open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("capture: start stream: %w", err)
	}

	monitorCh := make(chan struct{})
	c.mu.Lock()
	c.stream = stream
	c.running = true
	c.monitorCh = monitorCh
	c.mu.Unlock()

	go c.monitorHealth(stream, dev.Name, monitorCh)

	c.log.Info("audio: capture started (device=%q native_rate=%.0f channels=%d)", dev.Name, nativeRate, channels)
	return nil
}

// monitorHealth polls the stream's liveness and fires onDeviceLost
// once if it goes inactive while Stop was never called — the signature
// of a device vanishing mid-session rather than a deliberate shutdown.
func (c *Capture) monitorHealth(stream *portaudio.Stream, deviceName string, stop chan struct{}) {
	ticker := time.NewTicker(deviceHealthPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			active, err := stream.IsActive()
			if err == nil && active {
				continue
			}

			c.mu.Lock()
			stillRunning := c.running
			onLost := c.onDeviceLost
			c.mu.Unlock()

			if !stillRunning {
				return
			}
			c.log.Warn("audio: capture device %q appears to have gone away", deviceName)
			if onLost != nil {
				onLost(deviceName)
			}
			return
		}
	}
}

func (c *Capture) deliver(frame []float32, cfg CaptureConfig) {
	if cfg.Denoiser != nil && cfg.NoiseSuppression {
		denoised, err := cfg.Denoiser.Process(frame)
		if err != nil {
			c.log.Error("audio: denoise failed, passing through: %v", err)
		} else {
			frame = denoised
		}
	}

	c.buf.Push(frame)

	c.mu.Lock()
	handlers := append([]FrameHandler(nil), c.handlers...)
	c.mu.Unlock()
	for _, h := range handlers {
		h(frame)
	}
}

// Stop stops and closes the stream and returns the error from stopping
// it (nil if capture was not running). Safe to call even if the device
// already vanished.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}
	c.running = false
	if c.monitorCh != nil {
		close(c.monitorCh)
		c.monitorCh = nil
	}
	err := c.stream.Stop()
	c.stream.Close()
	c.stream = nil
	return err
}

// Shutdown terminates PortAudio. Call once at process exit, never
// between sessions.
func (c *Capture) Shutdown() {
	portaudio.Terminate()
}

func resolveDevice(name string) (*portaudio.DeviceInfo, float64, int, error) {
	if name == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, 0, 0, err
		}
		return dev, dev.DefaultSampleRate, 1, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, 0, 0, err
	}
	for _, d := range devices {
		if d.Name == name && d.MaxInputChannels > 0 {
			return d, d.DefaultSampleRate, 1, nil
		}
	}
	return nil, 0, 0, fmt.Errorf("%w: %q", domain.ErrDeviceNotFound, name)
}

// rms computes sqrt(mean(x^2)) over a frame.
func rms(frame []float32) float64 {
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
