// Package config loads the voice-capture backend's configuration from
// environment variables (via godotenv), with typed accessors and the
// defaults named in the external-interfaces configuration table.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/whiskerware/voicecore/internal/domain"
)

// VADThreshold names one of the VAD's fixed operating points.
type VADThreshold = domain.VADThreshold

const (
	VADWakeWord   = domain.VADWakeWord
	VADBalanced   = domain.VADBalanced
	VADSilence    = domain.VADSilence
	VADAggressive = domain.VADAggressive
)

// Config is the fully-resolved set of options enumerated in the
// external-interfaces configuration table.
type Config struct {
	NoiseSuppression   bool
	SelectedDevice     string
	ListeningEnabled   bool
	AutoStartOnLaunch  bool
	VADThreshold       VADThreshold
	SilenceDurationMs  int
	NoSpeechTimeoutMs  int
	WakeWordConfidence float64
	WakeWordWindowSecs float64

	BatchTimeoutSecs     int
	StreamingTimeoutSecs int

	CancellationWindowSecs float64

	// DiscardBufferOnDeviceLoss controls what happens to an in-flight
	// recording when the selected device vanishes mid-session: true
	// drains and transcribes it immediately, as if silence had
	// triggered auto-stop; false leaves the recording in Recording with
	// its buffer untouched, and nothing resumes capture into it or
	// finishes it when the device returns.
	DiscardBufferOnDeviceLoss bool

	AppDataDir string

	DenoiseStage1ModelPath string
	DenoiseStage2ModelPath string
	STTModelPath           string
	VADModelPath           string
	OnnxRuntimeLibPath     string
}

// Option mutates a Config during construction, matching the teacher's
// functional-options idiom.
type Option func(*Config)

// Default returns a Config populated with the defaults from the
// configuration table.
func Default() *Config {
	return &Config{
		NoiseSuppression:          true,
		ListeningEnabled:          false,
		AutoStartOnLaunch:         false,
		VADThreshold:              VADBalanced,
		SilenceDurationMs:         2000,
		NoSpeechTimeoutMs:         5000,
		WakeWordConfidence:        0.8,
		WakeWordWindowSecs:        2.0,
		BatchTimeoutSecs:          60,
		StreamingTimeoutSecs:      10,
		CancellationWindowSecs:    3.0,
		DiscardBufferOnDeviceLoss: true,
		AppDataDir:                defaultAppDataDir(),
	}
}

// New builds a Config starting from Default, applying environment
// overrides loaded via godotenv, then any explicit Options.
func New(envFile string, opts ...Option) *Config {
	_ = godotenv.Load(envFile)

	c := Default()
	applyEnv(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func applyEnv(c *Config) {
	if v := os.Getenv("VOICECORE_NOISE_SUPPRESSION"); v != "" {
		c.NoiseSuppression = parseBool(v, c.NoiseSuppression)
	}
	if v := os.Getenv("VOICECORE_SELECTED_DEVICE"); v != "" {
		c.SelectedDevice = v
	}
	if v := os.Getenv("VOICECORE_LISTENING_ENABLED"); v != "" {
		c.ListeningEnabled = parseBool(v, c.ListeningEnabled)
	}
	if v := os.Getenv("VOICECORE_AUTO_START"); v != "" {
		c.AutoStartOnLaunch = parseBool(v, c.AutoStartOnLaunch)
	}
	if v := os.Getenv("VOICECORE_VAD_THRESHOLD"); v != "" {
		c.VADThreshold = VADThreshold(v)
	}
	if v := os.Getenv("VOICECORE_SILENCE_DURATION_MS"); v != "" {
		c.SilenceDurationMs = parseInt(v, c.SilenceDurationMs)
	}
	if v := os.Getenv("VOICECORE_NO_SPEECH_TIMEOUT_MS"); v != "" {
		c.NoSpeechTimeoutMs = parseInt(v, c.NoSpeechTimeoutMs)
	}
	if v := os.Getenv("VOICECORE_WAKEWORD_CONFIDENCE"); v != "" {
		c.WakeWordConfidence = parseFloat(v, c.WakeWordConfidence)
	}
	if v := os.Getenv("VOICECORE_WAKEWORD_WINDOW_SECS"); v != "" {
		c.WakeWordWindowSecs = parseFloat(v, c.WakeWordWindowSecs)
	}
	if v := os.Getenv("VOICECORE_DISCARD_BUFFER_ON_DEVICE_LOSS"); v != "" {
		c.DiscardBufferOnDeviceLoss = parseBool(v, c.DiscardBufferOnDeviceLoss)
	}
	if v := os.Getenv("VOICECORE_APP_DATA_DIR"); v != "" {
		c.AppDataDir = v
	}
	if v := os.Getenv("VOICECORE_DENOISE_STAGE1_MODEL"); v != "" {
		c.DenoiseStage1ModelPath = v
	}
	if v := os.Getenv("VOICECORE_DENOISE_STAGE2_MODEL"); v != "" {
		c.DenoiseStage2ModelPath = v
	}
	if v := os.Getenv("VOICECORE_STT_MODEL"); v != "" {
		c.STTModelPath = v
	}
	if v := os.Getenv("VOICECORE_VAD_MODEL"); v != "" {
		c.VADModelPath = v
	}
	if v := os.Getenv("VOICECORE_ONNXRUNTIME_LIB"); v != "" {
		c.OnnxRuntimeLibPath = v
	}
}

func defaultAppDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.voicecore"
	}
	return ".voicecore"
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

func parseInt(v string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(v string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback
	}
	return f
}

// WithSelectedDevice overrides the input device name.
func WithSelectedDevice(name string) Option {
	return func(c *Config) { c.SelectedDevice = name }
}

// WithAppDataDir overrides the application data directory.
func WithAppDataDir(dir string) Option {
	return func(c *Config) { c.AppDataDir = dir }
}

// WithNoiseSuppression overrides whether the denoise stage runs.
func WithNoiseSuppression(enabled bool) Option {
	return func(c *Config) { c.NoiseSuppression = enabled }
}
