// voicecore is the voice-capture backend's CLI surface: a thin
// command dispatcher over the core state machine, the same flag +
// subcommand shape as the teacher's chef assistant but wired for a
// headless always-on audio pipeline instead of a REPL.
//
// Usage:
//
//	voicecore [flags] <command> [args]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/whiskerware/voicecore/internal/audio"
	"github.com/whiskerware/voicecore/internal/cancel"
	"github.com/whiskerware/voicecore/internal/config"
	"github.com/whiskerware/voicecore/internal/denoise"
	"github.com/whiskerware/voicecore/internal/device"
	"github.com/whiskerware/voicecore/internal/domain"
	"github.com/whiskerware/voicecore/internal/events"
	"github.com/whiskerware/voicecore/internal/listening"
	"github.com/whiskerware/voicecore/internal/logger"
	"github.com/whiskerware/voicecore/internal/models"
	"github.com/whiskerware/voicecore/internal/recording"
	"github.com/whiskerware/voicecore/internal/silence"
	"github.com/whiskerware/voicecore/internal/storage"
	"github.com/whiskerware/voicecore/internal/transcribe"
	"github.com/whiskerware/voicecore/internal/vad"
	"github.com/whiskerware/voicecore/internal/wakeword"
)

func main() {
	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", ".voicecore-logs/voicecore.log", "file to write logs to (use \"stderr\" to log to console)")
	envFile := flag.String("env-file", ".env", "path to an env file for configuration overrides")
	whisperBin := flag.String("whisper-bin", "whisper-cli", "path to the whisper-cpp CLI binary")
	flag.Parse()

	logLevel := logger.LevelNormal
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	var logOut io.Writer = os.Stderr
	if *logFile != "" && *logFile != "stderr" {
		dir := filepath.Dir(*logFile)
		if dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", *logFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)

	cfg := config.New(*envFile)

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: voicecore [flags] <command> [args]")
		printCommands()
		os.Exit(2)
	}

	ctx, cancelCtx := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelCtx()

	app, err := wire(cfg, log, *whisperBin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer app.shutdown()

	if err := app.dispatch(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printCommands() {
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  start_recording")
	fmt.Fprintln(os.Stderr, "  stop_recording")
	fmt.Fprintln(os.Stderr, "  enable_listening")
	fmt.Fprintln(os.Stderr, "  disable_listening")
	fmt.Fprintln(os.Stderr, "  get_listening_status")
	fmt.Fprintln(os.Stderr, "  check_model_status <denoise-stage1|denoise-stage2|stt>")
	fmt.Fprintln(os.Stderr, "  download_model <denoise-stage1|denoise-stage2|stt>")
	fmt.Fprintln(os.Stderr, "  list_audio_devices")
	fmt.Fprintln(os.Stderr, "  transcribe_file <path>")
}

// app bundles every wired component the dispatch table needs.
type app struct {
	log      *logger.Logger
	emitter  domain.EventEmitter
	machine  *recording.Machine
	pipeline *listening.Pipeline
	watcher  *device.Watcher
	registry *models.Registry
	sttModel *transcribe.Model
	capture  *audio.Capture
	denoiser *denoise.Shared
	buf      domain.AudioBuffer
	cfg      *config.Config
}

func (a *app) shutdown() {
	if a.pipeline != nil {
		_ = a.pipeline.StopWithTimeout(2 * time.Second)
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.capture != nil {
		_ = a.capture.Stop()
		a.capture.Shutdown()
	}
	if a.denoiser != nil {
		a.denoiser.Destroy()
	}
}

// wire builds the full dependency graph: audio capture/buffer,
// denoiser, VAD, the shared transcription model, the wake-word/cancel
// detectors feeding the listening pipeline, and the recording state
// machine that ties all of it to EventEmitter, the same sequential
// construction order as the teacher's main wires recipes, store,
// notifier, and the engine before starting the supervisor.
func wire(cfg *config.Config, log *logger.Logger, whisperBin string) (*app, error) {
	buf := audio.NewRingBuffer(60)

	registry := models.New(map[domain.ModelKind]string{
		domain.ModelKindDenoiseStage1: cfg.DenoiseStage1ModelPath,
		domain.ModelKindDenoiseStage2: cfg.DenoiseStage2ModelPath,
		domain.ModelKindSTT:           cfg.STTModelPath,
	}, nil, log)

	denoiser := denoise.TryLoad(denoise.Config{
		Stage1Model: cfg.DenoiseStage1ModelPath,
		Stage2Model: cfg.DenoiseStage2ModelPath,
		OnnxLib:     cfg.OnnxRuntimeLibPath,
	}, log)

	var vd domain.VoiceActivityDetector
	if cfg.VADModelPath != "" {
		v, err := vad.New(vad.Config{
			ModelPath:  cfg.VADModelPath,
			SampleRate: domain.SampleRate,
			OnnxLib:    cfg.OnnxRuntimeLibPath,
		})
		if err != nil {
			log.Warn("vad: load failed, running on RMS alone: %v", err)
		} else {
			vd = v
		}
	}

	sttModel := transcribe.New(transcribe.Config{
		WhisperBin: whisperBin,
		ModelPath:  cfg.STTModelPath,
		TempDir:    filepath.Join(cfg.AppDataDir, "stt-tmp"),
	}, log)
	if _, err := os.Stat(cfg.STTModelPath); err == nil {
		sttModel.MarkLoaded()
	} else {
		log.Warn("transcribe: model not found at %q, check_model_status/download_model before recording", cfg.STTModelPath)
	}

	emitter := events.NewLogEmitter(log)
	store := storage.NewRecordingStore(log)

	capture := audio.NewCapture(buf, log)

	silenceDetector := silence.New(silence.Config{
		RMSThreshold:      0.01,
		SilenceDurationMs: cfg.SilenceDurationMs,
		NoSpeechTimeoutMs: cfg.NoSpeechTimeoutMs,
		MinSpeechFrames:   2,
	}, vd)

	wakeCfg := wakeword.DefaultConfig()
	wakeCfg.ConfidenceThreshold = cfg.WakeWordConfidence
	wakeCfg.WindowDurationSecs = cfg.WakeWordWindowSecs
	wakeDetector := wakeword.New(wakeCfg, buf, vd, sttModel, log)

	cancelDetector := cancel.New(cancel.Config{WindowSecs: cfg.CancellationWindowSecs})

	pipeline := listening.New(wakeDetector, cancelDetector, log,
		listening.WithCancelInputs(buf, sttModel))

	var machine *recording.Machine
	hooks := recording.Hooks{
		StartCapture: func() error {
			return capture.Start(audio.CaptureConfig{
				Device:           cfg.SelectedDevice,
				Denoiser:         denoiser,
				NoiseSuppression: cfg.NoiseSuppression,
			})
		},
		StopCapture: func() {
			_ = capture.Stop()
		},
		PauseWakeWord:  wakeDetector.Pause,
		ResumeWakeWord: wakeDetector.Resume,
		StartCancelWindow: func(recordingStart time.Time) {
			cancelDetector.StartSession(recordingStart)
		},
		EndCancelWindow: cancelDetector.EndSession,
	}
	machine = recording.New(buf, sttModel, emitter, store, log,
		recording.WithHooks(hooks),
		recording.WithListeningEnabled(cfg.ListeningEnabled),
		recording.WithRecordingsDir(filepath.Join(cfg.AppDataDir, "recordings")))

	lastState := domain.StateIdle
	capture.OnFrame(func(frame []float32) {
		state := machine.State()
		if state == domain.StateRecording && lastState != domain.StateRecording {
			silenceDetector.Reset()
		}
		lastState = state

		switch state {
		case domain.StateListening:
			wakeDetector.NoteFrame(frame)
		case domain.StateRecording:
			verdict, reason := silenceDetector.Feed(frame)
			if verdict == domain.SilenceStop {
				if err := machine.SilenceDetected(reason); err != nil {
					log.Error("auto-stop transition failed: %v", err)
				}
			}
		}
	})

	watcher := device.New(audio.DeviceExists, log)

	capture.OnDeviceLost(func(deviceName string) {
		recoverFromDeviceLoss(machine, watcher, silenceDetector, cfg, log, deviceName)
	})

	go func() {
		for event := range pipeline.SubscribeEvents() {
			switch event.Kind {
			case domain.WakeWordDetected:
				if err := machine.WakeWordDetected(event.Text, event.Confidence); err != nil {
					log.Error("wake-word transition failed: %v", err)
				}
			case domain.CancelPhraseDetected:
				if err := machine.CancelDetected(); err != nil {
					log.Error("cancel transition failed: %v", err)
				}
			case domain.WakeWordUnavailable:
				log.Warn("wake-word analysis unavailable: %s", event.Reason)
			case domain.WakeWordErr:
				log.Error("wake-word analysis error: %s", event.Message)
			}
		}
	}()

	return &app{
		log:      log,
		emitter:  emitter,
		machine:  machine,
		pipeline: pipeline,
		watcher:  watcher,
		registry: registry,
		sttModel: sttModel,
		capture:  capture,
		denoiser: denoiser,
		buf:      buf,
		cfg:      cfg,
	}, nil
}

// recoverFromDeviceLoss runs once from the capture thread's health
// monitor when the selected device vanishes mid-session. A recording
// in flight is drained and transcribed immediately rather than held
// across the gap, per DiscardBufferOnDeviceLoss; listening is then
// marked degraded and the device watcher starts polling for the
// device's return, which clears the degraded flag automatically.
func recoverFromDeviceLoss(machine *recording.Machine, watcher *device.Watcher, silenceDetector *silence.Detector, cfg *config.Config, log *logger.Logger, deviceName string) {
	reason := fmt.Sprintf("device %q disconnected", deviceName)

	if machine.State() == domain.StateRecording {
		if cfg.DiscardBufferOnDeviceLoss {
			if err := machine.StopRecording(); err != nil {
				log.Error("device loss: draining in-flight recording: %v", err)
			}
		} else {
			log.Warn("device loss during recording with DiscardBufferOnDeviceLoss=false: no hold-and-resume path implemented, buffer left untouched")
		}
	}

	if machine.State() == domain.StateListening {
		if err := machine.MicUnavailable(reason); err != nil {
			log.Error("device loss: %v", err)
		}
	}

	silenceDetector.Reset()
	watcher.WatchForReturn(deviceName, func() {
		if err := machine.MicRestored(); err != nil {
			log.Error("device restore: %v", err)
		}
	})
}

func (a *app) dispatch(ctx context.Context, cmd string, rest []string) error {
	switch cmd {
	case "start_recording":
		return a.startRecording()
	case "stop_recording":
		return a.stopRecording()
	case "enable_listening":
		return a.enableListening()
	case "disable_listening":
		return a.disableListening()
	case "get_listening_status":
		return a.getListeningStatus()
	case "check_model_status":
		return a.checkModelStatus(rest)
	case "download_model":
		return a.downloadModel(ctx, rest)
	case "list_audio_devices":
		return a.listAudioDevices()
	case "transcribe_file":
		return a.transcribeFile(rest)
	default:
		printCommands()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) startRecording() error {
	switch a.machine.State() {
	case domain.StateListening, domain.StateIdle:
		if err := a.machine.HotkeyPressed(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("cannot start recording from state %s", a.machine.State())
	}
	a.pipeline.Start()
	fmt.Println("recording started")
	return nil
}

func (a *app) stopRecording() error {
	if err := a.machine.StopRecording(); err != nil {
		return err
	}
	fmt.Println("recording stopped")
	return nil
}

func (a *app) enableListening() error {
	if err := a.machine.EnableListening(); err != nil {
		return err
	}
	a.pipeline.Start()
	fmt.Println("listening enabled")
	return nil
}

func (a *app) disableListening() error {
	if err := a.machine.DisableListening(); err != nil {
		return err
	}
	if err := a.pipeline.StopWithTimeout(2 * time.Second); err != nil {
		a.log.Warn("listening pipeline stop: %v", err)
	}
	fmt.Println("listening disabled")
	return nil
}

func (a *app) getListeningStatus() error {
	fmt.Printf("state=%s listening_enabled=%t degraded=%t\n",
		a.machine.State(), a.machine.ListeningEnabled(), a.machine.Degraded())
	return nil
}

func modelKindByName(name string) (domain.ModelKind, error) {
	switch name {
	case "denoise-stage1":
		return domain.ModelKindDenoiseStage1, nil
	case "denoise-stage2":
		return domain.ModelKindDenoiseStage2, nil
	case "stt":
		return domain.ModelKindSTT, nil
	default:
		return 0, fmt.Errorf("unknown model type %q (want denoise-stage1, denoise-stage2, or stt)", name)
	}
}

func (a *app) checkModelStatus(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: check_model_status <type>")
	}
	kind, err := modelKindByName(args[0])
	if err != nil {
		return err
	}
	st := a.registry.Status(kind)
	fmt.Printf("%s: %s (%s)\n", st.Kind, st.State, st.Path)
	return nil
}

func (a *app) downloadModel(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: download_model <type>")
	}
	kind, err := modelKindByName(args[0])
	if err != nil {
		return err
	}
	if err := a.registry.Download(ctx, kind); err != nil {
		return err
	}
	a.emitter.ModelDownloadCompleted(kind)
	fmt.Printf("%s: downloaded\n", kind)
	return nil
}

func (a *app) listAudioDevices() error {
	devices, err := audio.ListDevices()
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}
	for _, d := range devices {
		fmt.Println(d.Name)
	}
	return nil
}

func (a *app) transcribeFile(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: transcribe_file <path>")
	}
	text, err := a.sttModel.TranscribeFile(args[0])
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}
