package domain

// EventEmitter is the capability surface through which the core
// reaches the outside world. The core is polymorphic over this
// interface; a host-provided implementation carries messages to a
// UI, and tests use an in-memory recorder.
type EventEmitter interface {
	RecordingStarted()
	RecordingStopped()
	RecordingError(err error)
	RecordingCancelled()
	TranscriptionStarted()
	TranscriptionCompleted(text string, durationMs int64)
	TranscriptionError(message string)
	ListeningStarted()
	ListeningStopped()
	ListeningUnavailable(reason string)
	WakeWordDetected(text string, confidence float64)
	ModelDownloadCompleted(kind ModelKind)
	KeyBlockingUnavailable(reason string, timestampMs int64)
}

// AudioBuffer is the shared ring buffer contract used by the capture
// thread (writer), the detectors (snapshot readers), and the
// recording state machine (drain on stop/abort).
type AudioBuffer interface {
	Push(frame []float32)
	SnapshotLast(durationSecs float64) []float32
	SnapshotSince(counter uint64) (samples []float32, newCounter uint64)
	MarkRecordingStart()
	DrainRecording() ([]float32, error)
	DiscardRecording()
	Clear()
}

// Denoiser is the DTLN contract shared by the capture thread.
type Denoiser interface {
	Process(frame []float32) ([]float32, error)
	Reset()
}

// VoiceActivityDetector reports a speech probability for one
// fixed-size chunk of audio at its configured sample rate.
type VoiceActivityDetector interface {
	SampleRate() int
	ChunkSize() int
	Infer(samples []float32) (float64, error)
	Reset()
}

// Transcriber is the Shared Transcription Model's public surface,
// invoked by both the wake/cancel detectors (streaming) and the
// recording state machine (batch).
type Transcriber interface {
	TranscribeFile(path string) (string, error)
	TranscribeSamples(samples []float32) (TranscriptionResult, error)
}
