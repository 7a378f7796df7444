package audio

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/whiskerware/voicecore/internal/domain"
)

// WriteWAV encodes mono float samples as a 16-bit PCM WAV file at
// domain.SampleRate, for the recordings directory under
// <app_data>/recordings/.
func WriteWAV(path string, samples []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, domain.SampleRate, 16, 1, 1)
	defer enc.Close()

	ints := make([]int, len(samples))
	for i, s := range samples {
		v := int(s * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		ints[i] = v
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  domain.SampleRate,
		},
		Data:           ints,
		SourceBitDepth: 16,
	}
	return enc.Write(buf)
}

// WriteTempWAV writes samples to a temp file for the streaming
// transcription path, which hands whisper a file path rather than raw
// samples.
func WriteTempWAV(dir string, samples []float32) (string, error) {
	f, err := os.CreateTemp(dir, "voicecore-stream-*.wav")
	if err != nil {
		return "", err
	}
	path := f.Name()
	f.Close()

	if err := WriteWAV(path, samples); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
