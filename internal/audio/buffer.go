// Package audio owns the real-time capture thread, the shared ring
// buffer detectors read from, device enumeration, resampling, and WAV
// encoding of finished recordings.
package audio

import (
	"sync"

	"github.com/whiskerware/voicecore/internal/domain"
)

// RingBuffer is a fixed-capacity ring of mono float samples shared by
// the capture thread (writer) and the detectors and recording state
// machine (readers). Capacity is seconds × sample rate.
//
// Invariants: wrap-around preserves chronological order on read;
// a snapshot taken mid-write never tears a frame boundary because
// writes only ever append whole frames under the lock.
type RingBuffer struct {
	mu sync.Mutex

	data   []float32
	cap    int
	write  int  // next write index
	filled bool // true once the ring has wrapped at least once
	count  uint64 // monotonic total samples pushed

	recordingActive bool
	recordingStart  uint64 // count value when mark_recording_start was called
	discarded       bool
}

// NewRingBuffer allocates a ring sized for capacitySecs seconds of
// audio at domain.SampleRate.
func NewRingBuffer(capacitySecs float64) *RingBuffer {
	n := int(capacitySecs * float64(domain.SampleRate))
	if n < domain.FrameSamples {
		n = domain.FrameSamples
	}
	return &RingBuffer{
		data: make([]float32, n),
		cap:  n,
	}
}

// Push writes one frame, overwriting the oldest samples if the ring is
// full. Matches the capture thread's "mirror processed frames into D"
// contract.
func (b *RingBuffer) Push(frame []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range frame {
		b.data[b.write] = s
		b.write = (b.write + 1) % b.cap
		if b.write == 0 {
			b.filled = true
		}
		b.count++
	}
}

// SnapshotLast returns a chronological copy of at most durationSecs
// seconds of the most recent audio.
func (b *RingBuffer) SnapshotLast(durationSecs float64) []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := int(durationSecs * float64(domain.SampleRate))
	avail := b.available()
	if n > avail {
		n = avail
	}
	return b.readLastLocked(n)
}

// SnapshotSince returns everything pushed since counter, plus the new
// counter value, so repeated callers never re-read the same samples.
func (b *RingBuffer) SnapshotSince(counter uint64) ([]float32, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if counter > b.count {
		counter = b.count
	}
	delta := b.count - counter
	avail := uint64(b.available())
	if delta > avail {
		delta = avail
	}
	return b.readLastLocked(int(delta)), b.count
}

// MarkRecordingStart records the current write position as the start
// of an active recording so DrainRecording can return exactly the
// samples captured since.
func (b *RingBuffer) MarkRecordingStart() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recordingActive = true
	b.discarded = false
	b.recordingStart = b.count
}

// DrainRecording returns every sample pushed since MarkRecordingStart
// and clears the active-recording marker. Returns
// domain.ErrNoRecordingBuffer if no recording was marked, or
// domain.ErrBufferDiscarded if DiscardRecording was called since.
func (b *RingBuffer) DrainRecording() ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.recordingActive {
		if b.discarded {
			return nil, domain.ErrBufferDiscarded
		}
		return nil, domain.ErrNoRecordingBuffer
	}
	delta := b.count - b.recordingStart
	avail := uint64(b.available())
	if delta > avail {
		delta = avail
	}
	out := b.readLastLocked(int(delta))
	b.recordingActive = false
	return out, nil
}

// DiscardRecording abandons the in-progress recording without
// returning its samples. A subsequent DrainRecording call returns
// domain.ErrBufferDiscarded.
func (b *RingBuffer) DiscardRecording() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recordingActive = false
	b.discarded = true
}

// Clear resets the ring to empty.
func (b *RingBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.data {
		b.data[i] = 0
	}
	b.write = 0
	b.filled = false
	b.count = 0
	b.recordingActive = false
	b.discarded = false
}

func (b *RingBuffer) available() int {
	if b.filled {
		return b.cap
	}
	return b.write
}

// readLastLocked returns the last n samples in chronological order.
// Caller must hold b.mu.
func (b *RingBuffer) readLastLocked(n int) []float32 {
	if n <= 0 {
		return nil
	}
	avail := b.available()
	if n > avail {
		n = avail
	}
	out := make([]float32, n)
	start := (b.write - n + b.cap) % b.cap
	for i := 0; i < n; i++ {
		out[i] = b.data[(start+i)%b.cap]
	}
	return out
}

var _ domain.AudioBuffer = (*RingBuffer)(nil)
