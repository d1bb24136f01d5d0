// Package monitor plays assistant audio on the local sound device. It is an
// optional operator aid for listening in on what the caller hears, enabled
// with audio.local_playback.
package monitor

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// bufferSamples is the portaudio stream buffer size in samples. 480 samples
// is 20ms at 24kHz, matching the cadence of model audio deltas.
const bufferSamples = 480

// Speaker writes PCM16 mono audio to the default output device. Chunks that
// do not fill a whole stream buffer stay queued until more audio arrives;
// call Close to drop the remainder and release the device.
type Speaker struct {
	mu       sync.Mutex
	stream   stream
	out      []int16
	leftover []byte
	closed   bool
}

// stream abstracts the portaudio stream so Speaker logic is testable without
// a sound device.
type stream interface {
	Start() error
	Write() error
	Stop() error
	Close() error
}

// Open initialises portaudio and opens the default output device at the
// given sample rate.
func Open(sampleRate int) (*Speaker, error) {
	out := make([]int16, bufferSamples)
	st, err := openDefaultStream(sampleRate, out)
	if err != nil {
		return nil, fmt.Errorf("monitor: open output device: %w", err)
	}
	if err := st.Start(); err != nil {
		_ = st.Close()
		terminate()
		return nil, fmt.Errorf("monitor: start stream: %w", err)
	}
	return &Speaker{stream: st, out: out}, nil
}

// Write queues pcm for playback, writing every complete stream buffer to the
// device. Safe for concurrent use, though audio from multiple writers will
// interleave.
func (s *Speaker) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	data := append(s.leftover, pcm...)
	chunk := bufferSamples * 2
	for len(data) >= chunk {
		for i := range bufferSamples {
			s.out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
		}
		data = data[chunk:]
		if err := s.stream.Write(); err != nil {
			// Underflows happen when deltas arrive in bursts; drop and go on.
			s.leftover = data
			return fmt.Errorf("monitor: write to device: %w", err)
		}
	}
	s.leftover = data
	return nil
}

// Close stops playback and releases the device. Idempotent.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.leftover = nil

	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	terminate()
	if stopErr != nil {
		return fmt.Errorf("monitor: stop stream: %w", stopErr)
	}
	if closeErr != nil {
		return fmt.Errorf("monitor: close stream: %w", closeErr)
	}
	return nil
}
