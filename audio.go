package livetechno

import (
	"io"
)

type (
	// AudioBuffer is a buffer of mono float32 samples, nominally in [-1,1].
	AudioBuffer []float32

	// AudioSource fills audio buffers on demand. ReadAudio returns the number
	// of frames written; io.EOF signals that the source is exhausted.
	AudioSource interface {
		ReadAudio(buffer AudioBuffer) (int, error)
	}

	// AudioContext plays AudioSources on an audio device.
	AudioContext interface {
		Play(source AudioSource) CloserWaiter
		Close() error
	}

	// CloserWaiter stops playback with Close, or waits for the source to
	// run out with Wait.
	CloserWaiter interface {
		Close() error
		Wait()
	}

	bufferSource struct {
		buffer AudioBuffer
		pos    int
	}
)

// Source returns an AudioSource that plays the buffer once.
func (b AudioBuffer) Source() AudioSource {
	return &bufferSource{buffer: b}
}

func (s *bufferSource) ReadAudio(buffer AudioBuffer) (int, error) {
	if s.pos >= len(s.buffer) {
		return 0, io.EOF
	}
	n := copy(buffer, s.buffer[s.pos:])
	s.pos += n
	return n, nil
}

// Fill sets every sample of the buffer to zero.
func (b AudioBuffer) Fill() {
	for i := range b {
		b[i] = 0
	}
}

// Wav encodes the buffer as a mono .wav file at the given sample rate.
func (b AudioBuffer) Wav(sampleRate int, pcm16 bool) ([]byte, error) {
	return Wav(b, sampleRate, pcm16)
}

// Raw encodes the buffer as headerless little-endian samples.
func (b AudioBuffer) Raw(pcm16 bool) ([]byte, error) {
	return Raw(b, pcm16)
}
