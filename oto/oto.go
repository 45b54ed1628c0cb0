package oto

import (
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/livetechno/livetechno"
)

type (
	// OtoContext plays mono float32 audio on the default audio device.
	OtoContext struct {
		context *oto.Context
	}

	// OtoPlayer is the handle of one playing source.
	OtoPlayer struct {
		player *oto.Player
	}

	// otoReader adapts a livetechno.AudioSource to the io.Reader oto pulls
	// from. Read runs in the audio callback of oto.
	otoReader struct {
		source livetechno.AudioSource
		tmp    livetechno.AudioBuffer
		err    error
	}
)

// otoBufferDuration is the device buffer length; shorter gives less latency
// but more underruns
const otoBufferDuration = 20 * time.Millisecond

func NewContext(sampleRate int) (*OtoContext, error) {
	context, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   otoBufferDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &OtoContext{context: context}, nil
}

// Play starts pulling audio from the source until it returns an error,
// io.EOF included.
func (c *OtoContext) Play(source livetechno.AudioSource) livetechno.CloserWaiter {
	reader := &otoReader{source: source}
	player := c.context.NewPlayer(reader)
	player.Play()
	return &OtoPlayer{player: player}
}

// Close suspends the device; oto allows only one context per process, so it
// cannot be reopened.
func (c *OtoContext) Close() error {
	if err := c.context.Suspend(); err != nil {
		return fmt.Errorf("cannot close oto context: %w", err)
	}
	return nil
}

func (r *otoReader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, io.EOF
	}
	samples := len(p) / 4
	if cap(r.tmp) < samples {
		r.tmp = make(livetechno.AudioBuffer, samples)
	}
	buf := r.tmp[:samples]
	n, err := r.source.ReadAudio(buf)
	if err != nil {
		r.err = err
		if n == 0 {
			return 0, io.EOF
		}
	}
	return FloatBufferToFloat32LE(buf[:n], p), nil
}

// Wait blocks until the source has run out and the device has played the
// rest of its buffer.
func (o *OtoPlayer) Wait() {
	for o.player.IsPlaying() {
		time.Sleep(otoBufferDuration)
	}
}

// Close stops the playback.
func (o *OtoPlayer) Close() error {
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}
