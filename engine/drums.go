package engine

import (
	"math"

	"github.com/livetechno/livetechno/dsp"
)

type drumVoice struct {
	active   bool
	phase    float64
	envelope dsp.Envelope
	note     int
	velocity float64
}

func (v *drumVoice) noteOn(note, velocity int) {
	v.active = true
	v.phase = 0
	v.envelope.Trigger()
	v.note = note
	v.velocity = float64(velocity) / 127
}

// render produces one sample of a drum slot. Silent voices return 0 without
// touching any state.
func (v *drumVoice) render(s *DrumSound, noise *dsp.Noise, sampleRate float64) float64 {
	if !v.active && v.envelope.Level <= 0 {
		return 0
	}
	var sample float64
	switch s.Class {
	case Kick:
		freq := v.envelope.Level*s.PitchSweep + s.PitchBase
		sample = math.Tanh(dsp.Sine(v.phase) * s.Drive)
		v.phase = dsp.Advance(v.phase, freq/sampleRate)
	case Snare, Tone:
		sample = dsp.Sine(v.phase)*s.ToneMix + noise.Next()*s.NoiseMix
		v.phase = dsp.Advance(v.phase, s.ToneFreq/sampleRate)
	case HiHat:
		sample = noise.Next() * s.NoiseMix
	}
	env := v.envelope.Advance(s.Envelope, v.active, sampleRate)
	return sample * env * v.velocity * s.Gain
}
