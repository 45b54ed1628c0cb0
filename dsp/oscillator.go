// Package dsp contains the signal primitives the engine is built from:
// band-limited oscillators, zero-delay-feedback filters, the ADSR envelope and
// a noise source. All of them are allocation free; stateful primitives keep
// their state in small value types owned by the caller.
package dsp

import "math"

// PolyBLEPSaw returns a sawtooth 2·phase−1 with a polynomial band-limited step
// correction around the wrap at phase 0/1. dt is the normalized frequency
// freq/sampleRate; dt <= 0 skips the correction.
func PolyBLEPSaw(phase, dt float64) float64 {
	return 2*phase - 1 - polyBLEP(phase, dt)
}

// PolyBLEPSquare returns +1 below pulseWidth and −1 above it, with PolyBLEP
// corrections at the rising edge (phase 0) and at the falling edge
// (phase = pulseWidth).
func PolyBLEPSquare(phase, dt, pulseWidth float64) float64 {
	value := -1.0
	if phase < pulseWidth {
		value = 1
	}
	value += polyBLEP(phase, dt)
	value -= polyBLEP(Wrap(phase-pulseWidth), dt)
	return value
}

// polyBLEP is the residual of a unit step at phase 0, defined over one sample
// on either side of the discontinuity.
func polyBLEP(phase, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	switch {
	case phase < dt:
		t := phase / dt
		return 2*t - t*t - 1
	case phase > 1-dt:
		t := (phase - 1) / dt
		return t*t + 2*t + 1
	}
	return 0
}

// Sine returns sin(2π·phase).
func Sine(phase float64) float64 {
	return math.Sin(2 * math.Pi * phase)
}

// Wrap maps phase into [0,1). Increments larger than one cycle wrap as many
// times as needed.
func Wrap(phase float64) float64 {
	if phase >= 0 && phase < 1 {
		return phase
	}
	phase -= math.Floor(phase)
	if phase >= 1 { // tiny negative inputs round up to exactly 1
		phase = 0
	}
	return phase
}

// Advance adds dt to phase and wraps the result into [0,1).
func Advance(phase, dt float64) float64 {
	phase += dt
	if phase >= 1 {
		phase -= 1
	}
	return Wrap(phase)
}

// NoteToFrequency converts a (fractional) MIDI note number to Hz, with note 69
// at 440 Hz.
func NoteToFrequency(note float64) float64 {
	return 440 * math.Exp2((note-69)/12)
}
