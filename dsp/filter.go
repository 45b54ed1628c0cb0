package dsp

import "math"

type (
	// OnePole is a trapezoidal (zero-delay-feedback) one-pole low-pass.
	OnePole struct {
		Z1 float64
	}

	// TwoPole is a resonant two-pole zero-delay-feedback low-pass made of two
	// coupled one-pole stages sharing a feedback path.
	TwoPole struct {
		Z1, Z2 float64
	}
)

const (
	MinCutoff        = 20.0
	MaxCutoffRatio   = 0.49 // of the sample rate
	MaxAudibleCutoff = 20000.0
)

// ClampCutoff limits cutoff to [20 Hz, 0.49·sampleRate], keeping tan(π·fc/fs)
// away from its singularity at Nyquist. NaN maps to the lower bound. Below
// about 41 Hz sample rate the range is empty and the upper bound wins.
func ClampCutoff(cutoff, sampleRate float64) float64 {
	if math.IsNaN(cutoff) || cutoff < MinCutoff {
		cutoff = MinCutoff
	}
	return min(cutoff, sampleRate*MaxCutoffRatio)
}

// prewarp returns g = tan(π·cutoff/sampleRate).
func prewarp(cutoff, sampleRate float64) float64 {
	return math.Tan(math.Pi * ClampCutoff(cutoff, sampleRate) / sampleRate)
}

// Process filters one sample.
func (f *OnePole) Process(input, cutoff, sampleRate float64) float64 {
	g := prewarp(cutoff, sampleRate)
	G := g / (1 + g)
	v := G * (input - f.Z1)
	lp := v + f.Z1
	f.Z1 = lp + v
	return lp
}

func (f *OnePole) Reset() {
	f.Z1 = 0
}

// Process filters one sample. resonance in [0,1] maps to the feedback
// coefficient k = 2 − 2·resonance; higher resonance means more feedback.
func (f *TwoPole) Process(input, cutoff, resonance, sampleRate float64) float64 {
	g := prewarp(cutoff, sampleRate)
	k := 2 - 2*resonance
	G1 := g / (1 + g)
	G2 := g / (1 + g + g*g*k)
	v1 := G1 * (input - f.Z1 - k*f.Z2)
	lp1 := v1 + f.Z1
	f.Z1 = lp1 + v1
	v2 := G2 * (lp1 - f.Z2)
	lp2 := v2 + f.Z2
	f.Z2 = lp2 + v2
	return lp2
}

func (f *TwoPole) Reset() {
	f.Z1, f.Z2 = 0, 0
}
