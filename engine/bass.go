package engine

import (
	"math"

	"github.com/livetechno/livetechno/dsp"
)

type (
	// BassParams are the TD3 knob positions, each in [0,1].
	BassParams struct {
		Cutoff    float64 `yaml:"cutoff"`
		Resonance float64 `yaml:"resonance"`
		EnvMod    float64 `yaml:"envMod"`
		Decay     float64 `yaml:"decay"`
	}

	bassVoice struct {
		phase       float64
		filter      dsp.TwoPole
		envelope    dsp.Envelope
		currentNote float64
		slideFrom   float64
		targetNote  int
		slidePhase  float64
		slideCount  int
		active      bool
		velocity    float64
		params      BassParams
	}
)

// Parameter names accepted by SetParam for the TD3.
const (
	ParamCutoff    = "cutoff"
	ParamResonance = "resonance"
	ParamEnvMod    = "envMod"
	ParamDecay     = "decay"
)

var DefaultBassParams = BassParams{Cutoff: 0.5, Resonance: 0.3, EnvMod: 0.5, Decay: 0.5}

// TD3 voicing
const (
	bassAttack      = 0.001
	bassRelease     = 0.01
	bassDecayScale  = 0.5 // seconds of decay at full knob
	bassCutoffRange = 10000.0
	bassEnvModRange = 5000.0
	bassGain        = 0.7
)

// DefaultSlideSteps is the glide length in samples when no slide time is
// configured.
const DefaultSlideSteps = 1000

// ParamNames lists the TD3 knobs in panel order.
var ParamNames = []string{ParamCutoff, ParamResonance, ParamEnvMod, ParamDecay}

// Get returns a knob by name. It reports false for unknown names.
func (p BassParams) Get(name string) (float64, bool) {
	switch name {
	case ParamCutoff:
		return p.Cutoff, true
	case ParamResonance:
		return p.Resonance, true
	case ParamEnvMod:
		return p.EnvMod, true
	case ParamDecay:
		return p.Decay, true
	}
	return 0, false
}

// Set overwrites a knob by name, clamping the value to [0,1]. It reports
// false for unknown names and non-finite values.
func (p *BassParams) Set(name string, value float64) bool {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return false
	}
	value = min(max(value, 0), 1)
	switch name {
	case ParamCutoff:
		p.Cutoff = value
	case ParamResonance:
		p.Resonance = value
	case ParamEnvMod:
		p.EnvMod = value
	case ParamDecay:
		p.Decay = value
	default:
		return false
	}
	return true
}

func (v *bassVoice) noteOn(note, velocity int) {
	v.targetNote = note
	v.velocity = float64(velocity) / 127
	if !v.active {
		v.currentNote = float64(note)
		v.slideFrom = float64(note)
		v.phase = 0
	} else {
		v.slideFrom = v.currentNote
		v.slidePhase = 0
		v.slideCount = 0
	}
	v.active = true
	v.envelope.Trigger()
}

func (v *bassVoice) noteOff() {
	v.active = false
}

// render produces one sample. slideSteps is the number of samples a glide
// takes.
func (v *bassVoice) render(sampleRate float64, slideSteps int) float64 {
	if !v.active && v.envelope.Level <= 0 {
		return 0
	}
	target := float64(v.targetNote)
	if v.slidePhase < 1 {
		v.slideCount++
		v.slidePhase = min(float64(v.slideCount)/float64(slideSteps), 1)
		v.currentNote = v.slideFrom + (target-v.slideFrom)*v.slidePhase
	} else {
		v.currentNote = target
	}
	dt := dsp.NoteToFrequency(v.currentNote) / sampleRate
	sample := dsp.PolyBLEPSaw(v.phase, dt)
	v.phase = dsp.Advance(v.phase, dt)
	adsr := dsp.ADSR{Attack: bassAttack, Decay: v.params.Decay * bassDecayScale, Release: bassRelease}
	env := v.envelope.Advance(adsr, v.active, sampleRate)
	envAmount := v.params.EnvMod*2 - 1
	cutoff := v.params.Cutoff*bassCutoffRange + envAmount*env*bassEnvModRange
	cutoff = min(max(cutoff, dsp.MinCutoff), dsp.MaxAudibleCutoff)
	sample = v.filter.Process(sample, cutoff, v.params.Resonance, sampleRate)
	return sample * env * v.velocity * bassGain
}
