// Package engine renders the RD9 drum machine and the TD3 bass synth from
// control events. An Engine is owned by exactly one render context: nothing in
// it is safe for concurrent use, and nothing in Render or HandleEvent
// allocates, blocks or fails.
package engine

import (
	"math"

	"github.com/livetechno/livetechno"
	"github.com/livetechno/livetechno/dsp"
)

type (
	// Engine holds all voice and filter state of both machines.
	Engine struct {
		config     Config
		sampleRate float64
		slideSteps int
		kit        Kit
		notes      noteTable
		drums      [NumDrums]drumVoice
		bass       bassVoice
		noise      dsp.Noise
		time       int64
	}

	// Config parameterizes an Engine. Zero values pick the defaults.
	Config struct {
		SampleRate int
		// Kit overrides DefaultKit.
		Kit *Kit
		// Bass sets the initial TD3 knobs instead of DefaultBassParams.
		Bass *BassParams
		// SlideTime, when positive, makes glides last this many seconds.
		// Otherwise a glide always takes DefaultSlideSteps samples.
		SlideTime float64
		// NoiseSeed seeds the white noise source.
		NoiseSeed uint32
	}

	// DrumState is a snapshot of one drum slot.
	DrumState struct {
		Active   bool
		Phase    float64
		Envelope float64
		Note     int
		Velocity float64
	}

	// BassState is a snapshot of the TD3 voice.
	BassState struct {
		Active      bool
		Phase       float64
		Envelope    float64
		CurrentNote float64
		TargetNote  int
		SlidePhase  float64
		Velocity    float64
		FilterZ1    float64
		FilterZ2    float64
		Params      BassParams
	}
)

const DefaultSampleRate = 44100

// New constructs an engine and initializes it at cfg.SampleRate.
func New(cfg Config) *Engine {
	e := &Engine{config: cfg}
	e.Init(cfg.SampleRate)
	return e
}

// Init resets every voice, filter and the sample clock for a stream at the
// given sample rate. Non-positive rates fall back to DefaultSampleRate.
func (e *Engine) Init(sampleRate int) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	e.config.SampleRate = sampleRate
	e.sampleRate = float64(sampleRate)
	e.kit = DefaultKit
	if e.config.Kit != nil {
		e.kit = *e.config.Kit
	}
	e.notes = e.kit.noteTable()
	e.slideSteps = DefaultSlideSteps
	if e.config.SlideTime > 0 {
		e.slideSteps = max(int(math.Round(e.config.SlideTime*e.sampleRate)), 1)
	}
	e.drums = [NumDrums]drumVoice{}
	e.bass = bassVoice{params: DefaultBassParams}
	if e.config.Bass != nil {
		e.bass.params = *e.config.Bass
	}
	e.noise = dsp.NewNoise(e.config.NoiseSeed)
	e.time = 0
}

func (e *Engine) SampleRate() int { return e.config.SampleRate }

// Time is the number of samples rendered since Init.
func (e *Engine) Time() int64 { return e.time }

func (e *Engine) Kit() *Kit { return &e.kit }

// HandleEvent applies one control event. Events for unmapped drum notes,
// unknown machines or unknown parameters are ignored.
func (e *Engine) HandleEvent(event livetechno.Event) {
	switch ev := event.(type) {
	case livetechno.NoteOn:
		switch ev.Machine {
		case livetechno.RD9:
			if slot := e.slot(ev.Note); slot >= 0 {
				e.drums[slot].noteOn(ev.Note, ev.Velocity)
			}
		case livetechno.TD3:
			e.bass.noteOn(ev.Note, ev.Velocity)
		}
	case livetechno.NoteOff:
		switch ev.Machine {
		case livetechno.RD9:
			if slot := e.slot(ev.Note); slot >= 0 {
				e.drums[slot].active = false
			}
		case livetechno.TD3:
			e.bass.noteOff()
		}
	case livetechno.SetParam:
		if ev.Machine == livetechno.TD3 {
			e.bass.params.Set(ev.Param, ev.Value)
		}
	}
}

func (e *Engine) slot(note int) int {
	if note < 0 || note >= len(e.notes) {
		return -1
	}
	return int(e.notes[note])
}

// Render fills the whole buffer: per sample, the drum slots and the bass are
// summed and soft limited with tanh.
func (e *Engine) Render(buffer livetechno.AudioBuffer) {
	for i := range buffer {
		var sample float64
		for j := range e.drums {
			sample += e.drums[j].render(&e.kit[j], &e.noise, e.sampleRate)
		}
		sample += e.bass.render(e.sampleRate, e.slideSteps)
		buffer[i] = float32(math.Tanh(sample))
		e.time++
	}
}

// Drum returns a snapshot of a drum slot. Slots outside [0, NumDrums) return
// the zero DrumState.
func (e *Engine) Drum(slot int) DrumState {
	if slot < 0 || slot >= NumDrums {
		return DrumState{}
	}
	v := e.drums[slot]
	return DrumState{Active: v.active, Phase: v.phase, Envelope: v.envelope.Level, Note: v.note, Velocity: v.velocity}
}

// Bass returns a snapshot of the TD3 voice.
func (e *Engine) Bass() BassState {
	v := &e.bass
	return BassState{
		Active:      v.active,
		Phase:       v.phase,
		Envelope:    v.envelope.Level,
		CurrentNote: v.currentNote,
		TargetNote:  v.targetNote,
		SlidePhase:  v.slidePhase,
		Velocity:    v.velocity,
		FilterZ1:    v.filter.Z1,
		FilterZ2:    v.filter.Z2,
		Params:      v.params,
	}
}
