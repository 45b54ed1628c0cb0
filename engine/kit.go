package engine

import "github.com/livetechno/livetechno/dsp"

type (
	// DrumClass selects the render routine of a drum slot.
	DrumClass int

	// DrumSound is the tuning of one drum slot. Every number that shapes a
	// drum lives here rather than in the render code.
	DrumSound struct {
		Name     string
		Note     int
		Class    DrumClass
		Envelope dsp.ADSR
		Gain     float64
		// ToneFreq is the frequency of the sine body in Hz (snare, tone).
		ToneFreq float64
		// ToneMix and NoiseMix weight the sine body and white noise.
		ToneMix  float64
		NoiseMix float64
		// PitchBase and PitchSweep define the kick frequency as
		// PitchBase + PitchSweep·envelope.
		PitchBase  float64
		PitchSweep float64
		// Drive scales the kick sine before tanh saturation.
		Drive float64
	}

	// Kit is the fixed set of drum slots, indexed by slot number.
	Kit [NumDrums]DrumSound
)

const (
	Kick DrumClass = iota
	Snare
	HiHat
	Tone
)

// NumDrums is the number of percussion slots.
const NumDrums = 11

// Drum slots.
const (
	SlotBD = iota // bass drum
	SlotSD        // snare
	SlotLT        // low tom
	SlotMT        // mid tom
	SlotHT        // high tom
	SlotRS        // rim shot
	SlotCP        // clap
	SlotCB        // cowbell
	SlotCY        // cymbal
	SlotOH        // open hi-hat
	SlotCH        // closed hi-hat
)

const drumAttack = 0.001

var (
	kickSound = DrumSound{
		Class:      Kick,
		Envelope:   dsp.ADSR{Attack: drumAttack, Decay: 0.2},
		Gain:       0.8,
		PitchBase:  40,
		PitchSweep: 40,
		Drive:      2,
	}
	snareSound = DrumSound{
		Class:    Snare,
		Envelope: dsp.ADSR{Attack: drumAttack, Decay: 0.15},
		Gain:     0.6,
		ToneFreq: 200,
		ToneMix:  0.3,
		NoiseMix: 0.7,
	}
	toneSound = DrumSound{
		Class:    Tone,
		Envelope: dsp.ADSR{Attack: drumAttack, Decay: 0.1},
		Gain:     0.5,
		ToneFreq: 200,
		ToneMix:  1,
		NoiseMix: 0.3,
	}
	openHatSound = DrumSound{
		Class:    HiHat,
		Envelope: dsp.ADSR{Attack: drumAttack, Decay: 0.3},
		Gain:     0.4,
		NoiseMix: 1,
	}
	closedHatSound = DrumSound{
		Class:    HiHat,
		Envelope: dsp.ADSR{Attack: drumAttack, Decay: 0.05},
		Gain:     0.4,
		NoiseMix: 1,
	}
)

// DefaultKit is the RD9 kit. Sustain is zero everywhere, so every hit decays
// on a fixed schedule however long the note is held.
var DefaultKit = Kit{
	SlotBD: named(kickSound, "bd", 36),
	SlotSD: named(snareSound, "sd", 38),
	SlotLT: named(toneSound, "lt", 43),
	SlotMT: named(toneSound, "mt", 47),
	SlotHT: named(toneSound, "ht", 50),
	SlotRS: named(toneSound, "rs", 37),
	SlotCP: named(toneSound, "cp", 39),
	SlotCB: named(toneSound, "cb", 56),
	SlotCY: named(toneSound, "cy", 49),
	SlotOH: named(openHatSound, "oh", 46),
	SlotCH: named(closedHatSound, "ch", 42),
}

func named(s DrumSound, name string, note int) DrumSound {
	s.Name = name
	s.Note = note
	return s
}

// noteTable maps MIDI notes to drum slots; -1 means unmapped.
type noteTable [128]int8

func (k *Kit) noteTable() noteTable {
	var t noteTable
	for i := range t {
		t[i] = -1
	}
	for slot, s := range k {
		if s.Note >= 0 && s.Note < len(t) {
			t[s.Note] = int8(slot)
		}
	}
	return t
}

// Slot returns the drum slot for a MIDI note, or -1 if the note is not
// mapped.
func (k *Kit) Slot(note int) int {
	for slot, s := range k {
		if s.Note == note {
			return slot
		}
	}
	return -1
}

func (c DrumClass) String() string {
	switch c {
	case Kick:
		return "kick"
	case Snare:
		return "snare"
	case HiHat:
		return "hihat"
	case Tone:
		return "tone"
	}
	return "unknown"
}
