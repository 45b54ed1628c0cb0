package dsp

// ADSR holds envelope times in seconds and the sustain level in [0,1].
type ADSR struct {
	Attack  float64 `yaml:"attack"`
	Decay   float64 `yaml:"decay"`
	Sustain float64 `yaml:"sustain"`
	Release float64 `yaml:"release"`
}

// AdvanceEnvelope moves env one sample forward. The stage is implied by env
// and gate: with the gate open, env below 1 is attacking and env at 1 decays
// towards the sustain level; with the gate closed, env releases towards 0.
// Ramps are linear; a zero time is an instant (rate 1) ramp. The result is
// always in [0,1]. Being stateless, a gated level that decays below 1 attacks
// again on the next sample; voices use Envelope, which latches the decay.
func AdvanceEnvelope(env float64, adsr ADSR, gate bool, sampleRate float64) float64 {
	if gate {
		if env < 1 {
			env += rate(adsr.Attack, sampleRate)
			if env > 1 {
				env = 1
			}
		} else {
			env -= rate(adsr.Decay, sampleRate)
			if sustain := min(max(adsr.Sustain, 0), 1); env < sustain {
				env = sustain
			}
		}
	} else {
		env -= rate(adsr.Release, sampleRate)
	}
	return min(max(env, 0), 1)
}

func rate(seconds, sampleRate float64) float64 {
	if seconds > 0 {
		return 1 / (seconds * sampleRate)
	}
	return 1
}

// Envelope is an ADSR level that remembers it has reached the top of its
// attack. While the gate stays open it keeps decaying towards sustain instead
// of re-entering the attack as soon as the level drops below 1. The latch is
// what lets a held one-shot drum (sustain 0) decay to silence; without it the
// level would bounce near 1 for as long as the note is held.
type Envelope struct {
	Level    float64
	decaying bool
}

// Trigger jumps the level to the top; the next Advance starts the decay.
func (e *Envelope) Trigger() {
	e.Level = 1
	e.decaying = false
}

// Advance moves the envelope one sample forward and returns the new level.
func (e *Envelope) Advance(adsr ADSR, gate bool, sampleRate float64) float64 {
	switch {
	case !gate:
		e.decaying = false
	case e.Level >= 1:
		e.decaying = true
	}
	if e.decaying {
		e.Level -= rate(adsr.Decay, sampleRate)
		e.Level = min(max(e.Level, adsr.Sustain, 0), 1)
	} else {
		e.Level = AdvanceEnvelope(e.Level, adsr, gate, sampleRate)
	}
	return e.Level
}
