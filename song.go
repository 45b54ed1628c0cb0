package livetechno

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

type (
	// Song is a set of step patterns played together at a fixed tempo. It is
	// the pattern data a control collaborator turns into timed note events.
	Song struct {
		BPM          int       `json:"bpm" yaml:"bpm"`
		StepsPerBeat int       `json:"stepsPerBeat,omitempty" yaml:"stepsPerBeat,omitempty"`
		Loops        int       `json:"loops,omitempty" yaml:"loops,omitempty"`
		Patterns     []Pattern `json:"patterns" yaml:"patterns"`
	}
)

const (
	DefaultStepsPerBeat = 4
	DefaultPatternSteps = 16
	DefaultGate         = 0.5
	DefaultVelocity     = 100
)

// event ordering within the same frame
const (
	orderParam = iota
	orderNoteOff
	orderNoteOn
)

func (s *Song) Validate() error {
	if s.BPM <= 0 {
		return fmt.Errorf("song bpm must be positive, got %d", s.BPM)
	}
	if s.StepsPerBeat < 0 {
		return fmt.Errorf("song stepsPerBeat must be positive, got %d", s.StepsPerBeat)
	}
	if s.Loops < 0 {
		return fmt.Errorf("song loops must not be negative, got %d", s.Loops)
	}
	if len(s.Patterns) == 0 {
		return errors.New("song has no patterns")
	}
	for i := range s.Patterns {
		if err := s.Patterns[i].Validate(); err != nil {
			return fmt.Errorf("pattern %d (%v): %w", i, s.Patterns[i].Name, err)
		}
	}
	return nil
}

// StepFrames returns the length of one step in (fractional) sample frames.
func (s *Song) StepFrames(sampleRate int) float64 {
	spb := s.StepsPerBeat
	if spb == 0 {
		spb = DefaultStepsPerBeat
	}
	return 60 * float64(sampleRate) / float64(s.BPM*spb)
}

// LengthInSteps is the length of one loop: the longest pattern.
func (s *Song) LengthInSteps() int {
	ret := 0
	for i := range s.Patterns {
		ret = max(ret, s.Patterns[i].length())
	}
	return ret
}

func (s *Song) loops() int {
	if s.Loops == 0 {
		return 1
	}
	return s.Loops
}

// LengthInFrames is the total render length of the song, all loops included.
func (s *Song) LengthInFrames(sampleRate int) int {
	return s.frame(s.loops()*s.LengthInSteps(), sampleRate)
}

func (s *Song) frame(step int, sampleRate int) int {
	return int(math.Round(float64(step) * s.StepFrames(sampleRate)))
}

// Events translates the song into timed note events for the given sample
// rate. Every step becomes a noteOn and, Gate steps later, a noteOff. A TD3
// step with Slide set is held until the next step sounds, so the next noteOn
// arrives while the synth is still active and glides instead of retriggering.
// A slide on the last step of a pattern glides into the first step of the
// next loop; only in the last loop is it released after a full step.
// Pattern params are sent as SetParam events at the start of each loop. The
// result is sorted by frame; within a frame, params come first, then
// noteOffs, then noteOns.
func (s *Song) Events(sampleRate int) []TimedEvent {
	return s.events(sampleRate, s.loops(), false)
}

// LoopEvents returns the events of a single loop of a song that repeats
// forever, so a slide on the last step is never released.
func (s *Song) LoopEvents(sampleRate int) []TimedEvent {
	return s.events(sampleRate, 1, true)
}

func (s *Song) events(sampleRate, loops int, endless bool) []TimedEvent {
	type keyed struct {
		TimedEvent
		order int
	}
	var events []keyed
	loopSteps := s.LengthInSteps()
	for l := 0; l < loops; l++ {
		nextLoop := endless || l+1 < loops
		base := l * loopSteps
		for p := range s.Patterns {
			pat := &s.Patterns[p]
			paramNames := make([]string, 0, len(pat.Params))
			for name := range pat.Params {
				paramNames = append(paramNames, name)
			}
			sort.Strings(paramNames)
			for _, name := range paramNames {
				events = append(events, keyed{TimedEvent{s.frame(base, sampleRate), SetParam{Machine: pat.Machine, Param: name, Value: pat.Params[name]}}, orderParam})
			}
			steps := pat.sortedSteps()
			for k, step := range steps {
				onFrame := s.frame(base+step.Index, sampleRate)
				events = append(events, keyed{TimedEvent{onFrame, NoteOn{Machine: pat.Machine, Note: step.Note, Velocity: step.velocity()}}, orderNoteOn})
				if pat.Machine == TD3 && step.Slide && (k+1 < len(steps) || nextLoop) {
					// the following noteOn glides; its own noteOff releases the voice
					continue
				}
				gate := pat.gate()
				if pat.Machine == TD3 && step.Slide {
					gate = 1
				}
				offFrame := int(math.Round((float64(base+step.Index) + gate) * s.StepFrames(sampleRate)))
				events = append(events, keyed{TimedEvent{offFrame, NoteOff{Machine: pat.Machine, Note: step.Note}}, orderNoteOff})
			}
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Frame != events[j].Frame {
			return events[i].Frame < events[j].Frame
		}
		return events[i].order < events[j].order
	})
	ret := make([]TimedEvent, len(events))
	for i := range events {
		ret[i] = events[i].TimedEvent
	}
	return ret
}
