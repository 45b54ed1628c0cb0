package livetechno

import (
	"errors"
	"fmt"
	"sort"
)

type (
	// Pattern is a step sequence for one machine.
	Pattern struct {
		Name    string             `json:"name,omitempty" yaml:"name,omitempty"`
		Machine Machine            `json:"machine" yaml:"machine"`
		Length  int                `json:"length,omitempty" yaml:"length,omitempty"`
		Gate    float64            `json:"gate,omitempty" yaml:"gate,omitempty"`
		Params  map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
		Steps   []Step             `json:"steps" yaml:"steps,flow"`
	}

	// Step is one note in a pattern; Index is the step position.
	Step struct {
		Index    int  `json:"index" yaml:"index"`
		Note     int  `json:"note" yaml:"note"`
		Velocity int  `json:"velocity,omitempty" yaml:"velocity,omitempty"`
		Slide    bool `json:"slide,omitempty" yaml:"slide,omitempty"`
	}
)

func (p *Pattern) Validate() error {
	if p.Machine != RD9 && p.Machine != TD3 {
		return ErrUnknownMachine
	}
	if p.Length < 0 {
		return fmt.Errorf("negative length %d", p.Length)
	}
	if p.Gate < 0 || p.Gate > 1 {
		return fmt.Errorf("gate %v outside (0,1]", p.Gate)
	}
	for name, v := range p.Params {
		if p.Machine != TD3 {
			return errors.New("params are only supported for td3 patterns")
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("param %v value %v outside [0,1]", name, v)
		}
	}
	seen := make(map[int]bool, len(p.Steps))
	for _, s := range p.Steps {
		if s.Index < 0 || s.Index >= p.length() {
			return fmt.Errorf("step index %d outside pattern of length %d", s.Index, p.length())
		}
		if seen[s.Index] {
			return fmt.Errorf("duplicate step index %d", s.Index)
		}
		seen[s.Index] = true
		if err := checkMIDIRange("note", s.Note); err != nil {
			return err
		}
		if err := checkMIDIRange("velocity", s.Velocity); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pattern) length() int {
	if p.Length == 0 {
		return DefaultPatternSteps
	}
	return p.Length
}

func (p *Pattern) gate() float64 {
	if p.Gate == 0 {
		return DefaultGate
	}
	return p.Gate
}

func (p *Pattern) sortedSteps() []Step {
	ret := make([]Step, len(p.Steps))
	copy(ret, p.Steps)
	sort.Slice(ret, func(i, j int) bool { return ret[i].Index < ret[j].Index })
	return ret
}

func (s Step) velocity() int {
	if s.Velocity == 0 {
		return DefaultVelocity
	}
	return s.Velocity
}
