package tracker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/livetechno/livetechno"
	"gitlab.com/gomidi/midi/v2"
)

type (
	MIDIContext interface {
		Inputs(yield func(input MIDIInputDevice) bool)
		Close()
		Support() MIDISupport
	}

	MIDIInputDevice interface {
		Open() error
		Close() error
		IsOpen() bool
		String() string
	}

	MIDISupport int

	// MIDIRouting decides which machine a MIDI channel message is for. Notes
	// on the drum channel go to the RD9, notes on any other channel to the
	// TD3. Control changes listed in Controls move TD3 knobs.
	MIDIRouting struct {
		DrumChannel int              // zero-based
		Controls    map[uint8]string // control number -> TD3 param name
	}
)

const (
	MIDISupportNotCompiled MIDISupport = iota
	MIDISupportNoDriver
	MIDISupported
)

var ErrNoMIDIInput = errors.New("no MIDI input found")

// DefaultMIDIRouting puts the drums on channel 10.
var DefaultMIDIRouting = MIDIRouting{
	DrumChannel: 9,
	Controls:    map[uint8]string{74: "cutoff", 71: "resonance", 70: "envMod", 75: "decay"},
}

// Route converts a MIDI message into an engine event. A note on with zero
// velocity is a note off. ok is false for messages that do not map to any
// event.
func (r *MIDIRouting) Route(msg midi.Message) (ev livetechno.Event, ok bool) {
	var channel, key, velocity, controller, value uint8
	isNoteOn := msg.GetNoteOn(&channel, &key, &velocity)
	switch {
	case isNoteOn && velocity > 0:
		return livetechno.NoteOn{Machine: r.machine(channel), Note: int(key), Velocity: int(velocity)}, true
	case isNoteOn || msg.GetNoteOff(&channel, &key, &velocity):
		return livetechno.NoteOff{Machine: r.machine(channel), Note: int(key)}, true
	case msg.GetControlChange(&channel, &controller, &value):
		param, ok := r.Controls[controller]
		if !ok {
			return nil, false
		}
		return livetechno.SetParam{Machine: livetechno.TD3, Param: param, Value: float64(value) / 127}, true
	}
	return nil, false
}

func (r *MIDIRouting) machine(channel uint8) livetechno.Machine {
	if int(channel) == r.DrumChannel {
		return livetechno.RD9
	}
	return livetechno.TD3
}

// OpenMIDIInput opens the first input whose name starts with namePrefix. An
// empty prefix takes the first input there is.
func OpenMIDIInput(c MIDIContext, namePrefix string) (MIDIInputDevice, error) {
	for input := range c.Inputs {
		if strings.HasPrefix(input.String(), namePrefix) {
			if err := input.Open(); err != nil {
				return nil, fmt.Errorf("opening MIDI input %q failed: %w", input.String(), err)
			}
			return input, nil
		}
	}
	if namePrefix == "" {
		return nil, ErrNoMIDIInput
	}
	return nil, fmt.Errorf("%w starting with %q", ErrNoMIDIInput, namePrefix)
}

func (s MIDISupport) String() string {
	switch s {
	case MIDISupportNotCompiled:
		return "Not compiled"
	case MIDISupportNoDriver:
		return "No driver"
	}
	return "Supported"
}

// NullMIDIContext is a mockup MIDIContext if you don't want to create a real
// one.
type NullMIDIContext struct{}

func (m NullMIDIContext) Inputs(yield func(input MIDIInputDevice) bool) {}
func (m NullMIDIContext) Close()                                        {}
func (m NullMIDIContext) Support() MIDISupport                          { return MIDISupportNotCompiled }
