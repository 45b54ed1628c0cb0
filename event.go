package livetechno

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
)

type (
	// Machine identifies which instrument an event is addressed to.
	Machine int

	// Event is a control event for the rendering engine. The set of events is
	// closed: only NoteOn, NoteOff and SetParam implement it.
	Event interface {
		Target() Machine
		isEvent()
	}

	NoteOn struct {
		Machine  Machine
		Note     int
		Velocity int
	}

	NoteOff struct {
		Machine Machine
		Note    int
	}

	// SetParam overwrites a named synth knob. Value is a knob position in
	// [0,1].
	SetParam struct {
		Machine Machine
		Param   string
		Value   float64
	}

	// TimedEvent is an event scheduled at an absolute sample frame.
	TimedEvent struct {
		Frame int
		Event Event
	}

	// WireEvent is the untyped shape in which control collaborators post
	// events, e.g. as JSON. ParseEvent turns it into a typed Event.
	WireEvent struct {
		Type     string   `json:"type" yaml:"type"`
		Machine  string   `json:"machine" yaml:"machine"`
		Note     *int     `json:"note,omitempty" yaml:"note,omitempty"`
		Velocity *int     `json:"velocity,omitempty" yaml:"velocity,omitempty"`
		Param    string   `json:"param,omitempty" yaml:"param,omitempty"`
		Value    *float64 `json:"value,omitempty" yaml:"value,omitempty"`
	}
)

const (
	RD9 Machine = iota
	TD3
)

const (
	TypeNoteOn   = "noteOn"
	TypeNoteOff  = "noteOff"
	TypeSetParam = "setParam"
)

var (
	ErrUnknownMachine   = errors.New("unknown machine")
	ErrUnknownEventType = errors.New("unknown event type")
	ErrInvalidEvent     = errors.New("invalid event")
)

func (NoteOn) isEvent()   {}
func (NoteOff) isEvent()  {}
func (SetParam) isEvent() {}

func (e NoteOn) Target() Machine   { return e.Machine }
func (e NoteOff) Target() Machine  { return e.Machine }
func (e SetParam) Target() Machine { return e.Machine }

func (m Machine) String() string {
	switch m {
	case RD9:
		return "rd9"
	case TD3:
		return "td3"
	}
	return fmt.Sprintf("Machine(%d)", int(m))
}

// ParseMachine returns the machine with the given wire name.
func ParseMachine(s string) (Machine, error) {
	switch s {
	case "rd9":
		return RD9, nil
	case "td3":
		return TD3, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMachine, s)
}

func (m Machine) MarshalText() ([]byte, error) {
	if m != RD9 && m != TD3 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMachine, int(m))
	}
	return []byte(m.String()), nil
}

func (m *Machine) UnmarshalText(text []byte) error {
	v, err := ParseMachine(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseEvent validates a wire event and converts it into a typed Event. This
// is the boundary check for the event channel: anything that passes it can be
// handed to the render context.
func ParseEvent(w WireEvent) (Event, error) {
	machine, err := ParseMachine(w.Machine)
	if err != nil {
		return nil, err
	}
	switch w.Type {
	case TypeNoteOn:
		if w.Note == nil {
			return nil, fmt.Errorf("%w: noteOn without note", ErrInvalidEvent)
		}
		if err := checkMIDIRange("note", *w.Note); err != nil {
			return nil, err
		}
		velocity := 127
		if w.Velocity != nil {
			velocity = *w.Velocity
		}
		if err := checkMIDIRange("velocity", velocity); err != nil {
			return nil, err
		}
		return NoteOn{Machine: machine, Note: *w.Note, Velocity: velocity}, nil
	case TypeNoteOff:
		note := 0
		if w.Note != nil {
			note = *w.Note
		} else if machine == RD9 {
			return nil, fmt.Errorf("%w: rd9 noteOff without note", ErrInvalidEvent)
		}
		if err := checkMIDIRange("note", note); err != nil {
			return nil, err
		}
		return NoteOff{Machine: machine, Note: note}, nil
	case TypeSetParam:
		if w.Param == "" || w.Value == nil {
			return nil, fmt.Errorf("%w: setParam needs param and value", ErrInvalidEvent)
		}
		if math.IsNaN(*w.Value) || math.IsInf(*w.Value, 0) {
			return nil, fmt.Errorf("%w: setParam %v value is not finite", ErrInvalidEvent, w.Param)
		}
		return SetParam{Machine: machine, Param: w.Param, Value: *w.Value}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, w.Type)
}

func checkMIDIRange(field string, v int) error {
	if v < 0 || v > 127 {
		return fmt.Errorf("%w: %v %d outside 0..127", ErrInvalidEvent, field, v)
	}
	return nil
}

// ToWire converts a typed event back to its wire shape.
func ToWire(e Event) WireEvent {
	switch e := e.(type) {
	case NoteOn:
		note, velocity := e.Note, e.Velocity
		return WireEvent{Type: TypeNoteOn, Machine: e.Machine.String(), Note: &note, Velocity: &velocity}
	case NoteOff:
		note := e.Note
		return WireEvent{Type: TypeNoteOff, Machine: e.Machine.String(), Note: &note}
	case SetParam:
		value := e.Value
		return WireEvent{Type: TypeSetParam, Machine: e.Machine.String(), Param: e.Param, Value: &value}
	}
	return WireEvent{}
}

// EncodeEvents writes timed events as JSON lines, in the format DecodeEvents
// reads.
func EncodeEvents(w io.Writer, events []TimedEvent) error {
	enc := json.NewEncoder(w)
	for _, ev := range events {
		record := struct {
			Frame int `json:"frame"`
			WireEvent
		}{ev.Frame, ToWire(ev.Event)}
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("could not write events: %w", err)
		}
	}
	return nil
}

// DecodeEvents reads timed events as JSON lines, one object per line with a
// "frame" field next to the wire fields. Blank lines and lines starting with
// '#' are skipped. The returned events are sorted by frame, keeping the file
// order for equal frames.
func DecodeEvents(r io.Reader) ([]TimedEvent, error) {
	var ret []TimedEvent
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var record struct {
			Frame int `json:"frame"`
			WireEvent
		}
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if record.Frame < 0 {
			return nil, fmt.Errorf("line %d: %w: negative frame %d", line, ErrInvalidEvent, record.Frame)
		}
		ev, err := ParseEvent(record.WireEvent)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ret = append(ret, TimedEvent{Frame: record.Frame, Event: ev})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read events: %w", err)
	}
	sort.SliceStable(ret, func(i, j int) bool { return ret[i].Frame < ret[j].Frame })
	return ret, nil
}
