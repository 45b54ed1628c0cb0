package main

import (
	"bytes"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/livetechno/livetechno"
	"github.com/livetechno/livetechno/engine"
)

type (
	// Keymap binds terminal keys to the machines. Keys are single characters.
	Keymap struct {
		Velocity int                 `yaml:"velocity"`
		Release  string              `yaml:"release"`
		Quit     string              `yaml:"quit"`
		Step     float64             `yaml:"step"`
		Drums    map[string]string   `yaml:"drums"` // key -> drum name
		Bass     map[string]int      `yaml:"bass"`  // key -> MIDI note
		Knobs    map[string]KnobKeys `yaml:"knobs"` // TD3 param -> keys
	}

	KnobKeys struct {
		Down string `yaml:"down"`
		Up   string `yaml:"up"`
	}

	// Keyboard turns key presses into events. It remembers the held bass
	// note and the knob positions, since the terminal only reports presses.
	Keyboard struct {
		velocity int
		release  rune
		quit     rune
		drums    map[rune]int
		bass     map[rune]int
		knobs    map[rune]knobMove
		params   engine.BassParams
		held     int // held bass note, -1 if none
	}

	knobMove struct {
		param string
		delta float64
	}
)

//go:embed keymap.yml
var defaultKeymap []byte

// ReadKeymap decodes a keymap, rejecting unknown fields.
func ReadKeymap(b []byte) (Keymap, error) {
	var k Keymap
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&k); err != nil {
		return Keymap{}, fmt.Errorf("could not decode keymap: %w", err)
	}
	return k, nil
}

// NewKeyboard checks the keymap against the kit and the TD3 knobs.
func NewKeyboard(k Keymap, kit *engine.Kit) (*Keyboard, error) {
	ret := &Keyboard{
		velocity: k.Velocity,
		drums:    map[rune]int{},
		bass:     map[rune]int{},
		knobs:    map[rune]knobMove{},
		params:   engine.DefaultBassParams,
		held:     -1,
	}
	var err error
	if ret.release, err = keyRune(k.Release); err != nil {
		return nil, fmt.Errorf("release: %w", err)
	}
	if ret.quit, err = keyRune(k.Quit); err != nil {
		return nil, fmt.Errorf("quit: %w", err)
	}
	if k.Velocity < 1 || k.Velocity > 127 {
		return nil, fmt.Errorf("velocity must be in 1..127, got %d", k.Velocity)
	}
	notes := map[string]int{}
	for _, s := range kit {
		notes[s.Name] = s.Note
	}
	for key, name := range k.Drums {
		r, err := keyRune(key)
		if err != nil {
			return nil, fmt.Errorf("drum %v: %w", name, err)
		}
		note, ok := notes[name]
		if !ok {
			return nil, fmt.Errorf("no drum named %q in the kit", name)
		}
		ret.drums[r] = note
	}
	for key, note := range k.Bass {
		r, err := keyRune(key)
		if err != nil {
			return nil, fmt.Errorf("bass note %v: %w", note, err)
		}
		if note < 0 || note > 127 {
			return nil, fmt.Errorf("bass note %d out of range", note)
		}
		ret.bass[r] = note
	}
	for param, keys := range k.Knobs {
		if _, ok := ret.params.Get(param); !ok {
			return nil, fmt.Errorf("no TD3 knob named %q", param)
		}
		down, err := keyRune(keys.Down)
		if err != nil {
			return nil, fmt.Errorf("knob %v: %w", param, err)
		}
		up, err := keyRune(keys.Up)
		if err != nil {
			return nil, fmt.Errorf("knob %v: %w", param, err)
		}
		ret.knobs[down] = knobMove{param: param, delta: -k.Step}
		ret.knobs[up] = knobMove{param: param, delta: k.Step}
	}
	return ret, nil
}

func keyRune(s string) (rune, error) {
	r := []rune(s)
	if len(r) != 1 {
		return 0, fmt.Errorf("key must be a single character, got %q", s)
	}
	return r[0], nil
}

// Press returns the events for a key press. quit is true for the quit key
// and for ctrl-c, which raw mode delivers as a plain character.
func (k *Keyboard) Press(key rune) (events []livetechno.Event, quit bool) {
	if key == k.quit || key == 3 {
		return k.releaseBass(), true
	}
	if key == k.release {
		return k.releaseBass(), false
	}
	if note, ok := k.drums[key]; ok {
		return []livetechno.Event{livetechno.NoteOn{Machine: livetechno.RD9, Note: note, Velocity: k.velocity}}, false
	}
	if note, ok := k.bass[key]; ok {
		k.held = note
		return []livetechno.Event{livetechno.NoteOn{Machine: livetechno.TD3, Note: note, Velocity: k.velocity}}, false
	}
	if m, ok := k.knobs[key]; ok {
		value, _ := k.params.Get(m.param)
		value = min(max(value+m.delta, 0), 1)
		k.params.Set(m.param, value)
		return []livetechno.Event{livetechno.SetParam{Machine: livetechno.TD3, Param: m.param, Value: value}}, false
	}
	return nil, false
}

// Params returns the knob positions as last sent.
func (k *Keyboard) Params() engine.BassParams {
	return k.params
}

func (k *Keyboard) releaseBass() []livetechno.Event {
	if k.held < 0 {
		return nil
	}
	ev := livetechno.NoteOff{Machine: livetechno.TD3, Note: k.held}
	k.held = -1
	return []livetechno.Event{ev}
}
