package tracker

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/livetechno/livetechno/engine"
	"gopkg.in/yaml.v2"
)

type (
	Preferences struct {
		SampleRate int
		BlockSize  int
		SlideTime  float64 // seconds; 0 keeps the fixed-length glide
		MIDI       MIDIPreferences
		YmlError   error `yaml:"-"`
	}

	MIDIPreferences struct {
		Input       string // name prefix of the input to open
		DrumChannel int    // one-based, like on the hardware
		Controls    map[uint8]string
	}
)

//go:embed preferences.yml
var defaultPreferencesYaml []byte

func loadDefaultPreferences() Preferences {
	var preferences Preferences
	err := yaml.UnmarshalStrict(defaultPreferencesYaml, &preferences)
	if err != nil {
		panic(fmt.Errorf("failed to unmarshal preferences: %w", err))
	}
	return preferences
}

// ReadCustomConfigYml modifies the target argument, i.e. needs a pointer
func ReadCustomConfigYml(filename string, target any) (exists bool, err error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return false, err
	}
	path := filepath.Join(configDir, "livetechno", filename)
	bytes, err2 := os.ReadFile(path)
	if err2 != nil {
		return false, err2
	}
	err = yaml.UnmarshalStrict(bytes, target)
	return true, err
}

// MakePreferences returns the default preferences overridden by
// livetechno/preferences.yml in the user config directory, if there is one.
// An unreadable file is reported in YmlError.
func MakePreferences() Preferences {
	preferences := loadDefaultPreferences()
	exists, err := ReadCustomConfigYml("preferences.yml", &preferences)
	if exists {
		preferences.YmlError = err
	}
	return preferences
}

func (p *Preferences) EngineConfig() engine.Config {
	return engine.Config{SampleRate: p.SampleRate, SlideTime: p.SlideTime}
}

func (p *Preferences) Routing() MIDIRouting {
	return MIDIRouting{DrumChannel: p.MIDI.DrumChannel - 1, Controls: p.MIDI.Controls}
}
