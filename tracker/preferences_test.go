package tracker_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/livetechno/livetechno/tracker"
)

func useConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("AppData", dir)
	configDir, err := os.UserConfigDir()
	if err != nil {
		t.Fatalf("no user config dir: %v", err)
	}
	return configDir
}

func TestDefaultPreferences(t *testing.T) {
	useConfigDir(t)
	p := tracker.MakePreferences()
	if p.YmlError != nil {
		t.Fatalf("unexpected error: %v", p.YmlError)
	}
	if p.SampleRate != 44100 || p.BlockSize != 128 || p.SlideTime != 0 {
		t.Fatalf("unexpected defaults %+v", p)
	}
	routing := p.Routing()
	if !reflect.DeepEqual(routing, tracker.DefaultMIDIRouting) {
		t.Fatalf("got routing %+v, expected %+v", routing, tracker.DefaultMIDIRouting)
	}
}

func TestCustomPreferences(t *testing.T) {
	configDir := useConfigDir(t)
	path := filepath.Join(configDir, "livetechno", "preferences.yml")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	custom := "samplerate: 48000\nslidetime: 0.05\nmidi:\n  input: MPK\n  drumchannel: 1\n"
	if err := os.WriteFile(path, []byte(custom), 0644); err != nil {
		t.Fatal(err)
	}
	p := tracker.MakePreferences()
	if p.YmlError != nil {
		t.Fatalf("unexpected error: %v", p.YmlError)
	}
	if p.SampleRate != 48000 || p.BlockSize != 128 || p.MIDI.Input != "MPK" {
		t.Fatalf("custom values not applied: %+v", p)
	}
	if cfg := p.EngineConfig(); cfg.SampleRate != 48000 || cfg.SlideTime != 0.05 {
		t.Fatalf("got engine config %+v", cfg)
	}
	if r := p.Routing(); r.DrumChannel != 0 || r.Controls[74] != "cutoff" {
		t.Fatalf("got routing %+v", r)
	}
}

func TestBrokenPreferences(t *testing.T) {
	configDir := useConfigDir(t)
	path := filepath.Join(configDir, "livetechno", "preferences.yml")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("samplerat: 48000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if p := tracker.MakePreferences(); p.YmlError == nil {
		t.Fatalf("expected an error for an unknown field")
	}
}
