//go:build !cgo

package cmd

import (
	"github.com/livetechno/livetechno/tracker"
)

func NewMidiContext(broker *tracker.Broker, routing tracker.MIDIRouting) tracker.MIDIContext {
	// with no cgo, we cannot use MIDI, so return a null context
	return tracker.NullMIDIContext{}
}
