//go:build cgo

package cmd

import (
	"github.com/livetechno/livetechno/tracker"
	"github.com/livetechno/livetechno/tracker/gomidi"
)

func NewMidiContext(broker *tracker.Broker, routing tracker.MIDIRouting) tracker.MIDIContext {
	return gomidi.NewContext(broker, routing)
}
