package gomidi

import (
	"errors"
	"fmt"

	"github.com/livetechno/livetechno/tracker"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

type (
	// RTMIDIContext listens to one MIDI input at a time and sends the routed
	// events to the sequencer through the broker.
	RTMIDIContext struct {
		driver             *rtmididrv.Driver
		currentIn          drivers.In
		stop               func()
		inputDevices       []RTMIDIDevice
		devicesInitialized bool
		broker             *tracker.Broker
		routing            tracker.MIDIRouting
	}

	RTMIDIDevice struct {
		context *RTMIDIContext
		in      drivers.In
	}
)

// NewContext opens the driver. If that fails, the context has no inputs and
// Support reports tracker.MIDISupportNoDriver.
func NewContext(broker *tracker.Broker, routing tracker.MIDIRouting) *RTMIDIContext {
	m := RTMIDIContext{broker: broker, routing: routing}
	// there's not much we can do if this fails, so just use m.driver = nil to
	// indicate no driver available
	m.driver, _ = rtmididrv.New()
	return &m
}

func (m *RTMIDIContext) Inputs(yield func(tracker.MIDIInputDevice) bool) {
	if m.devicesInitialized {
		for _, device := range m.inputDevices {
			if !yield(device) {
				return
			}
		}
		return
	}
	if m.driver == nil {
		return
	}
	ins, err := m.driver.Ins()
	if err != nil {
		return
	}
	for i := range ins {
		m.inputDevices = append(m.inputDevices, RTMIDIDevice{context: m, in: ins[i]})
	}
	m.devicesInitialized = true
	for _, device := range m.inputDevices {
		if !yield(device) {
			return
		}
	}
}

func (m *RTMIDIContext) Support() tracker.MIDISupport {
	if m.driver == nil {
		return tracker.MIDISupportNoDriver
	}
	return tracker.MIDISupported
}

// Open an input device while closing the currently open if necessary.
func (d RTMIDIDevice) Open() error {
	c := d.context
	if c.currentIn == d.in {
		return nil
	}
	if c.driver == nil {
		return errors.New("no driver available")
	}
	c.closeCurrent()
	if err := d.in.Open(); err != nil {
		return fmt.Errorf("opening MIDI input failed: %w", err)
	}
	stop, err := midi.ListenTo(d.in, c.HandleMessage)
	if err != nil {
		d.in.Close()
		return fmt.Errorf("listening to MIDI input failed: %w", err)
	}
	c.currentIn, c.stop = d.in, stop
	return nil
}

func (d RTMIDIDevice) Close() error {
	if d.context.currentIn != d.in {
		return nil
	}
	d.context.closeCurrent()
	return nil
}

func (d RTMIDIDevice) IsOpen() bool {
	return d.in.IsOpen()
}

func (d RTMIDIDevice) String() string {
	return d.in.String()
}

func (c *RTMIDIContext) closeCurrent() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	if c.currentIn != nil && c.currentIn.IsOpen() {
		c.currentIn.Close()
	}
	c.currentIn = nil
}

func (c *RTMIDIContext) Close() {
	if c.driver == nil {
		return
	}
	c.closeCurrent()
	c.driver.Close()
}

// HandleMessage is called by the driver for every incoming message. Messages
// that route to an event are passed to the sequencer; if its queue is full,
// the message is dropped.
func (c *RTMIDIContext) HandleMessage(msg midi.Message, timestampms int32) {
	if ev, ok := c.routing.Route(msg); ok {
		tracker.TrySend(c.broker.ToSequencer, ev)
	}
}
