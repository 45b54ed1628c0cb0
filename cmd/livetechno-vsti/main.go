//go:build plugin

package main

import (
	"context"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gopkg.in/yaml.v3"
	"pipelined.dev/audio/vst2"

	"github.com/livetechno/livetechno"
	"github.com/livetechno/livetechno/engine"
	"github.com/livetechno/livetechno/tracker"
)

// VSTIProcessContext feeds the MIDI events of the current host block to the
// player, routed the same way as a MIDI input device.
type VSTIProcessContext struct {
	events     []vst2.MIDIEvent
	eventIndex int
	routing    tracker.MIDIRouting
}

var (
	pluginID   = [4]byte{'L', 'T', 'R', '9'}
	pluginName = "livetechno"
)

func (c *VSTIProcessContext) NextEvent() (event livetechno.TimedEvent, ok bool) {
	for c.eventIndex < len(c.events) {
		ev := c.events[c.eventIndex]
		c.eventIndex++
		if e, ok := c.routing.Route(midi.Message(ev.Data[:])); ok {
			return livetechno.TimedEvent{Frame: int(ev.DeltaFrames), Event: e}, true
		}
		// ignore all other MIDI messages
	}
	return livetechno.TimedEvent{}, false
}

func (c *VSTIProcessContext) FinishBlock(frame int) {
	c.events = c.events[:0] // reset buffer, but keep the allocated memory
	c.eventIndex = 0
}

func init() {
	var (
		version = int32(100)
	)
	vst2.PluginAllocator = func(h vst2.Host) (vst2.Plugin, vst2.Dispatcher) {
		prefs := tracker.MakePreferences()
		synth := engine.New(prefs.EngineConfig())
		broker := tracker.NewBroker()
		player := tracker.NewPlayer(broker, synth)
		go tracker.NewDetector(broker, prefs.SampleRate).Run()
		ctx, cancel := context.WithCancel(context.Background())
		go tracker.NewSequencer(broker, prefs.SampleRate).Run(ctx)
		processContext := VSTIProcessContext{routing: prefs.Routing()}
		// knobs as of the last rendered block, for saving the plugin state
		var knobsMu sync.Mutex
		knobs := engine.DefaultBassParams
		buf := make(livetechno.AudioBuffer, 1024)
		return vst2.Plugin{
				UniqueID:       pluginID,
				Version:        version,
				InputChannels:  0,
				OutputChannels: 2,
				Name:           pluginName,
				Vendor:         "livetechno",
				Category:       vst2.PluginCategorySynth,
				Flags:          vst2.PluginIsSynth,
				ProcessFloatFunc: func(in, out vst2.FloatBuffer) {
					left := out.Channel(0)
					right := out.Channel(1)
					if len(buf) < out.Frames {
						buf = append(buf, make(livetechno.AudioBuffer, out.Frames-len(buf))...)
					}
					buf = buf[:out.Frames]
					player.Process(buf, &processContext)
					for i := 0; i < out.Frames; i++ {
						left[i], right[i] = buf[i], buf[i]
					}
					if knobsMu.TryLock() {
						knobs = synth.Bass().Params
						knobsMu.Unlock()
					}
				},
			}, vst2.Dispatcher{
				CanDoFunc: func(pcds vst2.PluginCanDoString) vst2.CanDoResponse {
					switch pcds {
					case vst2.PluginCanReceiveEvents, vst2.PluginCanReceiveMIDIEvent:
						return vst2.YesCanDo
					}
					return vst2.NoCanDo
				},
				ProcessEventsFunc: func(ev *vst2.EventsPtr) {
					for i := 0; i < ev.NumEvents(); i++ {
						a := ev.Event(i)
						switch v := a.(type) {
						case *vst2.MIDIEvent:
							processContext.events = append(processContext.events, *v)
						}
					}
				},
				CloseFunc: func() {
					cancel()
					broker.CloseDetector <- struct{}{}
				},
				GetChunkFunc: func(isPreset bool) []byte {
					knobsMu.Lock()
					state := knobs
					knobsMu.Unlock()
					ret, err := yaml.Marshal(state)
					if err != nil {
						return nil
					}
					return ret
				},
				SetChunkFunc: func(data []byte, isPreset bool) {
					state := engine.DefaultBassParams
					if err := yaml.Unmarshal(data, &state); err != nil {
						return
					}
					for _, name := range engine.ParamNames {
						value, _ := state.Get(name)
						tracker.TrySend(broker.ToSequencer, livetechno.Event(livetechno.SetParam{Machine: livetechno.TD3, Param: name, Value: value}))
					}
				},
			}
	}
}

func main() {}
