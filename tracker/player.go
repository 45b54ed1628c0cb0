package tracker

import (
	"github.com/livetechno/livetechno"
)

type (
	// Player is the render context of the engine, run in the audio thread.
	// Every Process call first applies the events queued in the broker, then
	// renders the block, splitting it at the events the process context times
	// inside the block. Rendered blocks are passed on to the detector and
	// status is sent to the model, always without blocking.
	Player struct {
		renderer livetechno.Renderer // the engine; owned by the player
		broker   *Broker             // the broker used to communicate with the control context
		frames   int64               // samples rendered since the player was created
	}

	// PlayerProcessContext is the context given to the player when
	// processing audio. It yields events timed relative to the start of the
	// current block, typically MIDI from a plugin host. Events must come in
	// frame order.
	PlayerProcessContext interface {
		NextEvent() (event livetechno.TimedEvent, ok bool)
		FinishBlock(frame int)
	}

	// NullContext is a PlayerProcessContext without any timed events.
	NullContext struct{}

	// EventList is a PlayerProcessContext over a list of events timed within
	// one block. Reset it between blocks.
	EventList struct {
		Events []livetechno.TimedEvent
		index  int
	}
)

func NewPlayer(broker *Broker, renderer livetechno.Renderer) *Player {
	return &Player{
		broker:   broker,
		renderer: renderer,
	}
}

// Process renders audio to the whole buffer. Events waiting in the broker are
// applied before the first sample; events posted while the block renders
// wait for the next block.
func (p *Player) Process(buffer livetechno.AudioBuffer, context PlayerProcessContext) {
	p.processMessages()
	frame := 0
	ev, evOk := context.NextEvent()
	for len(buffer) > 0 {
		for evOk && frame >= ev.Frame {
			p.renderer.HandleEvent(ev.Event)
			ev, evOk = context.NextEvent()
		}
		n := len(buffer)
		if delta := ev.Frame - frame; evOk && delta < n {
			n = delta
		}
		p.renderer.Render(buffer[:n])
		p.sendToDetector(buffer[:n])
		buffer = buffer[n:]
		frame += n
	}
	// events timed past the end of the block land at the start of the next one
	for evOk {
		p.renderer.HandleEvent(ev.Event)
		ev, evOk = context.NextEvent()
	}
	context.FinishBlock(frame)
	p.frames += int64(frame)
	p.send(nil)
}

// ReadAudio implements livetechno.AudioSource, so the player can be handed
// directly to an audio device. It never runs out.
func (p *Player) ReadAudio(buffer livetechno.AudioBuffer) (int, error) {
	p.Process(buffer, NullContext{})
	return len(buffer), nil
}

// Frames returns the number of samples rendered so far.
func (p *Player) Frames() int64 { return p.frames }

// processMessages drains the events that are queued right now. The player is
// the only consumer, so the receives below never block.
func (p *Player) processMessages() {
	for n := len(p.broker.ToPlayer); n > 0; n-- {
		p.renderer.HandleEvent(<-p.broker.ToPlayer)
	}
}

func (p *Player) sendToDetector(block livetechno.AudioBuffer) {
	bufPtr := p.broker.GetAudioBuffer() // borrow a buffer from the broker
	*bufPtr = append(*bufPtr, block...)
	if len(*bufPtr) == 0 || !TrySend(p.broker.ToDetector, MsgToDetector{Data: bufPtr}) {
		// if the buffer is empty or the detector is lagging, return the
		// buffer to the broker
		p.broker.PutAudioBuffer(bufPtr)
	}
}

// all sends from player are always non-blocking, to ensure that the player thread cannot end up in a dead-lock
func (p *Player) send(message any) {
	TrySend(p.broker.ToModel, MsgToModel{
		HasPlayerStatus: true,
		Frames:          p.frames,
		Dropped:         p.broker.Dropped(),
		Data:            message,
	})
}

func (NullContext) NextEvent() (event livetechno.TimedEvent, ok bool) { return event, false }
func (NullContext) FinishBlock(frame int)                             {}

func (l *EventList) NextEvent() (event livetechno.TimedEvent, ok bool) {
	if l.index >= len(l.Events) {
		return event, false
	}
	l.index++
	return l.Events[l.index-1], true
}

func (l *EventList) FinishBlock(frame int) {}

// Reset empties the list but keeps its memory.
func (l *EventList) Reset() {
	l.Events = l.Events[:0]
	l.index = 0
}

// Add appends an event at the given frame of the block.
func (l *EventList) Add(frame int, ev livetechno.Event) {
	l.Events = append(l.Events, livetechno.TimedEvent{Frame: frame, Event: ev})
}
