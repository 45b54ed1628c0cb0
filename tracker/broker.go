package tracker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/livetechno/livetechno"
)

type (
	// Broker is the centralized message broker between the control context
	// (sequencer, MIDI input, keyboard, plugin host), the player and the level
	// detector. Communication is one channel per recipient. ToPlayer is the
	// event channel of the engine: exactly one producer posts to it with Post
	// and the player is its only consumer. Live inputs (MIDI, keyboard) send
	// to ToSequencer instead; the sequencer forwards them together with its
	// own events, so ToPlayer keeps a single producer. Additionally, the
	// broker has a sync.Pool of *livetechno.AudioBuffers, so the player can
	// pass rendered blocks to the detector without allocating new memory
	// every time.
	//
	// For closing goroutines, the broker has two channels for each goroutine:
	// CloseXXX and FinishedXXX. The CloseXXX channel has a capacity of 1, so
	// you can always send an empty message (struct{}{}) to it without
	// blocking. If the channel is already full, someone else has already
	// requested its closure and the goroutine is already closing, so dropping
	// the message is fine. FinishedXXX is used to signal that a goroutine has
	// succesfully closed and cleaned up. Nothing is ever sent to the channel,
	// it is only closed. You can wait until the goroutine is done closing with
	// "<- FinishedXXX", which for avoiding deadlocks can be combined with a
	// timeout:
	//    select {
	//      case <-FinishedXXX:
	//      case <-time.After(3 * time.Second):
	//    }
	Broker struct {
		ToPlayer    chan livetechno.Event
		ToSequencer chan livetechno.Event
		ToDetector  chan MsgToDetector
		ToModel     chan MsgToModel

		CloseDetector    chan struct{}
		FinishedDetector chan struct{}

		dropped    atomic.Int64
		bufferPool sync.Pool
	}

	// MsgToModel is a message sent from the player and the detector to
	// whoever displays the state of the engine. The frequently sent fields are
	// not boxed to avoid allocations.
	MsgToModel struct {
		HasPlayerStatus bool
		Frames          int64 // samples rendered by the player so far
		Dropped         int64 // events dropped because ToPlayer was full

		HasDetectorResult bool
		DetectorResult    DetectorResult

		Data any
	}

	// MsgToDetector is a message sent to the detector. Data is either a
	// *livetechno.AudioBuffer to analyze, which the detector returns to the
	// pool, or a func() which gets executed in the detector goroutine.
	MsgToDetector struct {
		Reset bool
		Data  any
	}
)

// EventQueueSize is the capacity of the event channel.
const EventQueueSize = 1024

func NewBroker() *Broker {
	return &Broker{
		ToPlayer:         make(chan livetechno.Event, EventQueueSize),
		ToSequencer:      make(chan livetechno.Event, EventQueueSize),
		ToDetector:       make(chan MsgToDetector, 1024),
		ToModel:          make(chan MsgToModel, 1024),
		CloseDetector:    make(chan struct{}, 1),
		FinishedDetector: make(chan struct{}),
		bufferPool:       sync.Pool{New: func() any { return &livetechno.AudioBuffer{} }},
	}
}

// Post enqueues an event for the player without blocking. If the queue is
// full, the event is dropped, counted and false is returned.
func (b *Broker) Post(ev livetechno.Event) bool {
	if !TrySend(b.ToPlayer, ev) {
		b.dropped.Add(1)
		return false
	}
	return true
}

// Dropped returns the number of events Post has dropped so far.
func (b *Broker) Dropped() int64 {
	return b.dropped.Load()
}

// GetAudioBuffer returns an audio buffer from the buffer pool. The buffer is
// guaranteed to be empty. After using the buffer, it should be returned to the
// pool with PutAudioBuffer.
func (b *Broker) GetAudioBuffer() *livetechno.AudioBuffer {
	return b.bufferPool.Get().(*livetechno.AudioBuffer)
}

// PutAudioBuffer returns an audio buffer to the buffer pool. If the buffer is
// not empty, its length is resetted (but capacity kept) before returning it to
// the pool.
func (b *Broker) PutAudioBuffer(buf *livetechno.AudioBuffer) {
	if len(*buf) > 0 {
		*buf = (*buf)[:0]
	}
	b.bufferPool.Put(buf)
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive is a helper function to block until a value is received from a
// channel, or timing out after t. ok will be false if the timeout occurred or
// if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
