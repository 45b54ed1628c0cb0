package livetechno

import (
	"errors"
	"fmt"
)

// Renderer is the render-side contract of the engine: events are applied
// between blocks, and every Render call fills the whole buffer.
type Renderer interface {
	HandleEvent(event Event)
	Render(buffer AudioBuffer)
}

// DefaultBlockSize is the block size used for offline rendering when none is
// given.
const DefaultBlockSize = 128

// Play renders length frames offline, applying the timed events in order. A
// block never spans an event: blocks are split at event frames so every event
// lands exactly on a block start. Events must be sorted by frame; events at
// or past length are not applied.
func Play(r Renderer, events []TimedEvent, length int, blockSize int) (AudioBuffer, error) {
	if length < 0 {
		return nil, fmt.Errorf("livetechno.Play: negative length %d", length)
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	for i := 1; i < len(events); i++ {
		if events[i].Frame < events[i-1].Frame {
			return nil, errors.New("livetechno.Play: events are not sorted by frame")
		}
	}
	buffer := make(AudioBuffer, length)
	next := 0
	for frame := 0; frame < length; {
		for next < len(events) && events[next].Frame <= frame {
			r.HandleEvent(events[next].Event)
			next++
		}
		end := frame + blockSize
		if end > length {
			end = length
		}
		if next < len(events) && events[next].Frame < end {
			end = events[next].Frame
		}
		r.Render(buffer[frame:end])
		frame = end
	}
	return buffer, nil
}
