package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/livetechno/livetechno"
)

// Sequencer is the control context of a live session. It plays the events of
// a song against the wall clock and forwards the events of live inputs
// arriving on ToSequencer, posting everything to the player. Run it in its
// own goroutine; it is the only producer of the player's event channel.
type Sequencer struct {
	broker     *Broker
	sampleRate int
	events     []livetechno.TimedEvent
	loopFrames int // 0: play the events once
	recording  *Recording
}

func NewSequencer(broker *Broker, sampleRate int) *Sequencer {
	return &Sequencer{broker: broker, sampleRate: sampleRate}
}

// Load schedules the song. If loop is true, the song repeats until Run
// returns; otherwise it plays song.Loops times. Call Load before Run.
func (s *Sequencer) Load(song livetechno.Song, loop bool) error {
	if err := song.Validate(); err != nil {
		return fmt.Errorf("cannot load song: %w", err)
	}
	if loop {
		song.Loops = 1
		s.loopFrames = song.LengthInFrames(s.sampleRate)
		s.events = song.LoopEvents(s.sampleRate)
		return nil
	}
	s.loopFrames = 0
	s.events = song.Events(s.sampleRate)
	return nil
}

// Record makes Run append the forwarded live events to r. The recording
// belongs to the sequencer until Run returns.
func (s *Sequencer) Record(r *Recording) {
	r.SampleRate = s.sampleRate
	s.recording = r
}

// Run plays until ctx is done. Before returning, it releases the TD3 so that
// a cancelled song does not leave a note hanging.
func (s *Sequencer) Run(ctx context.Context) error {
	start := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()
	index, base := 0, 0
	for {
		var due <-chan time.Time
		if index < len(s.events) {
			timer.Reset(time.Until(start.Add(s.duration(base + s.events[index].Frame))))
			due = timer.C
		}
		select {
		case <-ctx.Done():
			s.broker.Post(livetechno.NoteOff{Machine: livetechno.TD3})
			if s.recording != nil {
				s.recording.TotalFrames = max(s.recording.TotalFrames, s.frame(time.Since(start)))
			}
			return ctx.Err()
		case ev := <-s.broker.ToSequencer:
			s.broker.Post(ev)
			if s.recording != nil {
				s.recording.Record(s.frame(time.Since(start)), ev)
			}
		case <-due:
			now := time.Since(start)
			for index < len(s.events) && s.duration(base+s.events[index].Frame) <= now {
				s.broker.Post(s.events[index].Event)
				index++
				if index == len(s.events) && s.loopFrames > 0 {
					index = 0
					base += s.loopFrames
				}
			}
		}
	}
}

func (s *Sequencer) frame(d time.Duration) int {
	return int(int64(d) * int64(s.sampleRate) / int64(time.Second))
}

func (s *Sequencer) duration(frame int) time.Duration {
	return time.Duration(int64(frame) * int64(time.Second) / int64(s.sampleRate))
}
