package tracker

import (
	"errors"
	"math"

	"github.com/livetechno/livetechno"
)

// Recording collects the live events of a session, timed in frames from its
// start.
type Recording struct {
	SampleRate  int
	Events      []livetechno.TimedEvent
	TotalFrames int
}

type recordingNote struct {
	note       int
	velocity   int
	startRow   int
	startFrame int
	endFrame   int
}

var (
	ErrInvalidRows    = errors.New("bpm, steps per beat and sample rate must be positive")
	ErrEmptyRecording = errors.New("nothing was recorded")
)

func (r *Recording) Record(frame int, ev livetechno.Event) {
	r.Events = append(r.Events, livetechno.TimedEvent{Frame: frame, Event: ev})
	r.TotalFrames = max(r.TotalFrames, frame)
}

// Song quantizes the recording to step patterns. Notes snap to the nearest
// step. The TD3 is monophonic: when two of its notes land on the same step,
// the first one wins, and a note still held when the next one starts becomes
// a slide. RD9 hits sharing a step are spread over as many RD9 patterns as
// needed, so that only a repeated hit of the same drum on a step is merged.
// Knob moves are flattened to the last position of each knob.
func (r *Recording) Song(bpm, stepsPerBeat int) (livetechno.Song, error) {
	if bpm <= 0 || stepsPerBeat <= 0 || r.SampleRate <= 0 {
		return livetechno.Song{}, ErrInvalidRows
	}
	song := livetechno.Song{BPM: bpm, StepsPerBeat: stepsPerBeat}
	stepFrames := song.StepFrames(r.SampleRate)
	frameToRow := func(frame int) int {
		return int(float64(frame)/stepFrames + 0.5)
	}
	length := max(int(math.Ceil(float64(r.TotalFrames)/stepFrames)), 1)
	machineNotes := map[livetechno.Machine][]recordingNote{}
	params := map[string]float64{}
	// find the end of each note, i.e. its matching noteOff
	for i, te := range r.Events {
		switch ev := te.Event.(type) {
		case livetechno.SetParam:
			if ev.Machine == livetechno.TD3 {
				params[ev.Param] = min(max(ev.Value, 0), 1)
			}
		case livetechno.NoteOn:
			endFrame := math.MaxInt
			for j := i + 1; j < len(r.Events); j++ {
				if off, ok := r.Events[j].Event.(livetechno.NoteOff); ok && off.Machine == ev.Machine && (off.Note == ev.Note || ev.Machine == livetechno.TD3) {
					endFrame = r.Events[j].Frame
					break
				}
			}
			row := frameToRow(te.Frame)
			length = max(length, row+1)
			machineNotes[ev.Machine] = append(machineNotes[ev.Machine], recordingNote{note: ev.Note, velocity: ev.Velocity, startRow: row, startFrame: te.Frame, endFrame: endFrame})
		}
	}
	if notes := machineNotes[livetechno.RD9]; len(notes) > 0 {
		song.Patterns = append(song.Patterns, drumPatterns(notes, length)...)
	}
	if notes := machineNotes[livetechno.TD3]; len(notes) > 0 {
		song.Patterns = append(song.Patterns, bassPattern(notes, length, params))
	}
	if len(song.Patterns) == 0 {
		return livetechno.Song{}, ErrEmptyRecording
	}
	return song, song.Validate()
}

func drumPatterns(notes []recordingNote, length int) []livetechno.Pattern {
	type hit struct{ row, note int }
	var patterns []livetechno.Pattern
	var taken []map[int]bool
	played := map[hit]bool{}
	for _, n := range notes {
		if played[hit{n.startRow, n.note}] {
			continue
		}
		played[hit{n.startRow, n.note}] = true
		p := 0
		for p < len(patterns) && taken[p][n.startRow] {
			p++
		}
		if p == len(patterns) {
			patterns = append(patterns, livetechno.Pattern{Machine: livetechno.RD9, Length: length})
			taken = append(taken, map[int]bool{})
		}
		taken[p][n.startRow] = true
		patterns[p].Steps = append(patterns[p].Steps, livetechno.Step{Index: n.startRow, Note: n.note, Velocity: n.velocity})
	}
	return patterns
}

func bassPattern(notes []recordingNote, length int, params map[string]float64) livetechno.Pattern {
	pattern := livetechno.Pattern{Machine: livetechno.TD3, Length: length}
	taken := map[int]bool{}
	for k, n := range notes {
		if taken[n.startRow] {
			continue
		}
		taken[n.startRow] = true
		step := livetechno.Step{Index: n.startRow, Note: n.note, Velocity: n.velocity}
		if k+1 < len(notes) && notes[k+1].startRow > n.startRow {
			step.Slide = n.endFrame > notes[k+1].startFrame
		}
		pattern.Steps = append(pattern.Steps, step)
	}
	if len(params) > 0 {
		pattern.Params = params
	}
	return pattern
}
