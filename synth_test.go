package livetechno_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/livetechno/livetechno"
	"github.com/livetechno/livetechno/engine"
)

type recordingRenderer struct {
	frame  int
	blocks []int
	seen   []livetechno.TimedEvent
}

func (r *recordingRenderer) HandleEvent(ev livetechno.Event) {
	r.seen = append(r.seen, livetechno.TimedEvent{Frame: r.frame, Event: ev})
}

func (r *recordingRenderer) Render(buffer livetechno.AudioBuffer) {
	r.blocks = append(r.blocks, len(buffer))
	r.frame += len(buffer)
}

func TestPlaySplitsBlocksAtEvents(t *testing.T) {
	kick := livetechno.NoteOn{Machine: livetechno.RD9, Note: 36, Velocity: 127}
	events := []livetechno.TimedEvent{
		{Frame: 0, Event: kick},
		{Frame: 100, Event: kick},
		{Frame: 100, Event: livetechno.NoteOff{Machine: livetechno.TD3}},
		{Frame: 300, Event: kick},
		{Frame: 500, Event: kick},
	}
	var r recordingRenderer
	buffer, err := livetechno.Play(&r, events, 400, 128)
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if len(buffer) != 400 {
		t.Fatalf("got buffer of length %d, expected 400", len(buffer))
	}
	if expected := []int{100, 128, 72, 100}; !reflect.DeepEqual(r.blocks, expected) {
		t.Fatalf("got blocks %v, expected %v", r.blocks, expected)
	}
	if !reflect.DeepEqual(r.seen, events[:4]) {
		t.Fatalf("events arrived at %v, expected %v", r.seen, events[:4])
	}
}

func TestPlayErrors(t *testing.T) {
	var r recordingRenderer
	if _, err := livetechno.Play(&r, nil, -1, 0); err == nil {
		t.Fatalf("expected an error for negative length")
	}
	unsorted := []livetechno.TimedEvent{
		{Frame: 10, Event: livetechno.NoteOff{Machine: livetechno.TD3}},
		{Frame: 5, Event: livetechno.NoteOff{Machine: livetechno.TD3}},
	}
	if _, err := livetechno.Play(&r, unsorted, 100, 0); err == nil {
		t.Fatalf("expected an error for unsorted events")
	}
}

func TestPlaySong(t *testing.T) {
	song := livetechno.Song{
		BPM: 128,
		Patterns: []livetechno.Pattern{{
			Machine: livetechno.RD9,
			Length:  4,
			Steps:   []livetechno.Step{{Index: 0, Note: 36}, {Index: 2, Note: 42}},
		}, {
			Machine: livetechno.TD3,
			Length:  4,
			Steps:   []livetechno.Step{{Index: 0, Note: 36, Slide: true}, {Index: 1, Note: 48}},
		}},
	}
	render := func() livetechno.AudioBuffer {
		buffer, err := livetechno.Play(engine.New(engine.Config{SampleRate: 44100}), song.Events(44100), song.LengthInFrames(44100), 0)
		if err != nil {
			t.Fatalf("Play failed: %v", err)
		}
		return buffer
	}
	first, second := render(), render()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("rendering the same song twice gave different audio")
	}
	var peak float32
	for _, v := range first {
		if v < -1 || v > 1 {
			t.Fatalf("sample %v outside [-1,1]", v)
		}
		peak = max(peak, v, -v)
	}
	if peak == 0 {
		t.Fatalf("song rendered silence")
	}
}

func TestWavHeader(t *testing.T) {
	buffer := livetechno.AudioBuffer{0, 0.5, -1}
	data, err := buffer.Wav(48000, true)
	if err != nil {
		t.Fatalf("Wav failed: %v", err)
	}
	if len(data) != 44+6 {
		t.Fatalf("got %d bytes, expected %d", len(data), 44+6)
	}
	var header struct {
		Riff          [4]byte
		ChunkSize     uint32
		Wave, Fmt     [4]byte
		FmtSize       uint32
		Format        uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Data          [4]byte
		DataSize      uint32
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		t.Fatalf("could not read header: %v", err)
	}
	if string(header.Riff[:]) != "RIFF" || string(header.Wave[:]) != "WAVE" || string(header.Data[:]) != "data" {
		t.Fatalf("bad chunk ids in %+v", header)
	}
	if header.ChunkSize != 42 || header.Channels != 1 || header.SampleRate != 48000 || header.ByteRate != 96000 || header.BlockAlign != 2 || header.BitsPerSample != 16 || header.DataSize != 6 {
		t.Fatalf("bad header fields %+v", header)
	}
	if got := int16(binary.LittleEndian.Uint16(data[46:])); got != 16383 {
		t.Fatalf("got sample %d, expected 16383", got)
	}
	float, err := buffer.Wav(48000, false)
	if err != nil {
		t.Fatalf("Wav failed: %v", err)
	}
	if len(float) != 58+12 {
		t.Fatalf("got %d bytes, expected %d", len(float), 58+12)
	}
	if _, err := buffer.Wav(0, true); err == nil {
		t.Fatalf("expected an error for zero sample rate")
	}
}

func TestBufferSource(t *testing.T) {
	src := livetechno.AudioBuffer{1, 2, 3}.Source()
	buf := make(livetechno.AudioBuffer, 2)
	if n, err := src.ReadAudio(buf); n != 2 || err != nil {
		t.Fatalf("got %d, %v; expected 2, nil", n, err)
	}
	if n, err := src.ReadAudio(buf); n != 1 || err != nil || buf[0] != 3 {
		t.Fatalf("got %d, %v, %v; expected 1, nil, 3", n, err, buf[0])
	}
	if _, err := src.ReadAudio(buf); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
