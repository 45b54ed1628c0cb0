package engine_test

import (
	"math"
	"testing"

	"github.com/livetechno/livetechno"
	"github.com/livetechno/livetechno/engine"
)

func renderFrames(e *engine.Engine, n int) livetechno.AudioBuffer {
	buf := make(livetechno.AudioBuffer, n)
	e.Render(buf)
	return buf
}

func TestNoteOnActivatesOnlyMappedSlot(t *testing.T) {
	e := engine.New(engine.Config{SampleRate: 48000})
	e.HandleEvent(livetechno.NoteOn{Machine: livetechno.RD9, Note: 36, Velocity: 127})
	for slot := 0; slot < engine.NumDrums; slot++ {
		s := e.Drum(slot)
		if slot == engine.SlotBD {
			if !s.Active || s.Envelope != 1 || s.Phase != 0 || s.Note != 36 || s.Velocity != 1 {
				t.Errorf("kick slot after noteOn = %+v", s)
			}
			continue
		}
		if s != (engine.DrumState{}) {
			t.Errorf("slot %d touched by kick noteOn: %+v", slot, s)
		}
	}
}

func TestUnmappedDrumNoteIsIgnored(t *testing.T) {
	e := engine.New(engine.Config{SampleRate: 48000})
	e.HandleEvent(livetechno.NoteOn{Machine: livetechno.RD9, Note: 38, Velocity: 64})
	var before [engine.NumDrums]engine.DrumState
	for slot := range before {
		before[slot] = e.Drum(slot)
	}
	e.HandleEvent(livetechno.NoteOn{Machine: livetechno.RD9, Note: 99, Velocity: 100})
	e.HandleEvent(livetechno.NoteOff{Machine: livetechno.RD9, Note: 99})
	for slot := range before {
		if got := e.Drum(slot); got != before[slot] {
			t.Errorf("slot %d changed by unmapped note: %+v -> %+v", slot, before[slot], got)
		}
	}
}

func TestNoteTable(t *testing.T) {
	want := map[int]int{36: 0, 38: 1, 43: 2, 47: 3, 50: 4, 37: 5, 39: 6, 56: 7, 49: 8, 46: 9, 42: 10}
	kit := engine.DefaultKit
	for note := 0; note < 128; note++ {
		slot, ok := want[note]
		if !ok {
			slot = -1
		}
		if got := kit.Slot(note); got != slot {
			t.Errorf("Slot(%d) = %d, want %d", note, got, slot)
		}
	}
	e := engine.New(engine.Config{SampleRate: 44100})
	for note, slot := range want {
		e.HandleEvent(livetechno.NoteOn{Machine: livetechno.RD9, Note: note, Velocity: 127})
		if !e.Drum(slot).Active {
			t.Errorf("note %d did not activate slot %d", note, slot)
		}
	}
}

func TestBassMonophonySlides(t *testing.T) {
	e := engine.New(engine.Config{SampleRate: 48000})
	e.HandleEvent(livetechno.NoteOn{Machine: livetechno.TD3, Note: 60, Velocity: 100})
	renderFrames(e, 100)
	before := e.Bass()
	if before.Phase == 0 {
		t.Fatalf("phase did not advance while rendering")
	}
	e.HandleEvent(livetechno.NoteOn{Machine: livetechno.TD3, Note: 67, Velocity: 100})
	after := e.Bass()
	if after.Phase != before.Phase {
		t.Errorf("legato noteOn reset phase: %v -> %v", before.Phase, after.Phase)
	}
	if after.SlidePhase != 0 {
		t.Errorf("slidePhase = %v, want 0", after.SlidePhase)
	}
	if after.TargetNote != 67 {
		t.Errorf("targetNote = %v, want 67", after.TargetNote)
	}
	if after.CurrentNote != 60 {
		t.Errorf("currentNote jumped to %v before rendering", after.CurrentNote)
	}
}

func TestBassRetriggerWhenInactive(t *testing.T) {
	e := engine.New(engine.Config{SampleRate: 48000})
	e.HandleEvent(livetechno.NoteOn{Machine: livetechno.TD3, Note: 60, Velocity: 100})
	renderFrames(e, 100)
	e.HandleEvent(livetechno.NoteOff{Machine: livetechno.TD3})
	renderFrames(e, 10)
	e.HandleEvent(livetechno.NoteOn{Machine: livetechno.TD3, Note: 48, Velocity: 127})
	s := e.Bass()
	if s.Phase != 0 {
		t.Errorf("phase = %v, want 0", s.Phase)
	}
	if s.CurrentNote != 48 || s.TargetNote != 48 {
		t.Errorf("currentNote/targetNote = %v/%v, want 48/48", s.CurrentNote, s.TargetNote)
	}
	if !s.Active || s.Envelope != 1 || s.Velocity != 1 {
		t.Errorf("voice after noteOn = %+v", s)
	}
}

func TestSlideIsLinear(t *testing.T) {
	e := engine.New(engine.Config{SampleRate: 44100})
	e.HandleEvent(livetechno.NoteOn{Machine: livetechno.TD3, Note: 60, Velocity: 100})
	renderFrames(e, engine.DefaultSlideSteps) // finish the initial (empty) glide
	e.HandleEvent(livetechno.NoteOn{Machine: livetechno.TD3, Note: 72, Velocity: 100})
	renderFrames(e, 500)
	if got := e.Bass().CurrentNote; math.Abs(got-66) > 1e-9 {
		t.Errorf("halfway through the glide currentNote = %v, want 66", got)
	}
	renderFrames(e, 500)
	if s := e.Bass(); s.CurrentNote != 72 || s.SlidePhase != 1 {
		t.Errorf("after the glide currentNote = %v slidePhase = %v, want 72 and 1", s.CurrentNote, s.SlidePhase)
	}
}

func TestSlideCompletesAfterThousandSamples(t *testing.T) {
	for _, sr := range []int{22050, 44100, 48000, 96000} {
		e := engine.New(engine.Config{SampleRate: sr})
		e.HandleEvent(livetechno.SetParam{Machine: livetechno.TD3, Param: engine.ParamCutoff, Value: 0.5})
		e.HandleEvent(livetechno.SetParam{Machine: livetechno.TD3, Param: engine.ParamResonance, Value: 0.3})
		e.HandleEvent(livetechno.NoteOn{Machine: livetechno.TD3, Note: 69, Velocity: 127})
		buf := make(livetechno.AudioBuffer, 1)
		for i := 0; i < 1000; i++ {
			e.Render(buf)
			got := e.Bass().SlidePhase
			if i < 999 && got >= 1 {
				t.Fatalf("sr=%d: slidePhase reached %v early at sample %d", sr, got, i)
			}
			if i == 999 && got != 1 {
				t.Fatalf("sr=%d: slidePhase at sample 999 = %v, want 1", sr, got)
			}
		}
		if s := e.Bass(); s.CurrentNote != 69 {
			t.Errorf("sr=%d: currentNote = %v, want 69", sr, s.CurrentNote)
		}
	}
}

func TestSlideTimeNormalizesBySampleRate(t *testing.T) {
	e := engine.New(engine.Config{SampleRate: 48000, SlideTime: 0.05})
	e.HandleEvent(livetechno.NoteOn{Machine: livetechno.TD3, Note: 50, Velocity: 100})
	renderFrames(e, 2399)
	if got := e.Bass().SlidePhase; got >= 1 {
		t.Fatalf("slidePhase = %v after 2399 samples, want < 1", got)
	}
	renderFrames(e, 1)
	if got := e.Bass().SlidePhase; got != 1 {
		t.Fatalf("slidePhase = %v after 2400 samples, want 1", got)
	}
}

func TestKickDecaysWithoutNoteOff(t *testing.T) {
	const sr = 48000
	e := engine.New(engine.Config{SampleRate: sr})
	e.HandleEvent(livetechno.NoteOn{Machine: livetechno.RD9, Note: 36, Velocity: 127})
	buf := renderFrames(e, sr)
	decayEnd := sr * 200 / 1000
	nonZero := 0
	for _, v := range buf[:decayEnd] {
		if v != 0 {
			nonZero++
		}
	}
	if nonZero < decayEnd*9/10 {
		t.Errorf("only %d of the first %d samples carry the kick", nonZero, decayEnd)
	}
	for i, v := range buf[decayEnd+sr/100:] {
		if v != 0 {
			t.Fatalf("kick still sounding at sample %d: %v", decayEnd+sr/100+i, v)
		}
	}
	if !e.Drum(engine.SlotBD).Active {
		t.Errorf("kick was deactivated without a noteOff")
	}
	if got := e.Drum(engine.SlotBD).Envelope; got != 0 {
		t.Errorf("kick envelope = %v, want 0", got)
	}
}

func TestNoteOffReleasesToSilence(t *testing.T) {
	tests := []struct {
		name string
		on   livetechno.Event
		off  livetechno.Event
		env  func(e *engine.Engine) float64
	}{
		{"td3",
			livetechno.NoteOn{Machine: livetechno.TD3, Note: 45, Velocity: 127},
			livetechno.NoteOff{Machine: livetechno.TD3, Note: 45},
			func(e *engine.Engine) float64 { return e.Bass().Envelope }},
		{"snare",
			livetechno.NoteOn{Machine: livetechno.RD9, Note: 38, Velocity: 127},
			livetechno.NoteOff{Machine: livetechno.RD9, Note: 38},
			func(e *engine.Engine) float64 { return e.Drum(engine.SlotSD).Envelope }},
		{"open hat",
			livetechno.NoteOn{Machine: livetechno.RD9, Note: 46, Velocity: 90},
			livetechno.NoteOff{Machine: livetechno.RD9, Note: 46},
			func(e *engine.Engine) float64 { return e.Drum(engine.SlotOH).Envelope }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := engine.New(engine.Config{SampleRate: 48000})
			e.HandleEvent(tt.on)
			e.HandleEvent(tt.off)
			renderFrames(e, 48000/100+10) // longer than the 10 ms td3 release
			if got := tt.env(e); got != 0 {
				t.Fatalf("envelope after release = %v, want 0", got)
			}
			for i, v := range renderFrames(e, 256) {
				if v != 0 {
					t.Fatalf("released voice still contributes %v at sample %d", v, i)
				}
			}
		})
	}
}

func TestSetParam(t *testing.T) {
	e := engine.New(engine.Config{SampleRate: 44100})
	if got := e.Bass().Params; got != engine.DefaultBassParams {
		t.Fatalf("initial params = %+v, want %+v", got, engine.DefaultBassParams)
	}
	e.HandleEvent(livetechno.SetParam{Machine: livetechno.TD3, Param: engine.ParamCutoff, Value: 0.9})
	e.HandleEvent(livetechno.SetParam{Machine: livetechno.TD3, Param: engine.ParamResonance, Value: 2})
	e.HandleEvent(livetechno.SetParam{Machine: livetechno.TD3, Param: engine.ParamEnvMod, Value: -1})
	e.HandleEvent(livetechno.SetParam{Machine: livetechno.TD3, Param: engine.ParamDecay, Value: math.NaN()})
	e.HandleEvent(livetechno.SetParam{Machine: livetechno.TD3, Param: "wobble", Value: 0.1})
	e.HandleEvent(livetechno.SetParam{Machine: livetechno.RD9, Param: engine.ParamCutoff, Value: 0.1})
	want := engine.BassParams{Cutoff: 0.9, Resonance: 1, EnvMod: 0, Decay: engine.DefaultBassParams.Decay}
	if got := e.Bass().Params; got != want {
		t.Errorf("params = %+v, want %+v", got, want)
	}
}

func TestUnknownMachineIsIgnored(t *testing.T) {
	e := engine.New(engine.Config{SampleRate: 44100})
	e.HandleEvent(livetechno.NoteOn{Machine: livetechno.Machine(7), Note: 36, Velocity: 127})
	e.HandleEvent(nil)
	for i, v := range renderFrames(e, 1024) {
		if v != 0 {
			t.Fatalf("sample %d = %v, want silence", i, v)
		}
	}
}

func TestRenderKeepsInvariants(t *testing.T) {
	e := engine.New(engine.Config{SampleRate: 44100, NoiseSeed: 99})
	notes := []int{36, 38, 43, 47, 50, 37, 39, 56, 49, 46, 42}
	buf := make(livetechno.AudioBuffer, 64)
	for block := 0; block < 2000; block++ {
		switch block % 7 {
		case 0:
			e.HandleEvent(livetechno.NoteOn{Machine: livetechno.RD9, Note: notes[block%len(notes)], Velocity: 127})
		case 1:
			e.HandleEvent(livetechno.NoteOn{Machine: livetechno.TD3, Note: 24 + block%80, Velocity: 100})
		case 3:
			e.HandleEvent(livetechno.SetParam{Machine: livetechno.TD3, Param: engine.ParamResonance, Value: float64(block%11) / 10})
			e.HandleEvent(livetechno.SetParam{Machine: livetechno.TD3, Param: engine.ParamCutoff, Value: float64(block%5) / 4})
		case 5:
			e.HandleEvent(livetechno.NoteOff{Machine: livetechno.TD3})
			e.HandleEvent(livetechno.NoteOff{Machine: livetechno.RD9, Note: notes[(block+3)%len(notes)]})
		}
		e.Render(buf)
		for i, v := range buf {
			if math.IsNaN(float64(v)) || v < -1 || v > 1 {
				t.Fatalf("block %d sample %d = %v", block, i, v)
			}
		}
		for slot := 0; slot < engine.NumDrums; slot++ {
			s := e.Drum(slot)
			if s.Phase < 0 || s.Phase >= 1 || s.Envelope < 0 || s.Envelope > 1 {
				t.Fatalf("block %d slot %d out of range: %+v", block, slot, s)
			}
		}
		s := e.Bass()
		if s.Phase < 0 || s.Phase >= 1 || s.Envelope < 0 || s.Envelope > 1 || s.SlidePhase < 0 || s.SlidePhase > 1 {
			t.Fatalf("block %d bass out of range: %+v", block, s)
		}
		if math.IsNaN(s.FilterZ1) || math.IsInf(s.FilterZ1, 0) || math.IsNaN(s.FilterZ2) || math.IsInf(s.FilterZ2, 0) {
			t.Fatalf("block %d filter state diverged: %+v", block, s)
		}
	}
	if got := e.Time(); got != 2000*64 {
		t.Errorf("Time() = %d, want %d", got, 2000*64)
	}
}

func TestLowSampleRateStaysFinite(t *testing.T) {
	for _, sr := range []int{1, 30, 39, 41} {
		e := engine.New(engine.Config{SampleRate: sr})
		e.HandleEvent(livetechno.SetParam{Machine: livetechno.TD3, Param: engine.ParamResonance, Value: 1})
		e.HandleEvent(livetechno.NoteOn{Machine: livetechno.TD3, Note: 48, Velocity: 127})
		e.HandleEvent(livetechno.NoteOn{Machine: livetechno.RD9, Note: 36, Velocity: 127})
		for i, v := range renderFrames(e, 2000) {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				t.Fatalf("sr=%d: non-finite output %v at sample %d", sr, v, i)
			}
		}
		if s := e.Bass(); math.IsInf(s.FilterZ1, 0) || math.IsInf(s.FilterZ2, 0) || math.IsNaN(s.FilterZ1) || math.IsNaN(s.FilterZ2) {
			t.Fatalf("sr=%d: filter state diverged: %+v", sr, s)
		}
	}
}

func TestDrumOutsideKit(t *testing.T) {
	e := engine.New(engine.Config{SampleRate: 44100})
	e.HandleEvent(livetechno.NoteOn{Machine: livetechno.RD9, Note: 36, Velocity: 127})
	for _, slot := range []int{-1, engine.NumDrums, 100} {
		if got := e.Drum(slot); got != (engine.DrumState{}) {
			t.Fatalf("Drum(%d) = %+v, expected the zero state", slot, got)
		}
	}
}

func TestInitResetsState(t *testing.T) {
	e := engine.New(engine.Config{SampleRate: 44100})
	e.HandleEvent(livetechno.NoteOn{Machine: livetechno.TD3, Note: 40, Velocity: 127})
	e.HandleEvent(livetechno.NoteOn{Machine: livetechno.RD9, Note: 42, Velocity: 127})
	renderFrames(e, 300)
	e.Init(48000)
	if e.SampleRate() != 48000 || e.Time() != 0 {
		t.Errorf("after Init: rate %d time %d", e.SampleRate(), e.Time())
	}
	if s := e.Bass(); s.Active || s.Envelope != 0 || s.Phase != 0 || s.FilterZ1 != 0 {
		t.Errorf("bass not reset: %+v", s)
	}
	if s := e.Drum(engine.SlotCH); s != (engine.DrumState{}) {
		t.Errorf("closed hat not reset: %+v", s)
	}
}

func TestDeterministicRender(t *testing.T) {
	render := func() livetechno.AudioBuffer {
		e := engine.New(engine.Config{SampleRate: 44100, NoiseSeed: 5})
		e.HandleEvent(livetechno.NoteOn{Machine: livetechno.RD9, Note: 38, Velocity: 127})
		e.HandleEvent(livetechno.NoteOn{Machine: livetechno.TD3, Note: 36, Velocity: 127})
		return renderFrames(e, 4096)
	}
	a, b := render(), render()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("renders differ at sample %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestRenderDoesNotAllocate(t *testing.T) {
	e := engine.New(engine.Config{SampleRate: 44100})
	buf := make(livetechno.AudioBuffer, 256)
	var on livetechno.Event = livetechno.NoteOn{Machine: livetechno.TD3, Note: 50, Velocity: 100}
	allocs := testing.AllocsPerRun(100, func() {
		e.HandleEvent(on)
		e.Render(buf)
	})
	if allocs != 0 {
		t.Errorf("HandleEvent+Render allocated %v times per run", allocs)
	}
}

func TestBassParams(t *testing.T) {
	p := engine.DefaultBassParams
	for _, name := range engine.ParamNames {
		if !p.Set(name, 2) {
			t.Fatalf("could not set %v", name)
		}
		if v, ok := p.Get(name); !ok || v != 1 {
			t.Fatalf("%v: got %v, expected the value clamped to 1", name, v)
		}
	}
	if p.Set("volume", 0.5) {
		t.Fatalf("unknown knob accepted")
	}
	if _, ok := p.Get("volume"); ok {
		t.Fatalf("unknown knob returned a value")
	}
	if p.Set(engine.ParamCutoff, math.NaN()) {
		t.Fatalf("NaN accepted")
	}
}
