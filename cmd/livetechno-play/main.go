package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/livetechno/livetechno"
	"github.com/livetechno/livetechno/cmd"
	"github.com/livetechno/livetechno/engine"
	"github.com/livetechno/livetechno/oto"
	"github.com/livetechno/livetechno/rpc"
	"github.com/livetechno/livetechno/tracker"
	"github.com/livetechno/livetechno/version"
)

const meterInterval = 100 * time.Millisecond

func main() {
	prefs := tracker.MakePreferences()
	sampleRate := flag.Int("rate", prefs.SampleRate, "Sample rate in Hz.")
	midiInput := flag.String("midi-input", prefs.MIDI.Input, "Connect the MIDI input whose name starts with this prefix.")
	keymapFile := flag.String("keymap", "", "Read the keyboard bindings from this .yml file instead of the built-in ones.")
	loop := flag.Bool("loop", false, "Loop the song until quit.")
	record := flag.String("record", "", "Record the live input to this file: .jsonl for the raw events, .yml or .json for a song quantized to steps.")
	bpm := flag.Int("bpm", 120, "Tempo of the recorded song when no song is played.")
	listen := flag.String("listen", "", "Accept events from other processes on this address, e.g. :31337.")
	help := flag.Bool("h", false, "Show help.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if *help {
		flag.Usage()
		os.Exit(0)
	}
	if prefs.YmlError != nil {
		log.Printf("could not read preferences, using defaults: %v", prefs.YmlError)
	}
	keymapBytes := defaultKeymap
	if *keymapFile != "" {
		var err error
		if keymapBytes, err = os.ReadFile(*keymapFile); err != nil {
			log.Fatalf("could not read keymap: %v", err)
		}
	}
	keymap, err := ReadKeymap(keymapBytes)
	if err != nil {
		log.Fatal(err)
	}
	cfg := prefs.EngineConfig()
	cfg.SampleRate = *sampleRate
	synth := engine.New(cfg)
	keyboard, err := NewKeyboard(keymap, synth.Kit())
	if err != nil {
		log.Fatalf("invalid keymap: %v", err)
	}
	broker := tracker.NewBroker()
	sequencer := tracker.NewSequencer(broker, *sampleRate)
	if flag.NArg() > 0 {
		song, err := tracker.ReadSongFile(flag.Arg(0))
		if err != nil {
			log.Fatal(err)
		}
		if err := sequencer.Load(*song, *loop); err != nil {
			log.Fatal(err)
		}
		*bpm = song.BPM
	}
	var recording tracker.Recording
	if *record != "" {
		sequencer.Record(&recording)
	}
	midiContext := cmd.NewMidiContext(broker, prefs.Routing())
	defer midiContext.Close()
	if *midiInput != "" {
		if input, err := tracker.OpenMIDIInput(midiContext, *midiInput); err != nil {
			log.Printf("MIDI input not connected (%v): %v", midiContext.Support(), err)
		} else {
			log.Printf("MIDI input: %v", input)
		}
	}
	if *listen != "" {
		l, err := rpc.Receiver(*listen, broker.ToSequencer)
		if err != nil {
			log.Fatal(err)
		}
		defer l.Close()
		log.Printf("accepting events on %v", l.Addr())
	}
	audioContext, err := oto.NewContext(*sampleRate)
	if err != nil {
		log.Fatal(err)
	}
	defer audioContext.Close()
	printKeymap(os.Stderr, keymap)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go tracker.NewDetector(broker, *sampleRate).Run()
	player := tracker.NewPlayer(broker, synth)
	audioCloser := audioContext.Play(player)
	sequencerDone := make(chan error, 1)
	go func() { sequencerDone <- sequencer.Run(ctx) }()
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			log.Printf("could not put the terminal in raw mode, keys need enter: %v", err)
		} else {
			defer term.Restore(fd, oldState)
		}
	}
	go readKeys(os.Stdin, keyboard, broker, stop)
	meter(ctx, broker, *sampleRate)

	<-sequencerDone
	// let the release reach the player before the device stops
	time.Sleep(2 * meterInterval)
	audioCloser.Close()
	broker.CloseDetector <- struct{}{}
	tracker.TimeoutReceive(broker.FinishedDetector, time.Second)
	fmt.Fprint(os.Stderr, "\r\n")
	if *record != "" {
		if err := saveRecording(*record, &recording, *bpm); err != nil {
			fmt.Fprintf(os.Stderr, "could not save the recording: %v\r\n", err)
		}
	}
}

func saveRecording(filename string, r *tracker.Recording, bpm int) error {
	if filepath.Ext(filename) == ".jsonl" {
		f, err := os.Create(filename)
		if err != nil {
			return err
		}
		if err := livetechno.EncodeEvents(f, r.Events); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	song, err := r.Song(bpm, livetechno.DefaultStepsPerBeat)
	if err != nil {
		return err
	}
	return tracker.WriteSongFile(filename, &song)
}

// readKeys sends the events of key presses to the sequencer until the input
// ends or the quit key is pressed.
func readKeys(r io.Reader, k *Keyboard, broker *tracker.Broker, quit func()) {
	in := bufio.NewReader(r)
	for {
		key, _, err := in.ReadRune()
		if err != nil {
			return
		}
		events, q := k.Press(key)
		for _, ev := range events {
			if !tracker.TrySend(broker.ToSequencer, ev) {
				break
			}
		}
		if q {
			quit()
			return
		}
	}
}

// meter prints the play time and the levels on one line until ctx is done.
func meter(ctx context.Context, broker *tracker.Broker, sampleRate int) {
	ticker := time.NewTicker(meterInterval)
	defer ticker.Stop()
	level := tracker.DetectorResult{Peak: tracker.MinDecibel, MaxPeak: tracker.MinDecibel, RMS: tracker.MinDecibel}
	var frames, dropped int64
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-broker.ToModel:
			if msg.HasDetectorResult {
				level = msg.DetectorResult
			}
			if msg.HasPlayerStatus {
				frames, dropped = msg.Frames, msg.Dropped
			}
		case <-ticker.C:
			seconds := frames / int64(sampleRate)
			fmt.Fprintf(os.Stderr, "\r%02d:%02d  peak %6.1f dB  rms %6.1f dB  max %6.1f dB", seconds/60, seconds%60, level.Peak, level.RMS, level.MaxPeak)
			if dropped > 0 {
				fmt.Fprintf(os.Stderr, "  dropped %d", dropped)
			}
		}
	}
}

func printKeymap(w io.Writer, k Keymap) {
	drumKeys := slices.Sorted(maps.Keys(k.Drums))
	var drums []string
	for _, key := range drumKeys {
		drums = append(drums, key+" "+k.Drums[key])
	}
	bassKeys := slices.SortedFunc(maps.Keys(k.Bass), func(a, b string) int { return k.Bass[a] - k.Bass[b] })
	var knobs []string
	for _, param := range slices.Sorted(maps.Keys(k.Knobs)) {
		knobs = append(knobs, fmt.Sprintf("%v %v/%v", param, k.Knobs[param].Down, k.Knobs[param].Up))
	}
	fmt.Fprintf(w, "rd9:   %v\n", strings.Join(drums, "  "))
	fmt.Fprintf(w, "td3:   %v  release %q\n", strings.Join(bassKeys, ""), k.Release)
	fmt.Fprintf(w, "knobs: %v\n", strings.Join(knobs, "  "))
	fmt.Fprintf(w, "quit:  %v\n", k.Quit)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "livetechno live player: plays the RD9 and TD3 from the keyboard and MIDI, optionally over a song.\nUsage: %s [flags] [song.yml]\n", os.Args[0])
	flag.PrintDefaults()
}
