package main

import (
	"embed"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/livetechno/livetechno"
	"github.com/livetechno/livetechno/engine"
	"github.com/livetechno/livetechno/oto"
	"github.com/livetechno/livetechno/tracker"
	"github.com/livetechno/livetechno/version"
)

//go:embed report.tmpl
var templateFS embed.FS

// tail is how long event files keep rendering after their last event, in
// seconds
const tail = 2

type (
	report struct {
		File       string
		SampleRate int
		BlockSize  int
		Frames     int
		Seconds    float64
		Events     int
		Song       *livetechno.Song
		Peak, RMS  tracker.Decibel
		Drums      []drumReport
		BassNotes  int
		Slides     int
		Params     map[string]float64
	}

	drumReport struct {
		Name, Kind string
		Note, Hits int
	}
)

func main() {
	prefs := tracker.MakePreferences()
	stdout := flag.Bool("s", false, "Do not write files; write to standard output instead.")
	help := flag.Bool("h", false, "Show help.")
	directory := flag.String("o", "", "Directory where to output all files. The directory and its parents are created if needed. By default, everything is placed in the working directory.")
	play := flag.Bool("p", false, "Play the rendered audio (default behaviour when no other output is defined).")
	rawOut := flag.Bool("r", false, "Output the rendered audio as .raw file. By default, saves mono float32 buffer to disk.")
	wavOut := flag.Bool("w", false, "Output the rendered audio as .wav file. By default, saves mono float32 buffer to disk.")
	pcm := flag.Bool("c", false, "Convert audio to 16-bit signed PCM when outputting.")
	printReport := flag.Bool("i", false, "Print information about the rendered audio.")
	sampleRate := flag.Int("rate", prefs.SampleRate, "Sample rate in Hz.")
	blockSize := flag.Int("b", prefs.BlockSize, "Render block size in samples.")
	slideTime := flag.Float64("slide", prefs.SlideTime, "TD3 glide time in seconds. 0 uses a fixed glide of 1000 samples.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	if prefs.YmlError != nil {
		fmt.Fprintf(os.Stderr, "could not read preferences, using defaults: %v\n", prefs.YmlError)
	}
	if !*rawOut && !*wavOut && !*printReport {
		*play = true // if the user gives nothing to output, then the default behaviour is just to play the file
	}
	tmpl, err := template.New("base").Funcs(sprig.TxtFuncMap()).ParseFS(templateFS, "report.tmpl")
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not parse the report template: %v\n", err)
		os.Exit(1)
	}
	var audioContext livetechno.AudioContext
	if *play {
		var err error
		audioContext, err = oto.NewContext(*sampleRate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not acquire oto AudioContext: %v\n", err)
			os.Exit(1)
		}
		defer audioContext.Close()
	}
	process := func(filename string) error {
		output := func(extension string, contents []byte) error {
			if *stdout {
				_, err := os.Stdout.Write(contents)
				return err
			}
			_, name := filepath.Split(filename)
			dir := *directory
			if dir == "" {
				var err error
				dir, err = os.Getwd()
				if err != nil {
					return fmt.Errorf("could not get working directory, specify the output directory explicitly: %v", err)
				}
			}
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return fmt.Errorf("could not create output directory %v: %v", dir, err)
			}
			name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
			f := filepath.Join(dir, name)
			if err := os.WriteFile(f, contents, 0644); err != nil {
				return fmt.Errorf("could not write file %v: %v", f, err)
			}
			return nil
		}
		events, song, length, err := load(filename, *sampleRate)
		if err != nil {
			return err
		}
		cfg := engine.Config{SampleRate: *sampleRate, SlideTime: *slideTime}
		buffer, err := livetechno.Play(engine.New(cfg), events, length, *blockSize)
		if err != nil {
			return fmt.Errorf("livetechno.Play failed: %v", err)
		}
		if *play {
			playWaiter := audioContext.Play(buffer.Source())
			defer playWaiter.Wait()
		}
		if *rawOut {
			raw, err := buffer.Raw(*pcm)
			if err != nil {
				return fmt.Errorf("could not generate .raw file: %v", err)
			}
			if err := output(".raw", raw); err != nil {
				return fmt.Errorf("error outputting .raw file: %v", err)
			}
		}
		if *wavOut {
			wav, err := buffer.Wav(*sampleRate, *pcm)
			if err != nil {
				return fmt.Errorf("could not generate .wav file: %v", err)
			}
			if err := output(".wav", wav); err != nil {
				return fmt.Errorf("error outputting .wav file: %v", err)
			}
		}
		if *printReport {
			r := makeReport(filename, events, song, buffer, *sampleRate, *blockSize)
			if err := tmpl.ExecuteTemplate(os.Stderr, "report", r); err != nil {
				return fmt.Errorf("could not print report: %v", err)
			}
		}
		return nil
	}
	retval := 0
	for _, param := range flag.Args() {
		if info, err := os.Stat(param); err == nil && info.IsDir() {
			var files []string
			for _, pattern := range []string{"*.yml", "*.json", "*.jsonl"} {
				matches, err := filepath.Glob(filepath.Join(param, pattern))
				if err != nil {
					fmt.Fprintf(os.Stderr, "could not glob the path %v for %v files: %v\n", param, pattern, err)
					retval = 1
					continue
				}
				files = append(files, matches...)
			}
			for _, file := range files {
				if err := process(file); err != nil {
					fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", file, err)
					retval = 1
				}
			}
		} else {
			if err := process(param); err != nil {
				fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", param, err)
				retval = 1
			}
		}
	}
	os.Exit(retval)
}

// load reads either a song (.yml or .json) or a list of timed events (.jsonl)
// and returns the events and the number of frames to render.
func load(filename string, sampleRate int) (events []livetechno.TimedEvent, song *livetechno.Song, length int, err error) {
	if filepath.Ext(filename) == ".jsonl" {
		f, err := os.Open(filename)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("could not open file %v: %v", filename, err)
		}
		defer f.Close()
		events, err := livetechno.DecodeEvents(f)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("could not parse events: %w", err)
		}
		length = tail * sampleRate
		if len(events) > 0 {
			length += events[len(events)-1].Frame
		}
		return events, nil, length, nil
	}
	song, err = tracker.ReadSongFile(filename)
	if err != nil {
		return nil, nil, 0, err
	}
	return song.Events(sampleRate), song, song.LengthInFrames(sampleRate), nil
}

func makeReport(filename string, events []livetechno.TimedEvent, song *livetechno.Song, buffer livetechno.AudioBuffer, sampleRate, blockSize int) report {
	caser := cases.Title(language.English)
	r := report{
		File:       filepath.Base(filename),
		SampleRate: sampleRate,
		BlockSize:  blockSize,
		Frames:     len(buffer),
		Seconds:    float64(len(buffer)) / float64(sampleRate),
		Events:     len(events),
		Song:       song,
		Params:     map[string]float64{},
	}
	kit := &engine.DefaultKit
	hits := make([]int, len(kit))
	bassHeld := false
	defaults := engine.DefaultBassParams
	for _, name := range engine.ParamNames {
		r.Params[name], _ = defaults.Get(name)
	}
	for _, te := range events {
		switch ev := te.Event.(type) {
		case livetechno.NoteOn:
			if ev.Machine == livetechno.RD9 {
				if slot := kit.Slot(ev.Note); slot >= 0 {
					hits[slot]++
				}
				continue
			}
			r.BassNotes++
			if bassHeld {
				r.Slides++
			}
			bassHeld = true
		case livetechno.NoteOff:
			if ev.Machine == livetechno.TD3 {
				bassHeld = false
			}
		case livetechno.SetParam:
			if _, ok := r.Params[ev.Param]; ok {
				r.Params[ev.Param] = min(max(ev.Value, 0), 1)
			}
		}
	}
	for slot, s := range kit {
		r.Drums = append(r.Drums, drumReport{Name: s.Name, Kind: caser.String(s.Class.String()), Note: s.Note, Hits: hits[slot]})
	}
	r.Peak, r.RMS = measure(buffer, sampleRate)
	return r
}

// measure runs the buffer through a level detector and returns the peak and
// the loudest momentary RMS.
func measure(buffer livetechno.AudioBuffer, sampleRate int) (peak, rms tracker.Decibel) {
	broker := tracker.NewBroker()
	go tracker.NewDetector(broker, sampleRate).Run()
	defer func() { broker.CloseDetector <- struct{}{} }()
	done := make(chan struct{})
	results := make(chan tracker.DetectorResult)
	go func() {
		peak, rms := tracker.MinDecibel, tracker.MinDecibel
		collect := func(msg tracker.MsgToModel) {
			if msg.HasDetectorResult {
				peak = max(peak, msg.DetectorResult.MaxPeak)
				rms = max(rms, msg.DetectorResult.RMS)
			}
		}
		for {
			select {
			case msg := <-broker.ToModel:
				collect(msg)
			case <-done:
				for {
					select {
					case msg := <-broker.ToModel:
						collect(msg)
					default:
						results <- tracker.DetectorResult{MaxPeak: peak, RMS: rms}
						return
					}
				}
			}
		}
	}()
	for start := 0; start < len(buffer); start += 4096 {
		buf := broker.GetAudioBuffer()
		*buf = append(*buf, buffer[start:min(start+4096, len(buffer))]...)
		broker.ToDetector <- tracker.MsgToDetector{Data: buf}
	}
	broker.ToDetector <- tracker.MsgToDetector{Data: func() { close(done) }}
	r := <-results
	return r.MaxPeak, r.RMS
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "livetechno command line utility for rendering .yml/.json songs and .jsonl event files.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
