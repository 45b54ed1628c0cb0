package tracker

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/livetechno/livetechno"
)

// ReadSong decodes and validates a song. JSON is tried first; anything else
// is parsed as YAML.
func ReadSong(r io.Reader) (*livetechno.Song, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read song: %w", err)
	}
	var song livetechno.Song
	if errJSON := json.Unmarshal(b, &song); errJSON != nil {
		song = livetechno.Song{}
		if errYaml := yaml.Unmarshal(b, &song); errYaml != nil {
			return nil, fmt.Errorf("the song could not be parsed as .json (%v) or .yml (%v)", errJSON, errYaml)
		}
	}
	if err := song.Validate(); err != nil {
		return nil, fmt.Errorf("invalid song: %w", err)
	}
	return &song, nil
}

func ReadSongFile(filename string) (*livetechno.Song, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open song: %w", err)
	}
	defer f.Close()
	song, err := ReadSong(f)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	return song, nil
}

// WriteSong encodes the song as JSON if the extension is ".json", and as YAML
// otherwise.
func WriteSong(w io.Writer, song *livetechno.Song, extension string) error {
	var contents []byte
	var err error
	if extension == ".json" {
		contents, err = json.Marshal(song)
	} else {
		contents, err = yaml.Marshal(song)
	}
	if err != nil {
		return fmt.Errorf("could not marshal song: %w", err)
	}
	if _, err := w.Write(contents); err != nil {
		return fmt.Errorf("could not write song: %w", err)
	}
	return nil
}

func WriteSongFile(filename string, song *livetechno.Song) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create song file: %w", err)
	}
	if err := WriteSong(f, song, filepath.Ext(filename)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
