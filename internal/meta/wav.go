package meta

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

var errNotWAV = errors.New("not a RIFF/WAVE file")

// WAVDurationSeconds reads the fmt and data chunk headers of a RIFF/WAVE
// file and returns the playing time rounded down to whole seconds. The
// samples themselves are not read.
func WAVDurationSeconds(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return 0, errNotWAV
	}
	if err := d.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("no data chunk: %w", err)
	}
	if err := d.Err(); err != nil {
		return 0, fmt.Errorf("failed to read WAV header: %w", err)
	}
	if d.AvgBytesPerSec == 0 {
		return 0, errors.New("fmt chunk has no byte rate")
	}
	return d.PCMSize / int(d.AvgBytesPerSec), nil
}
