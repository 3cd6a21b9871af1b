package meta

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dhowden/tag"

	"github.com/franz/ridgemont-catalog/internal/report"
	"github.com/franz/ridgemont-catalog/internal/util"
)

// Tag defaults used when a file carries no usable tags
const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// Record is the normalized metadata of one audio file. Zero numeric
// fields mean unknown.
type Record struct {
	Title           string
	Artist          string
	Album           string
	Year            int
	Genre           string
	DurationSeconds int
	BPM             int
}

// Extractor reads embedded tags and container facts from audio files.
// Missing or malformed tags never fail extraction; the affected field
// keeps its default.
type Extractor struct {
	probe  ProbeFunc
	logger *report.EventLogger
}

// Config holds extractor configuration
type Config struct {
	// Probe reads container facts; nil means RunFFprobe
	Probe  ProbeFunc
	Logger *report.EventLogger
}

// New creates a new metadata extractor
func New(cfg *Config) *Extractor {
	if cfg == nil {
		cfg = &Config{}
	}
	probe := cfg.Probe
	if probe == nil {
		probe = RunFFprobe
	}
	return &Extractor{probe: probe, logger: cfg.Logger}
}

// Extract builds a Record for path. It always returns a record.
func (e *Extractor) Extract(ctx context.Context, path string) *Record {
	util.DebugLog("Extracting metadata: %s", path)

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	rec := &Record{
		Title:  stem,
		Artist: UnknownArtist,
		Album:  UnknownAlbum,
	}

	var degraded []string
	if m, err := readTags(path); err != nil {
		util.DebugLog("No readable tags in %s: %v", path, err)
	} else {
		degraded = append(degraded, e.applyTags(rec, m)...)
	}

	info, err := e.probe(ctx, path)
	if err != nil {
		util.DebugLog("Probe skipped for %s: %v", path, err)
	}
	degraded = append(degraded, e.applyProbe(rec, info, stem)...)

	if rec.DurationSeconds == 0 && IsWAV(path) {
		field("wav_duration", &degraded, func() {
			if d, err := WAVDurationSeconds(path); err == nil {
				rec.DurationSeconds = d
			}
		})
	}

	if len(degraded) > 0 {
		util.WarnLog("Metadata fields defaulted for %s: %s", filepath.Base(path), strings.Join(degraded, ","))
		e.logger.Log(&report.Event{
			Timestamp: time.Now(),
			Level:     report.LevelWarning,
			Event:     report.EventMetadata,
			SrcPath:   path,
			Reason:    "defaulted: " + strings.Join(degraded, ","),
		})
	}
	return rec
}

func readTags(path string) (tag.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}
	return m, nil
}

// applyTags copies each tag on its own so a panic in one accessor only
// loses that field. It returns the names of fields that failed.
func (e *Extractor) applyTags(rec *Record, m tag.Metadata) []string {
	var failed []string
	field("title", &failed, func() {
		if v := strings.TrimSpace(m.Title()); v != "" {
			rec.Title = v
		}
	})
	field("artist", &failed, func() {
		if v := strings.TrimSpace(m.Artist()); v != "" {
			rec.Artist = v
		} else if v := strings.TrimSpace(m.AlbumArtist()); v != "" {
			rec.Artist = v
		}
	})
	field("album", &failed, func() {
		if v := strings.TrimSpace(m.Album()); v != "" {
			rec.Album = v
		}
	})
	field("year", &failed, func() {
		if y := m.Year(); y > 0 {
			rec.Year = y
		}
	})
	field("genre", &failed, func() {
		rec.Genre = strings.TrimSpace(m.Genre())
	})
	field("bpm", &failed, func() {
		raw := m.Raw()
		for _, key := range []string{"TBPM", "TBP", "tmpo", "BPM", "bpm"} {
			if bpm, ok := parseBPM(raw[key]); ok {
				rec.BPM = bpm
				return
			}
		}
	})
	return failed
}

// applyProbe fills the duration and any tags the tag reader could not see,
// such as INFO chunks in WAV files
func (e *Extractor) applyProbe(rec *Record, info *ProbeInfo, stem string) []string {
	if info == nil {
		return nil
	}
	var failed []string
	field("duration", &failed, func() {
		rec.DurationSeconds = info.DurationSeconds()
	})
	field("probe_tags", &failed, func() {
		if rec.Artist == UnknownArtist {
			if v := info.Tag("artist", "ARTIST", "album_artist", "IART"); v != "" {
				rec.Artist = v
			}
		}
		if rec.Album == UnknownAlbum {
			if v := info.Tag("album", "ALBUM", "IPRD"); v != "" {
				rec.Album = v
			}
		}
		if v := info.Tag("title", "TITLE", "INAM"); v != "" && rec.Title == stem {
			rec.Title = v
		}
		if rec.Genre == "" {
			rec.Genre = info.Tag("genre", "GENRE", "IGNR")
		}
		if rec.BPM == 0 {
			if bpm, ok := parseBPM(info.Tag("TBPM", "bpm", "BPM")); ok {
				rec.BPM = bpm
			}
		}
	})
	return failed
}

// field runs fn and converts a panic into a recorded failure
func field(name string, failed *[]string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			util.DebugLog("Recovered while reading %s: %v", name, r)
			*failed = append(*failed, name)
		}
	}()
	fn()
}

func parseBPM(v interface{}) (int, bool) {
	switch b := v.(type) {
	case int:
		return b, b > 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
		if err != nil || f <= 0 {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}
