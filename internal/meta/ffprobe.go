package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/franz/ridgemont-catalog/internal/util"
)

// ProbeInfo is the subset of ffprobe's JSON output the extractor reads
type ProbeInfo struct {
	Streams []ProbeStream `json:"streams"`
	Format  *ProbeFormat  `json:"format"`
}

// IntOrString accepts both JSON numbers and numeric strings. "N/A" and
// unparsable strings decode as zero.
type IntOrString struct {
	Value int
}

// UnmarshalJSON implements json.Unmarshaler
func (i *IntOrString) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		i.Value = n
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	i.Value, _ = strconv.Atoi(strings.TrimSpace(s))
	return nil
}

// ProbeStream is one stream of the probed file
type ProbeStream struct {
	CodecName  string      `json:"codec_name"`
	CodecType  string      `json:"codec_type"`
	SampleRate IntOrString `json:"sample_rate"`
	Channels   int         `json:"channels"`
	Duration   string      `json:"duration"`
}

// ProbeFormat is the container section of ffprobe's output
type ProbeFormat struct {
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	Tags       map[string]string `json:"tags"`
}

// DurationSeconds returns the container duration, falling back to the
// first audio stream. Fractions are truncated.
func (p *ProbeInfo) DurationSeconds() int {
	if p == nil {
		return 0
	}
	if p.Format != nil {
		if d := parseSeconds(p.Format.Duration); d > 0 {
			return d
		}
	}
	for _, s := range p.Streams {
		if s.CodecType != "" && s.CodecType != "audio" {
			continue
		}
		if d := parseSeconds(s.Duration); d > 0 {
			return d
		}
	}
	return 0
}

// Tag looks a format tag up under each key in turn
func (p *ProbeInfo) Tag(keys ...string) string {
	if p == nil || p.Format == nil {
		return ""
	}
	for _, key := range keys {
		if v, ok := p.Format.Tags[key]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func parseSeconds(s string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return 0
	}
	return int(f)
}

// ProbeFunc inspects an audio file's container
type ProbeFunc func(ctx context.Context, path string) (*ProbeInfo, error)

// ErrProbeUnavailable means ffprobe is not installed
var ErrProbeUnavailable = fmt.Errorf("ffprobe %w", util.ErrNotFound)

// RunFFprobe executes ffprobe and parses its JSON output
func RunFFprobe(ctx context.Context, path string) (*ProbeInfo, error) {
	if !CheckFFprobeAvailable() {
		return nil, ErrProbeUnavailable
	}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe execution failed: %w", err)
	}

	var info ProbeInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &info, nil
}

// CheckFFprobeAvailable reports whether ffprobe is on PATH
func CheckFFprobeAvailable() bool {
	_, err := exec.LookPath("ffprobe")
	return err == nil
}
