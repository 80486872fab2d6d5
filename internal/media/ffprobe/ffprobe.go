package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

var probeArgs = []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json"}

// Result is what `ffprobe -show_format -show_streams -of json` prints.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Tags       struct {
		Language string `json:"language"`
	} `json:"tags"`
}

// Format is the container section. ffprobe prints numbers as strings here.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Inspect probes path with binary ("ffprobe" when empty).
func Inspect(ctx context.Context, binary, path string) (Result, error) {
	if path = strings.TrimSpace(path); path == "" {
		return Result{}, errors.New("ffprobe: empty path")
	}
	if binary = strings.TrimSpace(binary); binary == "" {
		binary = "ffprobe"
	}
	args := append(append([]string{}, probeArgs...), "--", path)
	var out, errOut bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Stdout, cmd.Stderr = &out, &errOut
	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(errOut.String()))
	}
	return Parse(out.Bytes())
}

func Parse(data []byte) (Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return r, nil
}

func (r Result) streamsOf(kind string) (n int) {
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, kind) {
			n++
		}
	}
	return n
}

func (r Result) VideoStreamCount() int    { return r.streamsOf("video") }
func (r Result) AudioStreamCount() int    { return r.streamsOf("audio") }
func (r Result) SubtitleStreamCount() int { return r.streamsOf("subtitle") }
func (r Result) HasVideo() bool           { return r.streamsOf("video") > 0 }

// DurationSeconds prefers the container duration and falls back to the
// longest stream. 0 means unknown.
func (r Result) DurationSeconds() float64 {
	if d := number(r.Format.Duration); d > 0 {
		return d
	}
	longest := 0.0
	for _, s := range r.Streams {
		longest = math.Max(longest, number(s.Duration))
	}
	return longest
}

func (r Result) SizeBytes() int64 {
	return int64(math.Max(0, number(r.Format.Size)))
}

// number parses ffprobe's stringly numbers; "N/A" and garbage become 0.
func number(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
