package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"dubber/internal/config"
	"dubber/internal/media/ffprobe"
	"dubber/internal/services"
)

// Runner executes ffmpeg with a per-command timeout.
type Runner struct {
	Binary       string
	ProbeBinary  string
	Timeout      time.Duration
	AudioCodec   string
	AudioBitrate string
	TrackRate    int
}

// NewRunner builds a Runner from the media configuration section.
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{
		Binary:       cfg.Media.FFmpegBinary,
		ProbeBinary:  cfg.Media.FFprobeBinary,
		Timeout:      time.Duration(cfg.Media.CommandTimeoutSeconds) * time.Second,
		AudioCodec:   cfg.Media.AudioCodec,
		AudioBitrate: cfg.Media.AudioBitrate,
		TrackRate:    cfg.Media.TrackSampleRate,
	}
}

func (r *Runner) binary() string {
	if b := strings.TrimSpace(r.Binary); b != "" {
		return b
	}
	return "ffmpeg"
}

// Ready verifies ffmpeg and ffprobe are on PATH.
func (r *Runner) Ready() error {
	probe := strings.TrimSpace(r.ProbeBinary)
	if probe == "" {
		probe = "ffprobe"
	}
	for _, bin := range []string{r.binary(), probe} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found on PATH", bin)
		}
	}
	return nil
}

// run executes ffmpeg. A per-command timeout expiring is reported as a
// transient failure so callers may retry.
func (r *Runner) run(ctx context.Context, args []string, stdin io.Reader) ([]byte, error) {
	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, r.binary(), args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = stdin
	}
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, services.Transient(fmt.Errorf("ffmpeg timed out after %s", r.Timeout))
		}
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, lastLine(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Probe inspects path with ffprobe under the runner's timeout.
func (r *Runner) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	return ffprobe.Inspect(ctx, r.ProbeBinary, path)
}

// Duration returns the media duration of path in seconds.
func (r *Runner) Duration(ctx context.Context, path string) (float64, error) {
	result, err := r.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	d := result.DurationSeconds()
	if d <= 0 {
		return 0, fmt.Errorf("ffprobe %s: duration unavailable", path)
	}
	return d, nil
}

// ExtractAudio writes the first audio stream of input as mono 16-bit WAV.
func (r *Runner) ExtractAudio(ctx context.Context, input, output string, sampleRate int) error {
	_, err := r.run(ctx, extractArgs(input, output, sampleRate), nil)
	return err
}

// DecodePCM returns duration seconds of path starting at start as mono
// float samples. A non-positive duration decodes to the end of the file.
func (r *Runner) DecodePCM(ctx context.Context, path string, start, duration float64, sampleRate int) ([]float64, error) {
	raw, err := r.run(ctx, decodeArgs(path, start, duration, sampleRate), nil)
	if err != nil {
		return nil, err
	}
	return BytesToSamples(raw), nil
}

// Stretch applies a pitch-preserving tempo change. tempo > 1 shortens.
func (r *Runner) Stretch(ctx context.Context, input, output string, tempo float64, sampleRate int) error {
	_, err := r.run(ctx, stretchArgs(input, output, tempo, sampleRate), nil)
	return err
}

// EncodeTrack encodes mono float samples into output using the configured
// codec.
func (r *Runner) EncodeTrack(ctx context.Context, samples []float64, sampleRate int, output string) error {
	args := encodeArgs(sampleRate, output, r.AudioCodec, r.AudioBitrate)
	_, err := r.run(ctx, args, bytes.NewReader(SamplesToBytes(samples)))
	return err
}

// ReplaceAudio muxes audio into video, copying video and subtitle streams.
func (r *Runner) ReplaceAudio(ctx context.Context, video, audio, output string) error {
	_, err := r.run(ctx, muxArgs(video, audio, output, r.AudioCodec, r.AudioBitrate), nil)
	return err
}

func extractArgs(input, output string, sampleRate int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", input,
		"-vn", "-map", "0:a:0",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		output,
	}
}

func decodeArgs(path string, start, duration float64, sampleRate int) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if start > 0 {
		args = append(args, "-ss", formatSeconds(start))
	}
	if duration > 0 {
		args = append(args, "-t", formatSeconds(duration))
	}
	return append(args,
		"-i", path,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
		"-",
	)
}

func stretchArgs(input, output string, tempo float64, sampleRate int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", input,
		"-filter:a", "atempo=" + strconv.FormatFloat(tempo, 'f', 4, 64),
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		output,
	}
}

func encodeArgs(sampleRate int, output, codec, bitrate string) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "s16le", "-ar", strconv.Itoa(sampleRate), "-ac", "1",
		"-i", "-",
		"-c:a", orDefault(codec, "aac"),
	}
	if bitrate != "" {
		args = append(args, "-b:a", bitrate)
	}
	return append(args, output)
}

func muxArgs(video, audio, output, codec, bitrate string) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", video,
		"-i", audio,
		"-map", "0:v",
		"-map", "1:a",
		"-map", "0:s?",
		"-c", "copy",
		"-c:a", orDefault(codec, "aac"),
	}
	if bitrate != "" {
		args = append(args, "-b:a", bitrate)
	}
	return append(args, "-shortest", output)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no output"
}
