package pyannote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"dubber/internal/config"
	"dubber/internal/dubbing"
	"dubber/internal/services"
)

const (
	defaultModel = "pyannote/speaker-diarization-3.1"
	uvxCommand   = "uvx"
	scriptName   = "diarize.py"
)

// Config holds diarization settings.
type Config struct {
	Model       string
	HFToken     string
	MinSpeakers int
	MaxSpeakers int
	CUDAEnabled bool
	Timeout     time.Duration
}

// FromConfig reads the diarization section.
func FromConfig(cfg *config.Config) Config {
	return Config{
		Model:       cfg.Diarization.Model,
		HFToken:     strings.TrimSpace(cfg.Diarization.HuggingFaceToken),
		MinSpeakers: cfg.Diarization.MinSpeakers,
		MaxSpeakers: cfg.Diarization.MaxSpeakers,
		CUDAEnabled: cfg.Transcription.CUDAEnabled,
		Timeout:     time.Duration(cfg.Diarization.TimeoutSeconds) * time.Second,
	}
}

// Runner executes a command with env and returns stdout and stderr.
type Runner func(ctx context.Context, env []string, name string, args ...string) (stdout, stderr []byte, err error)

// Diarizer produces speaker-labelled intervals.
type Diarizer struct {
	cfg    Config
	binary string
	run    Runner
}

// New constructs a Diarizer. binary defaults to uvx.
func New(cfg Config, binary string) *Diarizer {
	if binary == "" {
		binary = uvxCommand
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &Diarizer{cfg: cfg, binary: binary, run: execRunner}
}

// WithRunner replaces process execution (tests).
func (d *Diarizer) WithRunner(run Runner) {
	if run != nil {
		d.run = run
	}
}

func execRunner(ctx context.Context, env []string, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), env...)
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

type output struct {
	Turns []struct {
		Speaker string  `json:"speaker"`
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
	} `json:"turns"`
	Error string `json:"error,omitempty"`
}

// Diarize returns intervals ordered by start. Zero-length turns are dropped.
func (d *Diarizer) Diarize(ctx context.Context, audio, workDir string) ([]dubbing.Interval, error) {
	if d.cfg.HFToken == "" {
		return nil, services.Wrap(services.ErrDiarization, "diarization", "validate",
			"a Hugging Face token is required (diarization.hf_token or HF_TOKEN)", nil)
	}
	scriptPath := filepath.Join(workDir, scriptName)
	if err := os.WriteFile(scriptPath, []byte(diarizeScript), 0o644); err != nil {
		return nil, services.Wrap(services.ErrDiarization, "diarization", "prepare", "write script", err)
	}

	env := []string{"HF_TOKEN=" + d.cfg.HFToken}
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		env = append(env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	runCtx := ctx
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}
	stdout, stderr, err := d.run(runCtx, env, d.binary, d.BuildArgs(scriptPath, audio)...)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, services.Transient(services.Wrap(services.ErrDiarization, "diarization", "pyannote", "timed out", err))
		}
		return nil, services.Wrap(services.ErrDiarization, "diarization", "pyannote", describeFailure(stderr), err)
	}
	intervals, err := ParseOutput(stdout)
	if err != nil {
		return nil, services.Wrap(services.ErrDiarization, "diarization", "parse output", "", err)
	}
	return intervals, nil
}

// BuildArgs returns the uvx arguments for running the diarization script.
func (d *Diarizer) BuildArgs(scriptPath, audio string) []string {
	args := []string{
		"--refresh",
		"--quiet",
		"--with", "pyannote.audio",
		"--with", "numpy",
		"--with", "torchaudio",
		"--with", "soundfile",
		"--with", "omegaconf",
	}
	if d.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", "https://download.pytorch.org/whl/cu128",
			"--extra-index-url", "https://pypi.org/simple",
		)
	}
	args = append(args, "python", scriptPath,
		"--audio", audio,
		"--model", d.cfg.Model,
		"--hf-token", d.cfg.HFToken,
	)
	if d.cfg.MinSpeakers > 0 {
		args = append(args, "--min-speakers", strconv.Itoa(d.cfg.MinSpeakers))
	}
	if d.cfg.MaxSpeakers > 0 {
		args = append(args, "--max-speakers", strconv.Itoa(d.cfg.MaxSpeakers))
	}
	return args
}

// ParseOutput decodes the script's stdout.
func ParseOutput(data []byte) ([]dubbing.Interval, error) {
	var out output
	if err := json.Unmarshal(bytes.TrimSpace(data), &out); err != nil {
		return nil, fmt.Errorf("decode diarization json: %w", err)
	}
	if out.Error != "" {
		return nil, errors.New(out.Error)
	}
	intervals := make([]dubbing.Interval, 0, len(out.Turns))
	for _, turn := range out.Turns {
		if turn.End <= turn.Start || strings.TrimSpace(turn.Speaker) == "" {
			continue
		}
		intervals = append(intervals, dubbing.Interval{Speaker: turn.Speaker, Start: turn.Start, End: turn.End})
	}
	sort.SliceStable(intervals, func(i, j int) bool { return intervals[i].Start < intervals[j].Start })
	return intervals, nil
}

func describeFailure(stderr []byte) string {
	var out output
	if json.Unmarshal(bytes.TrimSpace(stderr), &out) == nil && out.Error != "" {
		return out.Error
	}
	text := strings.TrimSpace(string(stderr))
	if strings.Contains(text, "GatedRepoError") || strings.Contains(text, "401") {
		return "Hugging Face model access denied; accept the terms at https://hf.co/pyannote/speaker-diarization-3.1 and retry"
	}
	if idx := strings.LastIndex(text, "Error:"); idx != -1 {
		return strings.TrimSpace(text[idx:])
	}
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no output"
}

// Ready verifies the launcher is on PATH and a Hugging Face token is set.
func (d *Diarizer) Ready() error {
	if strings.TrimSpace(d.cfg.HFToken) == "" {
		return errors.New("hugging face token not configured (diarization.hf_token or HF_TOKEN)")
	}
	if _, err := exec.LookPath(d.binary); err != nil {
		return fmt.Errorf("pyannote launcher %q not found", d.binary)
	}
	return nil
}
