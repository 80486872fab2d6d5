package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dubber/internal/dubbing"
	"dubber/internal/language"
	"dubber/internal/services"
)

// CommandRunner executes an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Service transcribes audio files with WhisperX.
type Service struct {
	cfg     Config
	binary  string
	timeout time.Duration
	run     CommandRunner
}

// NewService creates a WhisperX service. binary defaults to uvx.
func NewService(cfg Config, binary string, timeout time.Duration) *Service {
	if binary == "" {
		binary = UVXCommand
	}
	return &Service{cfg: cfg, binary: binary, timeout: timeout, run: execRunner}
}

// WithCommandRunner replaces process execution (tests).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		s.run = runner
	}
}

// Model returns the configured model name.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	// Torch 2.6 defaults torch.load to weights_only which breaks the bundled
	// checkpoints.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	return cmd.CombinedOutput()
}

// Transcribe runs WhisperX on audio and returns segments ordered by start.
// language may be empty for auto-detection.
func (s *Service) Transcribe(ctx context.Context, audio, workDir, lang string) ([]dubbing.TranscriptSegment, error) {
	if strings.TrimSpace(audio) == "" {
		return nil, services.Wrap(services.ErrTranscription, "transcription", "validate", "audio path required", nil)
	}
	outputDir := filepath.Join(workDir, "transcript")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcription", "prepare", "create output directory", err)
	}

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	output, err := s.run(runCtx, s.binary, s.BuildArgs(audio, outputDir, lang)...)
	if err != nil {
		detail := fmt.Sprintf("%s failed: %s", s.binary, lastLine(output))
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, services.Transient(services.Wrap(services.ErrTranscription, "transcription", "whisperx", "timed out", err))
		}
		return nil, services.Wrap(services.ErrTranscription, "transcription", "whisperx", detail, err)
	}

	base := strings.TrimSuffix(filepath.Base(audio), filepath.Ext(audio))
	segments, err := LoadSegments(filepath.Join(outputDir, base+".json"))
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcription", "parse output", "", err)
	}
	return segments, nil
}

// BuildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) BuildArgs(source, outputDir, lang string) []string {
	args := make([]string, 0, 40)
	if s.cfg.CUDAEnabled {
		args = append(args, "--index-url", CUDAIndexURL, "--extra-index-url", PypiIndexURL)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}
	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
	)

	vad := s.cfg.VADMethod
	if vad == "" {
		vad = VADMethodSilero
	}
	args = append(args, "--vad_method", vad)
	if vad == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}
	if iso := language.ToISO2(lang); iso != "" {
		args = append(args, "--language", iso)
	}
	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

type payload struct {
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Words []struct {
			Word  string   `json:"word"`
			Start *float64 `json:"start"`
			End   *float64 `json:"end"`
		} `json:"words"`
	} `json:"segments"`
}

// LoadSegments reads a WhisperX JSON file. Words without alignment
// timestamps (numerals, symbols) are dropped from the word list.
func LoadSegments(path string) ([]dubbing.TranscriptSegment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSegments(data)
}

// ParseSegments decodes WhisperX JSON output.
func ParseSegments(data []byte) ([]dubbing.TranscriptSegment, error) {
	var raw payload
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	segments := make([]dubbing.TranscriptSegment, 0, len(raw.Segments))
	for _, seg := range raw.Segments {
		out := dubbing.TranscriptSegment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		}
		for _, w := range seg.Words {
			if w.Start == nil || w.End == nil {
				continue
			}
			out.Words = append(out.Words, dubbing.Word{Text: strings.TrimSpace(w.Word), Start: *w.Start, End: *w.End})
		}
		segments = append(segments, out)
	}
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })
	return segments, nil
}

func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no output"
}

// Ready verifies the launcher binary is on PATH.
func (s *Service) Ready() error {
	if _, err := exec.LookPath(s.binary); err != nil {
		return fmt.Errorf("whisperx launcher %q not found", s.binary)
	}
	return nil
}
