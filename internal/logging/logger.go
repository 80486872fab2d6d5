package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"

	"dubber/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string // "console" (default) or "json"
	// OutputPaths accepts "stdout", "stderr" or file paths. Files rotate
	// according to Rotation.
	OutputPaths []string
	Rotation    Rotation
	Color       bool
	// StageLevels maps stage names to minimum levels applied by ForStage.
	StageLevels map[string]string
}

type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New builds a logger. Source locations are attached at debug level.
func New(opts Options) (*slog.Logger, error) {
	base := parseLevel(opts.Level)
	perStage := make(map[string]slog.Level, len(opts.StageLevels))
	floor := base
	for stage, value := range opts.StageLevels {
		if key := normalizeStage(stage); key != "" {
			lvl := parseLevel(value)
			perStage[key] = lvl
			floor = min(floor, lvl)
		}
	}

	out, err := openOutputs(opts.OutputPaths, opts.Rotation)
	if err != nil {
		return nil, err
	}
	withSource := base <= slog.LevelDebug

	var h slog.Handler
	switch f := strings.ToLower(strings.TrimSpace(opts.Format)); f {
	case "", "console":
		h = newPrettyHandler(out, floor, withSource, opts.Color)
	case "json":
		h = newJSONHandler(out, floor, withSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
	if len(perStage) > 0 {
		h = &stageGate{next: h, min: base, perStage: perStage}
	}
	return slog.New(h), nil
}

// NewFromConfig logs to stdout and, with logging.file set, to a rotated
// dubber.log in the log directory. Color is used only for a lone terminal.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info"})
	}
	lc := cfg.Logging
	paths := []string{"stdout"}
	if lc.File && cfg.Paths.LogDir != "" {
		paths = append(paths, filepath.Join(cfg.Paths.LogDir, "dubber.log"))
	}
	return New(Options{
		Level:       lc.Level,
		Format:      lc.Format,
		OutputPaths: paths,
		Rotation: Rotation{
			MaxSizeMB:  lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAgeDays: lc.MaxAgeDays,
			Compress:   lc.Compress,
		},
		Color:       len(paths) == 1 && isatty.IsTerminal(os.Stdout.Fd()),
		StageLevels: lc.StageOverrides,
	})
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func openOutputs(paths []string, rot Rotation) (io.Writer, error) {
	var (
		writers []io.Writer
		seen    []string
	)
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" || slices.Contains(seen, p) {
			continue
		}
		seen = append(seen, p)
		switch p {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return nil, fmt.Errorf("create log directory for %s: %w", p, err)
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   p,
				MaxSize:    rot.MaxSizeMB,
				MaxBackups: rot.MaxBackups,
				MaxAge:     rot.MaxAgeDays,
				Compress:   rot.Compress,
			})
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}
