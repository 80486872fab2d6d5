package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"dubber/internal/config"
	"dubber/internal/dubbing"
	"dubber/internal/fileutil"
	"dubber/internal/services"
)

var videoExtensions = []string{".mp4", ".webm", ".mkv", ".mov", ".m4a", ".mp3", ".wav", ".opus"}

// Runner executes a command and returns combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Acquirer fetches job sources.
type Acquirer struct {
	binary  string
	format  string
	timeout time.Duration
	run     Runner
}

// New constructs an Acquirer from the download section.
func New(cfg config.Download) *Acquirer {
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Acquirer{
		binary:  binary,
		format:  cfg.Format,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec
		},
	}
}

// WithRunner replaces process execution (tests).
func (a *Acquirer) WithRunner(run Runner) {
	if run != nil {
		a.run = run
	}
}

// IsURL reports whether source is an http(s) URL with a host.
func IsURL(source string) bool {
	u, err := url.Parse(strings.TrimSpace(source))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Acquire places the source media inside dir.
func (a *Acquirer) Acquire(ctx context.Context, source, dir string) (dubbing.Media, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return dubbing.Media{}, services.Wrap(services.ErrSourceUnavailable, "download", "prepare", "create source directory", err)
	}
	if IsURL(source) {
		return a.download(ctx, source, dir)
	}
	return copyLocal(source, dir)
}

func (a *Acquirer) download(ctx context.Context, source, dir string) (dubbing.Media, error) {
	runCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	output, err := a.run(runCtx, a.binary, a.BuildArgs(source, dir)...)
	if err != nil {
		if ctx.Err() != nil {
			return dubbing.Media{}, ctx.Err()
		}
		detail := fmt.Sprintf("yt-dlp failed: %v\nOutput: %s", err, strings.TrimSpace(string(output)))
		wrapped := services.Wrap(services.ErrSourceUnavailable, "download", "yt-dlp", detail, nil)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return dubbing.Media{}, services.Transient(wrapped)
		}
		return dubbing.Media{}, wrapped
	}
	path, err := findDownloaded(dir)
	if err != nil {
		return dubbing.Media{}, services.Wrap(services.ErrSourceUnavailable, "download", "locate output", "", err)
	}
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return dubbing.Media{Path: path, Title: title, Remote: true}, nil
}

// BuildArgs returns the yt-dlp arguments for downloading source into dir.
func (a *Acquirer) BuildArgs(source, dir string) []string {
	args := []string{"--no-playlist", "--no-warnings", "--quiet", "--restrict-filenames"}
	if a.format != "" {
		args = append(args, "--format", a.format)
	}
	return append(args, "--output", filepath.Join(dir, "%(title)s.%(ext)s"), source)
}

func findDownloaded(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if slices.Contains(videoExtensions, strings.ToLower(filepath.Ext(entry.Name()))) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", errors.New("downloaded media file not found")
}

func copyLocal(source, dir string) (dubbing.Media, error) {
	path, err := config.ExpandPath(source)
	if err != nil {
		return dubbing.Media{}, services.Wrap(services.ErrSourceUnavailable, "download", "resolve path", source, err)
	}
	if !fileutil.IsRegularFile(path) {
		return dubbing.Media{}, services.Wrap(services.ErrSourceUnavailable, "download", "stat source",
			fmt.Sprintf("%s is not a readable file", path), nil)
	}
	dst := filepath.Join(dir, filepath.Base(path))
	if err := fileutil.CopyFile(path, dst); err != nil {
		return dubbing.Media{}, services.Wrap(services.ErrSourceUnavailable, "download", "copy source", path, err)
	}
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return dubbing.Media{Path: dst, Title: title}, nil
}

// Ready verifies the yt-dlp binary is on PATH.
func (a *Acquirer) Ready() error {
	if _, err := exec.LookPath(a.binary); err != nil {
		return fmt.Errorf("yt-dlp binary %q not found", a.binary)
	}
	return nil
}
