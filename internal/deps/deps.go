// Package deps reports whether the external tools the pipeline shells out to
// are installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"dubber/internal/config"
	"dubber/internal/services/whisperx"
)

// Requirement names an external binary.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is a Requirement plus the result of looking it up.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// Requirements lists the binaries needed for cfg.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "yt-dlp", Command: cfg.Download.Binary, Description: "downloads URL sources; local files work without it", Optional: true},
		{Name: "FFmpeg", Command: cfg.Media.FFmpegBinary, Description: "extracts, stretches and muxes audio"},
		{Name: "FFprobe", Command: cfg.Media.FFprobeBinary, Description: "inspects media streams and durations"},
		{Name: "uvx", Command: whisperx.UVXCommand, Description: "runs WhisperX transcription and pyannote diarization"},
	}
}

// CheckBinaries resolves each requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		req.Description = strings.TrimSpace(req.Description)
		status := Status{Requirement: req}
		switch path, err := exec.LookPath(req.Command); {
		case req.Command == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		default:
			status.Available = true
			status.Detail = path
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the required entries that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}
