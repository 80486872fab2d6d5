package stage

import (
	"dubber/internal/acoustic"
	"dubber/internal/dubbing"
	"dubber/internal/jobs"
	"dubber/internal/media/ffprobe"
)

// Run is the working state of one job as it moves through the pipeline.
// Only the goroutine driving the job touches it.
type Run struct {
	Job       jobs.Job
	WorkDir   string
	OutputDir string

	Media      dubbing.Media
	Info       ffprobe.Result
	AudioPath  string
	Intervals  []dubbing.Interval
	Profiles   map[string]acoustic.Profile
	Transcript []dubbing.TranscriptSegment
	Segments   []dubbing.Segment
	Speakers   []dubbing.Speaker
	ResultPath string

	progress func(done, total int)
}

// NewRun prepares the state for job.
func NewRun(job jobs.Job, workDir, outputDir string) *Run {
	return &Run{Job: job, WorkDir: workDir, OutputDir: outputDir}
}

// SetProgress installs the reporter used by Report.
func (r *Run) SetProgress(fn func(done, total int)) {
	r.progress = fn
}

// Report forwards done/total completion for the current step.
func (r *Run) Report(done, total int) {
	if r.progress != nil {
		r.progress(done, total)
	}
}

// FlaggedSegments counts translations accepted over budget.
func (r *Run) FlaggedSegments() int {
	n := 0
	for _, seg := range r.Segments {
		if seg.OverBudget {
			n++
		}
	}
	return n
}

// DriftedSegments counts synthesized segments that miss their slot.
func (r *Run) DriftedSegments() int {
	n := 0
	for _, seg := range r.Segments {
		if seg.Drifted {
			n++
		}
	}
	return n
}
