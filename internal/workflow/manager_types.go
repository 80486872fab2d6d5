package workflow

import (
	"dubber/internal/jobs"
	"dubber/internal/stage"
)

// StageSet bundles the pipeline steps the manager orchestrates. Steps that
// share a status run back to back without a transition between them.
type StageSet struct {
	Download   stage.Handler
	Extract    stage.Handler
	Diarize    stage.Handler
	Transcribe stage.Handler
	Align      stage.Handler
	Voices     stage.Handler
	Translate  stage.Handler
	Synthesize stage.Handler
	Sync       stage.Handler
}

type pipelineStage struct {
	name    string
	handler stage.Handler
	status  jobs.Status
}

// Request is a dubbing submission.
type Request struct {
	Source         string `json:"source"`
	TargetLanguage string `json:"target_language"`
	SourceLanguage string `json:"source_language,omitempty"`
	AccentHint     string `json:"accent_hint,omitempty"`
}
