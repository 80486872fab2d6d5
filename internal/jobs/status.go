package jobs

import "strings"

// Status is the closed set of job lifecycle states.
type Status string

const (
	StatusInitialized      Status = "initialized"
	StatusDownloading      Status = "downloading"
	StatusExtractingAudio  Status = "extracting_audio"
	StatusDiarizing        Status = "diarizing"
	StatusTranscribing     Status = "transcribing"
	StatusTranslating      Status = "translating"
	StatusGeneratingSpeech Status = "generating_speech"
	StatusSynchronizing    Status = "synchronizing"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// statusAliases accepts legacy spellings when parsing user input.
var statusAliases = map[string]Status{
	"detecting_gender": StatusDiarizing,
}

// pipelineOrder is the only permitted forward sequence.
var pipelineOrder = []Status{
	StatusInitialized,
	StatusDownloading,
	StatusExtractingAudio,
	StatusDiarizing,
	StatusTranscribing,
	StatusTranslating,
	StatusGeneratingSpeech,
	StatusSynchronizing,
	StatusCompleted,
}

var allStatuses = append(append([]Status(nil), pipelineOrder...), StatusFailed)

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// PipelineOrder returns the forward state sequence from initialized to completed.
func PipelineOrder() []Status {
	cp := make([]Status, len(pipelineOrder))
	copy(cp, pipelineOrder)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "", false
	}
	if alias, ok := statusAliases[normalized]; ok {
		return alias, true
	}
	status := Status(normalized)
	_, ok := statusSet[status]
	return status, ok
}

// IsTerminal reports whether the status accepts no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed:
		return true
	case StatusInitialized, StatusDownloading, StatusExtractingAudio, StatusDiarizing,
		StatusTranscribing, StatusTranslating, StatusGeneratingSpeech, StatusSynchronizing:
		return false
	default:
		return false
	}
}

// IsActive reports whether a pipeline stage is running for the status.
func (s Status) IsActive() bool {
	switch s {
	case StatusDownloading, StatusExtractingAudio, StatusDiarizing, StatusTranscribing,
		StatusTranslating, StatusGeneratingSpeech, StatusSynchronizing:
		return true
	case StatusInitialized, StatusCompleted, StatusFailed:
		return false
	default:
		return false
	}
}

// Next returns the single forward successor, or false for terminal states.
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusInitialized:
		return StatusDownloading, true
	case StatusDownloading:
		return StatusExtractingAudio, true
	case StatusExtractingAudio:
		return StatusDiarizing, true
	case StatusDiarizing:
		return StatusTranscribing, true
	case StatusTranscribing:
		return StatusTranslating, true
	case StatusTranslating:
		return StatusGeneratingSpeech, true
	case StatusGeneratingSpeech:
		return StatusSynchronizing, true
	case StatusSynchronizing:
		return StatusCompleted, true
	case StatusCompleted, StatusFailed:
		return "", false
	default:
		return "", false
	}
}

// CanTransition reports whether from -> to is permitted.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusFailed {
		_, known := statusSet[from]
		return known
	}
	next, ok := from.Next()
	return ok && next == to
}

// StageKey returns the metrics/log key for the stage that owns the status.
func (s Status) StageKey() string {
	switch s {
	case StatusInitialized:
		return "queued"
	case StatusDownloading:
		return "download"
	case StatusExtractingAudio:
		return "extract"
	case StatusDiarizing:
		return "diarize"
	case StatusTranscribing:
		return "transcribe"
	case StatusTranslating:
		return "translate"
	case StatusGeneratingSpeech:
		return "synthesize"
	case StatusSynchronizing:
		return "sync"
	case StatusCompleted, StatusFailed:
		return "done"
	default:
		return "unknown"
	}
}
