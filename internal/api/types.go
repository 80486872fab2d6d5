package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SubmitRequest is the body of POST /api/jobs.
type SubmitRequest struct {
	Source         string `json:"source"`
	TargetLanguage string `json:"targetLanguage"`
	SourceLanguage string `json:"sourceLanguage,omitempty"`
	AccentHint     string `json:"accentHint,omitempty"`
}

// Job describes a dubbing job in a transport-friendly format.
type Job struct {
	ID              string    `json:"id"`
	Source          string    `json:"source"`
	TargetLanguage  string    `json:"targetLanguage"`
	SourceLanguage  string    `json:"sourceLanguage,omitempty"`
	AccentHint      string    `json:"accentHint,omitempty"`
	Status          string    `json:"status"`
	StatusLabel     string    `json:"statusLabel"`
	Progress        int       `json:"progress"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
	ResultPath      string    `json:"resultPath,omitempty"`
	CancelRequested bool      `json:"cancelRequested,omitempty"`
	Counts          JobCounts `json:"counts"`
	CreatedAt       string    `json:"createdAt,omitempty"`
	UpdatedAt       string    `json:"updatedAt,omitempty"`
	StartedAt       string    `json:"startedAt,omitempty"`
	CompletedAt     string    `json:"completedAt,omitempty"`
}

// JobCounts summarizes what the pipeline found and produced.
type JobCounts struct {
	Speakers        int `json:"speakers"`
	Segments        int `json:"segments"`
	FlaggedSegments int `json:"flaggedSegments"`
	DriftedSegments int `json:"driftedSegments"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// StatsResponse reports job totals.
type StatsResponse struct {
	Total  int            `json:"total"`
	Counts map[string]int `json:"counts"`
	Recent []Job          `json:"recent"`
}

// StageHealth mirrors readiness reporting for pipeline steps.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DatabaseHealth reports job database diagnostics.
type DatabaseHealth struct {
	Path           string `json:"path"`
	Exists         bool   `json:"exists"`
	Readable       bool   `json:"readable"`
	SchemaVersion  int    `json:"schemaVersion"`
	IntegrityCheck bool   `json:"integrityCheck"`
	TotalJobs      int    `json:"totalJobs"`
	Error          string `json:"error,omitempty"`
}

// HealthResponse aggregates daemon readiness.
type HealthResponse struct {
	Ready      bool           `json:"ready"`
	Running    bool           `json:"running"`
	PID        int            `json:"pid"`
	QueueDepth int            `json:"queueDepth"`
	ActiveJobs int            `json:"activeJobs"`
	Database   DatabaseHealth `json:"database"`
	Stages     []StageHealth  `json:"stages"`
}

// Event is one job lifecycle event.
type Event struct {
	Seq       int64  `json:"seq"`
	Timestamp string `json:"timestamp"`
	JobID     string `json:"jobId"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Message   string `json:"message,omitempty"`
}

// EventsResponse returns events after a cursor. Next is the cursor to pass
// as ?since= on the following poll.
type EventsResponse struct {
	Events []Event `json:"events"`
	Next   int64   `json:"next"`
}

// Voice describes a synthesis voice.
type Voice struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Languages []string `json:"languages"`
	Gender    string   `json:"gender,omitempty"`
	Age       string   `json:"age,omitempty"`
	Energy    string   `json:"energy,omitempty"`
	Accent    string   `json:"accent,omitempty"`
}

// VoicesResponse lists voices able to speak a language.
type VoicesResponse struct {
	Language string  `json:"language"`
	Voices   []Voice `json:"voices"`
}

// LogResponse carries lines from a job log and the offset to resume from.
type LogResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
