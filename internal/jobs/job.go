package jobs

import "time"

// DaemonStopReason is the error message recorded on jobs that were still
// running when the previous daemon process exited.
const DaemonStopReason = "daemon stopped before job finished"

// CancelReason is the error message recorded when a cancel request is honoured.
const CancelReason = "cancelled by request"

// Spec is the validated submission payload a job is created from.
type Spec struct {
	Source         string
	TargetLanguage string
	SourceLanguage string
	AccentHint     string
}

// Job is an immutable snapshot of a dubbing job. Values are copied on every
// read, so holders never observe later writes.
type Job struct {
	ID              string
	Source          string
	TargetLanguage  string
	SourceLanguage  string
	AccentHint      string
	Status          Status
	Progress        int
	ErrorMessage    string
	ResultPath      string
	SpeakerCount    int
	SegmentCount    int
	FlaggedSegments int
	DriftedSegments int
	CancelRequested bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       time.Time
	CompletedAt     time.Time
}

// Stats aggregates job counts for list views.
type Stats struct {
	Total  int
	Counts map[Status]int
	Recent []Job
}

// HealthSummary describes aggregated counts per lifecycle group.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Failed     int
	Completed  int
}

// DatabaseHealth captures diagnostic information about the job database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}
