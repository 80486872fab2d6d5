package api

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"dubber/internal/dubbing"
	"dubber/internal/events"
	"dubber/internal/jobs"
	"dubber/internal/stage"
)

var labelCaser = cases.Title(language.English)

// FromJob converts a job snapshot to its API representation.
func FromJob(job jobs.Job) Job {
	return Job{
		ID:              job.ID,
		Source:          job.Source,
		TargetLanguage:  job.TargetLanguage,
		SourceLanguage:  job.SourceLanguage,
		AccentHint:      job.AccentHint,
		Status:          string(job.Status),
		StatusLabel:     StatusLabel(job.Status),
		Progress:        job.Progress,
		ErrorMessage:    job.ErrorMessage,
		ResultPath:      job.ResultPath,
		CancelRequested: job.CancelRequested,
		Counts: JobCounts{
			Speakers:        job.SpeakerCount,
			Segments:        job.SegmentCount,
			FlaggedSegments: job.FlaggedSegments,
			DriftedSegments: job.DriftedSegments,
		},
		CreatedAt:   formatTime(job.CreatedAt),
		UpdatedAt:   formatTime(job.UpdatedAt),
		StartedAt:   formatTime(job.StartedAt),
		CompletedAt: formatTime(job.CompletedAt),
	}
}

// FromJobs converts a slice of job snapshots.
func FromJobs(list []jobs.Job) []Job {
	out := make([]Job, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job))
	}
	return out
}

// FromStats converts job statistics. Every status appears in Counts, zero
// or not, so clients can render a fixed table.
func FromStats(stats jobs.Stats) StatsResponse {
	counts := make(map[string]int, len(jobs.AllStatuses()))
	for _, status := range jobs.AllStatuses() {
		counts[string(status)] = stats.Counts[status]
	}
	return StatsResponse{
		Total:  stats.Total,
		Counts: counts,
		Recent: FromJobs(stats.Recent),
	}
}

// FromStageHealth converts readiness records, keeping pipeline order.
func FromStageHealth(records []stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(records))
	for _, h := range records {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromDatabaseHealth converts store diagnostics.
func FromDatabaseHealth(h jobs.DatabaseHealth) DatabaseHealth {
	return DatabaseHealth{
		Path:           h.DBPath,
		Exists:         h.DatabaseExists,
		Readable:       h.DatabaseReadable,
		SchemaVersion:  h.SchemaVersion,
		IntegrityCheck: h.IntegrityCheck,
		TotalJobs:      h.TotalJobs,
		Error:          h.Error,
	}
}

// FromEvents converts bus events and returns the cursor for the next poll.
// since is returned unchanged when there are no new events.
func FromEvents(list []events.Event, since int64) EventsResponse {
	resp := EventsResponse{Events: make([]Event, 0, len(list)), Next: since}
	for _, evt := range list {
		resp.Events = append(resp.Events, Event{
			Seq:       evt.Seq,
			Timestamp: formatTime(evt.Timestamp),
			JobID:     evt.JobID,
			Type:      string(evt.Type),
			Status:    string(evt.Status),
			Progress:  evt.Progress,
			Message:   evt.Message,
		})
		resp.Next = max(resp.Next, evt.Seq)
	}
	return resp
}

// FromVoices converts catalog voices sorted by name.
func FromVoices(lang string, candidates []dubbing.VoiceCandidate) VoicesResponse {
	voices := make([]Voice, 0, len(candidates))
	for _, c := range candidates {
		voices = append(voices, Voice{
			ID:        c.ID,
			Name:      c.Name,
			Languages: append([]string(nil), c.Languages...),
			Gender:    c.Gender,
			Age:       c.Age,
			Energy:    c.Energy,
			Accent:    c.Accent,
		})
	}
	slices.SortFunc(voices, func(a, b Voice) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return VoicesResponse{Language: lang, Voices: voices}
}

// StatusLabel renders a status for humans, e.g. "Generating Speech".
func StatusLabel(status jobs.Status) string {
	return labelCaser.String(strings.ReplaceAll(string(status), "_", " "))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
