package jobs

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, source, target_language, source_language, accent_hint, status, progress, error_message, result_path, speaker_count, segment_count, flagged_segments, drifted_segments, cancel_requested, created_at, updated_at, started_at, completed_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (Job, error) {
	var (
		job            Job
		statusStr      string
		sourceLanguage sql.NullString
		accentHint     sql.NullString
		errorMessage   sql.NullString
		resultPath     sql.NullString
		cancel         sql.NullInt64
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
		startedRaw     sql.NullString
		completedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&job.ID,
		&job.Source,
		&job.TargetLanguage,
		&sourceLanguage,
		&accentHint,
		&statusStr,
		&job.Progress,
		&errorMessage,
		&resultPath,
		&job.SpeakerCount,
		&job.SegmentCount,
		&job.FlaggedSegments,
		&job.DriftedSegments,
		&cancel,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return Job{}, err
	}

	job.Status = Status(statusStr)
	job.SourceLanguage = sourceLanguage.String
	job.AccentHint = accentHint.String
	job.ErrorMessage = errorMessage.String
	job.ResultPath = resultPath.String
	job.CancelRequested = cancel.Valid && cancel.Int64 != 0
	job.CreatedAt = parseTimeOrZero(createdRaw)
	job.UpdatedAt = parseTimeOrZero(updatedRaw)
	job.StartedAt = parseTimeOrZero(startedRaw)
	job.CompletedAt = parseTimeOrZero(completedRaw)
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return formatTime(value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeOrZero(raw sql.NullString) time.Time {
	if !raw.Valid {
		return time.Time{}
	}
	t, err := parseTimeString(raw.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
