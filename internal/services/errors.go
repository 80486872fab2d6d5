package services

import (
	"errors"
	"fmt"
	"strings"
)

// Failure markers. Every error produced by a pipeline stage or capability is
// tagged with exactly one of these so callers can classify it with errors.Is.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrSourceUnavailable    = errors.New("source unavailable")
	ErrExtraction           = errors.New("audio extraction failed")
	ErrDiarization          = errors.New("diarization failed")
	ErrTranscription        = errors.New("transcription failed")
	ErrTranslation          = errors.New("translation failed")
	ErrNoCandidateAvailable = errors.New("no voice candidate available")
	ErrSynthesis            = errors.New("speech synthesis failed")
	ErrSync                 = errors.New("synchronization failed")
	ErrNotFound             = errors.New("not found")
	ErrNotReady             = errors.New("not ready")
	ErrCancelled            = errors.New("cancelled")
	ErrConfiguration        = errors.New("configuration error")
	ErrTransient            = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a stable machine-readable code for err. Unknown errors map to
// "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	case errors.Is(err, ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, ErrExtraction):
		return "extraction"
	case errors.Is(err, ErrDiarization):
		return "diarization"
	case errors.Is(err, ErrTranscription):
		return "transcription"
	case errors.Is(err, ErrTranslation):
		return "translation"
	case errors.Is(err, ErrNoCandidateAvailable):
		return "no_candidate_available"
	case errors.Is(err, ErrSynthesis):
		return "synthesis"
	case errors.Is(err, ErrSync):
		return "sync"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "internal"
	}
}

// Transient marks err as retryable without changing its message.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked retryable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, ErrTransient)
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
