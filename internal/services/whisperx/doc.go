// Package whisperx runs WhisperX through uvx and parses its JSON transcript
// into time-stamped segments with per-word timings.
package whisperx
