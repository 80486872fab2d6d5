// Package pyannote runs speaker diarization with pyannote.audio. A small
// Python script is written to the job directory and executed through uvx;
// it prints speaker-labelled turns as JSON on stdout.
package pyannote
