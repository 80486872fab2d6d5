// Package pipeline implements the dubbing steps driven by the workflow
// manager: acquisition, audio extraction, diarization with acoustic
// profiling, transcription, alignment, voice matching, translation, speech
// synthesis and synchronization.
//
// Every step implements stage.Handler. Steps read their inputs from the
// shared stage.Run and record outputs on it; external work goes through the
// small capability interfaces declared in capabilities.go so tests can
// substitute fakes.
package pipeline
