// Package synth turns translated segments into timed speech. The
// Synthesizer renders each segment with its speaker's voice and
// time-stretches it toward the original duration within a clamped rate
// range; the Synchronizer lays the results onto one track and swaps it into
// the source container.
package synth
