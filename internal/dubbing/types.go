// Package dubbing holds the data shared by the pipeline stages: diarization
// intervals, transcript segments, aligned speech segments, speakers and the
// voice candidates they are matched against.
package dubbing

import (
	"sort"
	"strings"
	"time"

	"dubber/internal/acoustic"
)

// UnknownSpeakerID labels segments that overlap no diarization interval.
const UnknownSpeakerID = "SPEAKER_UNKNOWN"

// Interval is one speaker-labelled span produced by diarization. Times are
// seconds from the start of the audio.
type Interval struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Duration returns the interval length in seconds.
func (i Interval) Duration() float64 { return i.End - i.Start }

// Word is a single timed token from the transcriber.
type Word struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TranscriptSegment is one time-stamped text span from the transcriber.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Segment is a speaker-attributed unit of speech carried through
// translation, synthesis and synchronization.
type Segment struct {
	Index               int     `json:"index"`
	SpeakerID           string  `json:"speaker_id"`
	Start               float64 `json:"start"`
	End                 float64 `json:"end"`
	SourceText          string  `json:"source_text"`
	TranslatedText      string  `json:"translated_text,omitempty"`
	WordBudget          int     `json:"word_budget,omitempty"`
	OverBudget          bool    `json:"over_budget,omitempty"`
	TranslationAttempts int     `json:"translation_attempts,omitempty"`
	AudioPath           string  `json:"audio_path,omitempty"`
	AudioDuration       float64 `json:"audio_duration,omitempty"`
	Rate                float64 `json:"rate,omitempty"`
	Drift               float64 `json:"drift,omitempty"`
	Drifted             bool    `json:"drifted,omitempty"`
}

// Duration returns the original on-screen length of the segment in seconds.
func (s Segment) Duration() float64 { return s.End - s.Start }

// StartOffset returns Start as a time.Duration.
func (s Segment) StartOffset() time.Duration { return Seconds(s.Start) }

// Speaker is a distinct voice detected in the source audio.
type Speaker struct {
	ID            string           `json:"id"`
	Profile       acoustic.Profile `json:"profile"`
	TotalDuration float64          `json:"total_duration"`
	Voice         *VoiceCandidate  `json:"voice,omitempty"`
	MatchScore    float64          `json:"match_score,omitempty"`
}

// Gender descriptors carried by voice candidates.
const (
	GenderFemale  = "female"
	GenderMale    = "male"
	GenderNeutral = "neutral"
)

// Age descriptors carried by voice candidates.
const (
	AgeYoung      = "young"
	AgeMiddleAged = "middle_aged"
	AgeOld        = "old"
)

// Energy descriptors carried by voice candidates.
const (
	EnergyEnergetic = "energetic"
	EnergyNeutral   = "neutral"
	EnergyCalm      = "calm"
)

// VoiceCandidate is a synthesis voice offered by the catalog.
type VoiceCandidate struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Languages []string `json:"languages" yaml:"languages"`
	Gender    string   `json:"gender,omitempty" yaml:"gender"`
	Age       string   `json:"age,omitempty" yaml:"age"`
	Energy    string   `json:"energy,omitempty" yaml:"energy"`
	Accent    string   `json:"accent,omitempty" yaml:"accent"`
}

// Supports reports whether the voice can speak language, comparing primary
// subtags so "es" matches "es-MX".
func (v VoiceCandidate) Supports(language string) bool {
	want := PrimarySubtag(language)
	if want == "" {
		return false
	}
	for _, lang := range v.Languages {
		if PrimarySubtag(lang) == want {
			return true
		}
	}
	return false
}

// PrimarySubtag lowercases a language tag and strips region and script.
func PrimarySubtag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return tag
}

// SortByStart orders segments by start time, then speaker, and re-indexes.
func SortByStart(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		if segments[i].Start != segments[j].Start {
			return segments[i].Start < segments[j].Start
		}
		return segments[i].SpeakerID < segments[j].SpeakerID
	})
	for i := range segments {
		segments[i].Index = i
	}
}

// Seconds converts fractional seconds to a time.Duration.
func Seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// Media is an acquired source file inside the job directory.
type Media struct {
	Path  string
	Title string
	// Remote is true when the source was downloaded from a URL.
	Remote bool
}
