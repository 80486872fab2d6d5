// Package voicematch pairs each detected speaker with a synthesis voice by
// scoring acoustic agreement between the speaker profile and the voice's
// declared descriptors.
package voicematch

import (
	"fmt"
	"log/slog"
	"sort"

	"dubber/internal/dubbing"
	"dubber/internal/logging"
	"dubber/internal/services"
)

// Assignment binds one speaker to one voice.
type Assignment struct {
	SpeakerID string
	Voice     dubbing.VoiceCandidate
	Score     Breakdown
	Reused    bool
}

// Matcher assigns voices using configurable thresholds.
type Matcher struct {
	thresholds Thresholds
	logger     *slog.Logger
}

// NewMatcher returns a matcher using the provided thresholds.
func NewMatcher(thresholds Thresholds, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Matcher{thresholds: thresholds, logger: logger}
}

// Score exposes the breakdown for one speaker/candidate pair.
func (m *Matcher) Score(speaker dubbing.Speaker, voice dubbing.VoiceCandidate, accentHint string) Breakdown {
	return m.thresholds.score(speaker.Profile, voice, accentHint)
}

// Assign picks a voice for every speaker. Speakers are served in order of
// total speech duration; each takes its best unused candidate until the pool
// is exhausted, after which every later speaker takes its best candidate
// from the whole pool.
func (m *Matcher) Assign(speakers []dubbing.Speaker, candidates []dubbing.VoiceCandidate, targetLanguage, accentHint string) ([]Assignment, error) {
	pool := filterPool(candidates, targetLanguage)
	if len(pool) == 0 {
		return nil, services.Wrap(
			services.ErrNoCandidateAvailable,
			"voice_matching",
			"filter candidates",
			fmt.Sprintf("no voice supports target language %q (%d candidates offered)", targetLanguage, len(candidates)),
			nil,
		)
	}

	order := append([]dubbing.Speaker(nil), speakers...)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].TotalDuration != order[j].TotalDuration {
			return order[i].TotalDuration > order[j].TotalDuration
		}
		return order[i].ID < order[j].ID
	})

	used := make(map[string]bool, len(pool))
	assignments := make([]Assignment, 0, len(order))
	for _, speaker := range order {
		// Once every voice is taken, any voice may be reused.
		reusing := len(used) == len(pool)
		best := -1
		var bestScore Breakdown
		for i, voice := range pool {
			if !reusing && used[voice.ID] {
				continue
			}
			score := m.thresholds.score(speaker.Profile, voice, accentHint)
			if best < 0 || score.Total > bestScore.Total {
				best, bestScore = i, score
			}
		}
		voice := pool[best]
		used[voice.ID] = true
		assignments = append(assignments, Assignment{
			SpeakerID: speaker.ID,
			Voice:     voice,
			Score:     bestScore,
			Reused:    reusing,
		})
		m.logger.Info("voice assigned",
			logging.String(logging.FieldSpeaker, speaker.ID),
			logging.String("voice_id", voice.ID),
			logging.String("voice_name", voice.Name),
			logging.Float64("score", bestScore.Total),
			logging.Bool("reused", reusing),
		)
	}
	return assignments, nil
}

// Apply copies assignments onto the matching speakers.
func Apply(speakers []dubbing.Speaker, assignments []Assignment) {
	byID := make(map[string]Assignment, len(assignments))
	for _, a := range assignments {
		byID[a.SpeakerID] = a
	}
	for i := range speakers {
		a, ok := byID[speakers[i].ID]
		if !ok {
			continue
		}
		voice := a.Voice
		speakers[i].Voice = &voice
		speakers[i].MatchScore = a.Score.Total
	}
}

// filterPool keeps candidates supporting language, deduplicated by ID and
// sorted by ID so equal scores resolve deterministically.
func filterPool(candidates []dubbing.VoiceCandidate, language string) []dubbing.VoiceCandidate {
	seen := make(map[string]bool, len(candidates))
	pool := make([]dubbing.VoiceCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == "" || seen[c.ID] || !c.Supports(language) {
			continue
		}
		seen[c.ID] = true
		pool = append(pool, c)
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
	return pool
}
