package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"dubber/internal/dubbing"
	"dubber/internal/language"
	"dubber/internal/logging"
)

const catalogTTL = 10 * time.Minute

// VoiceLister returns the voices available on the synthesis account.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]RemoteVoice, error)
}

// Overlay is the YAML voice catalog file.
type Overlay struct {
	Voices []dubbing.VoiceCandidate `yaml:"voices"`
}

// LoadOverlay reads a YAML catalog. A missing file yields an empty overlay.
func LoadOverlay(path string) (Overlay, error) {
	var overlay Overlay
	if strings.TrimSpace(path) == "" {
		return overlay, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return overlay, nil
		}
		return overlay, fmt.Errorf("read voice catalog: %w", err)
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return overlay, fmt.Errorf("parse voice catalog %s: %w", path, err)
	}
	for i, voice := range overlay.Voices {
		if strings.TrimSpace(voice.ID) == "" {
			return overlay, fmt.Errorf("parse voice catalog %s: voice %d has no id", path, i)
		}
	}
	return overlay, nil
}

// Catalog implements synth.Catalog.
type Catalog struct {
	lister   VoiceLister
	overlay  map[string]dubbing.VoiceCandidate
	defaults map[string]string
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	cached   []dubbing.VoiceCandidate
	cachedAt time.Time
}

// NewCatalog merges the remote voice list with overlay and the
// per-language default voices. lister may be nil for an offline catalog.
func NewCatalog(lister VoiceLister, overlay Overlay, defaults map[string]string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = logging.NewNop()
	}
	byID := make(map[string]dubbing.VoiceCandidate, len(overlay.Voices))
	for _, voice := range overlay.Voices {
		byID[voice.ID] = voice
	}
	return &Catalog{lister: lister, overlay: byID, defaults: defaults, logger: logger, now: time.Now}
}

// Voices returns candidates able to speak lang, sorted by ID.
func (c *Catalog) Voices(ctx context.Context, lang string) ([]dubbing.VoiceCandidate, error) {
	all, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []dubbing.VoiceCandidate
	for _, voice := range all {
		if voice.Supports(lang) {
			out = append(out, voice)
		}
	}
	if fallback, ok := c.defaults[dubbing.PrimarySubtag(lang)]; ok && !containsID(out, fallback) {
		out = append(out, c.defaultCandidate(fallback, lang))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// All returns every known voice. Remote listing failures degrade to the
// overlay and default voices.
func (c *Catalog) All(ctx context.Context) ([]dubbing.VoiceCandidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached != nil && c.now().Sub(c.cachedAt) < catalogTTL {
		return c.cached, nil
	}

	merged := make(map[string]dubbing.VoiceCandidate)
	if c.lister != nil {
		remote, err := c.lister.ListVoices(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logging.WarnWithContext(c.logger, "voice list unavailable", "voice_catalog_fallback",
				logging.Error(err),
				logging.String(logging.FieldImpact, "only catalog overlay and default voices are offered"),
			)
		}
		for _, voice := range remote {
			candidate := fromAPI(voice)
			merged[candidate.ID] = candidate
		}
	}
	for id, voice := range c.overlay {
		merged[id] = mergeCandidate(merged[id], voice)
	}

	out := make([]dubbing.VoiceCandidate, 0, len(merged))
	for _, voice := range merged {
		out = append(out, voice)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	c.cached, c.cachedAt = out, c.now()
	return out, nil
}

func (c *Catalog) defaultCandidate(id, lang string) dubbing.VoiceCandidate {
	if voice, ok := c.overlay[id]; ok {
		voice.Languages = append(voice.Languages, dubbing.PrimarySubtag(lang))
		return voice
	}
	return dubbing.VoiceCandidate{
		ID:        id,
		Name:      "default " + language.DisplayName(lang),
		Languages: []string{dubbing.PrimarySubtag(lang)},
	}
}

// fromAPI maps provider labels onto candidate descriptors. Voices without
// verified languages are multilingual and speak every supported target.
func fromAPI(voice RemoteVoice) dubbing.VoiceCandidate {
	labels := make(map[string]string, len(voice.Labels))
	for k, v := range voice.Labels {
		labels[strings.ToLower(k)] = strings.ToLower(strings.TrimSpace(v))
	}
	candidate := dubbing.VoiceCandidate{
		ID:     voice.VoiceID,
		Name:   voice.Name,
		Gender: normalizeGender(labels["gender"]),
		Age:    normalizeAge(labels["age"]),
		Energy: energyFromLabels(labels["description"], labels["use_case"]),
		Accent: labels["accent"],
	}
	for _, lang := range voice.VerifiedLanguages {
		tag := lang.Locale
		if tag == "" {
			tag = lang.Language
		}
		if tag != "" {
			candidate.Languages = append(candidate.Languages, tag)
		}
	}
	if len(candidate.Languages) == 0 {
		candidate.Languages = language.Supported()
	}
	return candidate
}

func mergeCandidate(base, overlay dubbing.VoiceCandidate) dubbing.VoiceCandidate {
	base.ID = overlay.ID
	if overlay.Name != "" {
		base.Name = overlay.Name
	}
	if len(overlay.Languages) > 0 {
		base.Languages = overlay.Languages
	}
	if overlay.Gender != "" {
		base.Gender = normalizeGender(overlay.Gender)
	}
	if overlay.Age != "" {
		base.Age = normalizeAge(overlay.Age)
	}
	if overlay.Energy != "" {
		base.Energy = strings.ToLower(overlay.Energy)
	}
	if overlay.Accent != "" {
		base.Accent = overlay.Accent
	}
	return base
}

func normalizeGender(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "female", "woman":
		return dubbing.GenderFemale
	case "male", "man":
		return dubbing.GenderMale
	case "":
		return ""
	default:
		return dubbing.GenderNeutral
	}
}

func normalizeAge(value string) string {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(value), " ", "_")) {
	case "young", "child", "teen":
		return dubbing.AgeYoung
	case "middle_aged", "middle-aged", "adult":
		return dubbing.AgeMiddleAged
	case "old", "elderly", "senior", "mature":
		return dubbing.AgeOld
	default:
		return ""
	}
}

func energyFromLabels(values ...string) string {
	text := strings.TrimSpace(strings.Join(values, " "))
	if text == "" {
		return ""
	}
	for _, word := range []string{"energetic", "upbeat", "excited", "intense", "confident"} {
		if strings.Contains(text, word) {
			return dubbing.EnergyEnergetic
		}
	}
	for _, word := range []string{"calm", "soft", "meditation", "soothing", "whisper", "gentle"} {
		if strings.Contains(text, word) {
			return dubbing.EnergyCalm
		}
	}
	return dubbing.EnergyNeutral
}

func containsID(voices []dubbing.VoiceCandidate, id string) bool {
	for _, v := range voices {
		if v.ID == id {
			return true
		}
	}
	return false
}
