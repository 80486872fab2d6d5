package voicematch

import (
	"math"
	"strings"

	"dubber/internal/acoustic"
	"dubber/internal/dubbing"
)

// Breakdown is the per-component score of one candidate for one speaker.
type Breakdown struct {
	Pitch  float64
	Age    float64
	Energy float64
	Accent float64
	Total  float64
}

func (t Thresholds) score(profile acoustic.Profile, voice dubbing.VoiceCandidate, accentHint string) Breakdown {
	b := Breakdown{
		Pitch:  t.pitchMatch(profile.MeanPitch, voice.Gender),
		Age:    t.ageMatch(profile.SpectralCentroid, voice.Age),
		Energy: t.energyMatch(profile.RMSEnergy, voice.Energy),
		Accent: accentBonus(voice.Accent, accentHint),
	}
	b.Total = t.PitchWeight*b.Pitch + t.AgeWeight*b.Age + t.EnergyWeight*b.Energy + t.AccentWeight*b.Accent
	return b
}

func (t Thresholds) pitchMatch(pitch float64, gender string) float64 {
	if pitch <= 0 {
		return 0
	}
	inFemale := pitch >= t.FemalePitchMin && pitch <= t.FemalePitchMax
	inMale := pitch >= t.MalePitchMin && pitch <= t.MalePitchMax
	switch normalizeTag(gender) {
	case dubbing.GenderFemale:
		return boolScore(inFemale)
	case dubbing.GenderMale:
		return boolScore(inMale)
	default:
		return boolScore(inFemale || inMale)
	}
}

func (t Thresholds) ageMatch(centroid float64, age string) float64 {
	var distance float64
	switch normalizeTag(age) {
	case dubbing.AgeYoung:
		distance = t.YoungCentroidMin - centroid
	case dubbing.AgeOld, "mature":
		distance = centroid - t.MatureCentroidMax
	case dubbing.AgeMiddleAged:
		switch {
		case centroid < t.MatureCentroidMax:
			distance = t.MatureCentroidMax - centroid
		case centroid > t.YoungCentroidMin:
			distance = centroid - t.YoungCentroidMin
		}
	default:
		return 0.5
	}
	if distance <= 0 {
		return 1
	}
	return math.Max(0, 1-distance/t.AgeFalloff)
}

func (t Thresholds) energyMatch(rms float64, energy string) float64 {
	switch normalizeTag(energy) {
	case dubbing.EnergyEnergetic:
		return boolScore(rms > t.EnergeticRMSMin)
	case dubbing.EnergyCalm:
		return boolScore(rms < t.CalmRMSMax)
	case dubbing.EnergyNeutral:
		return boolScore(rms >= t.CalmRMSMax && rms <= t.EnergeticRMSMin)
	default:
		return 0
	}
}

func accentBonus(accent, hint string) float64 {
	hint = normalizeLocale(hint)
	if hint == "" {
		return 0
	}
	return boolScore(normalizeLocale(accent) == hint)
}

func normalizeTag(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "_")
	return strings.ReplaceAll(value, "-", "_")
}

func normalizeLocale(value string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "_", "-")
}

func boolScore(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
