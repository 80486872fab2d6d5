package voicematch

import "dubber/internal/config"

// Thresholds holds the scoring weights and the pitch, age and energy band
// cutoffs.
type Thresholds struct {
	PitchWeight  float64
	AgeWeight    float64
	EnergyWeight float64
	AccentWeight float64

	FemalePitchMin float64
	FemalePitchMax float64
	MalePitchMin   float64
	MalePitchMax   float64

	YoungCentroidMin  float64
	MatureCentroidMax float64
	AgeFalloff        float64

	EnergeticRMSMin float64
	CalmRMSMax      float64
}

// DefaultThresholds mirrors the shipped configuration defaults.
func DefaultThresholds() Thresholds {
	return ThresholdsFromConfig(config.Default().VoiceMatching)
}

// ThresholdsFromConfig copies the voice_matching configuration section.
func ThresholdsFromConfig(vm config.VoiceMatching) Thresholds {
	return Thresholds{
		PitchWeight:       vm.PitchWeight,
		AgeWeight:         vm.AgeWeight,
		EnergyWeight:      vm.EnergyWeight,
		AccentWeight:      vm.AccentWeight,
		FemalePitchMin:    vm.FemalePitchMin,
		FemalePitchMax:    vm.FemalePitchMax,
		MalePitchMin:      vm.MalePitchMin,
		MalePitchMax:      vm.MalePitchMax,
		YoungCentroidMin:  vm.YoungCentroidMin,
		MatureCentroidMax: vm.MatureCentroidMax,
		AgeFalloff:        vm.AgeFalloff,
		EnergeticRMSMin:   vm.EnergeticRMSMin,
		CalmRMSMax:        vm.CalmRMSMax,
	}
}
