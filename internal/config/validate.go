package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateSynthesis(); err != nil {
		return err
	}
	if err := c.validateVoiceMatching(); err != nil {
		return err
	}
	if err := c.validateOperations(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.max_concurrent_jobs":        c.Workflow.MaxConcurrentJobs,
		"workflow.segment_workers":            c.Workflow.SegmentWorkers,
		"workflow.capability_timeout_seconds": c.Workflow.CapabilityTimeoutSeconds,
		"workflow.retry_max_attempts":         c.Workflow.RetryMaxAttempts,
		"workflow.retry_base_delay_ms":        c.Workflow.RetryBaseDelayMillis,
		"workflow.retry_max_delay_ms":         c.Workflow.RetryMaxDelayMillis,
		"workflow.heartbeat_interval":         c.Workflow.HeartbeatInterval,
		"download.timeout_seconds":            c.Download.TimeoutSeconds,
		"media.extract_sample_rate":           c.Media.ExtractSampleRate,
		"media.track_sample_rate":             c.Media.TrackSampleRate,
		"media.command_timeout_seconds":       c.Media.CommandTimeoutSeconds,
		"diarization.timeout_seconds":         c.Diarization.TimeoutSeconds,
		"transcription.timeout_seconds":       c.Transcription.TimeoutSeconds,
		"synthesis.timeout_seconds":           c.Synthesis.TimeoutSeconds,
	})
}

func (c *Config) validateTranslation() error {
	if c.Translation.WordsPerSecond <= 0 {
		return errors.New("translation.words_per_second must be positive")
	}
	for lang, rate := range c.Translation.LanguageRates {
		if rate <= 0 {
			return fmt.Errorf("translation.language_rates.%s must be positive", lang)
		}
	}
	if c.Translation.OverageTolerance < 0 {
		return errors.New("translation.overage_tolerance must be >= 0")
	}
	if c.Translation.TightenFactor <= 0 || c.Translation.TightenFactor > 1 {
		return errors.New("translation.tighten_factor must be between 0 and 1")
	}
	if c.Translation.TightenRetries < 0 {
		return errors.New("translation.tighten_retries must be >= 0")
	}
	return nil
}

func (c *Config) validateSynthesis() error {
	if c.Synthesis.MinRate <= 0 {
		return errors.New("synthesis.min_rate must be positive")
	}
	if c.Synthesis.MaxRate < c.Synthesis.MinRate {
		return errors.New("synthesis.max_rate must be >= synthesis.min_rate")
	}
	if c.Synthesis.MinRate > 1 || c.Synthesis.MaxRate < 1 {
		return errors.New("synthesis rate bounds must include 1.0")
	}
	if c.Synthesis.DriftToleranceSeconds < 0 {
		return errors.New("synthesis.drift_tolerance_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateVoiceMatching() error {
	vm := c.VoiceMatching
	for key, weight := range map[string]float64{
		"voice_matching.pitch_weight":  vm.PitchWeight,
		"voice_matching.age_weight":    vm.AgeWeight,
		"voice_matching.energy_weight": vm.EnergyWeight,
		"voice_matching.accent_weight": vm.AccentWeight,
	} {
		if weight < 0 {
			return fmt.Errorf("%s must be >= 0", key)
		}
	}
	if vm.FemalePitchMin >= vm.FemalePitchMax {
		return errors.New("voice_matching.female_pitch_min must be below female_pitch_max")
	}
	if vm.MalePitchMin >= vm.MalePitchMax {
		return errors.New("voice_matching.male_pitch_min must be below male_pitch_max")
	}
	if vm.MatureCentroidMax > vm.YoungCentroidMin {
		return errors.New("voice_matching.mature_centroid_max must not exceed young_centroid_min")
	}
	if vm.AgeFalloff <= 0 {
		return errors.New("voice_matching.age_falloff must be positive")
	}
	if vm.CalmRMSMax > vm.EnergeticRMSMin {
		return errors.New("voice_matching.calm_rms_max must not exceed energetic_rms_min")
	}
	return nil
}

func (c *Config) validateOperations() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Events.BufferSize <= 0 {
		return errors.New("events.buffer_size must be positive")
	}
	if c.Retention.Enabled {
		if c.Retention.MaxAgeHours <= 0 {
			return errors.New("retention.max_age_hours must be positive when retention.enabled is true")
		}
		if c.Retention.SweepIntervalMinutes <= 0 {
			return errors.New("retention.sweep_interval_minutes must be positive when retention.enabled is true")
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
