package config

const (
	defaultConfigPath               = "~/.config/dubber/config.toml"
	defaultWorkDir                  = "~/.local/share/dubber/work"
	defaultOutputDir                = "~/.local/share/dubber/outputs"
	defaultStateDir                 = "~/.local/share/dubber"
	defaultLogDir                   = "~/.local/share/dubber/logs"
	defaultAPIBind                  = "127.0.0.1:7488"
	defaultMaxConcurrentJobs        = 2
	defaultSegmentWorkers           = 4
	defaultCapabilityTimeoutSeconds = 120
	defaultRetryMaxAttempts         = 4
	defaultRetryBaseDelayMillis     = 1000
	defaultRetryMaxDelayMillis      = 10000
	defaultHeartbeatInterval        = 15
	defaultDownloadBinary           = "yt-dlp"
	defaultDownloadFormat           = "best[height<=720]"
	defaultDownloadTimeoutSeconds   = 1800
	defaultFFmpegBinary             = "ffmpeg"
	defaultFFprobeBinary            = "ffprobe"
	defaultExtractSampleRate        = 16000
	defaultTrackSampleRate          = 44100
	defaultAudioCodec               = "aac"
	defaultAudioBitrate             = "192k"
	defaultMediaTimeoutSeconds      = 900
	defaultDiarizationModel         = "pyannote/speaker-diarization-3.1"
	defaultDiarizationTimeout       = 3600
	defaultProfileSegments          = 3
	defaultProfileMinSeconds        = 0.5
	defaultTranscriptionModel       = "large-v3-turbo"
	defaultTranscriptionVAD         = "silero"
	defaultTranscriptionTimeout     = 3600
	defaultLLMBaseURL               = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel                 = "google/gemini-3-flash-preview"
	defaultLLMReferer               = "https://github.com/dubber/dubber"
	defaultLLMTitle                 = "Dubber Translator"
	defaultLLMTimeoutSeconds        = 60
	defaultWordsPerSecond           = 2.5
	defaultOverageTolerance         = 0.20
	defaultTightenFactor            = 0.8
	defaultTightenRetries           = 1
	defaultSynthesisBaseURL         = "https://api.elevenlabs.io/v1"
	defaultSynthesisModel           = "eleven_multilingual_v2"
	defaultSynthesisOutputFormat    = "mp3_44100_128"
	defaultSynthesisTimeoutSeconds  = 60
	defaultMinRate                  = 0.85
	defaultMaxRate                  = 1.15
	defaultDriftToleranceSeconds    = 0.05
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLogMaxSizeMB             = 100
	defaultLogMaxBackups            = 10
	defaultLogMaxAgeDays            = 30
	defaultMetricsPath              = "/metrics"
	defaultNotifyTimeout            = 10
	defaultEventBufferSize          = 500
	defaultAMQPQueue                = "dubber.job.events"
	defaultRetentionMaxAgeHours     = 24
	defaultRetentionSweepMinutes    = 60
)

// defaultVoices maps a target language to the fallback synthesis voice used
// when the catalog cannot supply one with language metadata.
func defaultVoices() map[string]string {
	return map[string]string{
		"en": "21m00Tcm4TlvDq8ikWAM",
		"es": "VR6AewLTigWG4xSOukaG",
		"fr": "ErXwobaYiN019PkySvjV",
		"de": "AZnzlk1XvdvUeBnXmlld",
		"it": "EXAVITQu4vr4xnSDxMaL",
		"pt": "MF3mGyEYCl7XYWbV9V6O",
		"hi": "pNInz6obpgDQGcFmaJgB",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Workflow: Workflow{
			MaxConcurrentJobs:        defaultMaxConcurrentJobs,
			SegmentWorkers:           defaultSegmentWorkers,
			CapabilityTimeoutSeconds: defaultCapabilityTimeoutSeconds,
			RetryMaxAttempts:         defaultRetryMaxAttempts,
			RetryBaseDelayMillis:     defaultRetryBaseDelayMillis,
			RetryMaxDelayMillis:      defaultRetryMaxDelayMillis,
			HeartbeatInterval:        defaultHeartbeatInterval,
		},
		Download: Download{
			Binary:         defaultDownloadBinary,
			Format:         defaultDownloadFormat,
			TimeoutSeconds: defaultDownloadTimeoutSeconds,
		},
		Media: Media{
			FFmpegBinary:          defaultFFmpegBinary,
			FFprobeBinary:         defaultFFprobeBinary,
			ExtractSampleRate:     defaultExtractSampleRate,
			TrackSampleRate:       defaultTrackSampleRate,
			AudioCodec:            defaultAudioCodec,
			AudioBitrate:          defaultAudioBitrate,
			CommandTimeoutSeconds: defaultMediaTimeoutSeconds,
		},
		Diarization: Diarization{
			Model:             defaultDiarizationModel,
			TimeoutSeconds:    defaultDiarizationTimeout,
			ProfileSegments:   defaultProfileSegments,
			ProfileMinSeconds: defaultProfileMinSeconds,
		},
		Transcription: Transcription{
			Model:          defaultTranscriptionModel,
			VADMethod:      defaultTranscriptionVAD,
			TimeoutSeconds: defaultTranscriptionTimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Translation: Translation{
			WordsPerSecond:   defaultWordsPerSecond,
			OverageTolerance: defaultOverageTolerance,
			TightenFactor:    defaultTightenFactor,
			TightenRetries:   defaultTightenRetries,
		},
		Synthesis: Synthesis{
			BaseURL:               defaultSynthesisBaseURL,
			Model:                 defaultSynthesisModel,
			OutputFormat:          defaultSynthesisOutputFormat,
			TimeoutSeconds:        defaultSynthesisTimeoutSeconds,
			MinRate:               defaultMinRate,
			MaxRate:               defaultMaxRate,
			DriftToleranceSeconds: defaultDriftToleranceSeconds,
			DefaultVoices:         defaultVoices(),
		},
		VoiceMatching: VoiceMatching{
			PitchWeight:       3.0,
			AgeWeight:         2.0,
			EnergyWeight:      1.5,
			AccentWeight:      0.5,
			FemalePitchMin:    150,
			FemalePitchMax:    250,
			MalePitchMin:      80,
			MalePitchMax:      160,
			YoungCentroidMin:  2000,
			MatureCentroidMax: 1500,
			AgeFalloff:        1000,
			EnergeticRMSMin:   0.1,
			CalmRMSMax:        0.05,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			File:       true,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
			Compress:   true,
		},
		Metrics: Metrics{
			Enabled: true,
			Path:    defaultMetricsPath,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			JobCompleted:   true,
			JobFailed:      true,
		},
		Events: Events{
			BufferSize: defaultEventBufferSize,
			AMQPQueue:  defaultAMQPQueue,
		},
		Retention: Retention{
			Enabled:              true,
			MaxAgeHours:          defaultRetentionMaxAgeHours,
			SweepIntervalMinutes: defaultRetentionSweepMinutes,
		},
	}
}
