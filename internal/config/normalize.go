package config

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeTools()
	c.normalizeDiarization()
	c.normalizeLLM()
	c.normalizeTranslation()
	if err := c.normalizeSynthesis(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeOperations()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(orDefault(c.Paths.WorkDir, defaultWorkDir)); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(orDefault(c.Paths.OutputDir, defaultOutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(orDefault(c.Paths.StateDir, defaultStateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(orDefault(c.Paths.LogDir, defaultLogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = orDefault(c.API.Bind, defaultAPIBind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("DUBBER_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeTools() {
	c.Download.Binary = orDefault(c.Download.Binary, defaultDownloadBinary)
	c.Download.Format = orDefault(c.Download.Format, defaultDownloadFormat)
	c.Media.FFmpegBinary = orDefault(c.Media.FFmpegBinary, defaultFFmpegBinary)
	c.Media.FFprobeBinary = orDefault(c.Media.FFprobeBinary, defaultFFprobeBinary)
	c.Media.AudioCodec = strings.ToLower(orDefault(c.Media.AudioCodec, defaultAudioCodec))
	c.Media.AudioBitrate = orDefault(c.Media.AudioBitrate, defaultAudioBitrate)
	c.Transcription.Model = orDefault(c.Transcription.Model, defaultTranscriptionModel)
	c.Transcription.VADMethod = strings.ToLower(orDefault(c.Transcription.VADMethod, defaultTranscriptionVAD))
}

func (c *Config) normalizeDiarization() {
	c.Diarization.Model = orDefault(c.Diarization.Model, defaultDiarizationModel)
	c.Diarization.HuggingFaceToken = strings.TrimSpace(c.Diarization.HuggingFaceToken)
	if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.Diarization.HuggingFaceToken = strings.TrimSpace(value)
	} else if value, ok := os.LookupEnv("HF_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.Diarization.HuggingFaceToken = strings.TrimSpace(value)
	}
	if c.Diarization.ProfileSegments <= 0 {
		c.Diarization.ProfileSegments = defaultProfileSegments
	}
	if c.Diarization.ProfileMinSeconds <= 0 {
		c.Diarization.ProfileMinSeconds = defaultProfileMinSeconds
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = orDefault(c.LLM.BaseURL, defaultLLMBaseURL)
	c.LLM.Model = orDefault(c.LLM.Model, defaultLLMModel)
	c.LLM.Referer = orDefault(c.LLM.Referer, defaultLLMReferer)
	c.LLM.Title = orDefault(c.LLM.Title, defaultLLMTitle)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.LLM.APIKey = strings.TrimSpace(value)
	} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok && strings.TrimSpace(value) != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = strings.TrimSpace(value)
	}
}

func (c *Config) normalizeTranslation() {
	if len(c.Translation.LanguageRates) == 0 {
		return
	}
	rates := make(map[string]float64, len(c.Translation.LanguageRates))
	for lang, rate := range c.Translation.LanguageRates {
		key := strings.ToLower(strings.TrimSpace(lang))
		if key == "" {
			continue
		}
		rates[key] = rate
	}
	c.Translation.LanguageRates = rates
}

func (c *Config) normalizeSynthesis() error {
	c.Synthesis.BaseURL = strings.TrimRight(orDefault(c.Synthesis.BaseURL, defaultSynthesisBaseURL), "/")
	c.Synthesis.Model = orDefault(c.Synthesis.Model, defaultSynthesisModel)
	c.Synthesis.OutputFormat = orDefault(c.Synthesis.OutputFormat, defaultSynthesisOutputFormat)
	c.Synthesis.APIKey = strings.TrimSpace(c.Synthesis.APIKey)
	if value, ok := os.LookupEnv("ELEVENLABS_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.Synthesis.APIKey = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Synthesis.CatalogPath) != "" {
		var err error
		if c.Synthesis.CatalogPath, err = expandPath(strings.TrimSpace(c.Synthesis.CatalogPath)); err != nil {
			return fmt.Errorf("synthesis.catalog_path: %w", err)
		}
	}
	voices := defaultVoices()
	for _, lang := range slices.Sorted(maps.Keys(c.Synthesis.DefaultVoices)) {
		key := strings.ToLower(strings.TrimSpace(lang))
		voice := strings.TrimSpace(c.Synthesis.DefaultVoices[lang])
		if key == "" || voice == "" {
			continue
		}
		voices[key] = voice
	}
	c.Synthesis.DefaultVoices = voices
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}
}

func (c *Config) normalizeOperations() {
	c.Metrics.Path = orDefault(c.Metrics.Path, defaultMetricsPath)
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		c.Metrics.Path = "/" + c.Metrics.Path
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Events.AMQPURL = strings.TrimSpace(c.Events.AMQPURL)
	if c.Events.AMQPURL == "" {
		if value, ok := os.LookupEnv("RABBITMQ_URL"); ok {
			c.Events.AMQPURL = strings.TrimSpace(value)
		}
	}
	c.Events.AMQPQueue = orDefault(c.Events.AMQPQueue, defaultAMQPQueue)
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
