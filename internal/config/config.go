package config

// Paths contains directory configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
}

// API contains the HTTP surface bind address and optional bearer token.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Workflow contains pipeline concurrency, timeout, and retry settings.
type Workflow struct {
	MaxConcurrentJobs        int `toml:"max_concurrent_jobs"`
	SegmentWorkers           int `toml:"segment_workers"`
	CapabilityTimeoutSeconds int `toml:"capability_timeout_seconds"`
	RetryMaxAttempts         int `toml:"retry_max_attempts"`
	RetryBaseDelayMillis     int `toml:"retry_base_delay_ms"`
	RetryMaxDelayMillis      int `toml:"retry_max_delay_ms"`
	HeartbeatInterval        int `toml:"heartbeat_interval"`
}

// Download contains media acquisition settings.
type Download struct {
	Binary         string `toml:"binary"`
	Format         string `toml:"format"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Media contains ffmpeg/ffprobe settings.
type Media struct {
	FFmpegBinary          string `toml:"ffmpeg_binary"`
	FFprobeBinary         string `toml:"ffprobe_binary"`
	ExtractSampleRate     int    `toml:"extract_sample_rate"`
	TrackSampleRate       int    `toml:"track_sample_rate"`
	AudioCodec            string `toml:"audio_codec"`
	AudioBitrate          string `toml:"audio_bitrate"`
	CommandTimeoutSeconds int    `toml:"command_timeout_seconds"`
}

// Diarization contains pyannote speaker diarization settings.
type Diarization struct {
	Model             string  `toml:"model"`
	HuggingFaceToken  string  `toml:"hf_token"`
	MinSpeakers       int     `toml:"min_speakers"`
	MaxSpeakers       int     `toml:"max_speakers"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	ProfileSegments   int     `toml:"profile_segments"`
	ProfileMinSeconds float64 `toml:"profile_min_seconds"`
}

// Transcription contains WhisperX settings.
type Transcription struct {
	Model          string `toml:"model"`
	CUDAEnabled    bool   `toml:"cuda_enabled"`
	VADMethod      string `toml:"vad_method"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LLM contains connection settings for the translation backend.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Translation contains the word budget policy for timing-aware translation.
type Translation struct {
	WordsPerSecond   float64            `toml:"words_per_second"`
	LanguageRates    map[string]float64 `toml:"language_rates"`
	OverageTolerance float64            `toml:"overage_tolerance"`
	TightenFactor    float64            `toml:"tighten_factor"`
	TightenRetries   int                `toml:"tighten_retries"`
}

// Synthesis contains speech synthesis API settings and speed correction bounds.
type Synthesis struct {
	BaseURL               string            `toml:"base_url"`
	APIKey                string            `toml:"api_key"`
	Model                 string            `toml:"model"`
	OutputFormat          string            `toml:"output_format"`
	TimeoutSeconds        int               `toml:"timeout_seconds"`
	MinRate               float64           `toml:"min_rate"`
	MaxRate               float64           `toml:"max_rate"`
	DriftToleranceSeconds float64           `toml:"drift_tolerance_seconds"`
	CatalogPath           string            `toml:"catalog_path"`
	DefaultVoices         map[string]string `toml:"default_voices"`
}

// VoiceMatching contains the scoring weights and band cutoffs used to pair
// speakers with synthesis voices.
type VoiceMatching struct {
	PitchWeight       float64 `toml:"pitch_weight"`
	AgeWeight         float64 `toml:"age_weight"`
	EnergyWeight      float64 `toml:"energy_weight"`
	AccentWeight      float64 `toml:"accent_weight"`
	FemalePitchMin    float64 `toml:"female_pitch_min"`
	FemalePitchMax    float64 `toml:"female_pitch_max"`
	MalePitchMin      float64 `toml:"male_pitch_min"`
	MalePitchMax      float64 `toml:"male_pitch_max"`
	YoungCentroidMin  float64 `toml:"young_centroid_min"`
	MatureCentroidMax float64 `toml:"mature_centroid_max"`
	AgeFalloff        float64 `toml:"age_falloff"`
	EnergeticRMSMin   float64 `toml:"energetic_rms_min"`
	CalmRMSMax        float64 `toml:"calm_rms_max"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	File           bool              `toml:"file"`
	MaxSizeMB      int               `toml:"max_size_mb"`
	MaxBackups     int               `toml:"max_backups"`
	MaxAgeDays     int               `toml:"max_age_days"`
	Compress       bool              `toml:"compress"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Metrics contains Prometheus exposition settings.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobCompleted   bool   `toml:"job_completed"`
	JobFailed      bool   `toml:"job_failed"`
}

// Events contains job event bus settings.
type Events struct {
	BufferSize int    `toml:"buffer_size"`
	AMQPURL    string `toml:"amqp_url"`
	AMQPQueue  string `toml:"amqp_queue"`
}

// Retention controls purging of finished jobs.
type Retention struct {
	Enabled              bool `toml:"enabled"`
	MaxAgeHours          int  `toml:"max_age_hours"`
	SweepIntervalMinutes int  `toml:"sweep_interval_minutes"`
}

// Config encapsulates all configuration values for the dubbing daemon and CLI.
//
// Configuration sections by subsystem:
//   - Paths: job working directories, outputs, state, logs
//   - API: HTTP bind address and bearer token
//   - Workflow: job pool size, segment workers, capability timeouts and retries
//   - Download, Media: yt-dlp and ffmpeg tooling
//   - Diarization, Transcription: pyannote and WhisperX settings
//   - LLM, Translation: translation backend and word budget policy
//   - Synthesis, VoiceMatching: voice catalog, speed clamp, scoring thresholds
//   - Logging, Metrics, Notifications, Events, Retention: operations
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Workflow      Workflow      `toml:"workflow"`
	Download      Download      `toml:"download"`
	Media         Media         `toml:"media"`
	Diarization   Diarization   `toml:"diarization"`
	Transcription Transcription `toml:"transcription"`
	LLM           LLM           `toml:"llm"`
	Translation   Translation   `toml:"translation"`
	Synthesis     Synthesis     `toml:"synthesis"`
	VoiceMatching VoiceMatching `toml:"voice_matching"`
	Logging       Logging       `toml:"logging"`
	Metrics       Metrics       `toml:"metrics"`
	Notifications Notifications `toml:"notifications"`
	Events        Events        `toml:"events"`
	Retention     Retention     `toml:"retention"`
}
