package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EnsureDirectories creates the work, output, state and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.StateDir, c.Paths.LogDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) DatabasePath() string { return filepath.Join(c.Paths.StateDir, "jobs.db") }
func (c *Config) LockPath() string     { return filepath.Join(c.Paths.StateDir, "dubber.lock") }

// JobWorkDir is the scratch directory removed after a job finishes.
func (c *Config) JobWorkDir(jobID string) string { return filepath.Join(c.Paths.WorkDir, jobID) }

// JobOutputDir holds the dubbed file and its sidecar artifacts.
func (c *Config) JobOutputDir(jobID string) string { return filepath.Join(c.Paths.OutputDir, jobID) }

// JobLogPath is the per-job JSON lines log served by the logs endpoint.
func (c *Config) JobLogPath(jobID string) string {
	return filepath.Join(c.Paths.LogDir, "jobs", jobID+".log")
}

func (c *Config) CapabilityTimeout() time.Duration {
	return time.Duration(c.Workflow.CapabilityTimeoutSeconds) * time.Second
}

func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Workflow.RetryBaseDelayMillis) * time.Millisecond
}

func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Workflow.RetryMaxDelayMillis) * time.Millisecond
}

// WordsPerSecond prefers translation.language_rates for the target language
// over the global rate.
func (c *Config) WordsPerSecond(language string) float64 {
	if rate := c.Translation.LanguageRates[strings.ToLower(strings.TrimSpace(language))]; rate > 0 {
		return rate
	}
	return c.Translation.WordsPerSecond
}

// LLMConfig is the trimmed connection view of the [llm] section.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

func (c *Config) GetLLM() LLMConfig {
	t := strings.TrimSpace
	return LLMConfig{
		APIKey:         t(c.LLM.APIKey),
		BaseURL:        t(c.LLM.BaseURL),
		Model:          t(c.LLM.Model),
		Referer:        t(c.LLM.Referer),
		Title:          t(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
