package config

import (
	"fmt"
	"os"
	"time"

	"github.com/systmms/sbomflow/internal/logging"
	"gopkg.in/yaml.v3"
)

// Environment variables honored as overrides over sbomflow.yaml. The
// deployment layer sets these; the file is for local development.
const (
	AnalyzerBaseEnv = "DT_API_BASE"
	QueueURLEnv     = "DT_QUEUE_URL"
	BucketEnv       = "SBOM_BUCKET_NAME"
)

// Config holds the runtime configuration.
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition represents the sbomflow.yaml structure.
type Definition struct {
	Version     int               `yaml:"version"`
	Analyzer    AnalyzerConfig    `yaml:"analyzer"`
	SecretStore SecretStoreConfig `yaml:"secretStore"`
	Storage     StorageConfig     `yaml:"storage"`
	Queue       QueueConfig       `yaml:"queue"`
	Polling     PollingConfig     `yaml:"polling"`
}

// AnalyzerConfig describes how to reach the vulnerability analyzer.
type AnalyzerConfig struct {
	BaseURL         string `yaml:"base_url"`
	AdminUser       string `yaml:"admin_user,omitempty"`
	DefaultPassword string `yaml:"default_password,omitempty"`
	TimeoutMs       int    `yaml:"timeout_ms,omitempty"`
}

// SecretStoreConfig selects and configures the secret store backend.
type SecretStoreConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:",inline"`
}

// StorageConfig describes the SBOM bucket.
type StorageConfig struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// QueueConfig describes the enrichment trigger queue.
type QueueConfig struct {
	URL      string `yaml:"url"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// PollingConfig bounds the analysis status wait.
type PollingConfig struct {
	IntervalMs int `yaml:"interval_ms,omitempty"`
	TimeoutMs  int `yaml:"timeout_ms,omitempty"`
}

// ConfigError represents a configuration-file error with helpful context.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message
	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}
	return msg
}

// Load reads and parses the sbomflow.yaml file, then applies environment
// overrides and defaults.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create sbomflow.yaml or pass --config",
			}
		}
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
		}
	}

	if def.Version != 0 {
		return ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your sbomflow.yaml file",
		}
	}

	def.applyOverrides()
	def.applyDefaults()

	if err := def.validate(); err != nil {
		return err
	}

	c.Definition = &def
	return nil
}

func (d *Definition) applyOverrides() {
	if v := os.Getenv(AnalyzerBaseEnv); v != "" {
		d.Analyzer.BaseURL = v
	}
	if v := os.Getenv(QueueURLEnv); v != "" {
		d.Queue.URL = v
	}
	if v := os.Getenv(BucketEnv); v != "" {
		d.Storage.Bucket = v
	}
}

func (d *Definition) applyDefaults() {
	if d.Analyzer.AdminUser == "" {
		d.Analyzer.AdminUser = "admin"
	}
	if d.Analyzer.DefaultPassword == "" {
		d.Analyzer.DefaultPassword = "admin"
	}
	if d.Analyzer.TimeoutMs == 0 {
		d.Analyzer.TimeoutMs = 30000
	}
	if d.SecretStore.Type == "" {
		d.SecretStore.Type = "aws.ssm"
	}
	if d.Polling.IntervalMs == 0 {
		d.Polling.IntervalMs = 500
	}
	if d.Polling.TimeoutMs == 0 {
		d.Polling.TimeoutMs = int(5 * time.Minute / time.Millisecond)
	}
}

func (d *Definition) validate() error {
	if d.Analyzer.BaseURL == "" {
		return ConfigError{
			Field:      "analyzer.base_url",
			Message:    "analyzer base URL is required",
			Suggestion: fmt.Sprintf("Set analyzer.base_url or the %s environment variable", AnalyzerBaseEnv),
		}
	}
	if d.Storage.Bucket == "" {
		return ConfigError{
			Field:      "storage.bucket",
			Message:    "SBOM bucket name is required",
			Suggestion: fmt.Sprintf("Set storage.bucket or the %s environment variable", BucketEnv),
		}
	}
	return nil
}

// PollInterval returns the status polling interval as a duration.
func (d *Definition) PollInterval() time.Duration {
	return time.Duration(d.Polling.IntervalMs) * time.Millisecond
}

// PollTimeout returns the polling deadline as a duration.
func (d *Definition) PollTimeout() time.Duration {
	return time.Duration(d.Polling.TimeoutMs) * time.Millisecond
}

// AnalyzerTimeout returns the per-request analyzer HTTP timeout.
func (d *Definition) AnalyzerTimeout() time.Duration {
	return time.Duration(d.Analyzer.TimeoutMs) * time.Millisecond
}
