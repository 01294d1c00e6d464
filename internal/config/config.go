// Package config loads the optional deploybuilder YAML configuration.
//
// Every key has a default matching the behaviour of a bare invocation, so a
// missing configuration file is never an error. Values may reference
// environment variables (${VAR}); .env and .env.local are loaded first.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	derrors "git.home.luguber.info/inful/deploybuilder/internal/errors"
)

// DefaultPath is the configuration file looked up when --config is not given.
const DefaultPath = "deploybuilder.yaml"

// Config represents the application configuration
type Config struct {
	Build     BuildConfig     `yaml:"build"`
	Classify  ClassifyConfig  `yaml:"classify"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Fallback  FallbackConfig  `yaml:"fallback"`
	State     StateConfig     `yaml:"state"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Notify    NotifyConfig    `yaml:"notify"`
	Watch     WatchConfig     `yaml:"watch"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BuildConfig controls the Node-style install+build procedure.
type BuildConfig struct {
	Tool           string        `yaml:"tool"`
	InstallCommand []string      `yaml:"install_command"`
	BuildCommand   []string      `yaml:"build_command"`
	Timeout        time.Duration `yaml:"timeout"`
}

// ClassifyConfig controls project classification.
type ClassifyConfig struct {
	Manifest string `yaml:"manifest"`
	// LegacyOrder restores the original rule table where any build script
	// classifies as vite, ahead of react-scripts.
	LegacyOrder bool `yaml:"legacy_order"`
}

// ArtifactsConfig lists candidate output directories in priority order.
type ArtifactsConfig struct {
	Candidates []string `yaml:"candidates"`
}

// FallbackConfig controls the synthesized index.html.
type FallbackConfig struct {
	Title string `yaml:"title"`
}

// StateConfig configures the run history database. Empty disables history.
type StateConfig struct {
	Database string `yaml:"database"`
}

// MetricsConfig configures Prometheus textfile export after a run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// NotifyConfig configures pipeline event publication to NATS.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Ignore   []string      `yaml:"ignore"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Listen         string        `yaml:"listen"`
	DataDir        string        `yaml:"data_dir"`
	Workers        int           `yaml:"workers"`
	Retention      time.Duration `yaml:"retention"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	QueueSize      int           `yaml:"queue_size"`
	// CloneRetries bounds retries of transient repository clone failures.
	CloneRetries int              `yaml:"clone_retries"`
	RetryBackoff RetryBackoffMode `yaml:"retry_backoff"`
}

// RetryBackoffMode selects how retry delays grow.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads configuration from the specified file. A missing file yields the
// defaults; an unreadable or malformed file is a config error.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	cfg := Default()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, derrors.ConfigUnreadable(configPath, err)
	}

	if err := Parse(data, cfg); err != nil {
		return nil, derrors.ConfigUnreadable(configPath, err)
	}

	if err := ApplyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse expands environment variables in data and decodes it onto cfg.
func Parse(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// Init writes a configuration file populated with the defaults.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := "# deploybuilder configuration\n# Every key is optional; the values below are the defaults.\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
