package config

import "time"

// Defaults for a bare invocation.
const (
	DefaultTool          = "npm"
	DefaultManifest      = "package.json"
	DefaultTimeout       = 600 * time.Second
	DefaultFallbackTitle = "Deployment"
	DefaultSubject       = "deploybuilder.events"
	DefaultDebounce      = 2 * time.Second
	DefaultListen        = ":8080"
	DefaultDataDir       = "./deploybuilder-data"
	DefaultWorkers       = 2
	DefaultRetention     = 7 * 24 * time.Hour
	DefaultMaxUpload     = 100 << 20
	DefaultQueueSize     = 100
	DefaultCloneRetries  = 2
)

// DefaultCandidates is the artifact directory priority list. Order matters:
// framework output directories win over a generic public folder.
func DefaultCandidates() []string {
	return []string{"dist", "build", "out", ".next/standalone", ".next/out", "public", "_site"}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Build: BuildConfig{
			Tool:           DefaultTool,
			InstallCommand: []string{"npm", "install"},
			BuildCommand:   []string{"npm", "run", "build"},
			Timeout:        DefaultTimeout,
		},
		Classify: ClassifyConfig{
			Manifest: DefaultManifest,
		},
		Artifacts: ArtifactsConfig{
			Candidates: DefaultCandidates(),
		},
		Fallback: FallbackConfig{
			Title: DefaultFallbackTitle,
		},
		Notify: NotifyConfig{
			Subject: DefaultSubject,
		},
		Watch: WatchConfig{
			Debounce: DefaultDebounce,
			Ignore:   []string{"node_modules", ".git"},
		},
		Server: ServerConfig{
			Listen:         DefaultListen,
			DataDir:        DefaultDataDir,
			Workers:        DefaultWorkers,
			Retention:      DefaultRetention,
			MaxUploadBytes: DefaultMaxUpload,
			QueueSize:      DefaultQueueSize,
			CloneRetries:   DefaultCloneRetries,
			RetryBackoff:   RetryBackoffLinear,
		},
		Logging: LoggingConfig{
			Level:  string(LogLevelInfo),
			Format: string(LogFormatText),
		},
	}
}

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// BuildDefaultApplier refills build keys that were explicitly emptied.
type BuildDefaultApplier struct{}

func (BuildDefaultApplier) Domain() string { return "build" }

func (BuildDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Build.Tool == "" {
		cfg.Build.Tool = DefaultTool
	}
	if cfg.Build.Timeout == 0 {
		cfg.Build.Timeout = DefaultTimeout
	}
	return nil
}

// ClassifyDefaultApplier handles classification defaults.
type ClassifyDefaultApplier struct{}

func (ClassifyDefaultApplier) Domain() string { return "classify" }

func (ClassifyDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Classify.Manifest == "" {
		cfg.Classify.Manifest = DefaultManifest
	}
	if cfg.Fallback.Title == "" {
		cfg.Fallback.Title = DefaultFallbackTitle
	}
	return nil
}

// RuntimeDefaultApplier handles watch, notify, server and logging defaults.
type RuntimeDefaultApplier struct{}

func (RuntimeDefaultApplier) Domain() string { return "runtime" }

func (RuntimeDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = DefaultSubject
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultListen
	}
	if cfg.Server.DataDir == "" {
		cfg.Server.DataDir = DefaultDataDir
	}
	if cfg.Server.Workers <= 0 {
		cfg.Server.Workers = DefaultWorkers
	}
	if cfg.Server.Retention <= 0 {
		cfg.Server.Retention = DefaultRetention
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = DefaultMaxUpload
	}
	if cfg.Server.QueueSize <= 0 {
		cfg.Server.QueueSize = DefaultQueueSize
	}
	if cfg.Server.RetryBackoff == "" {
		cfg.Server.RetryBackoff = RetryBackoffLinear
	}
	cfg.Logging.Level = string(NormalizeLogLevel(cfg.Logging.Level))
	cfg.Logging.Format = string(NormalizeLogFormat(cfg.Logging.Format))
	return nil
}

var defaultAppliers = []DefaultApplier{
	BuildDefaultApplier{},
	ClassifyDefaultApplier{},
	RuntimeDefaultApplier{},
}

// ApplyDefaults runs every domain applier in order.
func ApplyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}
