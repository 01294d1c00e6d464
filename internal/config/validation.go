package config

import (
	"path"
	"strings"

	derrors "git.home.luguber.info/inful/deploybuilder/internal/errors"
)

// Validate rejects configurations the pipeline cannot run with.
func Validate(cfg *Config) error {
	if cfg.Build.Timeout < 0 {
		return derrors.ConfigInvalid("build.timeout", "must be positive")
	}
	if len(cfg.Build.InstallCommand) == 0 || strings.TrimSpace(cfg.Build.InstallCommand[0]) == "" {
		return derrors.ConfigInvalid("build.install_command", "must name an executable")
	}
	if len(cfg.Build.BuildCommand) == 0 || strings.TrimSpace(cfg.Build.BuildCommand[0]) == "" {
		return derrors.ConfigInvalid("build.build_command", "must name an executable")
	}
	if len(cfg.Artifacts.Candidates) == 0 {
		return derrors.ConfigInvalid("artifacts.candidates", "at least one candidate directory is required")
	}
	for _, c := range cfg.Artifacts.Candidates {
		if c == "" || path.IsAbs(c) || strings.HasPrefix(path.Clean(c), "..") {
			return derrors.ConfigInvalid("artifacts.candidates", "candidates must be relative paths inside the project: "+c)
		}
	}
	if strings.ContainsAny(cfg.Classify.Manifest, `/\`) {
		return derrors.ConfigInvalid("classify.manifest", "must be a file name at the project root")
	}
	if cfg.Server.Workers < 0 {
		return derrors.ConfigInvalid("server.workers", "must not be negative")
	}
	if cfg.Server.CloneRetries < 0 {
		return derrors.ConfigInvalid("server.clone_retries", "must not be negative")
	}
	switch cfg.Server.RetryBackoff {
	case "", RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential:
	default:
		return derrors.ConfigInvalid("server.retry_backoff", "must be fixed, linear or exponential")
	}
	return nil
}
