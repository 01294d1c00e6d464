package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
		out:     os.Stderr,
	}
}

// WithOutput redirects user-facing error text (tests).
func (a *CLIErrorAdapter) WithOutput(w io.Writer) *CLIErrorAdapter {
	a.out = w
	return a
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	if de, ok := As(err); ok {
		return a.exitCodeFromDeployError(de)
	}

	return 1
}

// exitCodeFromDeployError maps DeployError to exit codes. Invocation problems
// (bad argument count, missing project) must exit 1.
func (a *CLIErrorAdapter) exitCodeFromDeployError(err *DeployError) int {
	switch err.Category {
	case CategoryValidation:
		return 1
	case CategoryConfig:
		return 2
	case CategoryFileSystem:
		return 3
	case CategorySource, CategoryNetwork:
		return 4
	case CategoryRuntime:
		return 12
	case CategoryInternal:
		return 10
	default:
		return 1
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	if de, ok := As(err); ok {
		return a.formatDeployError(de)
	}

	return fmt.Sprintf("Error: %v", err)
}

func (a *CLIErrorAdapter) formatDeployError(err *DeployError) string {
	if a.verbose {
		return err.Error()
	}

	switch err.Category {
	case CategoryConfig, CategoryValidation:
		if reason, ok := err.Context["reason"]; ok {
			return fmt.Sprintf("%s: %v", err.Message, reason)
		}
		if path, ok := err.Context["path"]; ok {
			return fmt.Sprintf("%s: %v", err.Message, path)
		}
		return err.Message
	default:
		return fmt.Sprintf("%s: %s", err.Category, err.Message)
	}
}

// Handle logs and prints an error and returns the exit code the caller should use.
func (a *CLIErrorAdapter) Handle(err error) int {
	if err == nil {
		return 0
	}

	if a.shouldLog(err) {
		a.logError(err)
	}
	_, _ = fmt.Fprintf(a.out, "%s\n", a.FormatError(err))
	return a.ExitCodeFor(err)
}

func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}

	if de, ok := As(err); ok {
		return de.Category == CategoryInternal ||
			de.Category == CategoryRuntime ||
			de.Severity == SeverityFatal
	}

	return true
}

func (a *CLIErrorAdapter) logError(err error) {
	if de, ok := As(err); ok {
		attrs := []slog.Attr{
			slog.String("category", string(de.Category)),
		}
		for k, v := range de.Context {
			attrs = append(attrs, slog.Any(k, v))
		}
		if de.Cause != nil {
			attrs = append(attrs, slog.String("error", de.Cause.Error()))
		}
		if de.Retryable {
			attrs = append(attrs, slog.Bool("retryable", true))
		}

		a.logger.LogAttrs(context.Background(), levelFromSeverity(de.Severity), de.Message, attrs...)
		return
	}

	a.logger.Error("Unclassified error", "error", err)
}

func levelFromSeverity(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
