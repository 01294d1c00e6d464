package errors

import (
	"bytes"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestDeployError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DeployError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(CategoryConfig, SeverityFatal, "configuration invalid"),
			expected: "config (fatal): configuration invalid",
		},
		{
			name:     "error with cause",
			err:      Wrap(fmt.Errorf("permission denied"), CategoryFileSystem, SeverityFatal, "deploy staging failed"),
			expected: "filesystem (fatal): deploy staging failed: permission denied",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := test.err.Error()
			if result != test.expected {
				t.Errorf("Error() = %q, want %q", result, test.expected)
			}
		})
	}
}

func TestDeployError_WithContext(t *testing.T) {
	err := New(CategorySource, SeverityWarning, "upload rejected").
		WithContext("file", "site.zip").
		WithContext("size", 42)

	if err.Context == nil {
		t.Fatal("Context should not be nil")
	}
	if err.Context["file"] != "site.zip" {
		t.Errorf("Context[file] = %v, want site.zip", err.Context["file"])
	}
	if err.Context["size"] != 42 {
		t.Errorf("Context[size] = %v, want 42", err.Context["size"])
	}
}

func TestIsCategory(t *testing.T) {
	configErr := New(CategoryConfig, SeverityFatal, "config error")
	fsErr := New(CategoryFileSystem, SeverityFatal, "fs error")
	wrapped := fmt.Errorf("outer: %w", fsErr)
	standardErr := fmt.Errorf("standard error")

	tests := []struct {
		name     string
		err      error
		category ErrorCategory
		expected bool
	}{
		{"config error matches config category", configErr, CategoryConfig, true},
		{"config error doesn't match filesystem category", configErr, CategoryFileSystem, false},
		{"wrapped filesystem error matches", wrapped, CategoryFileSystem, true},
		{"standard error doesn't match any category", standardErr, CategoryConfig, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsCategory(test.err, test.category); got != test.expected {
				t.Errorf("IsCategory() = %v, want %v", got, test.expected)
			}
		})
	}
}

func TestIsRetryableAndCategory(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	clone := CloneFailed("https://example.com/repo.git", cause)
	if !IsRetryable(clone) {
		t.Error("CloneFailed should be retryable")
	}
	if !stdErrors.Is(clone, cause) {
		t.Error("CloneFailed should wrap its cause")
	}
	if IsRetryable(ProjectNotFound("/nope")) {
		t.Error("ProjectNotFound should not be retryable")
	}
	if GetCategory(fmt.Errorf("plain")) != CategoryInternal {
		t.Error("plain errors should classify as internal")
	}
}

func TestConvenienceFunctions(t *testing.T) {
	t.Run("ProjectNotFound", func(t *testing.T) {
		err := ProjectNotFound("/srv/missing")
		if err.Category != CategoryValidation {
			t.Errorf("Category = %v, want %v", err.Category, CategoryValidation)
		}
		if err.Context["path"] != "/srv/missing" {
			t.Errorf("Context[path] = %v", err.Context["path"])
		}
	})

	t.Run("StagingFailed", func(t *testing.T) {
		cause := fmt.Errorf("read-only file system")
		err := StagingFailed("copy", "/srv/deploy", cause)
		if err.Category != CategoryFileSystem {
			t.Errorf("Category = %v, want %v", err.Category, CategoryFileSystem)
		}
		if err.Context["operation"] != "copy" {
			t.Errorf("Context[operation] = %v, want copy", err.Context["operation"])
		}
		if !stdErrors.Is(err, cause) {
			t.Error("StagingFailed should wrap its cause")
		}
	})

	t.Run("ConfigInvalid", func(t *testing.T) {
		err := ConfigInvalid("build.timeout", "must be positive")
		if err.Context["field"] != "build.timeout" || err.Context["reason"] != "must be positive" {
			t.Errorf("unexpected context %v", err.Context)
		}
	})
}

func TestCLIErrorAdapter_ExitCodes(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, 0},
		{"invalid arguments", InvalidArguments("expected 2 arguments"), 1},
		{"missing project", ProjectNotFound("/x"), 1},
		{"config", ConfigInvalid("build.timeout", "bad"), 2},
		{"staging", StagingFailed("copy", "/x", fmt.Errorf("eperm")), 3},
		{"internal", InternalError("boom", nil), 10},
		{"unclassified", fmt.Errorf("plain"), 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(test.err); got != test.code {
				t.Errorf("ExitCodeFor() = %d, want %d", got, test.code)
			}
		})
	}
}

func TestCLIErrorAdapter_Handle(t *testing.T) {
	var logs, out bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil))).WithOutput(&out)

	code := adapter.Handle(ProjectNotFound("/srv/missing"))
	if code != 1 {
		t.Fatalf("Handle() = %d, want 1", code)
	}
	if !strings.Contains(out.String(), "project path does not exist: /srv/missing") {
		t.Errorf("unexpected user message %q", out.String())
	}
	if !strings.Contains(logs.String(), "level=ERROR") {
		t.Errorf("fatal errors should be logged at error level, got %q", logs.String())
	}
}
