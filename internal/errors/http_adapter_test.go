package errors

import (
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPErrorAdapter_StatusCodeFor(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.New(slog.DiscardHandler))

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, http.StatusOK},
		{"validation", InvalidArguments("bad"), http.StatusBadRequest},
		{"rejected source", SourceRejected("not a zip"), http.StatusBadRequest},
		{"clone failed", CloneFailed("https://example.com/x.git", stdErrors.New("timeout")), http.StatusBadGateway},
		{"runtime", New(CategoryRuntime, SeverityError, "queue full"), http.StatusServiceUnavailable},
		{"staging", StagingFailed("copy", "/srv", stdErrors.New("disk full")), http.StatusInternalServerError},
		{"unclassified", stdErrors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.StatusCodeFor(tt.err); got != tt.expected {
				t.Errorf("StatusCodeFor() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestHTTPErrorAdapter_WriteErrorResponse(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.New(slog.DiscardHandler))
	req := httptest.NewRequest(http.MethodPost, "/api/deploys", nil)
	rec := httptest.NewRecorder()

	adapter.WriteErrorResponse(rec, req, CloneFailed("https://example.com/x.git", stdErrors.New("reset")))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body HTTPErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "repository clone failed" || body.Code != "network" || !body.Retryable {
		t.Errorf("unexpected body: %+v", body)
	}
	if body.Details["url"] != "https://example.com/x.git" {
		t.Errorf("details = %v", body.Details)
	}
}

func TestHTTPErrorAdapter_UnclassifiedMessage(t *testing.T) {
	resp := NewHTTPErrorAdapter(nil).FormatErrorResponse(stdErrors.New("plain"))
	if resp.Error != "plain" || resp.Code != "" {
		t.Errorf("unexpected response: %+v", resp)
	}
}
