package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// HTTPErrorAdapter writes DeployErrors as JSON responses for the serve API.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

// NewHTTPErrorAdapter creates an adapter. A nil logger means slog.Default().
func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

// HTTPErrorResponse is the JSON error payload.
type HTTPErrorResponse struct {
	Error     string         `json:"error"`
	Code      string         `json:"code,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
}

// StatusCodeFor maps an error's category to an HTTP status. Unclassified
// errors map to 500.
func (a *HTTPErrorAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	de, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch de.Category {
	case CategoryValidation, CategoryConfig, CategorySource:
		return http.StatusBadRequest
	case CategoryNetwork:
		return http.StatusBadGateway
	case CategoryRuntime:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FormatErrorResponse converts err into the canonical payload.
func (a *HTTPErrorAdapter) FormatErrorResponse(err error) HTTPErrorResponse {
	if err == nil {
		return HTTPErrorResponse{}
	}
	de, ok := As(err)
	if !ok {
		return HTTPErrorResponse{Error: err.Error()}
	}
	resp := HTTPErrorResponse{Error: de.Message, Code: string(de.Category), Retryable: de.Retryable}
	if len(de.Context) > 0 {
		resp.Details = map[string]any(de.Context)
	}
	return resp
}

// WriteErrorResponse writes err as JSON and logs it at its severity.
func (a *HTTPErrorAdapter) WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := a.StatusCodeFor(err)
	b, jerr := json.Marshal(a.FormatErrorResponse(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if jerr != nil {
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}
	_, _ = w.Write(b)

	if err == nil {
		return
	}
	level := slog.LevelError
	if de, ok := As(err); ok {
		level = levelFromSeverity(de.Severity)
		if status < http.StatusInternalServerError && level > slog.LevelWarn {
			level = slog.LevelWarn
		}
	}
	a.logger.Log(r.Context(), level, "HTTP request failed", "path", r.URL.Path, "status", status, "error", err.Error())
}
