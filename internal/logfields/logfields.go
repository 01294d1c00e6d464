package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID       = "run_id"
	KeyProject     = "project"
	KeyDeploy      = "deploy"
	KeyProjectType = "project_type"
	KeyStage       = "stage"
	KeyCommand     = "command"
	KeyDir         = "dir"
	KeyArtifact    = "artifact"
	KeyOutcome     = "outcome"
	KeySource      = "source"
	KeyPath        = "path"
	KeyURL         = "url"
	KeyMethod      = "method"
	KeyStatus      = "status"
	KeyDurationMS  = "duration_ms"
	KeyStdout      = "stdout"
	KeyStderr      = "stderr"
	KeyError       = "error"
	KeyJobID       = "job_id"
	KeySite        = "site"
	KeyUserAgent   = "user_agent"
	KeyRemoteAddr  = "remote_addr"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Project(p string) slog.Attr      { return slog.String(KeyProject, p) }
func Deploy(p string) slog.Attr       { return slog.String(KeyDeploy, p) }
func ProjectType(t string) slog.Attr  { return slog.String(KeyProjectType, t) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Command(cmd string) slog.Attr    { return slog.String(KeyCommand, cmd) }
func Dir(d string) slog.Attr          { return slog.String(KeyDir, d) }
func Artifact(p string) slog.Attr     { return slog.String(KeyArtifact, p) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Source(s string) slog.Attr       { return slog.String(KeySource, s) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Stdout(s string) slog.Attr       { return slog.String(KeyStdout, s) }
func Stderr(s string) slog.Attr       { return slog.String(KeyStderr, s) }
func JobID(id string) slog.Attr       { return slog.String(KeyJobID, id) }
func Site(s string) slog.Attr         { return slog.String(KeySite, s) }
func UserAgent(ua string) slog.Attr   { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(a string) slog.Attr   { return slog.String(KeyRemoteAddr, a) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
