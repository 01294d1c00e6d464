package build

// Status tags how a build attempt ended.
type Status string

const (
	StatusNotAttempted Status = "not_attempted"
	StatusSucceeded    Status = "succeeded"
	StatusDegraded     Status = "degraded"
	StatusFailed       Status = "failed"
)

// Fixed outcome messages.
const (
	MessageSucceeded = "Build completed successfully"
	MessageDegraded  = "No build script found, serving source files"
	MessageSkipped   = "No build required"
)

// Outcome summarizes a build attempt. It never gates staging.
type Outcome struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// NotAttempted is the outcome for project types without a build procedure.
func NotAttempted() Outcome {
	return Outcome{Status: StatusNotAttempted, Message: MessageSkipped}
}

// Succeeded reports a completed build.
func Succeeded() Outcome { return Outcome{Status: StatusSucceeded, Message: MessageSucceeded} }

// Degraded reports a build step that failed softly.
func Degraded(message string) Outcome { return Outcome{Status: StatusDegraded, Message: message} }

// Failed reports a hard failure with a human-readable reason.
func Failed(message string) Outcome { return Outcome{Status: StatusFailed, Message: message} }

// Success is the boolean view of the outcome: true unless the build failed hard.
// A skipped build counts as successful.
func (o Outcome) Success() bool { return o.Status != StatusFailed }

// Attempted reports whether a build procedure ran.
func (o Outcome) Attempted() bool { return o.Status != StatusNotAttempted && o.Status != "" }

func (s Status) String() string { return string(s) }
