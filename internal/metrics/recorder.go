package metrics

import "time"

// Recorder defines observability hooks for pipeline runs. Implementations
// must be safe for concurrent use.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome string) // outcome: not_attempted|succeeded|degraded|failed
	IncProjectType(projectType string)
	IncDeploySource(source string) // source: artifact|project|fallback
	ObserveCommandDuration(command string, d time.Duration, success bool)
	SetQueueDepth(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)         {}
func (NoopRecorder) ObserveRunDuration(time.Duration)                   {}
func (NoopRecorder) IncRunOutcome(string)                               {}
func (NoopRecorder) IncProjectType(string)                              {}
func (NoopRecorder) IncDeploySource(string)                             {}
func (NoopRecorder) ObserveCommandDuration(string, time.Duration, bool) {}
func (NoopRecorder) SetQueueDepth(int)                                  {}
