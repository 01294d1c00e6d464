package pipeline

import (
	"time"

	"git.home.luguber.info/inful/deploybuilder/internal/build"
	"git.home.luguber.info/inful/deploybuilder/internal/project"
	"git.home.luguber.info/inful/deploybuilder/internal/stage"
)

// Stage names used for timings and metrics.
const (
	StageClassify = "classify"
	StageBuild    = "build"
	StageLocate   = "locate"
	StageStage    = "stage"
)

// StageTiming records how long one pipeline stage took.
type StageTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Report summarizes one pipeline run.
type Report struct {
	RunID           string        `json:"run_id"`
	ProjectRoot     string        `json:"project_root"`
	DeployTarget    string        `json:"deploy_target"`
	ProjectType     project.Type  `json:"project_type"`
	Outcome         build.Outcome `json:"outcome"`
	Artifact        string        `json:"artifact,omitempty"`
	Source          stage.Source  `json:"source"`
	FallbackMessage string        `json:"fallback_message,omitempty"`
	SafetyNet       bool          `json:"safety_net"`
	IndexTitle      string        `json:"index_title,omitempty"`
	Started         time.Time     `json:"started"`
	Duration        time.Duration `json:"duration"`
	Stages          []StageTiming `json:"stages"`
}
