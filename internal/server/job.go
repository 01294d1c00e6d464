package server

import (
	"regexp"
	"time"

	"git.home.luguber.info/inful/deploybuilder/internal/git"
	"git.home.luguber.info/inful/deploybuilder/internal/pipeline"
	"git.home.luguber.info/inful/deploybuilder/internal/workspace"
)

// Status is the lifecycle state of a deploy job.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusBuilding Status = "building"
	StatusDeployed Status = "deployed"
	StatusFailed   Status = "failed"
)

// Job is one deploy request.
type Job struct {
	ID          string           `json:"id"`
	Site        string           `json:"site"`
	Status      Status           `json:"status"`
	Source      string           `json:"source"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       string           `json:"error,omitempty"`
	Report      *pipeline.Report `json:"report,omitempty"`
	URL         string           `json:"url,omitempty"`

	projectDir string
	repo       *git.Source
	ws         *workspace.Workspace
}

// SourceUpload marks jobs built from an uploaded archive.
const SourceUpload = "upload"

var siteName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,62}$`)

// validSite reports whether name is usable as a site directory and URL segment.
func validSite(name string) bool {
	return siteName.MatchString(name) && name != "." && name != ".."
}
