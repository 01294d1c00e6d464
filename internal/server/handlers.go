package server

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	derrors "git.home.luguber.info/inful/deploybuilder/internal/errors"
	"git.home.luguber.info/inful/deploybuilder/internal/git"
	"git.home.luguber.info/inful/deploybuilder/internal/version"
)

// extractionFactor bounds uncompressed archive size relative to the upload limit.
const extractionFactor = 8

// maxJSONBody bounds repository deploy requests.
const maxJSONBody = 1 << 20

// deployRequest is the JSON body of a repository deploy.
type deployRequest struct {
	Repository string `json:"repository"`
	Branch     string `json:"branch,omitempty"`
	Site       string `json:"site,omitempty"`
	Token      string `json:"token,omitempty"`
}

// storedEvent is one history entry returned by the events endpoint.
type storedEvent struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Event     json.RawMessage `json:"event"`
}

type healthResponse struct {
	Status  string  `json:"status"`
	Version string  `json:"version"`
	Queue   int     `json:"queue"`
	Uptime  float64 `json:"uptime_seconds"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, derrors.HTTPErrorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Version: version.Resolved(), Queue: s.queue.Length()}
	if !s.started.IsZero() {
		resp.Uptime = time.Since(s.started).Seconds()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		job *Job
		err error
	)
	switch mediaType {
	case "multipart/form-data":
		job, err = s.acceptUpload(w, r)
	case "application/json", "":
		job, err = s.acceptRepository(w, r)
	default:
		s.writeError(w, http.StatusUnsupportedMediaType, "expected multipart/form-data or application/json")
		return
	}
	if err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}

	if err := s.queue.Enqueue(job); err != nil {
		if job.ws != nil {
			_ = job.ws.Cleanup()
		}
		if errors.Is(err, ErrQueueFull) {
			err = derrors.New(derrors.CategoryRuntime, derrors.SeverityWarning, err.Error())
		}
		s.errs.WriteErrorResponse(w, r, err)
		return
	}

	snap, _ := s.queue.Snapshot(job.ID)
	w.Header().Set("Location", "/api/deploys/"+job.ID)
	s.writeJSON(w, http.StatusAccepted, snap)
}

// newJob allocates an ID, validates the target site and creates the workspace.
func (s *Server) newJob(site, source string) (*Job, error) {
	id := s.newID()
	if site == "" {
		site = id
	}
	if !validSite(site) {
		return nil, derrors.InvalidArguments(fmt.Sprintf("invalid site name %q", site))
	}
	ws, err := s.workspaces.Create(id)
	if err != nil {
		return nil, derrors.WorkspaceError("create", err)
	}
	return &Job{
		ID:        id,
		Site:      site,
		Source:    source,
		CreatedAt: time.Now(),
		URL:       "/sites/" + site + "/",
		ws:        ws,
	}, nil
}

func (s *Server) acceptUpload(w http.ResponseWriter, r *http.Request) (*Job, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, derrors.SourceRejected(fmt.Sprintf("upload exceeds %d bytes", s.cfg.MaxUploadBytes))
		}
		return nil, derrors.SourceRejected("invalid multipart body")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("project")
	if err != nil {
		return nil, derrors.SourceRejected("missing project file")
	}
	defer func() { _ = file.Close() }()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".zip") {
		return nil, derrors.SourceRejected("only .zip archives are accepted")
	}
	zr, err := zip.NewReader(file, header.Size)
	if err != nil {
		return nil, derrors.SourceRejected("invalid zip archive")
	}

	job, err := s.newJob(r.FormValue("site"), SourceUpload)
	if err != nil {
		return nil, err
	}
	dir, err := job.ws.Subdir("project")
	if err == nil {
		err = extractZip(zr, dir, s.cfg.MaxUploadBytes*extractionFactor)
	}
	if err != nil {
		_ = job.ws.Cleanup()
		if errors.Is(err, ErrUnsafeArchive) || errors.Is(err, ErrArchiveTooLarge) {
			return nil, derrors.SourceRejected(err.Error())
		}
		return nil, derrors.WorkspaceError("extract", err)
	}
	job.projectDir = projectRoot(dir)
	return job, nil
}

func (s *Server) acceptRepository(w http.ResponseWriter, r *http.Request) (*Job, error) {
	var req deployRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(&req); err != nil {
		return nil, derrors.InvalidArguments("invalid request body")
	}
	if req.Repository == "" {
		return nil, derrors.InvalidArguments("repository is required")
	}
	if !allowedRepository(req.Repository) {
		return nil, derrors.SourceRejected("unsupported repository URL")
	}

	job, err := s.newJob(req.Site, req.Repository)
	if err != nil {
		return nil, err
	}
	job.repo = &git.Source{URL: req.Repository, Branch: req.Branch, Token: req.Token}
	return job, nil
}

// allowedRepository accepts remote transports only; local paths and file://
// URLs would let clients read the server's filesystem.
func allowedRepository(raw string) bool {
	if strings.HasPrefix(raw, "git@") && strings.Contains(raw, ":") {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "https", "http", "ssh", "git":
		return true
	}
	return false
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.queue.List())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	job, ok := s.queue.Snapshot(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "deploy not found")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotImplemented, "event history is disabled")
		return
	}
	id := chi.URLParam(r, "id")
	stored, err := s.store.GetByRunID(r.Context(), id)
	if err != nil {
		s.errs.WriteErrorResponse(w, r, derrors.InternalError("failed to read event history", err))
		return
	}
	if len(stored) == 0 {
		if _, ok := s.queue.Snapshot(id); !ok {
			s.writeError(w, http.StatusNotFound, "deploy not found")
			return
		}
	}
	out := make([]storedEvent, 0, len(stored))
	for _, e := range stored {
		out = append(out, storedEvent{ID: e.ID, Type: e.Type, Timestamp: e.RecordedAt, Event: e.Payload})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSiteRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
}

func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	site := chi.URLParam(r, "site")
	if !validSite(site) {
		http.NotFound(w, r)
		return
	}
	root := filepath.Join(s.sitesDir, site)
	if _, err := os.Stat(root); err != nil {
		http.NotFound(w, r)
		return
	}
	http.StripPrefix("/sites/"+site, http.FileServer(http.Dir(root))).ServeHTTP(w, r)
}
