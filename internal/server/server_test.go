package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/deploybuilder/internal/command"
	"git.home.luguber.info/inful/deploybuilder/internal/config"
	"git.home.luguber.info/inful/deploybuilder/internal/events"
	"git.home.luguber.info/inful/deploybuilder/internal/eventstore"
	"git.home.luguber.info/inful/deploybuilder/internal/git"
	"git.home.luguber.info/inful/deploybuilder/internal/pipeline"
	"git.home.luguber.info/inful/deploybuilder/internal/stage"
)

// noTools reports every build tool as missing; tests only deploy static projects.
type noTools struct{}

func (noTools) Run(context.Context, []string, string) command.Result { return command.Result{} }
func (noTools) LookPath(string) (string, error)                      { return "", errors.New("not found") }

func testConfig(t *testing.T) config.ServerConfig {
	t.Helper()
	return config.ServerConfig{
		DataDir:        t.TempDir(),
		Workers:        1,
		QueueSize:      10,
		Retention:      24 * time.Hour,
		MaxUploadBytes: 1 << 20,
	}
}

// newTestServer builds a server around a real pipeline and starts its workers.
func newTestServer(t *testing.T, cfg config.ServerConfig, opts ...Option) *Server {
	t.Helper()
	hub := NewHub()
	var sink events.Sink = hub
	p := pipeline.New(config.Default(), pipeline.WithRunner(noTools{}), pipeline.WithSink(sink))
	s, err := New(cfg, p, append([]Option{WithHub(hub)}, opts...)...)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	s.queue.Start(ctx)
	t.Cleanup(func() {
		cancel()
		s.queue.Stop()
	})
	return s
}

func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func uploadRequest(t *testing.T, filename string, archive []byte, site string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if site != "" {
		require.NoError(t, mw.WriteField("site", site))
	}
	fw, err := mw.CreateFormFile("project", filename)
	require.NoError(t, err)
	_, err = fw.Write(archive)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/deploys", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, v any) *http.Request {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/deploys", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func acceptedID(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "queued", body["status"])
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func waitFinished(t *testing.T, s *Server, id string) Job {
	t.Helper()
	require.Eventually(t, func() bool {
		j, ok := s.queue.Snapshot(id)
		return ok && (j.Status == StatusDeployed || j.Status == StatusFailed)
	}, 10*time.Second, 10*time.Millisecond)
	job, _ := s.queue.Snapshot(id)
	return job
}

func TestUploadDeploysSite(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	archive := zipArchive(t, map[string]string{
		"mysite/index.html": "<html><head><title>Hello</title></head></html>",
		"mysite/app.css":    "body{}",
	})

	id := acceptedID(t, serve(s, uploadRequest(t, "mysite.zip", archive, "blog")))
	job := waitFinished(t, s, id)
	require.Equal(t, StatusDeployed, job.Status, job.Error)
	require.Equal(t, "blog", job.Site)
	require.Equal(t, SourceUpload, job.Source)
	require.NotNil(t, job.Report)
	require.Equal(t, stage.SourceProject, job.Report.Source)
	require.Equal(t, "Hello", job.Report.IndexTitle)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/sites/blog/app.css", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "body{}", rec.Body.String())

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/sites/blog/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "<title>Hello</title>")

	entries, err := os.ReadDir(s.workspaces.BaseDir())
	require.NoError(t, err)
	require.Empty(t, entries, "job workspace should be removed")
}

func TestUploadWithoutIndexGetsFallback(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	id := acceptedID(t, serve(s, uploadRequest(t, "p.zip", zipArchive(t, map[string]string{"README.md": "hi", "src/main.js": ""}), "")))
	job := waitFinished(t, s, id)
	require.Equal(t, StatusDeployed, job.Status)
	require.Equal(t, id, job.Site)
	require.FileExists(t, filepath.Join(s.sitesDir, id, stage.IndexFile))
}

func TestUploadRejections(t *testing.T) {
	cases := map[string]struct {
		filename string
		archive  []byte
		site     string
	}{
		"zip slip":      {"evil.zip", nil, ""},
		"not a zip":     {"project.tar.gz", []byte("data"), ""},
		"corrupt zip":   {"broken.zip", []byte("definitely not a zip"), ""},
		"bad site name": {"ok.zip", nil, "../etc"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t, testConfig(t))
			archive := tc.archive
			if archive == nil && name == "zip slip" {
				archive = zipArchive(t, map[string]string{"../../escape.txt": "x"})
			} else if archive == nil {
				archive = zipArchive(t, map[string]string{"index.html": "x"})
			}
			rec := serve(s, uploadRequest(t, tc.filename, archive, tc.site))
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			require.Empty(t, s.queue.List())
			entries, err := os.ReadDir(s.workspaces.BaseDir())
			require.NoError(t, err)
			require.Empty(t, entries)
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxUploadBytes = 512
	s := newTestServer(t, cfg)
	// Stored uncompressed so the upload really exceeds the limit.
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "blob.bin", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write(bytes.Repeat([]byte{'x'}, 4096))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	rec := serve(s, uploadRequest(t, "big.zip", buf.Bytes(), ""))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRepositoryDeploy(t *testing.T) {
	var gotSrc git.Source
	clone := func(_ context.Context, src git.Source, dir string) (string, error) {
		gotSrc = src
		repo := filepath.Join(dir, "repo")
		if err := os.MkdirAll(filepath.Join(repo, ".git"), 0o750); err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(repo, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0o600); err != nil {
			return "", err
		}
		return repo, os.WriteFile(filepath.Join(repo, "index.html"), []byte("<h1>cloned</h1>"), 0o600)
	}
	s := newTestServer(t, testConfig(t), WithCloneFunc(clone))

	id := acceptedID(t, serve(s, jsonRequest(t, map[string]string{
		"repository": "https://example.com/team/site.git",
		"branch":     "main",
		"site":       "docs",
	})))
	job := waitFinished(t, s, id)
	require.Equal(t, StatusDeployed, job.Status, job.Error)
	require.Equal(t, "https://example.com/team/site.git", job.Source)
	require.Equal(t, "main", gotSrc.Branch)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/sites/docs/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "cloned")
	require.NoDirExists(t, filepath.Join(s.sitesDir, "docs", ".git"))
}

func TestRepositoryDeployDropsLinksOutsideCheckout(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "server-secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("host secret"), 0o600))

	clone := func(_ context.Context, _ git.Source, dir string) (string, error) {
		repo := filepath.Join(dir, "repo")
		if err := os.MkdirAll(repo, 0o750); err != nil {
			return "", err
		}
		if err := os.Symlink(secret, filepath.Join(repo, "leak.txt")); err != nil {
			return "", err
		}
		return repo, os.WriteFile(filepath.Join(repo, "index.html"), []byte("<h1>cloned</h1>"), 0o600)
	}
	var rec events.Recorder
	s := newTestServer(t, testConfig(t), WithCloneFunc(clone), WithSink(&rec))

	id := acceptedID(t, serve(s, jsonRequest(t, map[string]string{
		"repository": "https://example.com/team/site.git",
		"site":       "docs",
	})))
	job := waitFinished(t, s, id)
	require.Equal(t, StatusDeployed, job.Status, job.Error)

	res := serve(s, httptest.NewRequest(http.MethodGet, "/sites/docs/leak.txt", nil))
	require.Equal(t, http.StatusNotFound, res.Code)
	require.NotContains(t, res.Body.String(), "host secret")
	_, err := os.Lstat(filepath.Join(s.sitesDir, "docs", "leak.txt"))
	require.True(t, os.IsNotExist(err))
	removed, ok := rec.Find(events.LinksRemoved)
	require.True(t, ok)
	require.Contains(t, removed.Message, "leak.txt")
}

func TestRepositoryCloneFailureFailsJob(t *testing.T) {
	var rec events.Recorder
	clone := func(context.Context, git.Source, string) (string, error) {
		return "", errors.New("authentication required")
	}
	s := newTestServer(t, testConfig(t), WithCloneFunc(clone), WithSink(&rec))

	id := acceptedID(t, serve(s, jsonRequest(t, map[string]string{"repository": "https://example.com/private.git"})))
	job := waitFinished(t, s, id)
	require.Equal(t, StatusFailed, job.Status)
	require.Contains(t, job.Error, "authentication required")
	require.Nil(t, job.Report)

	e, ok := rec.Find(events.RunFailed)
	require.True(t, ok)
	require.Equal(t, id, e.RunID)
}

func TestRepositoryRequestValidation(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	for _, body := range []any{
		map[string]string{},
		map[string]string{"repository": "/etc"},
		map[string]string{"repository": "file:///etc/passwd"},
		map[string]string{"repository": "https://example.com/x.git", "site": "a/b"},
	} {
		rec := serve(s, jsonRequest(t, body))
		require.Equal(t, http.StatusBadRequest, rec.Code, "%v: %s", body, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/api/deploys", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusBadRequest, serve(s, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/deploys", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/plain")
	require.Equal(t, http.StatusUnsupportedMediaType, serve(s, req).Code)
}

func TestQueueFullReturns503(t *testing.T) {
	cfg := testConfig(t)
	cfg.QueueSize = 1
	p := pipeline.New(config.Default(), pipeline.WithRunner(noTools{}))
	s, err := New(cfg, p, WithCloneFunc(func(context.Context, git.Source, string) (string, error) { return "", nil }))
	require.NoError(t, err)
	// workers never started, so the first job stays queued

	body := map[string]string{"repository": "https://example.com/x.git"}
	acceptedID(t, serve(s, jsonRequest(t, body)))
	rec := serve(s, jsonRequest(t, body))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	entries, err := os.ReadDir(s.workspaces.BaseDir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "rejected job workspace should be removed")
}

func TestGetAndListDeploys(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	id := acceptedID(t, serve(s, uploadRequest(t, "p.zip", zipArchive(t, map[string]string{"index.html": "x"}), "")))
	waitFinished(t, s, id)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/deploys/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "deployed", got["status"])
	require.Equal(t, "/sites/"+id+"/", got["url"])
	require.NotNil(t, got["report"])

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/deploys", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	require.Equal(t, http.StatusNotFound, serve(s, httptest.NewRequest(http.MethodGet, "/api/deploys/nope", nil)).Code)
	require.Equal(t, http.StatusNotFound, serve(s, httptest.NewRequest(http.MethodGet, "/sites/missing/", nil)).Code)
}

func TestEventsEndpoint(t *testing.T) {
	store, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := testConfig(t)
	hub := NewHub()
	sink := events.Multi(hub, events.NewStoreSink(store, nil))
	p := pipeline.New(config.Default(), pipeline.WithRunner(noTools{}), pipeline.WithSink(sink))
	s, err := New(cfg, p, WithHub(hub), WithSink(sink), WithStore(store))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	s.queue.Start(ctx)
	t.Cleanup(func() { cancel(); s.queue.Stop() })

	id := acceptedID(t, serve(s, uploadRequest(t, "p.zip", zipArchive(t, map[string]string{"index.html": "x"}), "")))
	waitFinished(t, s, id)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/deploys/"+id+"/events", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stored []storedEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	require.NotEmpty(t, stored)
	require.Equal(t, string(events.RunStarted), stored[0].Type)
	require.Equal(t, string(events.RunCompleted), stored[len(stored)-1].Type)

	require.Equal(t, http.StatusNotFound, serve(s, httptest.NewRequest(http.MethodGet, "/api/deploys/unknown/events", nil)).Code)

	pruned, _ := s.Prune(t.Context(), time.Now().Add(48*time.Hour))
	require.Equal(t, int64(len(stored)), pruned)
}

func TestEventsDisabledWithoutStore(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/deploys/x/events", nil))
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestStreamFinishedJob(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	id := acceptedID(t, serve(s, uploadRequest(t, "p.zip", zipArchive(t, map[string]string{"index.html": "x"}), "")))
	waitFinished(t, s, id)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/deploys/"+id+"/stream", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "event: status")
	require.Contains(t, rec.Body.String(), `"status":"deployed"`)
	require.Zero(t, s.hub.SubscriberCount(id))

	require.Equal(t, http.StatusNotFound, serve(s, httptest.NewRequest(http.MethodGet, "/api/deploys/nope/stream", nil)).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "deploybuilder_queue_depth 0\n")
	})
	s := newTestServer(t, testConfig(t), WithMetricsHandler(metricsHandler))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "deploybuilder_queue_depth")
}

func TestSiteRedirect(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/sites/blog", nil))
	require.Equal(t, http.StatusMovedPermanently, rec.Code)
	require.Equal(t, "/sites/blog/", rec.Header().Get("Location"))
}

func TestPruneRemovesStaleWorkspaces(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	ws, err := s.workspaces.Create("stale")
	require.NoError(t, err)
	past := time.Now().Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(ws.Path(), past, past))

	_, removed := s.Prune(t.Context(), time.Now())
	require.Equal(t, 1, removed)
	require.NoDirExists(t, ws.Path())
}

func TestRetentionInterval(t *testing.T) {
	require.Equal(t, time.Minute, retentionInterval(time.Minute))
	require.Equal(t, time.Hour, retentionInterval(30*24*time.Hour))
	require.Equal(t, 30*time.Minute, retentionInterval(12*time.Hour))
}

func TestAllowedRepository(t *testing.T) {
	for raw, want := range map[string]bool{
		"https://github.com/a/b.git": true,
		"http://git.local/a.git":     true,
		"ssh://git@host/a.git":       true,
		"git://host/a.git":           true,
		"git@github.com:a/b.git":     true,
		"file:///srv/repo":           false,
		"/srv/repo":                  false,
		"../repo":                    false,
		"https:///nohost":            false,
	} {
		require.Equal(t, want, allowedRepository(raw), raw)
	}
}

func TestNewRequiresRunner(t *testing.T) {
	_, err := New(testConfig(t), nil)
	require.Error(t, err)
}
