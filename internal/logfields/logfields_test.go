package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"RunID", KeyRunID, "r1", RunID("r1")},
		{"Project", KeyProject, "/src/app", Project("/src/app")},
		{"Deploy", KeyDeploy, "/srv/app", Deploy("/srv/app")},
		{"ProjectType", KeyProjectType, "vite", ProjectType("vite")},
		{"Stage", KeyStage, "build", Stage("build")},
		{"Command", KeyCommand, "npm install", Command("npm install")},
		{"Dir", KeyDir, "/src", Dir("/src")},
		{"Artifact", KeyArtifact, "dist", Artifact("dist")},
		{"Outcome", KeyOutcome, "degraded", Outcome("degraded")},
		{"Source", KeySource, "artifact", Source("artifact")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"URL", KeyURL, "http://example", URL("http://example")},
		{"Method", KeyMethod, "GET", Method("GET")},
		{"Status", KeyStatus, "queued", Status("queued")},
		{"Stdout", KeyStdout, "ok", Stdout("ok")},
		{"Stderr", KeyStderr, "warn", Stderr("warn")},
		{"JobID", KeyJobID, "j1", JobID("j1")},
		{"Site", KeySite, "blog", Site("blog")},
		{"UserAgent", KeyUserAgent, "curl", UserAgent("curl")},
		{"RemoteAddr", KeyRemoteAddr, "127.0.0.1", RemoteAddr("127.0.0.1")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %s", tc.name, tc.attrVal, got)
		}
	}
}

func TestErrorHelper(t *testing.T) {
	if a := Error(nil); a.Key != KeyError || a.Value.String() != "" {
		t.Fatalf("nil error should produce empty value, got %v", a)
	}
	if a := Error(errors.New("boom")); a.Value.String() != "boom" {
		t.Fatalf("expected boom, got %s", a.Value.String())
	}
}

func TestDurationMS(t *testing.T) {
	a := DurationMS(12.5)
	if a.Key != KeyDurationMS || a.Value.Float64() != 12.5 {
		t.Fatalf("unexpected attr %v", a)
	}
}
