package build

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/deploybuilder/internal/command"
	"git.home.luguber.info/inful/deploybuilder/internal/events"
	"git.home.luguber.info/inful/deploybuilder/internal/project"
)

// fakeRunner returns scripted results keyed by the joined argv.
type fakeRunner struct {
	missing bool
	results map[string]command.Result
	calls   []string
}

func (f *fakeRunner) LookPath(file string) (string, error) {
	if f.missing {
		return "", errors.New("executable file not found in $PATH")
	}
	return "/usr/bin/" + file, nil
}

func (f *fakeRunner) Run(_ context.Context, argv []string, _ string) command.Result {
	key := strings.Join(argv, " ")
	f.calls = append(f.calls, key)
	if res, ok := f.results[key]; ok {
		return res
	}
	return command.Result{Success: true}
}

func TestNodeBuilder(t *testing.T) {
	tests := []struct {
		name      string
		runner    *fakeRunner
		want      Outcome
		wantCalls []string
	}{
		{
			name:      "tool missing",
			runner:    &fakeRunner{missing: true},
			want:      Outcome{Status: StatusFailed, Message: "npm not available"},
			wantCalls: nil,
		},
		{
			name: "install fails",
			runner: &fakeRunner{results: map[string]command.Result{
				"npm install": {Stderr: "ERESOLVE unable to resolve"},
			}},
			want:      Outcome{Status: StatusFailed, Message: "npm install failed: ERESOLVE unable to resolve"},
			wantCalls: []string{"npm install"},
		},
		{
			name: "install times out",
			runner: &fakeRunner{results: map[string]command.Result{
				"npm install": {Stderr: command.TimeoutMessage, TimedOut: true},
			}},
			want:      Outcome{Status: StatusFailed, Message: "npm install failed: Build timed out after 10 minutes"},
			wantCalls: []string{"npm install"},
		},
		{
			name: "build script fails",
			runner: &fakeRunner{results: map[string]command.Result{
				"npm run build": {Stderr: "missing script: build"},
			}},
			want:      Outcome{Status: StatusDegraded, Message: "No build script found, serving source files"},
			wantCalls: []string{"npm install", "npm run build"},
		},
		{
			name:      "success",
			runner:    &fakeRunner{},
			want:      Outcome{Status: StatusSucceeded, Message: "Build completed successfully"},
			wantCalls: []string{"npm install", "npm run build"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewNodeBuilder(tt.runner).Build(t.Context(), t.TempDir())
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.wantCalls, tt.runner.calls)
		})
	}
}

func TestNodeBuilderCustomCommands(t *testing.T) {
	runner := &fakeRunner{results: map[string]command.Result{
		"pnpm install --frozen-lockfile": {Stderr: "lockfile mismatch"},
	}}
	b := NewNodeBuilder(runner,
		WithTool("pnpm"),
		WithCommands([]string{"pnpm", "install", "--frozen-lockfile"}, []string{"pnpm", "build"}),
	)
	got := b.Build(t.Context(), t.TempDir())
	require.Equal(t, Failed("pnpm install --frozen-lockfile failed: lockfile mismatch"), got)
}

func TestNodeBuilderToolMissingEmitsWarning(t *testing.T) {
	var rec events.Recorder
	got := NewNodeBuilder(&fakeRunner{missing: true}, WithEvents(&rec)).Build(t.Context(), t.TempDir())
	require.Equal(t, StatusFailed, got.Status)
	e, ok := rec.Find(events.ToolMissing)
	require.True(t, ok)
	require.Equal(t, events.LevelWarn, e.Level)
}

type countingProcedure struct {
	calls int
	out   Outcome
}

func (p *countingProcedure) Build(context.Context, string) Outcome {
	p.calls++
	return p.out
}

func TestDispatcher(t *testing.T) {
	for _, typ := range []project.Type{project.NextJS, project.Vite, project.CRA, project.Node} {
		proc := &countingProcedure{out: Succeeded()}
		got := NewDispatcher(proc, nil).Build(t.Context(), "/p", typ)
		require.Equal(t, Succeeded(), got, typ)
		require.Equal(t, 1, proc.calls, typ)
	}
	for _, typ := range []project.Type{project.Static, project.Unknown} {
		proc := &countingProcedure{out: Succeeded()}
		var rec events.Recorder
		got := NewDispatcher(proc, &rec).Build(t.Context(), "/p", typ)
		require.Equal(t, StatusNotAttempted, got.Status, typ)
		require.Zero(t, proc.calls, typ)
		require.Equal(t, []events.Kind{events.BuildSkipped}, rec.Kinds())
	}
}

func TestDispatcherReportsFailureAtErrorLevel(t *testing.T) {
	var rec events.Recorder
	proc := &countingProcedure{out: Failed("npm not available")}
	NewDispatcher(proc, &rec).Build(t.Context(), "/p", project.Vite)
	e, ok := rec.Find(events.BuildFinished)
	require.True(t, ok)
	require.Equal(t, events.LevelError, e.Level)
	require.Equal(t, "npm not available", e.Message)
}

func TestOutcomeHelpers(t *testing.T) {
	require.True(t, Succeeded().Success())
	require.True(t, Degraded(MessageDegraded).Success())
	require.True(t, NotAttempted().Success())
	require.False(t, Failed("x").Success())

	require.False(t, NotAttempted().Attempted())
	require.False(t, Outcome{}.Attempted())
	require.True(t, Degraded("x").Attempted())
	require.Equal(t, "degraded", StatusDegraded.String())
}
