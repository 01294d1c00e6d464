package command

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/deploybuilder/internal/events"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRunSuccessCapturesOutput(t *testing.T) {
	requireShell(t)
	var rec events.Recorder
	r := NewRunner(&rec)

	res := r.Run(t.Context(), []string{"sh", "-c", "echo hello; echo warn >&2"}, t.TempDir())
	require.True(t, res.Success)
	require.Equal(t, "hello\n", res.Stdout)
	require.Equal(t, "warn\n", res.Stderr)
	require.False(t, res.TimedOut)

	require.Equal(t, []events.Kind{
		events.CommandStarted,
		events.CommandOutput,
		events.CommandOutput,
		events.CommandSucceeded,
	}, rec.Kinds())
}

func TestRunNonZeroExit(t *testing.T) {
	requireShell(t)
	var rec events.Recorder
	res := NewRunner(&rec).Run(t.Context(), []string{"sh", "-c", "echo boom >&2; exit 3"}, t.TempDir())

	require.False(t, res.Success)
	require.Equal(t, "boom\n", res.Stderr)
	e, ok := rec.Find(events.CommandFailed)
	require.True(t, ok)
	require.Equal(t, events.LevelWarn, e.Level)
}

func TestRunRespectsWorkingDirectory(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	res := NewRunner(nil).Run(t.Context(), []string{"sh", "-c", "pwd"}, dir)
	require.True(t, res.Success)
	require.Contains(t, res.Stdout, dir)
}

func TestRunTimeout(t *testing.T) {
	requireShell(t)
	var rec events.Recorder
	r := NewRunner(&rec).WithTimeout(100 * time.Millisecond)

	res := r.Run(t.Context(), []string{"sh", "-c", "sleep 5"}, t.TempDir())
	require.False(t, res.Success)
	require.True(t, res.TimedOut)
	require.Equal(t, TimeoutMessage, res.Stderr)
	require.Empty(t, res.Stdout)
	require.Less(t, res.Duration, 4*time.Second)

	e, ok := rec.Find(events.CommandFailed)
	require.True(t, ok)
	require.Equal(t, events.LevelError, e.Level)
}

func TestRunSpawnFailure(t *testing.T) {
	res := NewRunner(nil).Run(t.Context(), []string{"deploybuilder-definitely-missing-binary"}, t.TempDir())
	require.False(t, res.Success)
	require.NotEmpty(t, res.Stderr)
	require.False(t, res.TimedOut)
}

func TestRunEmptyCommand(t *testing.T) {
	res := NewRunner(nil).Run(t.Context(), nil, t.TempDir())
	require.False(t, res.Success)
	require.Equal(t, "empty command", res.Stderr)
}

func TestRunnerOptions(t *testing.T) {
	r := NewRunner(nil)
	require.Equal(t, DefaultTimeout, r.Timeout())
	r.WithTimeout(0)
	require.Equal(t, DefaultTimeout, r.Timeout())
	r.WithTimeout(time.Minute).WithRecorder(nil)
	require.Equal(t, time.Minute, r.Timeout())

	_, err := r.LookPath("deploybuilder-definitely-missing-binary")
	require.Error(t, err)
}
