// Package command runs external build commands with a bounded timeout and
// captures their output.
package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"git.home.luguber.info/inful/deploybuilder/internal/events"
	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
	"git.home.luguber.info/inful/deploybuilder/internal/metrics"
)

// DefaultTimeout bounds every command.
const DefaultTimeout = 600 * time.Second

// TimeoutMessage is reported as stderr when a command exceeds its timeout.
const TimeoutMessage = "Build timed out after 10 minutes"

// Result is the captured outcome of one command. Success is defined solely by
// a zero exit status.
type Result struct {
	Success  bool
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// Runner executes commands. The zero value is not usable; use NewRunner.
type Runner struct {
	timeout  time.Duration
	sink     events.Sink
	recorder metrics.Recorder
	lookPath func(string) (string, error)
}

// NewRunner creates a runner with the default timeout that reports to sink.
func NewRunner(sink events.Sink) *Runner {
	if sink == nil {
		sink = events.Discard
	}
	return &Runner{
		timeout:  DefaultTimeout,
		sink:     sink,
		recorder: metrics.NoopRecorder{},
		lookPath: exec.LookPath,
	}
}

// WithTimeout overrides the per-command timeout (fluent helper).
func (r *Runner) WithTimeout(d time.Duration) *Runner {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// WithRecorder attaches a metrics recorder (fluent helper).
func (r *Runner) WithRecorder(rec metrics.Recorder) *Runner {
	if rec != nil {
		r.recorder = rec
	}
	return r
}

// Timeout returns the configured per-command timeout.
func (r *Runner) Timeout() time.Duration { return r.timeout }

// LookPath reports whether an executable is resolvable on PATH.
func (r *Runner) LookPath(file string) (string, error) { return r.lookPath(file) }

// Run executes argv in dir. It never returns an error: spawn failures and
// timeouts are folded into an unsuccessful Result.
func (r *Runner) Run(ctx context.Context, argv []string, dir string) Result {
	line := strings.Join(argv, " ")
	r.sink.Emit(ctx, events.New(events.CommandStarted, events.LevelInfo, "Running command",
		logfields.Command(line), logfields.Dir(dir)))

	start := time.Now()
	res := r.exec(ctx, argv, dir)
	res.Duration = time.Since(start)
	r.recorder.ObserveCommandDuration(commandName(argv), res.Duration, res.Success)

	if res.Stdout != "" {
		r.sink.Emit(ctx, events.New(events.CommandOutput, events.LevelInfo, "Command stdout",
			logfields.Command(line), logfields.Stdout(res.Stdout)))
	}
	if res.Stderr != "" {
		r.sink.Emit(ctx, events.New(events.CommandOutput, events.LevelWarn, "Command stderr",
			logfields.Command(line), logfields.Stderr(res.Stderr)))
	}

	kind, level, msg := events.CommandSucceeded, events.LevelInfo, "Command finished"
	switch {
	case res.TimedOut:
		kind, level, msg = events.CommandFailed, events.LevelError, "Command timed out"
	case !res.Success:
		kind, level, msg = events.CommandFailed, events.LevelWarn, "Command failed"
	}
	r.sink.Emit(ctx, events.New(kind, level, msg,
		logfields.Command(line), logfields.DurationMS(float64(res.Duration.Microseconds())/1000)))
	return res
}

func (r *Runner) exec(ctx context.Context, argv []string, dir string) Result {
	if len(argv) == 0 {
		return Result{Stderr: "empty command"}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = dir
	// Children that inherit the pipes must not keep Wait blocked past the deadline.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return Result{Stderr: TimeoutMessage, TimedOut: true}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{Stdout: stdout.String(), Stderr: stderr.String()}
		}
		return Result{Stderr: err.Error()}
	}
	return Result{Success: true, Stdout: stdout.String(), Stderr: stderr.String()}
}

func commandName(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	return argv[0]
}
