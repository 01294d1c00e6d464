// Package version exposes build metadata injected at link time.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/deploybuilder/internal/version.Version=v0.3.0".
var Version = "unknown"

var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Resolved returns Version, falling back to the main module version recorded
// by the Go toolchain (set for `go install pkg@version`).
func Resolved() string {
	if Version != "unknown" && Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// String renders the one-line version banner printed by `deploybuilder version`.
func String() string {
	return fmt.Sprintf("deploybuilder %s (commit %s, built %s)", Resolved(), GitCommit, BuildTime)
}
