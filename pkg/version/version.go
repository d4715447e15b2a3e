package version

import (
	_ "embed"
	"fmt"
	"runtime"
	"strings"
)

//go:embed VERSION
var Version string

// Commit and BuildDate are injected with -ldflags at release time.
var (
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Get returns the current version of the application
func Get() string {
	return strings.TrimSpace(Version)
}

// Info returns a one-line build description used by the version command.
func Info(binary string) string {
	return fmt.Sprintf("%s version %s (commit %s, built %s, %s/%s)",
		binary, Get(), Commit, BuildDate, runtime.GOOS, runtime.GOARCH)
}
