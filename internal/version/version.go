// Package version carries the build version, set at link time with
// -ldflags "-X github.com/cochaviz/quern/internal/version.version=1.2.3".
package version

import (
	"runtime"
	"strings"
)

const undefined = "(undefined)"

var (
	version   = ""
	gitCommit = ""
)

// Version returns the version without its "v" prefix, or "(undefined)".
func Version() string {
	v := strings.TrimSpace(version)
	if v == "" {
		return undefined
	}
	return strings.TrimPrefix(strings.ToLower(v), "v")
}

// String describes the build for --version output.
func String() string {
	s := Version()
	if commit := strings.TrimSpace(gitCommit); commit != "" {
		s += " (" + commit + ")"
	}
	return s + " " + runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH
}
