// Package version provides the fab release version.
package version

import (
	"fmt"
	"runtime"
)

// Version and Commit are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/sergeknystautas/fab/internal/version.Version=1.2.3 -X github.com/sergeknystautas/fab/internal/version.Commit=abc123" ./cmd/fab
//
// Version defaults to "dev" for local development builds.
var (
	Version = "dev"
	Commit  = ""
)

// String returns the version line printed by `fab version`.
func String() string {
	s := "fab " + Version
	if Commit != "" {
		s += " (" + Commit + ")"
	}
	return fmt.Sprintf("%s %s/%s", s, runtime.GOOS, runtime.GOARCH)
}
