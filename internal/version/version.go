// Package version provides build-time version information for connectr.
//
// Version and Commit are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/connectr/internal/version.Version=x.y.z \
//	                   -X github.com/jmylchreest/connectr/internal/version.Commit=$(git rev-parse HEAD)"
package version

import (
	"fmt"
	"runtime"
)

// Build-time variables injected via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// ApplicationName is the canonical name of this application.
const ApplicationName = "connectr"

// Info contains structured version information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo returns all version information as a structured type.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// Short returns a short version string suitable for CLI --version output.
func Short() string {
	if Commit != "unknown" && len(Commit) >= 8 {
		return fmt.Sprintf("%s (%s)", Version, Commit[:8])
	}
	return Version
}

// UserAgent returns the User-Agent sent to the streaming platform when no
// device user agent is configured.
func UserAgent() string {
	return fmt.Sprintf("%s/%s", ApplicationName, Version)
}
