package app

import "fmt"

// Build metadata, overridden at release time with
// go build -ldflags "-X github.com/crosspost/crosspost-backend/internal/app.Version=1.2.3".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// BuildVersion renders the build metadata as one string for startup logs.
func BuildVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime)
}
