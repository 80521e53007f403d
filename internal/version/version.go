// Package version carries build metadata injected with -ldflags.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// Info is the JSON form served at /api/version.
type Info struct {
	Version   string `json:"version"`
	GitSHA    string `json:"git_sha"`
	BuildTime string `json:"build_time"`
}

// Get returns the build metadata.
func Get() Info {
	return Info{Version: Version, GitSHA: GitSHA, BuildTime: BuildTime}
}

// String renders the metadata for -version output.
func String() string {
	return fmt.Sprintf("eps %s (%s, built %s)", Version, GitSHA, BuildTime)
}
