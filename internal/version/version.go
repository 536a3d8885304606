// Package version holds build metadata injected with -ldflags, e.g.
// -X git.home.luguber.info/inful/sitepublish/internal/version.Version=v1.0.0.
package version

import "fmt"

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String formats the metadata for --version.
func String() string {
	if GitCommit == "unknown" {
		return Version
	}
	return fmt.Sprintf("%s (%s, built %s)", Version, GitCommit, BuildTime)
}
