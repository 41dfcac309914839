// Package version holds build metadata injected with -ldflags:
//
//	go build -ldflags "-X github.com/bissquit/coursehub/internal/version.Version=1.2.3 \
//	  -X github.com/bissquit/coursehub/internal/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import "fmt"

// Build metadata. Overridden at link time.
var (
	Version   = "0.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info is the build metadata served by GET /version.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Get returns the current build metadata.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    GitCommit,
		BuildDate: BuildDate,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.BuildDate)
}
