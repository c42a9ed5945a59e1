// Package buildinfo holds the version stamped into docsmith at build time.
//
//	go build -ldflags "-X github.com/matzehuels/docsmith/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/matzehuels/docsmith/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/docsmith/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package buildinfo

import "fmt"

var (
	Version = "dev"     // semantic version, e.g. "v1.2.3"
	Commit  = "none"    // git commit SHA
	Date    = "unknown" // build timestamp
)

// UserAgent identifies docsmith in outgoing HTTP requests.
func UserAgent() string {
	return "docsmith/" + Version
}

// Template returns the version template for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}
