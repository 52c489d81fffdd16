// Package buildinfo carries the kernel build stamp, set with -ldflags -X.
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns the version, or the commit for untagged builds.
func Short() string {
	switch {
	case Version != "" && Version != "dev":
		return Version
	case Commit != "" && Commit != "unknown":
		return Commit
	}
	return "dev"
}

// Banner is the line the kernel logs at boot.
func Banner() string {
	return fmt.Sprintf("minikernel %s (commit %s, built %s)", Short(), Commit, Date)
}
