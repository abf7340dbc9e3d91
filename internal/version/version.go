// Package version provides build-time version information.
package version

import "fmt"

// Set via -ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String is the one-line version banner.
func String() string {
	return fmt.Sprintf("ratchetwatch %s (commit %s, built %s)", Version, Commit, BuildDate)
}

// UserAgent identifies this client on outbound requests.
func UserAgent() string {
	return "ratchetwatch/" + Version
}
