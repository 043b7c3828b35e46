// Package version provides build version information for kbindex.
package version

// Version is the current kbindex version.
// Set via ldflags at build time: -X github.com/mwestra/kbindex/pkg/version.Version=x.y.z
var Version = "0.3.0-dev"
