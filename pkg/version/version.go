// Package version carries build metadata stamped at link time.
package version

// Set via -ldflags at release build time; the zero values identify a
// from-source development build.
var (
	// Version is the semantic release version.
	Version = "dev"
	// Commit is the short git commit the binary was built from.
	Commit = "none"
	// Date is the build timestamp.
	Date = "unknown"
)
