// Package version provides version information for the binary.
package version

import "fmt"

// Version is set at build time with -ldflags "-X .../internal/version.Version=...".
var Version = "dev"

// BuildTime is set at build time the same way.
var BuildTime = "unknown"

// String returns the formatted version information.
func String() string {
	return fmt.Sprintf("openfreeai version %s (built %s)", Version, BuildTime)
}
