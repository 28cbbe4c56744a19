// Package version holds the scrubber's build version.
package version

import "fmt"

const (
	// Major represents the current major version.
	Major = 0
	// Minor represents the current minor version.
	Minor = 1
	// Patch represents the current patch version.
	Patch = 0
)

// Semantic is the "major.minor.patch" version string, printed by the root
// command's -v/--version flag.
var Semantic = fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
