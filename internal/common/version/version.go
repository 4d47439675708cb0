// Package version holds the exomigtool release number.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionRaw string

// Version is the release number from the VERSION file. Release builds may
// override it with -ldflags "-X exomigtool/internal/common/version.Version=...".
var Version = strings.TrimSpace(versionRaw)

// Get returns the current version string.
func Get() string {
	return Version
}

// UserAgent is sent with every Graph request.
func UserAgent() string {
	return "exomigtool/" + Get()
}
