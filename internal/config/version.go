package config

import (
	"fmt"
	"io"
)

const notSet string = "not set"

// these information will be collected when build, by `-ldflags "-X github.com/capcom6/difffeed/internal/config.appVersion=0.1"`.
//
//nolint:gochecknoglobals // build metadata
var (
	appVersion = notSet
	buildTime  = notSet
	gitCommit  = notSet
	gitRef     = notSet
)

// Version is the application version reported by the generator tag and --version.
func Version() string {
	if appVersion == notSet {
		return "dev"
	}
	return appVersion
}

func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "Version:    %s\n", appVersion)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Git Ref:    %s\n", gitRef)
}
