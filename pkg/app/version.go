package app

import (
	"github.com/kart-io/version"
	"github.com/spf13/pflag"
)

// GetVersion returns the git version stamped at build time.
func GetVersion() string {
	return version.Get().GitVersion
}

// GetVersionInfo returns the full build information.
func GetVersionInfo() version.Info {
	return version.Get()
}

// AddVersionFlags adds --version to fs.
func AddVersionFlags(fs *pflag.FlagSet) {
	version.AddFlags(fs)
}

// PrintAndExitIfRequested prints version information and exits when
// --version was given.
func PrintAndExitIfRequested() {
	version.PrintAndExitIfRequested()
}
