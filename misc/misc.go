// Package misc keeps build identity helpers used across the program.
package misc

import "runtime/debug"

var (
	appName = "bookview"
	version = "0.0.0-dev"
)

// GetAppName returns short program name used in logs, reports and temporary files.
func GetAppName() string {
	return appName
}

// GetVersion returns program version set at build time.
func GetVersion() string {
	return version
}

// GetGitHash returns VCS revision recorded in build info, if any.
func GetGitHash() string {
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
