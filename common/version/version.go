// Package version exposes the build metadata stamped into the binary.
package version

import "runtime/debug"

// Set via -ldflags at release build time. A plain `go build` leaves the
// commit and timestamp empty; Info fills them from the VCS stamp the
// toolchain records when building inside a checkout.
var (
	Version   = "v0.0.0-dev"
	GitCommit = ""
	BuildTime = ""
)

// Info returns a single-line description of this build.
func Info() string {
	commit, when := GitCommit, BuildTime
	if commit == "" || when == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					if commit == "" {
						commit = s.Value
					}
				case "vcs.time":
					if when == "" {
						when = s.Value
					}
				}
			}
		}
	}
	if commit == "" {
		commit = "unknown"
	}
	if when == "" {
		when = "unknown"
	}
	return Version + " (" + commit + ") built at " + when
}
