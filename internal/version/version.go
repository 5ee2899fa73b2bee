package version

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// Set through ldflags at release time.
var (
	Version   = "dev"
	GitCommit = ""
	BuildDate = ""
)

// Build is the full build stamp exposed on the health endpoint and by the
// status command.
type Build struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Current returns the build stamp of the running binary.
func Current() Build {
	return Build{
		Version:   resolve(),
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns the bare version number.
func String() string { return resolve() }

// Short appends the abbreviated commit when one was stamped in.
func Short() string {
	if len(GitCommit) >= 7 {
		return resolve() + "-" + GitCommit[:7]
	}
	return resolve()
}

// resolve prefers the ldflags version, then the module version recorded by
// go install, then "dev".
var resolve = sync.OnceValue(func() string {
	if v := Version; v != "" && v != "dev" {
		return v
	}

	if build, ok := debug.ReadBuildInfo(); ok {
		if v := build.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}

	return "dev"
})
