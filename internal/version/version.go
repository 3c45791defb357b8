// Package version provides the build version of the tool.
package version

import "fmt"

// populated by the build
var (
	release = "0.1.0"
	commit  = "dev"
)

// Info describes the build.
type Info struct {
	Release string
	Commit  string
}

// Current returns the build info.
func Current() Info {
	return Info{
		Release: release,
		Commit:  commit,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s)", i.Release, i.Commit)
}
