// Package buildinfo reports the version of the running binary.
package buildinfo

import (
	"runtime/debug"
	"sync"
)

// Set with -ldflags, e.g.
//
//	-X 'github.com/m3rciful/meterbot/core/buildinfo.Version=v0.3.0'
//	-X 'github.com/m3rciful/meterbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/meterbot/core/buildinfo.Date=2025-06-01T12:00:00Z'
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Info is the resolved build identity.
type Info struct {
	Version string
	Commit  string
	Date    string
}

var (
	once     sync.Once
	resolved Info
)

// Get returns the ldflags values, falling back to the VCS stamp the Go
// toolchain embeds when they were not set.
func Get() Info {
	once.Do(func() {
		resolved = Info{Version: Version, Commit: Commit, Date: Date}
		bi, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		if resolved.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			resolved.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if resolved.Commit == "" {
					resolved.Commit = s.Value
					if len(resolved.Commit) > 7 {
						resolved.Commit = resolved.Commit[:7]
					}
				}
			case "vcs.time":
				if resolved.Date == "" {
					resolved.Date = s.Value
				}
			}
		}
		if resolved.Commit == "" {
			resolved.Commit = "local"
		}
	})
	return resolved
}
