// Package buildinfo holds version data set with -ldflags at build time.
package buildinfo

import "runtime/debug"

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

// Info reports the linker-set fields. Commit falls back to the VCS revision
// the toolchain embedded, when present.
func Info() map[string]string {
	info := map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info["go"] = bi.GoVersion
		if info["commit"] == "" {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" {
					info["commit"] = s.Value
				}
			}
		}
	}
	return info
}
