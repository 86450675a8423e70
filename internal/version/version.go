// Package version resolves the version string reported by the binary. Release
// builds inject Version via ldflags; development builds get a git-derived
// suffix so logs from unreleased builds stay distinguishable.
package version

import (
	"os/exec"
	"runtime/debug"
	"strings"
)

// Version is overridden at build time with
// -ldflags "-X subtitler/internal/version.Version=...".
var Version = "0.1.0"

func Resolve() string {
	return resolve(Version, runGit)
}

type gitRunner func(args ...string) (string, error)

func resolve(base string, git gitRunner) string {
	if base == "" {
		base = "0.0.0"
	}

	if _, err := git("rev-parse", "--git-dir"); err != nil {
		// Not a checkout; fall back to the revision stamped into the
		// module build info, if any.
		if rev := buildRevision(); rev != "" {
			return base + "+" + rev
		}
		return base
	}

	if suffix := gitSuffix(base, git); suffix != "" {
		return base + "-" + suffix
	}
	return base
}

// gitSuffix returns the describe output relative to base, or "" when HEAD
// sits exactly on a release tag.
func gitSuffix(base string, git gitRunner) string {
	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return ""
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(desc, "v"+base+"-")
}

// buildRevision reports the short VCS revision stamped into the module build
// info, for binaries built outside a git checkout (go install, release
// tarballs).
func buildRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
			return setting.Value[:7]
		}
	}
	return ""
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
