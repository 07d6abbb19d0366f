// Package version reports nesprobe build information.
package version

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"time"
)

// Set at build time via -ldflags "-X nesprobe/internal/version.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo contains detailed build information
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Arch      string `json:"arch"`
	Modified  bool   `json:"modified"`
}

// GetBuildInfo merges the ldflags values with the VCS stamps the Go
// toolchain embeds.
func GetBuildInfo() BuildInfo {
	bi := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return bi
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if GitCommit == "unknown" {
				bi.GitCommit = setting.Value
			}
		case "vcs.time":
			if BuildTime == "unknown" {
				bi.BuildTime = setting.Value
			}
		case "vcs.modified":
			bi.Modified = setting.Value == "true"
		}
	}
	return bi
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}

// GetVersion returns a simple version string
func GetVersion() string {
	bi := GetBuildInfo()
	if bi.Version == "dev" && bi.GitCommit != "unknown" {
		return "dev-" + shortCommit(bi.GitCommit)
	}
	return bi.Version
}

// GetDetailedVersion returns the one-line string printed by -version.
func GetDetailedVersion() string {
	bi := GetBuildInfo()

	s := "nesprobe " + bi.Version
	if bi.GitCommit != "unknown" {
		s += fmt.Sprintf(" (commit %s", shortCommit(bi.GitCommit))
		if bi.Modified {
			s += ", modified"
		}
		s += ")"
	}
	if bi.BuildTime != "unknown" {
		if t, err := time.Parse(time.RFC3339, bi.BuildTime); err == nil {
			s += " built " + t.UTC().Format("2006-01-02 15:04:05")
		} else {
			s += " built " + bi.BuildTime
		}
	}
	return s + fmt.Sprintf(" %s %s/%s", bi.GoVersion, bi.Platform, bi.Arch)
}

// FprintBuildInfo writes the build information as a table.
func FprintBuildInfo(w io.Writer) {
	bi := GetBuildInfo()
	fmt.Fprintf(w, "Version:    %s\n", bi.Version)
	fmt.Fprintf(w, "Git Commit: %s\n", bi.GitCommit)
	fmt.Fprintf(w, "Build Time: %s\n", bi.BuildTime)
	fmt.Fprintf(w, "Go Version: %s\n", bi.GoVersion)
	fmt.Fprintf(w, "Platform:   %s/%s\n", bi.Platform, bi.Arch)
}
