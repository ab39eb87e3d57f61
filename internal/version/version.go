// Package version 提供构建信息，供 /healthz、启动日志与 hideadmin-ctl version 使用。
package version

import (
	"runtime/debug"
	"strings"
)

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

// 通过 -ldflags "-X hideadmin/internal/version.Version=..." 注入。
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var readBuildInfo = debug.ReadBuildInfo

// Info 返回构建信息；未注入 Commit/Date 时尝试从 Go 自带的 vcs 信息补齐。
func Info() BuildInfo {
	out := BuildInfo{
		Version: Version,
		Commit:  Commit,
		Date:    Date,
	}
	bi, ok := readBuildInfo()
	if !ok || bi == nil {
		return out
	}
	out.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if out.Commit == "none" && s.Value != "" {
				out.Commit = s.Value
			}
		case "vcs.time":
			if out.Date == "unknown" && s.Value != "" {
				out.Date = s.Value
			}
		}
	}
	return out
}

func (b BuildInfo) String() string {
	commit := b.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	parts := []string{b.Version, commit, b.Date}
	if b.GoVersion != "" {
		parts = append(parts, b.GoVersion)
	}
	return strings.Join(parts, " ")
}
