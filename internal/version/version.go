package version

import (
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	// Version 版本号，构建时通过 -ldflags 注入
	Version = "dev"

	// BuildTime 构建时间，通过 -ldflags 注入
	BuildTime = ""

	// GitCommit Git 提交哈希，通过 -ldflags 注入
	GitCommit = ""
)

// Info 版本信息
type Info struct {
	Version   string `json:"version" yaml:"version"`
	BuildTime string `json:"build_time,omitempty" yaml:"build_time,omitempty"`
	GitCommit string `json:"git_commit,omitempty" yaml:"git_commit,omitempty"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get 返回版本信息；未注入时回退到模块构建信息
func Get() Info {
	info := Info{
		Version:   strings.TrimPrefix(Version, "v"),
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.Version == "dev" || info.GitCommit == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
				info.Version = strings.TrimPrefix(bi.Main.Version, "v")
			}
			if info.GitCommit == "" {
				for _, s := range bi.Settings {
					if s.Key == "vcs.revision" {
						info.GitCommit = s.Value
					}
				}
			}
		}
	}
	return info
}

// GetVersion 获取完整版本信息
func GetVersion() string {
	info := Get()
	v := "v" + info.Version
	if info.BuildTime != "" {
		v += " (built " + info.BuildTime + ")"
	}
	if info.GitCommit != "" {
		v += " commit " + shortCommit(info.GitCommit)
	}
	return v
}

// GetShortVersion 获取简短版本号
func GetShortVersion() string {
	return "v" + Get().Version
}

func shortCommit(c string) string {
	if len(c) > 8 {
		return c[:8]
	}
	return c
}
