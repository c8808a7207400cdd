package config

import "strings"

// BuildType enumerates CMake-style build configurations.
type BuildType string

const (
	BuildTypeRelease        BuildType = "Release"
	BuildTypeDebug          BuildType = "Debug"
	BuildTypeRelWithDebInfo BuildType = "RelWithDebInfo"
	BuildTypeMinSizeRel     BuildType = "MinSizeRel"
)

// NormalizeBuildType maps case-insensitive user input onto a canonical build
// type, defaulting to Release for unknown values.
func NormalizeBuildType(raw string) BuildType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return BuildTypeDebug
	case "relwithdebinfo":
		return BuildTypeRelWithDebInfo
	case "minsizerel":
		return BuildTypeMinSizeRel
	default:
		return BuildTypeRelease
	}
}
