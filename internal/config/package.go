package config

import (
	"strconv"
	"strings"
)

// Package describes one third-party library to clone, build and install.
// Entries are loaded once at startup and treated as immutable afterwards.
type Package struct {
	Name          string   `yaml:"name,omitempty"`     // explicit alias; defaults to URL basename
	URL           string   `yaml:"url"`                // git source location
	Revision      string   `yaml:"revision,omitempty"` // branch or tag
	CxxStandard   int      `yaml:"cxx_standard,omitempty"`
	Dependencies  []string `yaml:"dependencies,omitempty"` // names of other packages in the table
	BuildType     string   `yaml:"build_type,omitempty"`   // Release|Debug|RelWithDebInfo|MinSizeRel
	Defines       []Define `yaml:"defines,omitempty"`      // build-system -D flags
	ExtraCFlags   string   `yaml:"extra_cflags,omitempty"` // appended to C/CXX flags
	CMakeName     string   `yaml:"cmake_name,omitempty"`   // find_package name when it differs from Name
	CustomCommand string   `yaml:"custom_command,omitempty"`
	Submodules    bool     `yaml:"submodules,omitempty"` // clone with --recursive semantics
}

// Define is a single key/value build-system definition.
type Define struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// EffectiveName returns the explicit alias or the URL basename.
func (p Package) EffectiveName() string {
	if p.Name != "" {
		return p.Name
	}
	url := strings.TrimSuffix(p.URL, ".git")
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}

// EffectiveCMakeName returns the CMake package name used for _DIR/_ROOT hints.
func (p Package) EffectiveCMakeName() string {
	if p.CMakeName != "" {
		return p.CMakeName
	}
	return p.EffectiveName()
}

// RenderCustomCommand substitutes the supported placeholders into the custom
// build command. Supported: {install_prefix}, {cpu_count}.
func (p Package) RenderCustomCommand(installPrefix string, cpuCount int) string {
	cmd := strings.ReplaceAll(p.CustomCommand, "{install_prefix}", installPrefix)
	cmd = strings.ReplaceAll(cmd, "{cpu_count}", strconv.Itoa(cpuCount))
	return cmd
}

// HasCustomCommand reports whether the package bypasses the standard recipe.
func (p Package) HasCustomCommand() bool { return strings.TrimSpace(p.CustomCommand) != "" }
