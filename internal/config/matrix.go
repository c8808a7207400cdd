package config

import "fmt"

// Cell identifies one (system, architecture) build target.
type Cell struct {
	System string `yaml:"system"`
	Arch   string `yaml:"arch"`
	Image  string `yaml:"image,omitempty"` // explicit base image override
}

// Name returns the canonical "system-arch" identifier used in artifact and
// report file names.
func (c Cell) Name() string { return c.System + "-" + c.Arch }

// MatrixConfig declares the full build matrix.
type MatrixConfig struct {
	Cells []Cell `yaml:"cells"`
}

// DefaultCells is the matrix used when the config declares none.
func DefaultCells() []Cell {
	return []Cell{
		{System: "ubuntu20.04", Arch: "amd64"},
		{System: "ubuntu22.04", Arch: "amd64"},
		{System: "manylinux_2014", Arch: "amd64"},
		{System: "manylinux_2014", Arch: "arm64"},
	}
}

// baseImages maps system names to container base images. Architecture-specific
// entries win over the plain system entry.
var baseImages = map[string]string{
	"ubuntu20.04":          "ubuntu:20.04",
	"ubuntu22.04":          "ubuntu:22.04",
	"manylinux_2014/amd64": "dockcross/manylinux2014-x64",
	"manylinux_2014/arm64": "dockcross/manylinux2014-aarch64",
}

// BaseImage resolves the container base image for a cell. An explicit Image in
// the config wins; otherwise the built-in system/arch table is consulted.
func (c Cell) BaseImage() (string, error) {
	if c.Image != "" {
		return c.Image, nil
	}
	if img, ok := baseImages[c.System+"/"+c.Arch]; ok {
		return img, nil
	}
	if img, ok := baseImages[c.System]; ok {
		return img, nil
	}
	return "", fmt.Errorf("no base image known for system %q arch %q", c.System, c.Arch)
}

// Platform returns the container platform string for the cell's architecture.
func (c Cell) Platform() string {
	switch c.Arch {
	case "arm":
		return "linux/arm/v7"
	default:
		return "linux/" + c.Arch
	}
}

// Select filters cells by optional system and arch names; empty selectors match everything.
func (m MatrixConfig) Select(systems, archs []string) []Cell {
	match := func(v string, set []string) bool {
		if len(set) == 0 {
			return true
		}
		for _, s := range set {
			if s == v {
				return true
			}
		}
		return false
	}
	var out []Cell
	for _, c := range m.Cells {
		if match(c.System, systems) && match(c.Arch, archs) {
			out = append(out, c)
		}
	}
	return out
}
