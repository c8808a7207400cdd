// Package prefix models the shared install prefix of a matrix cell: the
// filesystem root every package installs into and later packages discover
// their dependencies from. It is an explicit resource handle passed to each
// build step so tests can substitute a scoped temporary prefix.
package prefix

import (
	"fmt"
	"os"
	"path/filepath"
)

// Prefix is an install root shared by all packages of one matrix cell.
// It is append-mostly: packages only add files, in resolver order.
type Prefix struct {
	root string
}

// New returns a prefix handle for root, resolving it to an absolute path.
func New(root string) (*Prefix, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve install prefix: %w", err)
	}
	return &Prefix{root: abs}, nil
}

// Ensure creates the prefix directory tree if missing. A pre-existing prefix
// is tolerated (re-runs rebuild on top of it).
func (p *Prefix) Ensure() error {
	if err := os.MkdirAll(p.root, 0o755); err != nil {
		return fmt.Errorf("failed to create install prefix: %w", err)
	}
	return nil
}

// Root returns the absolute prefix path.
func (p *Prefix) Root() string { return p.root }

// IncludeDir returns the conventional header install location.
func (p *Prefix) IncludeDir() string { return filepath.Join(p.root, "include") }

// LibDirs returns the library directories that exist, lib and lib64.
func (p *Prefix) LibDirs() []string {
	var dirs []string
	for _, sub := range []string{"lib", "lib64"} {
		d := filepath.Join(p.root, sub)
		if _, err := os.Stat(d); err == nil {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// CMakePrefixPaths returns the prefix plus any existing lib*/cmake directories,
// suitable for CMAKE_PREFIX_PATH.
func (p *Prefix) CMakePrefixPaths() []string {
	paths := []string{p.root}
	for _, sub := range []string{"lib64/cmake", "lib/cmake"} {
		d := filepath.Join(p.root, sub)
		if _, err := os.Stat(d); err == nil {
			paths = append(paths, d)
		}
	}
	return paths
}

// PkgConfigPaths returns existing lib*/pkgconfig directories under the prefix.
func (p *Prefix) PkgConfigPaths() []string {
	var paths []string
	for _, sub := range []string{"lib/pkgconfig", "lib64/pkgconfig"} {
		d := filepath.Join(p.root, sub)
		if _, err := os.Stat(d); err == nil {
			paths = append(paths, d)
		}
	}
	return paths
}
