package prefix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureAndRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	p, err := New(root)
	require.NoError(t, err)
	require.NoError(t, p.Ensure())
	assert.DirExists(t, p.Root())
	assert.True(t, filepath.IsAbs(p.Root()))

	// re-ensuring a pre-existing prefix must not fail
	require.NoError(t, p.Ensure())
}

func TestCMakePrefixPathsOnlyExisting(t *testing.T) {
	p, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, p.Ensure())

	assert.Equal(t, []string{p.Root()}, p.CMakePrefixPaths())

	require.NoError(t, os.MkdirAll(filepath.Join(p.Root(), "lib", "cmake"), 0o755))
	paths := p.CMakePrefixPaths()
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(p.Root(), "lib", "cmake"), paths[1])
}

func TestLibAndPkgConfigDirs(t *testing.T) {
	p, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, p.Ensure())

	assert.Empty(t, p.LibDirs())
	assert.Empty(t, p.PkgConfigPaths())

	require.NoError(t, os.MkdirAll(filepath.Join(p.Root(), "lib64", "pkgconfig"), 0o755))
	assert.Len(t, p.LibDirs(), 1)
	assert.Len(t, p.PkgConfigPaths(), 1)
}
