package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEphemeralLifecycle(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Create())
	path := m.GetPath()
	assert.DirExists(t, path)

	require.NoError(t, m.Cleanup())
	assert.NoDirExists(t, path)
	assert.Empty(t, m.GetPath())
}

func TestPersistentSurvivesCleanup(t *testing.T) {
	base := t.TempDir()
	m := NewPersistentManager(base, "build")
	require.NoError(t, m.Create())
	assert.Equal(t, filepath.Join(base, "build"), m.GetPath())

	require.NoError(t, m.Cleanup())
	assert.DirExists(t, m.GetPath())
}

func TestSourceDirResetsStaleContent(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Create())
	t.Cleanup(func() { _ = m.Cleanup() })

	dir, err := m.SourceDir("glog")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	stale := filepath.Join(dir, "stale.o")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	dir2, err := m.SourceDir("glog")
	require.NoError(t, err)
	assert.Equal(t, dir, dir2)
	assert.NoFileExists(t, stale)
}

func TestSourceDirRequiresCreate(t *testing.T) {
	m := NewManager(t.TempDir())
	_, err := m.SourceDir("x")
	require.Error(t, err)
}
