package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/cxxpack/internal/config"
)

func TestName(t *testing.T) {
	cell := config.Cell{System: "ubuntu22.04", Arch: "arm64"}
	assert.Equal(t, "cxxpack-ubuntu22.04-arm64.tar.gz", Name(cell))
}

func writePrefix(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "include", "glog"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "include", "glog", "logging.h"), []byte("#pragma once\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "libglog.a"), []byte{0x21, 0x3c, 0x61, 0x72}, 0o644))
	return dir
}

func readEntries(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	entries := make(map[string]string)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		var content string
		if hdr.Typeflag == tar.TypeReg {
			data, err := io.ReadAll(tr)
			require.NoError(t, err)
			content = string(data)
		}
		entries[hdr.Name] = content
	}
	return entries
}

func TestCreateAndVerify(t *testing.T) {
	prefix := writePrefix(t)
	dest := filepath.Join(t.TempDir(), "cxxpack-ubuntu22.04-amd64.tar.gz")

	sum, err := Create(prefix, dest)
	require.NoError(t, err)
	assert.Len(t, sum, 64)

	entries := readEntries(t, dest)
	assert.Equal(t, "#pragma once\n", entries["include/glog/logging.h"])
	assert.Contains(t, entries, "lib/libglog.a")
	assert.Contains(t, entries, "include/")

	recorded, err := os.ReadFile(dest + ".sha256")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(recorded), sum+"  "))
	assert.Contains(t, string(recorded), "cxxpack-ubuntu22.04-amd64.tar.gz")

	require.NoError(t, Verify(dest))
}

func TestCreateInPlaceExcludesItself(t *testing.T) {
	prefix := writePrefix(t)
	dest := filepath.Join(prefix, "cxxpack-ubuntu20.04-amd64.tar.gz")

	_, err := Create(prefix, dest)
	require.NoError(t, err)

	entries := readEntries(t, dest)
	assert.NotContains(t, entries, "cxxpack-ubuntu20.04-amd64.tar.gz")
	assert.NotContains(t, entries, "cxxpack-ubuntu20.04-amd64.tar.gz.sha256")
	assert.Contains(t, entries, "include/glog/logging.h")
}

func TestVerifyDetectsCorruption(t *testing.T) {
	prefix := writePrefix(t)
	dest := filepath.Join(t.TempDir(), "out.tar.gz")
	_, err := Create(prefix, dest)
	require.NoError(t, err)

	f, err := os.OpenFile(dest, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("tamper"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	err = Verify(dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}
