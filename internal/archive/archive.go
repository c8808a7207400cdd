// Package archive produces distributable artifacts from a cell's install
// prefix: a gzipped tarball plus a sha256 checksum file in sha256sum format.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/cxxpack/internal/config"
)

// Name returns the canonical artifact file name for a cell.
func Name(cell config.Cell) string {
	return "cxxpack-" + cell.Name() + ".tar.gz"
}

// Create writes a gzipped tar of srcDir to destPath and a destPath+".sha256"
// checksum file. The archive and checksum files themselves are excluded when
// destPath lies inside srcDir, so the prefix can be archived in place.
// Returns the hex checksum.
func Create(srcDir, destPath string) (string, error) {
	srcAbs, err := filepath.Abs(srcDir)
	if err != nil {
		return "", fmt.Errorf("resolve archive source: %w", err)
	}
	destAbs, err := filepath.Abs(destPath)
	if err != nil {
		return "", fmt.Errorf("resolve archive destination: %w", err)
	}

	f, err := os.Create(destAbs)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	gz := gzip.NewWriter(io.MultiWriter(f, h))
	tw := tar.NewWriter(gz)

	excluded := map[string]bool{destAbs: true, destAbs + ".sha256": true}
	err = filepath.WalkDir(srcAbs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == srcAbs || excluded[path] {
			return nil
		}
		rel, err := filepath.Rel(srcAbs, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		link := ""
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()
		_, err = io.Copy(tw, src)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", srcDir, err)
	}
	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("finalize tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("finalize gzip: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	line := fmt.Sprintf("%s  %s\n", sum, filepath.Base(destAbs))
	if err := os.WriteFile(destAbs+".sha256", []byte(line), 0o644); err != nil {
		return "", fmt.Errorf("write checksum: %w", err)
	}
	return sum, nil
}

// Verify recomputes destPath's checksum and compares it with the recorded
// .sha256 file.
func Verify(destPath string) error {
	recorded, err := os.ReadFile(destPath + ".sha256")
	if err != nil {
		return fmt.Errorf("read checksum file: %w", err)
	}
	fields := strings.Fields(string(recorded))
	if len(fields) < 1 {
		return fmt.Errorf("malformed checksum file for %s", destPath)
	}

	f, err := os.Open(destPath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash archive: %w", err)
	}
	actual := hex.EncodeToString(h.Sum(nil))
	if actual != fields[0] {
		return fmt.Errorf("checksum mismatch for %s: recorded %s, actual %s", destPath, fields[0], actual)
	}
	return nil
}
