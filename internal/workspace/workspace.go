package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/cxxpack/internal/logfields"
)

// Manager handles per-cell working directories where package sources are
// cloned and built. Ephemeral by default; persistent mode keeps a fixed
// directory across runs for local iteration.
type Manager struct {
	baseDir    string
	workDir    string
	persistent bool
}

// NewManager creates a workspace manager with ephemeral timestamped directories
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// NewPersistentManager creates a workspace manager that uses a fixed directory
// (baseDir/subdirName) which is not removed on Cleanup().
func NewPersistentManager(baseDir, subdirName string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if subdirName == "" {
		subdirName = "build"
	}
	return &Manager{
		baseDir:    baseDir,
		workDir:    filepath.Join(baseDir, subdirName),
		persistent: true,
	}
}

// Create creates the workspace directory.
func (m *Manager) Create() error {
	if m.persistent {
		if err := os.MkdirAll(m.workDir, 0o750); err != nil {
			return fmt.Errorf("failed to create persistent workspace directory: %w", err)
		}
		slog.Info("Using persistent workspace", logfields.Path(m.workDir))
		return nil
	}

	timestamp := time.Now().Format("20060102-150405")
	workDir := filepath.Join(m.baseDir, fmt.Sprintf("cxxpack-%s", timestamp))
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	m.workDir = workDir
	slog.Info("Created workspace", logfields.Path(workDir))
	return nil
}

// GetPath returns the path to the workspace directory
func (m *Manager) GetPath() string {
	return m.workDir
}

// Cleanup removes the workspace directory (no-op in persistent mode).
func (m *Manager) Cleanup() error {
	if m.workDir == "" {
		return nil
	}
	if m.persistent {
		slog.Debug("Skipping cleanup for persistent workspace", logfields.Path(m.workDir))
		return nil
	}
	if err := os.RemoveAll(m.workDir); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Info("Cleaned up workspace", logfields.Path(m.workDir))
	m.workDir = ""
	return nil
}

// SourceDir returns the per-package source checkout directory, removing any
// stale content first so every build starts from a clean working directory.
func (m *Manager) SourceDir(packageName string) (string, error) {
	if m.workDir == "" {
		return "", fmt.Errorf("workspace not created")
	}
	dir := filepath.Join(m.workDir, packageName)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to reset source directory: %w", err)
	}
	return dir, nil
}

// CreateSubdir creates a subdirectory within the workspace
func (m *Manager) CreateSubdir(name string) (string, error) {
	if m.workDir == "" {
		return "", fmt.Errorf("workspace not created")
	}
	subdir := filepath.Join(m.workDir, name)
	if err := os.MkdirAll(subdir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create subdirectory: %w", err)
	}
	return subdir, nil
}
