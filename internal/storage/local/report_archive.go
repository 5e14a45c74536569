// Package local implements a filesystem report archive.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/channel-liveness/internal/storage"
)

// Config captures the parameters for the filesystem report archive.
type Config struct {
	// BaseDir is the root directory where reports will be stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// ReportArchive writes reports to the local filesystem.
type ReportArchive struct {
	baseDir string
}

// New creates a filesystem report archive, creating BaseDir if needed.
func New(cfg Config) (*ReportArchive, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	// Check for write permissions.
	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &ReportArchive{baseDir: cfg.BaseDir}, nil
}

// PutReport writes the report to <base>/<run_id>.txt and returns a file:// URI.
func (a *ReportArchive) PutReport(_ context.Context, runID string, report string) (string, error) {
	name, err := storage.ReportObjectName("", runID)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(a.baseDir, name)

	// Verify the path stays within baseDir to prevent traversal through run ids.
	cleanBaseDir := filepath.Clean(a.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	if err := os.WriteFile(fullPath, []byte(report), 0o600); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}
