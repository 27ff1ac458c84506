package files

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/oukeidos/gifsmith/internal/logger"
)

// TempSibling reserves a temporary file next to dest, keeping dest's extension
// so external encoders can infer the output muxer. The caller owns the returned
// path and must Commit or remove it.
func TempSibling(dest string) (string, error) {
	if err := RejectSymlinkPath(dest); err != nil {
		return "", err
	}
	dir := filepath.Dir(dest)
	ext := filepath.Ext(dest)
	base := strings.TrimSuffix(filepath.Base(dest), ext)
	tmp, err := os.CreateTemp(dir, "."+base+"-*.partial"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	name := tmp.Name()
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return name, nil
}

// Commit moves a finished temp file into place and syncs the directory.
func Commit(tmpPath, dest string, perms os.FileMode) error {
	if err := RejectSymlinkPath(dest); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perms); err != nil {
		return fmt.Errorf("failed to set output permissions: %w", err)
	}
	if err := renameAtomic(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file to destination: %w", err)
	}
	dir := filepath.Dir(dest)
	if err := syncDir(dir); err != nil {
		logger.Warn("Directory fsync failed (safe to ignore on some platforms)", "dir", dir, "error", err)
	}
	return nil
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		logger.Debug("Directory fsync not supported on Windows; skipping", "dir", dir)
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
