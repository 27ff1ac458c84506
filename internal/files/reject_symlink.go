package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrSymlinkPath marks output paths that traverse a symlink or reparse point.
var ErrSymlinkPath = errors.New("refusing to write through a symlink")

// RejectSymlinkPath returns an error if the path or any existing ancestor is a
// symlink. Components that do not exist yet are accepted.
func RejectSymlinkPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path is empty")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	volume := filepath.VolumeName(abs)
	rest := strings.TrimLeft(abs[len(volume):], string(os.PathSeparator))
	current := volume + string(os.PathSeparator)

	for _, part := range strings.Split(rest, string(os.PathSeparator)) {
		if part == "" {
			continue
		}
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to access path: %w", err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s (symlink at %s)", ErrSymlinkPath, path, current)
		}
		reparse, err := isReparsePoint(current)
		if err != nil {
			return fmt.Errorf("failed to check reparse point: %w", err)
		}
		if reparse {
			return fmt.Errorf("%w: %s (reparse point at %s)", ErrSymlinkPath, path, current)
		}
	}
	return nil
}
