package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// SafePath returns a non-existing path by appending _1.._9, then a UUID suffix.
// If the original path does not exist, it is returned unchanged.
func SafePath(path string) (string, bool, error) {
	if path == "" {
		return "", false, fmt.Errorf("path is empty")
	}
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return path, false, nil
	}
	if err != nil {
		return "", false, err
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; i <= 9; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, true, nil
		} else if err != nil {
			return "", false, err
		}
	}
	return fmt.Sprintf("%s_%s%s", base, uuidSuffix(), ext), true, nil
}

// ReplaceExt returns path with its extension swapped for ext (".gif").
func ReplaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

func uuidSuffix() string {
	u, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()[:8]
	}
	return u.String()
}
