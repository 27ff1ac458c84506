// Package ffmpeg wraps the ffmpeg and ffprobe executables.
package ffmpeg

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrNotFound is returned when a required executable cannot be located.
var ErrNotFound = errors.New("executable not found")

var (
	executable = os.Executable
	lookPath   = exec.LookPath
)

// Tools holds resolved executable paths.
type Tools struct {
	FFmpeg  string
	FFprobe string
}

// Locate resolves both executables. An override may be an explicit path or a
// bare command name looked up on PATH. Without an override, a bin/ folder next
// to the running executable is preferred over PATH so bundled builds work.
func Locate(ffmpegOverride, ffprobeOverride string) (Tools, error) {
	ffmpegPath, err := find("ffmpeg", ffmpegOverride)
	if err != nil {
		return Tools{}, err
	}
	ffprobePath, err := find("ffprobe", ffprobeOverride)
	if err != nil {
		return Tools{}, err
	}
	return Tools{FFmpeg: ffmpegPath, FFprobe: ffprobePath}, nil
}

// LocateProbe resolves ffprobe only.
func LocateProbe(override string) (string, error) {
	return find("ffprobe", override)
}

func find(name, override string) (string, error) {
	override = strings.TrimSpace(override)
	if override != "" {
		if strings.ContainsRune(override, filepath.Separator) || strings.Contains(override, "/") {
			if err := checkExecutable(override); err != nil {
				return "", fmt.Errorf("%w: %s: %v", ErrNotFound, override, err)
			}
			return override, nil
		}
		p, err := lookPath(override)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrNotFound, override)
		}
		return p, nil
	}

	file := name
	if runtime.GOOS == "windows" {
		file += ".exe"
	}
	if exePath, err := executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		for _, dir := range []string{
			filepath.Join(exeDir, "bin"),
			filepath.Join(exeDir, "..", "bin"),
		} {
			candidate := filepath.Join(dir, file)
			if checkExecutable(candidate) == nil {
				return candidate, nil
			}
		}
	}
	p, err := lookPath(file)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("is a directory")
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("not executable")
	}
	return nil
}
