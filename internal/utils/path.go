package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// ResolveFile finds a user supplied file. Absolute paths are used as is.
// Relative paths are tried against the working directory, then each of
// the given base directories (config dir, executable dir) in order.
func ResolveFile(path string, baseDirs ...string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(path) {
		if !isRegularFile(path) {
			return "", fmt.Errorf("%s: %w", path, os.ErrNotExist)
		}
		return path, nil
	}

	candidates := make([]string, 0, len(baseDirs)+1)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, path))
	}
	for _, dir := range baseDirs {
		if dir != "" {
			candidates = append(candidates, filepath.Join(dir, path))
		}
	}

	for _, candidate := range candidates {
		if isRegularFile(candidate) {
			log.Debugf("Resolved %s to %s", path, candidate)
			return candidate, nil
		}
		log.Debugf("File candidate not found: %s", candidate)
	}
	return "", fmt.Errorf("%s: %w", path, os.ErrNotExist)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
