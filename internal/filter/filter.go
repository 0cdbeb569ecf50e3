// Package filter decides which watch events reach the image processor.
//
// Hidden files (leading dot) are skipped, except when a hidden file turns
// into a visible one. Tools such as the macOS screenshot utility write a
// hidden temp file and then rename it, so that transition marks a finished file.
package filter

import (
	"os"
	"path/filepath"
	"strings"
)

const hiddenPrefix = "."

// IsHidden reports whether the basename of path starts with a dot.
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), hiddenPrefix)
}

// ShouldProcess returns path and true if the file should be handed to the processor.
// previousPath may be empty. A hidden previous name with a visible current name
// is always admitted.
func ShouldProcess(path, previousPath string) (string, bool) {
	if IsHiddenToVisible(path, previousPath) {
		return path, true
	}
	if IsHidden(path) {
		return "", false
	}
	return path, true
}

// IsHiddenToVisible reports whether previousPath is hidden and path is not.
func IsHiddenToVisible(path, previousPath string) bool {
	return previousPath != "" && IsHidden(previousPath) && !IsHidden(path)
}

// HiddenCounterpart returns "<dir>/.<base>" for a visible path when that file
// currently exists. It is a best-effort probe: the hidden file of an atomic
// save may already be gone by the time this runs.
func HiddenCounterpart(path string) (string, bool) {
	if IsHidden(path) {
		return "", false
	}
	candidate := filepath.Join(filepath.Dir(path), hiddenPrefix+filepath.Base(path))
	if _, err := os.Lstat(candidate); err != nil {
		return "", false
	}
	return candidate, true
}
