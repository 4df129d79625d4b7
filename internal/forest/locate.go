package forest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sergeknystautas/fab/internal/manifest"
)

// Locate walks up from startDir to the directory holding the root marker.
func Locate(startDir string) (string, error) {
	start, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for dir := start; ; {
		if _, err := os.Stat(filepath.Join(dir, manifest.RootFile)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	info, err := os.Stat(filepath.Join(start, manifest.ControlDir))
	return "", &NotForestError{Dir: start, SeedLike: err == nil && info.IsDir()}
}

// LocateSeed walks up from startDir to the nearest directory holding a
// manifest control directory.
func LocateSeed(startDir string) (string, error) {
	start, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for dir := start; ; {
		if info, err := os.Stat(filepath.Join(dir, manifest.ControlDir)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: no %s directory found above %s", ErrNotWorkingCopy, manifest.ControlDir, start)
		}
		dir = parent
	}
}
