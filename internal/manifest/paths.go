package manifest

import (
	"path"
	"path/filepath"
	"strings"
)

const (
	// ControlDir is the seed repo subdirectory holding manifests.
	ControlDir = ".fab"
	// RootFile marks the top of a forest.
	RootFile = ".fab-root.json"
	// DefaultVariant names the unnamed manifest.
	DefaultVariant = "default"

	manifestSuffix = "manifest.json"
)

// NormalizePath converts p to a clean forward-slash relative form.
// An empty path becomes ".".
func NormalizePath(p string) string {
	return path.Clean(strings.ReplaceAll(p, `\`, "/"))
}

// Path returns the manifest file of variant name in the seed repo.
func Path(seedDir, name string) string {
	file := manifestSuffix
	if name != "" && name != DefaultVariant {
		file = name + "_" + manifestSuffix
	}
	return filepath.Join(seedDir, ControlDir, file)
}

// ToNative converts a manifest path to the host's separator, joined to base.
func ToNative(base, p string) string {
	return filepath.Join(base, filepath.FromSlash(p))
}

// RelativePath returns target relative to base in manifest form.
func RelativePath(base, target string) (string, error) {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", err
	}
	return NormalizePath(filepath.ToSlash(rel)), nil
}
