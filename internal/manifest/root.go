package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var ErrRootNotFound = errors.New("root marker not found")

// Root is the marker file at the top of a forest.
type Root struct {
	// SeedPath leads from the root to the seed repo.
	SeedPath string
	// Manifest names the active variant; empty means the default manifest.
	Manifest string
}

type rootDocument struct {
	SeedPath *string `json:"seedPath,omitempty"`
	Manifest string  `json:"manifest,omitempty"`

	// v1
	MainPath *string `json:"mainPath,omitempty"`
}

func (d *rootDocument) upgrade() {
	if d.SeedPath == nil {
		d.SeedPath = d.MainPath
	}
	d.MainPath = nil
}

// ReadRoot loads the root marker in rootDir.
func ReadRoot(rootDir string) (*Root, error) {
	p := filepath.Join(rootDir, RootFile)
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, p)
		}
		return nil, fmt.Errorf("failed to read root marker: %w", err)
	}

	var doc rootDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidManifest, p, DescribeJSONError(data, err))
	}
	doc.upgrade()
	if doc.SeedPath == nil {
		return nil, fmt.Errorf("%w: %s: seedPath", ErrMissingField, p)
	}
	name := doc.Manifest
	if name == DefaultVariant {
		name = ""
	}
	return &Root{SeedPath: NormalizePath(*doc.SeedPath), Manifest: name}, nil
}

// WriteRoot writes the root marker in rootDir. reinitialized is true when a
// marker was already present.
func WriteRoot(rootDir string, r Root) (reinitialized bool, err error) {
	p := filepath.Join(rootDir, RootFile)
	if _, err := os.Stat(p); err == nil {
		reinitialized = true
	}
	seedPath := NormalizePath(r.SeedPath)
	doc := rootDocument{SeedPath: &seedPath}
	if r.Manifest != DefaultVariant {
		doc.Manifest = r.Manifest
	}
	return reinitialized, WriteJSONFile(p, doc)
}
