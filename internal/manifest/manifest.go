package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrManifestNotFound = errors.New("manifest not found")
	ErrInvalidManifest  = errors.New("invalid manifest")
	ErrMissingField     = errors.New("missing field")
)

// NotFoundError reports an absent manifest along with the variants that do exist.
type NotFoundError struct {
	Path     string
	Variants []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("manifest not found: %s", e.Path)
	if len(e.Variants) > 0 {
		msg += fmt.Sprintf(" (available manifests: %s)", strings.Join(e.Variants, ", "))
	}
	return msg
}

func (e *NotFoundError) Unwrap() error { return ErrManifestNotFound }

// Manifest is the declarative definition of a forest, stored in the seed repo.
type Manifest struct {
	// Dependencies is keyed by repo path relative to the forest root.
	Dependencies map[string]Dependency
	// RootDirectory leads from the seed repo to the forest root.
	RootDirectory string
	// SeedPathFromRoot leads from the forest root back to the seed repo.
	SeedPathFromRoot string
}

// New returns an empty manifest for a nested forest.
func New() *Manifest {
	return &Manifest{
		Dependencies:     map[string]Dependency{},
		RootDirectory:    ".",
		SeedPathFromRoot: ".",
	}
}

// RepoPaths returns the dependency keys in sorted order.
func (m *Manifest) RepoPaths() []string {
	paths := make([]string, 0, len(m.Dependencies))
	for p := range m.Dependencies {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ResolveOrigins rewrites every relative origin against the seed's own origin.
func (m *Manifest) ResolveOrigins(seedOrigin string) {
	for p, dep := range m.Dependencies {
		dep.Origin = ResolveOrigin(seedOrigin, dep.Origin)
		m.Dependencies[p] = dep
	}
}

// document is the versioned on-disk form. Legacy v1 fields are folded into
// the current ones by upgrade.
type document struct {
	Dependencies     map[string]RawDependency `json:"dependencies"`
	RootDirectory    *string                  `json:"rootDirectory,omitempty"`
	SeedPathFromRoot *string                  `json:"seedPathFromRoot,omitempty"`

	// v1
	MainPathFromRoot *string `json:"mainPathFromRoot,omitempty"`
}

func (d *document) upgrade() {
	if d.SeedPathFromRoot == nil {
		d.SeedPathFromRoot = d.MainPathFromRoot
	}
	d.MainPathFromRoot = nil
}

// Load reads variant name of the manifest in seedDir. Warnings describe
// entries that were dropped or overridden while decoding.
func Load(seedDir, name string) (*Manifest, []string, error) {
	p := Path(seedDir, name)
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			variants, _ := Variants(seedDir)
			return nil, nil, &NotFoundError{Path: p, Variants: variants}
		}
		return nil, nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(p, data)
}

// Parse decodes a manifest document. source names it in errors.
func Parse(source string, data []byte) (*Manifest, []string, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %s", ErrInvalidManifest, source, DescribeJSONError(data, err))
	}
	doc.upgrade()
	return doc.manifest(source)
}

func (d *document) manifest(source string) (*Manifest, []string, error) {
	switch {
	case d.Dependencies == nil:
		return nil, nil, fmt.Errorf("%w: %s: dependencies", ErrMissingField, source)
	case d.RootDirectory == nil:
		return nil, nil, fmt.Errorf("%w: %s: rootDirectory", ErrMissingField, source)
	case d.SeedPathFromRoot == nil:
		return nil, nil, fmt.Errorf("%w: %s: seedPathFromRoot", ErrMissingField, source)
	}
	deps, warnings := decodeDependencies(d.Dependencies)
	return &Manifest{
		Dependencies:     deps,
		RootDirectory:    NormalizePath(*d.RootDirectory),
		SeedPathFromRoot: NormalizePath(*d.SeedPathFromRoot),
	}, warnings, nil
}

func decodeDependencies(raw map[string]RawDependency) (map[string]Dependency, []string) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	deps := make(map[string]Dependency, len(raw))
	var warnings []string
	for _, k := range keys {
		repoPath := NormalizePath(k)
		dep, w, ok := DecodeDependency(repoPath, raw[k])
		warnings = append(warnings, w...)
		if ok {
			deps[repoPath] = dep
		}
	}
	return deps, warnings
}

// EncodeDependencies converts deps to their on-disk form.
func EncodeDependencies(deps map[string]Dependency) map[string]RawDependency {
	raw := make(map[string]RawDependency, len(deps))
	for p, dep := range deps {
		raw[p] = EncodeDependency(dep)
	}
	return raw
}

type manifestFile struct {
	Dependencies     map[string]RawDependency `json:"dependencies"`
	RootDirectory    string                   `json:"rootDirectory"`
	SeedPathFromRoot string                   `json:"seedPathFromRoot"`
}

// Save writes m to path using the current field names.
func Save(path string, m *Manifest) error {
	return WriteJSONFile(path, manifestFile{
		Dependencies:     EncodeDependencies(m.Dependencies),
		RootDirectory:    m.RootDirectory,
		SeedPathFromRoot: m.SeedPathFromRoot,
	})
}

// Variants lists the manifests present in the seed repo, DefaultVariant
// standing for the unnamed one.
func Variants(seedDir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(seedDir, ControlDir))
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch n := e.Name(); {
		case n == manifestSuffix:
			names = append(names, DefaultVariant)
		case strings.HasSuffix(n, "_"+manifestSuffix):
			names = append(names, strings.TrimSuffix(n, "_"+manifestSuffix))
		}
	}
	sort.Strings(names)
	return names, nil
}

// WriteJSONFile writes v as indented JSON, replacing path atomically.
func WriteJSONFile(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save %s: %w", filepath.Base(path), err)
	}
	return nil
}

// DescribeJSONError adds a line and column to JSON decoding errors.
func DescribeJSONError(data []byte, err error) string {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(data, syntaxErr.Offset)
		return fmt.Sprintf("%s (line %d, column %d)", syntaxErr.Error(), line, col)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(data, typeErr.Offset)
		return fmt.Sprintf("field %q expects %s, got %s (line %d, column %d)",
			typeErr.Field, typeErr.Type, typeErr.Value, line, col)
	}
	return err.Error()
}

// offsetToLineCol converts a byte offset to line and column numbers (1-indexed).
func offsetToLineCol(data []byte, offset int64) (line, col int) {
	line = 1
	col = 1
	for i := int64(0); i < offset && i < int64(len(data)); i++ {
		if data[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
