// Package snapshot encodes point-in-time captures of a forest. A snapshot
// records the absolute origin and exact revision of the seed repo and every
// dependency, so a forest can be recreated from the document alone.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/sergeknystautas/fab/internal/manifest"
	"github.com/sergeknystautas/fab/internal/vcs"
)

var (
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	ErrMissingField    = errors.New("missing field")
)

// Repo is a captured repository: where it came from and the revision it was at.
type Repo struct {
	Origin   string
	RepoType vcs.Type
	Revision string
}

// Dependency returns r as a pinned manifest dependency.
func (r Repo) Dependency() manifest.Dependency {
	return manifest.PinnedDependency(r.RepoType, r.Origin, r.Revision)
}

// Snapshot is a self-describing capture of a forest.
type Snapshot struct {
	Dependencies     map[string]Repo
	RootDirectory    string
	SeedPathFromRoot string
	SeedRepo         Repo
}

// RepoPaths returns the dependency keys in sorted order.
func (s *Snapshot) RepoPaths() []string {
	paths := make([]string, 0, len(s.Dependencies))
	for p := range s.Dependencies {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

type document struct {
	Dependencies     map[string]manifest.RawDependency `json:"dependencies"`
	RootDirectory    *string                           `json:"rootDirectory,omitempty"`
	SeedPathFromRoot *string                           `json:"seedPathFromRoot,omitempty"`
	SeedRepo         *manifest.RawDependency           `json:"seedRepo,omitempty"`

	// v1
	MainPathFromRoot *string                 `json:"mainPathFromRoot,omitempty"`
	MainRepo         *manifest.RawDependency `json:"mainRepo,omitempty"`
}

func (d *document) upgrade() {
	if d.SeedPathFromRoot == nil {
		d.SeedPathFromRoot = d.MainPathFromRoot
	}
	if d.SeedRepo == nil {
		d.SeedRepo = d.MainRepo
	}
	d.MainPathFromRoot = nil
	d.MainRepo = nil
}

// Encode serializes s with the current field names.
func Encode(s *Snapshot) ([]byte, error) {
	seed := rawRepo(s.SeedRepo)
	doc := document{
		Dependencies:     make(map[string]manifest.RawDependency, len(s.Dependencies)),
		RootDirectory:    &s.RootDirectory,
		SeedPathFromRoot: &s.SeedPathFromRoot,
		SeedRepo:         &seed,
	}
	for p, r := range s.Dependencies {
		doc.Dependencies[p] = rawRepo(r)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

func rawRepo(r Repo) manifest.RawDependency {
	return manifest.EncodeDependency(r.Dependency())
}

// Decode parses a snapshot document, accepting legacy field names.
// Warnings describe dependencies that were dropped.
func Decode(data []byte) (*Snapshot, []string, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidSnapshot, manifest.DescribeJSONError(data, err))
	}
	doc.upgrade()

	switch {
	case doc.Dependencies == nil:
		return nil, nil, fmt.Errorf("%w: dependencies", ErrMissingField)
	case doc.RootDirectory == nil:
		return nil, nil, fmt.Errorf("%w: rootDirectory", ErrMissingField)
	case doc.SeedPathFromRoot == nil:
		return nil, nil, fmt.Errorf("%w: seedPathFromRoot", ErrMissingField)
	case doc.SeedRepo == nil:
		return nil, nil, fmt.Errorf("%w: seedRepo", ErrMissingField)
	}

	seed, err := decodeRepo("seedRepo", *doc.SeedRepo)
	if err != nil {
		return nil, nil, err
	}
	s := &Snapshot{
		Dependencies:     make(map[string]Repo, len(doc.Dependencies)),
		RootDirectory:    manifest.NormalizePath(*doc.RootDirectory),
		SeedPathFromRoot: manifest.NormalizePath(*doc.SeedPathFromRoot),
		SeedRepo:         seed,
	}

	keys := make([]string, 0, len(doc.Dependencies))
	for k := range doc.Dependencies {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var warnings []string
	for _, k := range keys {
		repoPath := manifest.NormalizePath(k)
		r, err := decodeRepo(repoPath, doc.Dependencies[k])
		if errors.Is(err, vcs.ErrUnsupportedType) {
			warnings = append(warnings, err.Error())
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		s.Dependencies[repoPath] = r
	}
	return s, warnings, nil
}

func decodeRepo(name string, raw manifest.RawDependency) (Repo, error) {
	t, ok := vcs.ParseType(raw.RepoType)
	if !ok {
		return Repo{}, fmt.Errorf("%w %q for %s", vcs.ErrUnsupportedType, raw.RepoType, name)
	}
	if raw.PinRevision == "" {
		return Repo{}, fmt.Errorf("%w: %s.pinRevision", ErrMissingField, name)
	}
	if raw.Origin == "" || manifest.IsRelativeOrigin(raw.Origin) {
		return Repo{}, fmt.Errorf("%w: %s needs an absolute origin, got %q", ErrInvalidSnapshot, name, raw.Origin)
	}
	return Repo{Origin: raw.Origin, RepoType: t, Revision: raw.PinRevision}, nil
}

// ReadFile loads the snapshot document at path.
func ReadFile(path string) (*Snapshot, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	s, warnings, err := Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, warnings, nil
}

// WriteFile writes s to path.
func WriteFile(path string, s *Snapshot) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
