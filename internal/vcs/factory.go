package vcs

import (
	"context"
	"fmt"
)

// Registry holds one backend per supported VCS type.
type Registry struct {
	backends []Backend
}

// NewRegistry returns git and hg backends sharing runner r. Empty executable
// names fall back to "git" and "hg".
func NewRegistry(r Runner, gitCommand, hgCommand string) *Registry {
	return &Registry{backends: []Backend{NewGit(r, gitCommand), NewHg(r, hgCommand)}}
}

// Get returns the backend for t.
func (reg *Registry) Get(t Type) (Backend, error) {
	for _, b := range reg.backends {
		if b.Type() == t {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, t)
}

// Detect returns the backend whose working copy is rooted at dir.
func (reg *Registry) Detect(dir string) (Backend, bool) {
	for _, b := range reg.backends {
		if b.IsWorkingCopy(dir) {
			return b, true
		}
	}
	return nil, false
}

// Probe asks each backend in turn whether source is one of its repositories.
// The first successful probe wins.
func (reg *Registry) Probe(ctx context.Context, source string) (Backend, error) {
	for _, b := range reg.backends {
		if b.Probe(ctx, source) {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %s is not a git or hg repository", ErrUnsupportedType, source)
}
