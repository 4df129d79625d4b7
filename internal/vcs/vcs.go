// Package vcs provides a backend abstraction for the version control systems
// a forest can hold. Each backend builds the commands for one VCS and answers
// queries about a working copy by running its executable through a Runner, so
// the forest logic works across git and Mercurial by swapping the backend.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Type names a supported version control system. The string values are part
// of the manifest wire format.
type Type string

const (
	Git Type = "git"
	Hg  Type = "hg"
)

// ErrUnsupportedType is returned for repo types other than git and hg.
var ErrUnsupportedType = errors.New("unsupported repo type")

// Types returns the supported types in probe order.
func Types() []Type {
	return []Type{Git, Hg}
}

// ParseType converts a manifest repoType value to a Type.
func ParseType(s string) (Type, bool) {
	switch Type(s) {
	case Git, Hg:
		return Type(s), true
	default:
		return "", false
	}
}

// Command is a single VCS invocation.
type Command struct {
	// Dir is the working directory; empty means the caller's directory.
	Dir  string
	Name string
	Args []string
	// Env holds extra KEY=value pairs appended to the inherited environment.
	Env []string
	// Allowed lists non-zero exit statuses that count as success.
	Allowed []int
}

// String returns the command line as typed in a shell, without quoting.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

func (c Command) allows(status int) bool {
	for _, s := range c.Allowed {
		if s == status {
			return true
		}
	}
	return false
}

// CloneOptions selects what a fresh clone checks out.
type CloneOptions struct {
	// Branch is checked out after cloning when set.
	Branch string
	// Revision is checked out exactly, after a clone with checkout suppressed.
	// Takes precedence over Branch.
	Revision string
}

// Backend builds commands for one VCS and queries working copies of it.
type Backend interface {
	// Type returns the VCS type this backend handles.
	Type() Type
	// IsWorkingCopy reports whether dir is the top of a working copy.
	IsWorkingCopy(dir string) bool
	// Probe reports whether source is a repository of this type.
	Probe(ctx context.Context, source string) bool
	// NeedsParentDir is true when clone does not create missing parent directories.
	NeedsParentDir() bool
	// IgnoreFile is the name of the ignore file at the top of a working copy.
	IgnoreFile() string

	// Clone returns the commands that clone origin into dest.
	Clone(origin, dest string, opts CloneOptions) []Command
	// Checkout returns the command that updates dir to a branch or revision.
	Checkout(dir, target string) Command
	// Pull returns the command that fetches and merges upstream changes.
	Pull(dir string) Command
	// Outgoing returns the command listing changes not yet pushed.
	Outgoing(dir string) Command
	// Status returns the command printing a short working copy status.
	Status(dir string) Command
	// CreateBranch returns the commands creating branch, from start when set.
	CreateBranch(dir, branch, start string) []Command
	// PublishBranch returns the command pushing a new branch upstream.
	PublishBranch(dir, branch string) Command

	// CurrentBranch returns the checked out branch, or "" when detached.
	CurrentBranch(ctx context.Context, dir string) (string, error)
	// CurrentRevision returns the full identifier of the checked out revision.
	CurrentRevision(ctx context.Context, dir string) (string, error)
	// ResolveRevision returns the full identifier rev names in dir, or ""
	// when it names nothing there.
	ResolveRevision(ctx context.Context, dir, rev string) (string, error)
	// OriginURL returns the default remote, or "" when none is configured.
	OriginURL(ctx context.Context, dir string) (string, error)
	// IsIgnored reports whether file (relative to dir) is ignored.
	IsIgnored(ctx context.Context, dir, file string) (bool, error)
	// Version returns the version of the installed executable.
	Version(ctx context.Context) (*semver.Version, error)
}

// State is the VCS-observable state of a working copy.
type State struct {
	Type     Type
	Origin   string
	Branch   string
	Revision string
}

// ReadState collects origin, branch and revision of the working copy at dir.
func ReadState(ctx context.Context, b Backend, dir string) (State, error) {
	st := State{Type: b.Type()}
	var err error
	if st.Origin, err = b.OriginURL(ctx, dir); err != nil {
		return st, fmt.Errorf("failed to read origin of %s: %w", dir, err)
	}
	if st.Branch, err = b.CurrentBranch(ctx, dir); err != nil {
		return st, fmt.Errorf("failed to read branch of %s: %w", dir, err)
	}
	if st.Revision, err = b.CurrentRevision(ctx, dir); err != nil {
		return st, fmt.Errorf("failed to read revision of %s: %w", dir, err)
	}
	return st, nil
}
