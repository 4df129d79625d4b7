package manifest

import (
	"fmt"

	"github.com/sergeknystautas/fab/internal/vcs"
)

// Kind says how a dependency follows the forest.
type Kind int

const (
	// Free dependencies follow whatever branch the seed repo is on.
	Free Kind = iota
	// Locked dependencies always track one branch.
	Locked
	// Pinned dependencies sit at an exact revision and are left out of
	// branch-wide operations.
	Pinned
)

func (k Kind) String() string {
	switch k {
	case Free:
		return "free"
	case Locked:
		return "locked"
	case Pinned:
		return "pinned"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Dependency is one declared repository of a forest. The repo path is the
// key it is stored under.
type Dependency struct {
	Origin   string
	RepoType vcs.Type
	Kind     Kind
	// Ref is the branch of a Locked dependency or the revision of a Pinned one.
	Ref string
}

// FreeDependency returns a dependency following the seed's branch.
func FreeDependency(t vcs.Type, origin string) Dependency {
	return Dependency{Origin: origin, RepoType: t, Kind: Free}
}

// LockedDependency returns a dependency tracking branch.
func LockedDependency(t vcs.Type, origin, branch string) Dependency {
	return Dependency{Origin: origin, RepoType: t, Kind: Locked, Ref: branch}
}

// PinnedDependency returns a dependency fixed at revision.
func PinnedDependency(t vcs.Type, origin, revision string) Dependency {
	return Dependency{Origin: origin, RepoType: t, Kind: Pinned, Ref: revision}
}

// LockBranch returns the locked branch, or "".
func (d Dependency) LockBranch() string {
	if d.Kind == Locked {
		return d.Ref
	}
	return ""
}

// PinRevision returns the pinned revision, or "".
func (d Dependency) PinRevision() string {
	if d.Kind == Pinned {
		return d.Ref
	}
	return ""
}

// RawDependency is the on-disk form of a dependency entry.
type RawDependency struct {
	Origin      string `json:"origin,omitempty"`
	RepoType    string `json:"repoType,omitempty"`
	PinRevision string `json:"pinRevision,omitempty"`
	LockBranch  string `json:"lockBranch,omitempty"`
}

// EncodeDependency converts d to its on-disk form.
func EncodeDependency(d Dependency) RawDependency {
	return RawDependency{
		Origin:      d.Origin,
		RepoType:    string(d.RepoType),
		PinRevision: d.PinRevision(),
		LockBranch:  d.LockBranch(),
	}
}

// DecodeDependency converts an on-disk entry. ok is false when the repo type
// is not supported; such entries must be dropped. Warnings describe anything
// that was dropped or overridden.
func DecodeDependency(repoPath string, raw RawDependency) (d Dependency, warnings []string, ok bool) {
	t, ok := vcs.ParseType(raw.RepoType)
	if !ok {
		return Dependency{}, []string{fmt.Sprintf("skipping %s: unsupported repoType %q", repoPath, raw.RepoType)}, false
	}
	d = Dependency{Origin: raw.Origin, RepoType: t}
	switch {
	case raw.PinRevision != "":
		d.Kind, d.Ref = Pinned, raw.PinRevision
		if raw.LockBranch != "" {
			warnings = append(warnings, fmt.Sprintf("%s has both pinRevision and lockBranch; using pinRevision %s", repoPath, raw.PinRevision))
		}
	case raw.LockBranch != "":
		d.Kind, d.Ref = Locked, raw.LockBranch
	}
	return d, warnings, true
}
