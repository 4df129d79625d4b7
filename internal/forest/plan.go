package forest

import (
	"fmt"
	"strings"

	"github.com/sergeknystautas/fab/internal/manifest"
	"github.com/sergeknystautas/fab/internal/vcs"
)

// Action is what reconciliation does to one repo.
type Action int

const (
	Skip Action = iota
	Clone
	Checkout
)

func (a Action) String() string {
	switch a {
	case Skip:
		return "skip"
	case Clone:
		return "clone"
	case Checkout:
		return "checkout"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Skip reasons
const (
	NoTarget = "no target"
	AtTarget = "already at target"
)

// Plan is the decided action for one repo and the commands carrying it out.
type Plan struct {
	Action Action
	Path   string
	// Target is the branch or revision aimed at; "" clones the default branch.
	Target string
	Pinned bool
	// Reason explains a Skip.
	Reason string
	// MakeParent asks for the parent of Path to be created before cloning.
	MakeParent bool
	Commands   []vcs.Command
}

// target applies the precedence pin > lock > freeBranch.
func target(dep manifest.Dependency, freeBranch string) (ref string, pinned bool) {
	switch dep.Kind {
	case manifest.Pinned:
		return dep.Ref, true
	case manifest.Locked:
		return dep.Ref, false
	default:
		return freeBranch, false
	}
}

// PlanMissing plans the clone of dep into targetPath.
func PlanMissing(b vcs.Backend, dep manifest.Dependency, targetPath, freeBranch string) (Plan, error) {
	if dep.Origin == "" {
		return Plan{}, fmt.Errorf("%w: cannot clone %s", ErrNoOrigin, targetPath)
	}
	ref, pinned := target(dep, freeBranch)
	opts := vcs.CloneOptions{Branch: ref}
	if pinned {
		opts = vcs.CloneOptions{Revision: ref}
	}
	return Plan{
		Action:     Clone,
		Path:       targetPath,
		Target:     ref,
		Pinned:     pinned,
		MakeParent: b.NeedsParentDir(),
		Commands:   b.Clone(dep.Origin, targetPath, opts),
	}, nil
}

// PlanExisting plans bringing the working copy at targetPath, currently in
// state current, to dep's target.
func PlanExisting(b vcs.Backend, dep manifest.Dependency, targetPath, freeBranch string, current vcs.State) Plan {
	ref, pinned := target(dep, freeBranch)
	p := Plan{Action: Skip, Path: targetPath, Target: ref, Pinned: pinned}
	switch {
	case ref == "":
		p.Reason = NoTarget
	case atTarget(current, ref, pinned):
		p.Reason = AtTarget
	default:
		p.Action = Checkout
		p.Commands = []vcs.Command{b.Checkout(targetPath, ref)}
	}
	return p
}

func atTarget(current vcs.State, ref string, pinned bool) bool {
	if !pinned {
		return current.Branch == ref
	}
	if current.Revision == "" || !strings.HasPrefix(current.Revision, ref) {
		return false
	}
	// Mercurial has no detached state; the working parent alone decides.
	return current.Branch == "" || current.Type == vcs.Hg
}

// Describe summarizes p for the user.
func (p Plan) Describe() string {
	switch p.Action {
	case Clone:
		if p.Target == "" {
			return "cloning default branch"
		}
		if p.Pinned {
			return "cloning at revision " + p.Target
		}
		return "cloning branch " + p.Target
	case Checkout:
		if p.Pinned {
			return "checking out revision " + p.Target
		}
		return "checking out branch " + p.Target
	default:
		if p.Reason == AtTarget {
			return AtTarget + " " + p.Target
		}
		return "skipping: " + p.Reason
	}
}
