package forest

import (
	"github.com/sergeknystautas/fab/internal/manifest"
	"github.com/sergeknystautas/fab/internal/vcs"
)

// Classify derives the manifest entry for a working copy from its state and
// the seed repo's state. First match wins:
//   - no current branch: pinned at the current revision
//   - a branch other than the seed's: locked to it
//   - the seed's branch with an origin beside the seed's: free, origin relative
//   - the seed's branch otherwise: locked, origin absolute
//
// A working copy without an origin still gets an entry; callers warn about it.
func Classify(st, seed vcs.State) manifest.Dependency {
	switch {
	case st.Branch == "":
		return manifest.PinnedDependency(st.Type, st.Origin, st.Revision)
	case st.Branch != seed.Branch:
		return manifest.LockedDependency(st.Type, st.Origin, st.Branch)
	case st.Origin == "":
		return manifest.FreeDependency(st.Type, "")
	}
	if rel, ok := manifest.RelativeOrigin(seed.Origin, st.Origin); ok {
		return manifest.FreeDependency(st.Type, rel)
	}
	return manifest.LockedDependency(st.Type, st.Origin, st.Branch)
}
