package forest

import (
	"testing"

	"github.com/sergeknystautas/fab/internal/manifest"
	"github.com/sergeknystautas/fab/internal/vcs"
)

func TestClassify(t *testing.T) {
	seed := vcs.State{Type: vcs.Git, Origin: "git@example.com:org/app.git", Branch: "main", Revision: "000"}
	tests := []struct {
		name string
		st   vcs.State
		want manifest.Dependency
	}{
		{
			name: "detached is pinned",
			st:   vcs.State{Type: vcs.Git, Origin: "git@example.com:org/lib.git", Revision: "abc123"},
			want: manifest.PinnedDependency(vcs.Git, "git@example.com:org/lib.git", "abc123"),
		},
		{
			name: "detached without origin is still pinned",
			st:   vcs.State{Type: vcs.Git, Revision: "abc123"},
			want: manifest.PinnedDependency(vcs.Git, "", "abc123"),
		},
		{
			name: "other branch is locked",
			st:   vcs.State{Type: vcs.Hg, Origin: "https://hg.example.com/lib", Branch: "stable", Revision: "1"},
			want: manifest.LockedDependency(vcs.Hg, "https://hg.example.com/lib", "stable"),
		},
		{
			name: "same branch beside the seed is free and relative",
			st:   vcs.State{Type: vcs.Git, Origin: "git@example.com:org/lib.git", Branch: "main", Revision: "1"},
			want: manifest.FreeDependency(vcs.Git, "../lib.git"),
		},
		{
			name: "same branch elsewhere is locked",
			st:   vcs.State{Type: vcs.Git, Origin: "git@mirror.example.com:org/lib.git", Branch: "main", Revision: "1"},
			want: manifest.LockedDependency(vcs.Git, "git@mirror.example.com:org/lib.git", "main"),
		},
		{
			name: "same branch without origin is free",
			st:   vcs.State{Type: vcs.Git, Branch: "main", Revision: "1"},
			want: manifest.FreeDependency(vcs.Git, ""),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.st, seed)
			if got != tt.want {
				t.Errorf("Classify() = %+v, want %+v", got, tt.want)
			}
			if got.PinRevision() != "" && got.LockBranch() != "" {
				t.Errorf("both pin and lock set: %+v", got)
			}
		})
	}
}

func TestClassifySeedWithoutOrigin(t *testing.T) {
	seed := vcs.State{Type: vcs.Git, Branch: "main"}
	st := vcs.State{Type: vcs.Git, Origin: "/srv/lib", Branch: "main"}
	if got := Classify(st, seed); got.Kind != manifest.Locked || got.Origin != "/srv/lib" {
		t.Errorf("Classify() = %+v, want locked with absolute origin", got)
	}
}
