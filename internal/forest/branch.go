package forest

import (
	"context"
	"fmt"

	"github.com/sergeknystautas/fab/internal/manifest"
)

// Switch moves the seed repo to branch, then every free dependency. The
// manifest is read again after the seed switches since the branch can
// declare a different set of dependencies. Dependencies that left the
// manifest are untouched; new ones are switched only when already cloned.
func (m *Manager) Switch(ctx context.Context, f *Forest, branch string) error {
	before := f.Manifest
	m.reporter.Repo(f.SeedPath)
	if _, err := m.runner.Run(ctx, f.Seed.Checkout(f.SeedDir(), branch)); err != nil {
		return err
	}

	after, err := m.load(ctx, f.Root, f.SeedDir(), f.ManifestName)
	if err != nil {
		return err
	}
	*f = *after

	for _, p := range before.RepoPaths() {
		if _, ok := after.Manifest.Dependencies[p]; !ok {
			m.reporter.Repo(p)
			m.reporter.Info("no longer in the manifest, left untouched")
		}
	}

	for _, p := range after.Manifest.RepoPaths() {
		dep := after.Manifest.Dependencies[p]
		_, known := before.Dependencies[p]
		dir := f.RepoDir(p)
		m.reporter.Repo(p)
		switch {
		case dep.Kind != manifest.Free:
			m.reporter.Info("%s, not switched", kindDescription(dep))
		case !exists(dir) && !known:
			m.reporter.Info("new dependency, needs install")
		case !exists(dir):
			m.reporter.Warn("not installed, needs install")
		default:
			b, err := m.registry.Get(dep.RepoType)
			if err != nil {
				return err
			}
			if _, err := m.runner.Run(ctx, b.Checkout(dir, branch)); err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
		}
	}
	return nil
}

// MakeBranch creates branch in the seed repo and every free dependency,
// from start when given, and publishes it upstream when publish is set.
func (m *Manager) MakeBranch(ctx context.Context, f *Forest, branch, start string, publish bool) error {
	repos, err := m.repos(f, func(r repo) bool { return r.Dep.Kind == manifest.Free })
	if err != nil {
		return err
	}
	for _, r := range repos {
		m.reporter.Repo(r.Path)
		cmds := r.Backend.CreateBranch(r.Dir, branch, start)
		if publish {
			cmds = append(cmds, r.Backend.PublishBranch(r.Dir, branch))
		}
		for _, c := range cmds {
			if _, err := m.runner.Run(ctx, c); err != nil {
				return fmt.Errorf("%s: %w", r.Path, err)
			}
		}
	}
	return nil
}

func kindDescription(dep manifest.Dependency) string {
	switch dep.Kind {
	case manifest.Locked:
		return "locked to " + dep.Ref
	case manifest.Pinned:
		return "pinned at " + dep.Ref
	default:
		return "free"
	}
}
