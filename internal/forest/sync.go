package forest

import (
	"context"
	"fmt"

	"github.com/sergeknystautas/fab/internal/manifest"
	"github.com/sergeknystautas/fab/internal/vcs"
)

func notPinned(r repo) bool { return r.Dep.Kind != manifest.Pinned }

// Pull updates the seed repo and every free or locked dependency from
// upstream. Mercurial merges that leave conflicts are reported and left for
// the user to resolve.
func (m *Manager) Pull(ctx context.Context, f *Forest) error {
	repos, err := m.repos(f, notPinned)
	if err != nil {
		return err
	}
	for _, r := range repos {
		m.reporter.Repo(r.Path)
		status, err := m.runner.Run(ctx, r.Backend.Pull(r.Dir))
		if err != nil {
			return fmt.Errorf("%s: %w", r.Path, err)
		}
		if status == 1 && r.Backend.Type() == vcs.Hg {
			m.reporter.Warn("%s: unresolved conflicts left for you to resolve", r.Path)
		}
	}
	return nil
}

// Outgoing lists changes not yet pushed in the seed repo and every free or
// locked dependency.
func (m *Manager) Outgoing(ctx context.Context, f *Forest) error {
	return m.each(ctx, f, notPinned, func(b vcs.Backend, dir string) vcs.Command { return b.Outgoing(dir) })
}

// Status prints a short working copy status of every installed repo.
func (m *Manager) Status(ctx context.Context, f *Forest) error {
	return m.each(ctx, f, func(repo) bool { return true }, func(b vcs.Backend, dir string) vcs.Command { return b.Status(dir) })
}

// each runs one backend command per selected repo, in order.
func (m *Manager) each(ctx context.Context, f *Forest, include func(repo) bool, build func(vcs.Backend, string) vcs.Command) error {
	repos, err := m.repos(f, include)
	if err != nil {
		return err
	}
	for _, r := range repos {
		m.reporter.Repo(r.Path)
		if _, err := m.runner.Run(ctx, build(r.Backend, r.Dir)); err != nil {
			return fmt.Errorf("%s: %w", r.Path, err)
		}
	}
	return nil
}
