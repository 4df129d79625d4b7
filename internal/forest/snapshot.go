package forest

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sergeknystautas/fab/internal/manifest"
	"github.com/sergeknystautas/fab/internal/snapshot"
	"github.com/sergeknystautas/fab/internal/vcs"
)

// Capture records the origin and revision actually on disk for the seed and
// every dependency, whatever the manifest declares.
func (m *Manager) Capture(ctx context.Context, f *Forest) (*snapshot.Snapshot, error) {
	seed, err := m.captureRepo(ctx, f.Seed, f.SeedDir(), f.SeedOrigin)
	if err != nil {
		return nil, fmt.Errorf("seed repo: %w", err)
	}
	s := &snapshot.Snapshot{
		Dependencies:     make(map[string]snapshot.Repo, len(f.Manifest.Dependencies)),
		RootDirectory:    f.Manifest.RootDirectory,
		SeedPathFromRoot: f.SeedPath,
		SeedRepo:         seed,
	}
	for _, p := range f.Manifest.RepoPaths() {
		dep := f.Manifest.Dependencies[p]
		dir := f.RepoDir(p)
		if !exists(dir) {
			return nil, fmt.Errorf("%w: %s", ErrNotInstalled, p)
		}
		b, err := m.registry.Get(dep.RepoType)
		if err != nil {
			return nil, err
		}
		r, err := m.captureRepo(ctx, b, dir, dep.Origin)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		s.Dependencies[p] = r
	}
	return s, nil
}

// captureRepo reads origin and revision of dir. declared is used when the
// working copy has no origin configured.
func (m *Manager) captureRepo(ctx context.Context, b vcs.Backend, dir, declared string) (snapshot.Repo, error) {
	st, err := vcs.ReadState(ctx, b, dir)
	if err != nil {
		return snapshot.Repo{}, err
	}
	origin := st.Origin
	if origin == "" {
		origin = declared
	}
	if origin == "" || manifest.IsRelativeOrigin(origin) {
		return snapshot.Repo{}, fmt.Errorf("%w: %s has no absolute origin", ErrNoOrigin, dir)
	}
	return snapshot.Repo{Origin: origin, RepoType: b.Type(), Revision: st.Revision}, nil
}

// Recreate builds a new forest at dest from s alone: the seed and every
// dependency are cloned at their recorded revisions.
func (m *Manager) Recreate(ctx context.Context, s *snapshot.Snapshot, dest string) (*Forest, error) {
	dest, err := filepath.Abs(dest)
	if err != nil {
		return nil, err
	}
	if exists(dest) {
		return nil, fmt.Errorf("%w: %s", ErrDestExists, dest)
	}
	b, err := m.registry.Get(s.SeedRepo.RepoType)
	if err != nil {
		return nil, err
	}

	m.reporter.Repo(s.SeedPathFromRoot)
	p, err := PlanMissing(b, s.SeedRepo.Dependency(), dest, "")
	if err != nil {
		return nil, err
	}
	m.reporter.Info("%s", p.Describe())
	if err := m.execute(ctx, p); err != nil {
		return nil, err
	}
	seedDir := dest
	if s.SeedPathFromRoot != "." {
		if seedDir, err = m.moveSeed(dest, s.SeedPathFromRoot); err != nil {
			return nil, err
		}
	}

	root := filepath.Clean(manifest.ToNative(seedDir, s.RootDirectory))
	man := manifest.New()
	man.RootDirectory = s.RootDirectory
	man.SeedPathFromRoot = s.SeedPathFromRoot
	for _, repoPath := range s.RepoPaths() {
		man.Dependencies[repoPath] = s.Dependencies[repoPath].Dependency()
	}
	f := &Forest{
		Root:       root,
		SeedPath:   s.SeedPathFromRoot,
		Seed:       b,
		Manifest:   man,
		SeedOrigin: s.SeedRepo.Origin,
	}
	if err := m.installDependencies(ctx, f, ""); err != nil {
		return nil, err
	}
	if err := m.writeRoot(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Restore returns an existing forest to the revisions recorded in s,
// cloning only dependencies missing from disk. With a nil snapshot the
// forest is reconciled with its live manifest instead.
func (m *Manager) Restore(ctx context.Context, f *Forest, s *snapshot.Snapshot) error {
	if s == nil {
		freeBranch, err := f.Seed.CurrentBranch(ctx, f.SeedDir())
		if err != nil {
			return err
		}
		return m.installDependencies(ctx, f, freeBranch)
	}

	if err := m.reconcile(ctx, f.SeedPath, f.SeedDir(), s.SeedRepo.Dependency(), ""); err != nil {
		return fmt.Errorf("seed repo: %w", err)
	}
	for _, p := range s.RepoPaths() {
		if err := m.reconcile(ctx, p, f.RepoDir(p), s.Dependencies[p].Dependency(), ""); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}
