package forest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/sergeknystautas/fab/internal/manifest"
	"github.com/sergeknystautas/fab/internal/vcs"
)

// Filter selects the repos a for-each command runs in.
type Filter int

const (
	All Filter = iota
	// FreeOnly selects the seed and free dependencies.
	FreeOnly
	GitOnly
	HgOnly
)

func (flt Filter) includes(r repo) bool {
	switch flt {
	case FreeOnly:
		return r.Dep.Kind == manifest.Free
	case GitOnly:
		return r.Backend.Type() == vcs.Git
	case HgOnly:
		return r.Backend.Type() == vcs.Hg
	default:
		return true
	}
}

// ForEachOptions configures ForEach.
type ForEachOptions struct {
	// KeepGoing reports failures and carries on with the remaining repos.
	KeepGoing bool
	// Jobs bounds how many repos run at once; 0 uses the configured default.
	Jobs int
}

// ForEach runs argv in every repo selected by filter. With more than one job
// the output of different repos may interleave.
func (m *Manager) ForEach(ctx context.Context, f *Forest, filter Filter, argv []string, opts ForEachOptions) error {
	if len(argv) == 0 {
		return errors.New("no command given")
	}
	repos, err := m.repos(f, filter.includes)
	if err != nil {
		return err
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = m.jobs
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	var failed atomic.Int32
	for _, r := range repos {
		g.Go(func() error {
			// A failure elsewhere cancelled the group.
			if err := gctx.Err(); err != nil {
				return err
			}
			m.reporter.Repo(r.Path)
			c := vcs.Command{Dir: r.Dir, Name: argv[0], Args: argv[1:]}
			if _, err := m.runner.Run(gctx, c); err != nil {
				if !opts.KeepGoing {
					return fmt.Errorf("%s: %w", r.Path, err)
				}
				m.reporter.Error("%s: %v", r.Path, err)
				failed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		return Reported(fmt.Errorf("command failed in %d of %d repos", n, len(repos)))
	}
	return nil
}
