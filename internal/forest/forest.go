// Package forest manages a set of git and Mercurial repositories declared by
// a manifest in a seed repo. It locates the forest root, classifies working
// copies into manifest entries, and reconciles the repos on disk with the
// manifest or a snapshot by running VCS commands.
package forest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sergeknystautas/fab/internal/config"
	"github.com/sergeknystautas/fab/internal/manifest"
	"github.com/sergeknystautas/fab/internal/vcs"
)

// Forest is an opened forest: where it is and what its manifest declares.
type Forest struct {
	// Root is the absolute forest root directory.
	Root string
	// SeedPath leads from Root to the seed repo, in manifest form.
	SeedPath string
	Seed     vcs.Backend
	// ManifestName is the active variant; "" is the default manifest.
	ManifestName string
	// Manifest has its origins resolved against SeedOrigin.
	Manifest   *manifest.Manifest
	SeedOrigin string
}

// SeedDir returns the seed repo directory.
func (f *Forest) SeedDir() string {
	return manifest.ToNative(f.Root, f.SeedPath)
}

// RepoDir returns the directory of the dependency at repoPath.
func (f *Forest) RepoDir(repoPath string) string {
	return manifest.ToNative(f.Root, repoPath)
}

// Manager runs forest operations.
type Manager struct {
	registry     *vcs.Registry
	runner       vcs.Runner
	reporter     Reporter
	logger       *log.Logger
	probeTimeout time.Duration
	jobs         int
}

// New creates a manager running VCS commands through runner. A nil reporter
// discards progress and a nil logger discards the debug trace.
func New(cfg *config.Config, runner vcs.Runner, reporter Reporter, logger *log.Logger) *Manager {
	if reporter == nil {
		reporter = nopReporter{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "[fab] ", 0)
	}
	return &Manager{
		registry:     vcs.NewRegistry(runner, cfg.GetGitCommand(), cfg.GetHgCommand()),
		runner:       runner,
		reporter:     reporter,
		logger:       logger,
		probeTimeout: cfg.ProbeTimeout(),
		jobs:         cfg.GetJobs(),
	}
}

// Registry returns the VCS backends the manager uses.
func (m *Manager) Registry() *vcs.Registry {
	return m.registry
}

// Open reads the root marker in root and the manifest it selects.
func (m *Manager) Open(ctx context.Context, root string) (*Forest, error) {
	r, err := manifest.ReadRoot(root)
	if err != nil {
		return nil, err
	}
	return m.load(ctx, root, manifest.ToNative(root, r.SeedPath), r.Manifest)
}

// OpenFrom locates the forest containing dir and opens it.
func (m *Manager) OpenFrom(ctx context.Context, dir string) (*Forest, error) {
	root, err := Locate(dir)
	if err != nil {
		return nil, err
	}
	return m.Open(ctx, root)
}

// load reads variant name of the manifest in seedDir and resolves its
// origins. root is the forest root the seed belongs to.
func (m *Manager) load(ctx context.Context, root, seedDir, name string) (*Forest, error) {
	b, ok := m.registry.Detect(seedDir)
	if !ok {
		return nil, fmt.Errorf("%w: seed repo %s", ErrNotWorkingCopy, seedDir)
	}
	man, warnings, err := manifest.Load(seedDir, name)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		m.reporter.Warn("%s", w)
	}
	origin, err := b.OriginURL(ctx, seedDir)
	if err != nil {
		return nil, err
	}
	man.ResolveOrigins(origin)

	seedPath, err := manifest.RelativePath(root, seedDir)
	if err != nil {
		return nil, err
	}
	m.logger.Printf("opened forest: root=%s seed=%s manifest=%q deps=%d", root, seedPath, name, len(man.Dependencies))
	return &Forest{
		Root:         root,
		SeedPath:     seedPath,
		Seed:         b,
		ManifestName: name,
		Manifest:     man,
		SeedOrigin:   origin,
	}, nil
}

// execute runs the commands of p, stopping at the first failure.
func (m *Manager) execute(ctx context.Context, p Plan) error {
	if p.Action == Skip {
		return nil
	}
	if p.MakeParent {
		if err := os.MkdirAll(filepath.Dir(p.Path), 0755); err != nil {
			return fmt.Errorf("failed to create parent of %s: %w", p.Path, err)
		}
	}
	for _, c := range p.Commands {
		if _, err := m.runner.Run(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// reconcile brings the repo at dir to dep's target, cloning it when missing.
func (m *Manager) reconcile(ctx context.Context, repoPath, dir string, dep manifest.Dependency, freeBranch string) error {
	b, err := m.registry.Get(dep.RepoType)
	if err != nil {
		return err
	}
	m.reporter.Repo(repoPath)

	var p Plan
	if exists(dir) {
		if !b.IsWorkingCopy(dir) {
			return fmt.Errorf("%w: %s exists but is not a %s repository", ErrNotWorkingCopy, dir, b.Type())
		}
		st, err := vcs.ReadState(ctx, b, dir)
		if err != nil {
			return err
		}
		dep = m.resolvePin(ctx, b, dir, dep, st)
		p = PlanExisting(b, dep, dir, freeBranch, st)
	} else {
		if p, err = PlanMissing(b, dep, dir, freeBranch); err != nil {
			return err
		}
	}

	m.logger.Printf("reconcile: path=%s action=%s target=%q pinned=%v", repoPath, p.Action, p.Target, p.Pinned)
	m.reporter.Info("%s", p.Describe())
	return m.execute(ctx, p)
}

// resolvePin rewrites a pin naming the checked out commit by another name
// (tag, short hash) to that commit's full identifier.
func (m *Manager) resolvePin(ctx context.Context, b vcs.Backend, dir string, dep manifest.Dependency, st vcs.State) manifest.Dependency {
	if dep.Kind != manifest.Pinned || st.Revision == "" || strings.HasPrefix(st.Revision, dep.Ref) {
		return dep
	}
	rev, err := b.ResolveRevision(ctx, dir, dep.Ref)
	if err != nil {
		m.logger.Printf("resolve pin: path=%s ref=%s err=%v", dir, dep.Ref, err)
		return dep
	}
	if rev == st.Revision {
		dep.Ref = rev
	}
	return dep
}

// repo is one working copy of an opened forest.
type repo struct {
	Path    string
	Dir     string
	Backend vcs.Backend
	Dep     manifest.Dependency
	Seed    bool
}

// repos lists the seed and every installed dependency accepted by include.
// Dependencies missing from disk are reported and left out.
func (m *Manager) repos(f *Forest, include func(repo) bool) ([]repo, error) {
	var out []repo
	seed := repo{Path: f.SeedPath, Dir: f.SeedDir(), Backend: f.Seed, Seed: true,
		Dep: manifest.FreeDependency(f.Seed.Type(), f.SeedOrigin)}
	if include(seed) {
		out = append(out, seed)
	}
	for _, p := range f.Manifest.RepoPaths() {
		dep := f.Manifest.Dependencies[p]
		b, err := m.registry.Get(dep.RepoType)
		if err != nil {
			return nil, err
		}
		r := repo{Path: p, Dir: f.RepoDir(p), Backend: b, Dep: dep}
		if !include(r) {
			continue
		}
		if !exists(r.Dir) {
			m.reporter.Warn("%s: not installed, skipping", p)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// writeRoot writes the root marker of f and, when the marker lands inside the
// seed's working copy, offers to have the VCS ignore it.
func (m *Manager) writeRoot(ctx context.Context, f *Forest) error {
	reinit, err := manifest.WriteRoot(f.Root, manifest.Root{SeedPath: f.SeedPath, Manifest: f.ManifestName})
	if err != nil {
		return err
	}
	if reinit {
		m.reporter.Info("reinitialized forest root at %s", f.Root)
	} else {
		m.reporter.Info("initialized forest root at %s", f.Root)
	}
	if f.SeedPath == "." {
		return m.ensureIgnored(ctx, f.Seed, f.SeedDir(), manifest.RootFile)
	}
	return nil
}

func (m *Manager) ensureIgnored(ctx context.Context, b vcs.Backend, dir, file string) error {
	ignored, err := b.IsIgnored(ctx, dir, file)
	if err != nil {
		m.logger.Printf("ignore check failed: dir=%s file=%s err=%v", dir, file, err)
		return nil
	}
	if ignored {
		return nil
	}
	if !m.reporter.Confirm(fmt.Sprintf("Add %s to %s?", file, b.IgnoreFile())) {
		m.reporter.Warn("%s is not ignored; consider adding it to %s", file, b.IgnoreFile())
		return nil
	}
	return appendLine(filepath.Join(dir, b.IgnoreFile()), ignorePattern(b.Type(), file))
}

// ignorePattern returns a pattern matching file at the top of the working copy.
// Mercurial ignore files default to regexp syntax.
func ignorePattern(t vcs.Type, file string) string {
	if t == vcs.Hg {
		return "^" + strings.ReplaceAll(file, ".", `\.`) + "$"
	}
	return "/" + file
}

func appendLine(path, line string) error {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	prefix := ""
	if len(data) > 0 && data[len(data)-1] != '\n' {
		prefix = "\n"
	}
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := fh.WriteString(prefix + line + "\n"); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
