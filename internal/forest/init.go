package forest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergeknystautas/fab/internal/manifest"
	"github.com/sergeknystautas/fab/internal/vcs"
)

// InitOptions configures Init.
type InitOptions struct {
	// Root is the forest root, relative to the seed repo unless absolute.
	// Empty means the seed repo itself (nested layout).
	Root string
	// Manifest names the variant to write; "" is the default manifest.
	Manifest string
	// Force overwrites an existing manifest.
	Force bool
}

// Init scans the forest root for working copies, classifies each against
// the seed repo, and writes the manifest and root marker.
func (m *Manager) Init(ctx context.Context, seedDir string, opts InitOptions) (*Forest, error) {
	seedDir, err := filepath.Abs(seedDir)
	if err != nil {
		return nil, err
	}
	b, ok := m.registry.Detect(seedDir)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a git or hg repository", ErrNotWorkingCopy, seedDir)
	}
	root := seedDir
	if opts.Root != "" {
		root = opts.Root
		if !filepath.IsAbs(root) {
			root = filepath.Join(seedDir, root)
		}
		root = filepath.Clean(root)
	}
	seedPath, err := manifest.RelativePath(root, seedDir)
	if err != nil {
		return nil, err
	}
	if seedPath == ".." || strings.HasPrefix(seedPath, "../") {
		return nil, fmt.Errorf("%w: seed repo %s is not inside root %s", ErrOutsideOfForest, seedDir, root)
	}
	rootDirectory, err := manifest.RelativePath(seedDir, root)
	if err != nil {
		return nil, err
	}

	manifestPath := manifest.Path(seedDir, opts.Manifest)
	if exists(manifestPath) && !opts.Force {
		return nil, fmt.Errorf("%w: %s (use --force to overwrite)", ErrManifestExists, manifestPath)
	}

	seed, err := vcs.ReadState(ctx, b, seedDir)
	if err != nil {
		return nil, err
	}
	if seed.Origin == "" {
		m.reporter.Warn("seed repo has no origin; dependency origins cannot be made relative")
	}

	found, err := m.scan(root, seedDir)
	if err != nil {
		return nil, err
	}
	man := manifest.New()
	man.RootDirectory = rootDirectory
	man.SeedPathFromRoot = seedPath
	for _, dir := range found {
		repoPath, err := manifest.RelativePath(root, dir)
		if err != nil {
			return nil, err
		}
		db, _ := m.registry.Detect(dir)
		st, err := vcs.ReadState(ctx, db, dir)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", repoPath, err)
		}
		dep := Classify(st, seed)
		if dep.Origin == "" {
			m.reporter.Warn("%s: no origin found; it cannot be cloned by install", repoPath)
		}
		m.reporter.Repo(repoPath)
		m.reporter.Info("%s", kindDescription(dep))
		man.Dependencies[repoPath] = dep
	}

	if err := manifest.Save(manifestPath, man); err != nil {
		return nil, err
	}
	m.reporter.Info("wrote %s with %d dependencies", manifestPath, len(man.Dependencies))

	resolved := *man
	resolved.Dependencies = make(map[string]manifest.Dependency, len(man.Dependencies))
	for p, dep := range man.Dependencies {
		resolved.Dependencies[p] = dep
	}
	resolved.ResolveOrigins(seed.Origin)
	f := &Forest{
		Root:         root,
		SeedPath:     seedPath,
		Seed:         b,
		ManifestName: opts.Manifest,
		Manifest:     &resolved,
		SeedOrigin:   seed.Origin,
	}
	if err := m.writeRoot(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// scan returns the working copies below root other than the seed, in walk
// order. It descends into working copies so nested layouts are found.
func (m *Manager) scan(root, seedDir string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		switch d.Name() {
		case ".git", ".hg", manifest.ControlDir:
			return filepath.SkipDir
		}
		if path == seedDir {
			return nil
		}
		// Submodules and linked worktrees keep a .git file; the enclosing repo owns them.
		if info, err := os.Lstat(filepath.Join(path, ".git")); err == nil && !info.IsDir() {
			m.logger.Printf("init: skipping path=%s reason=gitfile", path)
			return filepath.SkipDir
		}
		if _, ok := m.registry.Detect(path); ok {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return found, nil
}
