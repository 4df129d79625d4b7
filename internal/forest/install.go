package forest

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sergeknystautas/fab/internal/manifest"
	"github.com/sergeknystautas/fab/internal/vcs"
)

// InstallOptions configures Install.
type InstallOptions struct {
	// Manifest selects a variant; "" is the default manifest.
	Manifest string
}

// Install makes the forest declared by the manifest in seedDir real: it
// writes the root marker and clones or checks out every dependency. Free
// dependencies follow the branch the seed is on.
func (m *Manager) Install(ctx context.Context, seedDir string, opts InstallOptions) (*Forest, error) {
	seedDir, err := filepath.Abs(seedDir)
	if err != nil {
		return nil, err
	}
	b, ok := m.registry.Detect(seedDir)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a git or hg repository", ErrNotWorkingCopy, seedDir)
	}
	freeBranch, err := b.CurrentBranch(ctx, seedDir)
	if err != nil {
		return nil, err
	}
	if freeBranch == "" {
		m.reporter.Warn("seed repo is not on a branch; free dependencies keep their current checkout")
	}

	man, _, err := manifest.Load(seedDir, opts.Manifest)
	if err != nil {
		return nil, err
	}
	root := filepath.Clean(manifest.ToNative(seedDir, man.RootDirectory))
	f, err := m.load(ctx, root, seedDir, opts.Manifest)
	if err != nil {
		return nil, err
	}
	if f.SeedPath != f.Manifest.SeedPathFromRoot {
		m.reporter.Warn("manifest says the seed repo is at %s but it is at %s", f.Manifest.SeedPathFromRoot, f.SeedPath)
	}

	if err := m.writeRoot(ctx, f); err != nil {
		return nil, err
	}
	if err := m.installDependencies(ctx, f, freeBranch); err != nil {
		return nil, err
	}
	return f, nil
}

func (m *Manager) installDependencies(ctx context.Context, f *Forest, freeBranch string) error {
	for _, p := range f.Manifest.RepoPaths() {
		if err := m.reconcile(ctx, p, f.RepoDir(p), f.Manifest.Dependencies[p], freeBranch); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// CloneOptions configures Clone.
type CloneOptions struct {
	// Manifest selects a variant; "" is the default manifest.
	Manifest string
}

// Clone clones the seed repo at source into dest and installs its forest.
// When the manifest places the seed below the root, dest becomes the root
// and the seed moves to its declared place. An empty dest is derived from
// source.
func (m *Manager) Clone(ctx context.Context, source, dest string, opts CloneOptions) (*Forest, error) {
	if dest == "" {
		dest = DefaultDest(source)
	}
	dest, err := filepath.Abs(dest)
	if err != nil {
		return nil, err
	}
	if exists(dest) {
		return nil, fmt.Errorf("%w: %s", ErrDestExists, dest)
	}

	b, err := m.probe(ctx, source)
	if err != nil {
		return nil, err
	}
	m.reporter.Repo(source)
	seed := manifest.Dependency{Origin: source, RepoType: b.Type()}
	p, err := PlanMissing(b, seed, dest, "")
	if err != nil {
		return nil, err
	}
	m.reporter.Info("%s", p.Describe())
	if err := m.execute(ctx, p); err != nil {
		return nil, err
	}

	man, _, err := manifest.Load(dest, opts.Manifest)
	if err != nil {
		return nil, err
	}
	seedDir := dest
	if man.SeedPathFromRoot != "." {
		if seedDir, err = m.moveSeed(dest, man.SeedPathFromRoot); err != nil {
			return nil, err
		}
	}
	return m.Install(ctx, seedDir, InstallOptions{Manifest: opts.Manifest})
}

// probe detects the type of the repository at source, warning about VCS
// tools older than fab supports.
func (m *Manager) probe(ctx context.Context, source string) (vcs.Backend, error) {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	b, err := m.registry.Probe(probeCtx, source)
	if err != nil {
		return nil, err
	}
	if v, err := vcs.CheckVersion(ctx, b); err != nil {
		m.reporter.Warn("%v", err)
	} else {
		m.logger.Printf("detected %s %s for %s", b.Type(), v, source)
	}
	return b, nil
}

// moveSeed turns the fresh clone at dest into a wrapper root holding the seed
// at seedPathFromRoot, going through a holding directory beside dest.
func (m *Manager) moveSeed(dest, seedPathFromRoot string) (string, error) {
	rel := manifest.NormalizePath(seedPathFromRoot)
	if rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		return "", fmt.Errorf("%w: seedPathFromRoot %s", ErrOutsideOfForest, seedPathFromRoot)
	}
	holding := filepath.Join(filepath.Dir(dest), ".fab-clone-"+uuid.NewString())
	target := manifest.ToNative(dest, rel)
	m.logger.Printf("moving seed: from=%s via=%s to=%s", dest, holding, target)

	if err := os.Rename(dest, holding); err != nil {
		return "", fmt.Errorf("failed to move clone aside: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create forest root: %w", err)
	}
	if err := os.Rename(holding, target); err != nil {
		return "", fmt.Errorf("failed to move seed repo into place (left at %s): %w", holding, err)
	}
	return target, nil
}

// DefaultDest derives a clone directory name from a source URL or path.
func DefaultDest(source string) string {
	s := strings.TrimRight(strings.ReplaceAll(source, `\`, "/"), "/")
	if i := strings.LastIndexAny(s, "/:"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(s, ".git")
	if s == "" {
		return "forest"
	}
	return s
}
