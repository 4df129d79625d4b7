package vcs

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
)

// GitBackend implements Backend for git.
type GitBackend struct {
	runner     Runner
	executable string
}

// NewGit returns a git backend running executable (default "git").
func NewGit(r Runner, executable string) *GitBackend {
	if executable == "" {
		executable = "git"
	}
	return &GitBackend{runner: r, executable: executable}
}

func (g *GitBackend) cmd(dir string, args ...string) Command {
	return Command{Dir: dir, Name: g.executable, Args: args}
}

func (g *GitBackend) Type() Type { return Git }

func (g *GitBackend) IsWorkingCopy(dir string) bool {
	// .git is a directory for clones and a file for worktrees and submodules.
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

func (g *GitBackend) Probe(ctx context.Context, source string) bool {
	c := g.cmd("", "ls-remote", "--heads", source)
	c.Env = []string{"GIT_TERMINAL_PROMPT=0"}
	_, err := g.runner.Output(ctx, c)
	return err == nil
}

func (g *GitBackend) NeedsParentDir() bool { return false }

func (g *GitBackend) IgnoreFile() string { return ".gitignore" }

func (g *GitBackend) Clone(origin, dest string, opts CloneOptions) []Command {
	if opts.Revision != "" {
		return []Command{
			g.cmd("", "clone", "--no-checkout", origin, dest),
			g.cmd(dest, "checkout", "--quiet", opts.Revision),
		}
	}
	if opts.Branch != "" {
		return []Command{g.cmd("", "clone", "--branch", opts.Branch, origin, dest)}
	}
	return []Command{g.cmd("", "clone", origin, dest)}
}

func (g *GitBackend) Checkout(dir, target string) Command {
	return g.cmd(dir, "checkout", target)
}

func (g *GitBackend) Pull(dir string) Command {
	return g.cmd(dir, "pull")
}

// Outgoing lists commits of HEAD that no remote-tracking ref contains, so a
// branch without an upstream is covered too.
func (g *GitBackend) Outgoing(dir string) Command {
	return g.cmd(dir, "log", "--oneline", "HEAD", "--not", "--remotes")
}

func (g *GitBackend) Status(dir string) Command {
	return g.cmd(dir, "status", "--short")
}

func (g *GitBackend) CreateBranch(dir, branch, start string) []Command {
	args := []string{"checkout", "-b", branch}
	if start != "" {
		args = append(args, start)
	}
	return []Command{g.cmd(dir, args...)}
}

func (g *GitBackend) PublishBranch(dir, branch string) Command {
	return g.cmd(dir, "push", "--set-upstream", "origin", branch)
}

func (g *GitBackend) CurrentBranch(ctx context.Context, dir string) (string, error) {
	// symbolic-ref exits 1 when HEAD is detached.
	c := g.cmd(dir, "symbolic-ref", "--short", "-q", "HEAD")
	c.Allowed = []int{1}
	return g.runner.Output(ctx, c)
}

func (g *GitBackend) CurrentRevision(ctx context.Context, dir string) (string, error) {
	return g.runner.Output(ctx, g.cmd(dir, "rev-parse", "HEAD"))
}

func (g *GitBackend) ResolveRevision(ctx context.Context, dir, rev string) (string, error) {
	// --verify --quiet exits 1 for names that do not resolve.
	c := g.cmd(dir, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	c.Allowed = []int{1}
	return g.runner.Output(ctx, c)
}

func (g *GitBackend) OriginURL(ctx context.Context, dir string) (string, error) {
	c := g.cmd(dir, "config", "--get", "remote.origin.url")
	c.Allowed = []int{1}
	return g.runner.Output(ctx, c)
}

func (g *GitBackend) IsIgnored(ctx context.Context, dir, file string) (bool, error) {
	// check-ignore prints matching paths and exits 1 when nothing matched.
	c := g.cmd(dir, "check-ignore", file)
	c.Allowed = []int{1}
	out, err := g.runner.Output(ctx, c)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

func (g *GitBackend) Version(ctx context.Context) (*semver.Version, error) {
	out, err := g.runner.Output(ctx, g.cmd("", "--version"))
	if err != nil {
		return nil, err
	}
	return parseToolVersion(out)
}
