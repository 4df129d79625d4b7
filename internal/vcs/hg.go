package vcs

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
)

// HgBackend implements Backend for Mercurial.
type HgBackend struct {
	runner     Runner
	executable string
}

// NewHg returns a Mercurial backend running executable (default "hg").
func NewHg(r Runner, executable string) *HgBackend {
	if executable == "" {
		executable = "hg"
	}
	return &HgBackend{runner: r, executable: executable}
}

func (h *HgBackend) cmd(dir string, args ...string) Command {
	return Command{Dir: dir, Name: h.executable, Args: args}
}

func (h *HgBackend) Type() Type { return Hg }

func (h *HgBackend) IsWorkingCopy(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".hg"))
	return err == nil && info.IsDir()
}

func (h *HgBackend) Probe(ctx context.Context, source string) bool {
	c := h.cmd("", "identify", "--noninteractive", source)
	_, err := h.runner.Output(ctx, c)
	return err == nil
}

// Mercurial does not create intermediate directories of the clone target.
func (h *HgBackend) NeedsParentDir() bool { return true }

func (h *HgBackend) IgnoreFile() string { return ".hgignore" }

func (h *HgBackend) Clone(origin, dest string, opts CloneOptions) []Command {
	if opts.Revision != "" {
		return []Command{
			h.cmd("", "clone", "--noupdate", origin, dest),
			h.cmd(dest, "update", "--rev", opts.Revision),
		}
	}
	if opts.Branch != "" {
		return []Command{h.cmd("", "clone", "--updaterev", opts.Branch, origin, dest)}
	}
	return []Command{h.cmd("", "clone", origin, dest)}
}

func (h *HgBackend) Checkout(dir, target string) Command {
	return h.cmd(dir, "update", target)
}

// Pull exits 1 when the update left unresolved files; that is reported to
// the user rather than treated as a failure.
func (h *HgBackend) Pull(dir string) Command {
	c := h.cmd(dir, "pull", "--update")
	c.Allowed = []int{1}
	return c
}

// Outgoing exits 1 when there is nothing to push.
func (h *HgBackend) Outgoing(dir string) Command {
	c := h.cmd(dir, "outgoing")
	c.Allowed = []int{1}
	return c
}

func (h *HgBackend) Status(dir string) Command {
	return h.cmd(dir, "status")
}

func (h *HgBackend) CreateBranch(dir, branch, start string) []Command {
	var cmds []Command
	if start != "" {
		cmds = append(cmds, h.cmd(dir, "update", start))
	}
	return append(cmds, h.cmd(dir, "branch", branch))
}

func (h *HgBackend) PublishBranch(dir, branch string) Command {
	return h.cmd(dir, "push", "--branch", branch, "--new-branch")
}

func (h *HgBackend) CurrentBranch(ctx context.Context, dir string) (string, error) {
	return h.runner.Output(ctx, h.cmd(dir, "branch"))
}

func (h *HgBackend) CurrentRevision(ctx context.Context, dir string) (string, error) {
	return h.runner.Output(ctx, h.cmd(dir, "log", "--rev", ".", "--template", "{node}"))
}

// ResolveRevision returns "" when rev is unknown; hg aborts with 255 then.
func (h *HgBackend) ResolveRevision(ctx context.Context, dir, rev string) (string, error) {
	c := h.cmd(dir, "log", "--rev", rev, "--limit", "1", "--template", "{node}")
	c.Allowed = []int{255}
	return h.runner.Output(ctx, c)
}

func (h *HgBackend) OriginURL(ctx context.Context, dir string) (string, error) {
	c := h.cmd(dir, "paths", "default")
	c.Allowed = []int{1}
	return h.runner.Output(ctx, c)
}

func (h *HgBackend) IsIgnored(ctx context.Context, dir, file string) (bool, error) {
	out, err := h.runner.Output(ctx, h.cmd(dir, "status", "--ignored", "--no-status", file))
	if err != nil {
		return false, err
	}
	return out != "", nil
}

func (h *HgBackend) Version(ctx context.Context) (*semver.Version, error) {
	out, err := h.runner.Output(ctx, h.cmd("", "--version", "--quiet"))
	if err != nil {
		return nil, err
	}
	return parseToolVersion(out)
}
