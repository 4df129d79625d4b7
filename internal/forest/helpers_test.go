package forest

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sergeknystautas/fab/internal/config"
	"github.com/sergeknystautas/fab/internal/manifest"
	"github.com/sergeknystautas/fab/internal/vcs"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// runGit executes a git command in the given directory and returns its output.
// Fails the test on error.
func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, output)
	}
	return strings.TrimSpace(string(output))
}

// newRepo creates a git repo on branch main with one commit.
func newRepo(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@test.com")
	runGit(t, dir, "config", "user.name", "Test User")
	commitFile(t, dir, "README.md", "test repo")
}

func commitFile(t *testing.T, dir, name, content string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, name), content)
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "update "+name)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func currentBranch(t *testing.T, dir string) string {
	t.Helper()
	cmd := exec.Command("git", "symbolic-ref", "--short", "-q", "HEAD")
	cmd.Dir = dir
	out, _ := cmd.Output()
	return strings.TrimSpace(string(out))
}

func headRevision(t *testing.T, dir string) string {
	t.Helper()
	return runGit(t, dir, "rev-parse", "HEAD")
}

// recordingRunner runs commands for real and records the mutating ones.
type recordingRunner struct {
	inner vcs.Runner
	mu    sync.Mutex
	runs  []vcs.Command
}

func (r *recordingRunner) Run(ctx context.Context, c vcs.Command) (int, error) {
	r.mu.Lock()
	r.runs = append(r.runs, c)
	r.mu.Unlock()
	return r.inner.Run(ctx, c)
}

func (r *recordingRunner) Output(ctx context.Context, c vcs.Command) (string, error) {
	return r.inner.Output(ctx, c)
}

func (r *recordingRunner) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = nil
}

func (r *recordingRunner) commands() []vcs.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]vcs.Command(nil), r.runs...)
}

// recordingReporter keeps every message and answers Confirm with answer.
type recordingReporter struct {
	mu     sync.Mutex
	lines  []string
	errors int
	answer bool
}

func (r *recordingReporter) add(kind, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, kind+": "+fmt.Sprintf(format, args...))
}

func (r *recordingReporter) Repo(path string)                { r.add("repo", "%s", path) }
func (r *recordingReporter) Info(format string, args ...any) { r.add("info", format, args...) }
func (r *recordingReporter) Warn(format string, args ...any) { r.add("warn", format, args...) }
func (r *recordingReporter) Error(format string, args ...any) {
	r.add("error", format, args...)
	r.mu.Lock()
	r.errors++
	r.mu.Unlock()
}
func (r *recordingReporter) Confirm(question string) bool {
	r.add("confirm", "%s", question)
	return r.answer
}

// after returns the message following the last heading for repoPath.
func (r *recordingReporter) after(repoPath string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.lines) - 1; i >= 0; i-- {
		if r.lines[i] == "repo: "+repoPath && i+1 < len(r.lines) {
			return r.lines[i+1]
		}
	}
	return ""
}

// headings returns the repo paths announced so far.
func (r *recordingReporter) headings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, l := range r.lines {
		if p, ok := strings.CutPrefix(l, "repo: "); ok {
			out = append(out, p)
		}
	}
	return out
}

func (r *recordingReporter) contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func newTestManager(t *testing.T) (*Manager, *recordingRunner, *recordingReporter) {
	t.Helper()
	inner := vcs.NewExecRunner(nil)
	inner.Stdin = nil
	inner.Stdout = io.Discard
	inner.Stderr = io.Discard
	runner := &recordingRunner{inner: inner}
	reporter := &recordingReporter{}
	return New(config.CreateDefault(""), runner, reporter, nil), runner, reporter
}

// fixture is a set of origin repos for a sibling-layout forest:
//
//	remotes/app     seed, branches main, B and C
//	remotes/lib     free, branches main and B
//	remotes/locked  locked to L
//	remotes/pinned  pinned at pinRev, one commit behind main
type fixture struct {
	base    string
	remotes string
	pinRev  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	requireGit(t)
	base := t.TempDir()
	remotes := filepath.Join(base, "remotes")

	lib := filepath.Join(remotes, "lib")
	newRepo(t, lib)
	runGit(t, lib, "branch", "B")

	locked := filepath.Join(remotes, "locked")
	newRepo(t, locked)
	runGit(t, locked, "branch", "L")

	pinned := filepath.Join(remotes, "pinned")
	newRepo(t, pinned)
	pinRev := headRevision(t, pinned)
	commitFile(t, pinned, "later.txt", "after the pin")

	app := filepath.Join(remotes, "app")
	newRepo(t, app)
	m := &manifest.Manifest{
		Dependencies: map[string]manifest.Dependency{
			"lib":    manifest.FreeDependency(vcs.Git, "../lib"),
			"locked": manifest.LockedDependency(vcs.Git, "../locked", "L"),
			"pinned": manifest.PinnedDependency(vcs.Git, "../pinned", pinRev),
		},
		RootDirectory:    "..",
		SeedPathFromRoot: "app",
	}
	if err := manifest.Save(manifest.Path(app, ""), m); err != nil {
		t.Fatal(err)
	}
	runGit(t, app, "add", ".")
	runGit(t, app, "commit", "-m", "add manifest")
	runGit(t, app, "branch", "B")

	// Branch C drops lib and declares a new dependency.
	runGit(t, app, "checkout", "-q", "-b", "C")
	delete(m.Dependencies, "lib")
	m.Dependencies["extra"] = manifest.FreeDependency(vcs.Git, "../extra")
	if err := manifest.Save(manifest.Path(app, ""), m); err != nil {
		t.Fatal(err)
	}
	runGit(t, app, "commit", "-q", "-am", "rework dependencies")
	runGit(t, app, "checkout", "-q", "main")

	return fixture{base: base, remotes: remotes, pinRev: pinRev}
}

func (fx fixture) remote(name string) string {
	return filepath.Join(fx.remotes, name)
}
