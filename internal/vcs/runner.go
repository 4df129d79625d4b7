package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
)

// Runner executes VCS commands.
type Runner interface {
	// Run executes cmd with output streamed to the user. It returns the exit
	// status; the error is nil when the status is zero or allowed by cmd.
	Run(ctx context.Context, cmd Command) (int, error)
	// Output executes cmd and returns its trimmed stdout.
	Output(ctx context.Context, cmd Command) (string, error)
}

// ExitError reports a command that exited with a status it did not allow.
type ExitError struct {
	Command Command
	Status  int
	// Stderr holds captured error output; empty when it was streamed.
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s (exit %d): %s", e.Command, e.Status, e.Stderr)
	}
	return fmt.Sprintf("%s (exit %d)", e.Command, e.Status)
}

// ExecRunner runs commands as subprocesses.
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *log.Logger
}

// NewExecRunner returns a runner wired to the process's standard streams.
func NewExecRunner(logger *log.Logger) *ExecRunner {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &ExecRunner{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: logger,
	}
}

func (r *ExecRunner) command(ctx context.Context, c Command) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	return cmd
}

func (r *ExecRunner) Run(ctx context.Context, c Command) (int, error) {
	cmd := r.command(ctx, c)
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	r.Logger.Printf("run: %s (dir=%s)", c, c.Dir)
	status, err := exitStatus(c, cmd.Run(), "")
	if status != 0 {
		r.Logger.Printf("exit %d: %s", status, c)
	}
	return status, err
}

func (r *ExecRunner) Output(ctx context.Context, c Command) (string, error) {
	cmd := r.command(ctx, c)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	r.Logger.Printf("query: %s (dir=%s)", c, c.Dir)
	if _, err := exitStatus(c, cmd.Run(), strings.TrimSpace(stderr.String())); err != nil {
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

// exitStatus maps the result of exec.Cmd.Run onto an exit status and error.
func exitStatus(c Command, err error, stderr string) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		status := exitErr.ExitCode()
		if c.allows(status) {
			return status, nil
		}
		return status, &ExitError{Command: c, Status: status, Stderr: stderr}
	}
	return -1, fmt.Errorf("failed to run %s: %w", c, err)
}
