package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/sergeknystautas/fab/internal/config"
)

// termStyle prints fab's user-facing output. It implements forest.Reporter.
type termStyle struct {
	out         io.Writer
	err         io.Writer
	interactive bool

	mu      sync.Mutex
	repo    lipgloss.Style
	success lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	dim     lipgloss.Style
	bold    lipgloss.Style
}

func newTermStyle(colorMode string) *termStyle {
	stdoutTTY := term.IsTerminal(int(os.Stdout.Fd()))
	var useColors bool
	switch colorMode {
	case config.ColorAlways:
		useColors = true
	case config.ColorNever:
		useColors = false
	default:
		useColors = stdoutTTY
	}
	interactive := stdoutTTY && term.IsTerminal(int(os.Stdin.Fd()))
	return newTermStyleTo(os.Stdout, os.Stderr, useColors, interactive)
}

func newTermStyleTo(out, errOut io.Writer, useColors, interactive bool) *termStyle {
	r := lipgloss.NewRenderer(out)
	if useColors {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return &termStyle{
		out:         out,
		err:         errOut,
		interactive: interactive,
		repo:        r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		success:     r.NewStyle().Foreground(lipgloss.Color("2")),
		warn:        r.NewStyle().Foreground(lipgloss.Color("3")),
		fail:        r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		dim:         r.NewStyle().Faint(true),
		bold:        r.NewStyle().Bold(true),
	}
}

func (t *termStyle) println(w io.Writer, s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(w, s)
}

// Repo prints the heading that precedes work on one repo.
func (t *termStyle) Repo(path string) {
	t.println(t.out, t.repo.Render("── "+path+" "+strings.Repeat("─", max(0, 40-len(path)))))
}

// Info prints progress text (dimmed).
func (t *termStyle) Info(format string, args ...any) {
	t.println(t.out, "   "+t.dim.Render(fmt.Sprintf(format, args...)))
}

// Warn prints a warning message with yellow warning symbol
func (t *termStyle) Warn(format string, args ...any) {
	t.println(t.err, t.warn.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// Error prints an error message with red X
func (t *termStyle) Error(format string, args ...any) {
	t.println(t.err, t.fail.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Success prints a success message with green checkmark
func (t *termStyle) Success(format string, args ...any) {
	t.println(t.out, t.success.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Println prints normal text with newline
func (t *termStyle) Println(text string) {
	t.println(t.out, text)
}

// Bold returns bold text
func (t *termStyle) Bold(text string) string {
	return t.bold.Render(text)
}

// Confirm asks a yes/no question; without a terminal the answer is no.
func (t *termStyle) Confirm(question string) bool {
	if !t.interactive {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	ok := true
	err := huh.NewConfirm().
		Title(question).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	return err == nil && ok
}
