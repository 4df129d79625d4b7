package main

import (
	"io"
	"log"
	"os"

	"github.com/sergeknystautas/fab/internal/config"
	"github.com/sergeknystautas/fab/internal/forest"
	"github.com/sergeknystautas/fab/internal/vcs"
)

// app holds what every command shares, built on first use.
type app struct {
	verbose bool

	cfg     *config.Config
	term    *termStyle
	logger  *log.Logger
	runner  *vcs.ExecRunner
	manager *forest.Manager
}

func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	path, err := config.DefaultPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

func (a *app) style() *termStyle {
	if a.term == nil {
		// Settings may be unreadable; colour then follows the terminal.
		cfg, _ := a.config()
		a.term = newTermStyle(cfg.GetColor())
	}
	return a.term
}

func (a *app) log() *log.Logger {
	if a.logger == nil {
		var w io.Writer = io.Discard
		if a.verbose {
			w = os.Stderr
		}
		a.logger = log.New(w, "[fab] ", log.LstdFlags)
	}
	return a.logger
}

func (a *app) forest() (*forest.Manager, error) {
	if a.manager != nil {
		return a.manager, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	a.runner = vcs.NewExecRunner(a.log())
	a.manager = forest.New(cfg, a.runner, a.style(), a.log())
	return a.manager, nil
}
