package forest

import (
	"errors"
	"fmt"
)

var (
	// ErrReported marks errors whose details were already shown to the user.
	ErrReported = errors.New("error already reported")

	ErrNotForest       = errors.New("not inside a forest")
	ErrNoOrigin        = errors.New("no origin")
	ErrManifestExists  = errors.New("manifest already exists")
	ErrDestExists      = errors.New("destination already exists")
	ErrNotWorkingCopy  = errors.New("not a working copy")
	ErrNotInstalled    = errors.New("dependency not installed")
	ErrOutsideOfForest = errors.New("path leaves the forest root")
)

type reportedError struct {
	err error
}

func (e *reportedError) Error() string        { return e.err.Error() }
func (e *reportedError) Unwrap() error        { return e.err }
func (e *reportedError) Is(target error) bool { return target == ErrReported }

// Reported wraps err to say it has been printed with full context, so the
// top level only needs to set the exit status.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// NotForestError is returned by Locate when no root marker is found.
type NotForestError struct {
	Dir string
	// SeedLike is set when Dir holds a manifest control directory.
	SeedLike bool
}

func (e *NotForestError) Error() string {
	msg := fmt.Sprintf("no forest root found above %s", e.Dir)
	if e.SeedLike {
		msg += " (did you mean to run install?)"
	}
	return msg
}

func (e *NotForestError) Unwrap() error { return ErrNotForest }
