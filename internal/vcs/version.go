package vcs

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

var toolVersionPattern = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`)

// Oldest tool versions supporting every command the backends build
// (git check-ignore arrived in 1.8.2, hg clone --updaterev in 1.7).
var minimumVersions = map[Type]*semver.Version{
	Git: semver.MustParse("1.8.2"),
	Hg:  semver.MustParse("1.7.0"),
}

// parseToolVersion extracts the first dotted version from `--version` output,
// e.g. "git version 2.39.2 (Apple Git-143)" or
// "Mercurial Distributed SCM (version 6.3.2)".
func parseToolVersion(out string) (*semver.Version, error) {
	m := toolVersionPattern.FindString(out)
	if m == "" {
		return nil, fmt.Errorf("no version found in %q", out)
	}
	return semver.NewVersion(m)
}

// CheckVersion returns the installed version of b's executable and an error
// when it is older than fab supports.
func CheckVersion(ctx context.Context, b Backend) (*semver.Version, error) {
	v, err := b.Version(ctx)
	if err != nil {
		return nil, err
	}
	if min, ok := minimumVersions[b.Type()]; ok && v.LessThan(min) {
		return v, fmt.Errorf("%s %s is older than the minimum supported %s", b.Type(), v, min)
	}
	return v, nil
}
