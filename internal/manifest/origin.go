package manifest

import (
	"path"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// IsRelativeOrigin reports whether origin is stored relative to the seed's origin.
func IsRelativeOrigin(origin string) bool {
	return strings.HasPrefix(origin, "./") || strings.HasPrefix(origin, "../")
}

// ResolveOrigin resolves a relative origin against the seed's origin, which is
// treated as a directory: "../lib.git" from "git@host:org/app.git" gives
// "git@host:org/lib.git". Absolute origins are returned unchanged.
func ResolveOrigin(seedOrigin, origin string) string {
	if !IsRelativeOrigin(origin) || seedOrigin == "" {
		return origin
	}
	prefix, p := splitOrigin(strings.TrimSuffix(seedOrigin, "/"))
	return prefix + path.Join(p, origin)
}

// splitOrigin separates the location part (scheme and host) of an origin
// from its path so the path can be joined.
func splitOrigin(origin string) (prefix, p string) {
	if i := strings.Index(origin, "://"); i >= 0 {
		rest := origin[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			return origin[:i+3+j], rest[j:]
		}
		return origin, "/"
	}
	if isSCPLike(origin) {
		i := strings.Index(origin, ":")
		return origin[:i+1], origin[i+1:]
	}
	return "", strings.ReplaceAll(origin, `\`, "/")
}

// isSCPLike matches user@host:path, where the colon comes before any slash.
// Single letter hosts are Windows drive letters.
func isSCPLike(origin string) bool {
	colon := strings.Index(origin, ":")
	if colon < 2 {
		return false
	}
	slash := strings.Index(origin, "/")
	return slash < 0 || colon < slash
}

// RelativeOrigin returns origin expressed relative to seedOrigin when both
// live in the same parent location: same protocol, user, host and port, and
// the same parent directory. ok is false when relativizing would be unsafe.
func RelativeOrigin(seedOrigin, origin string) (rel string, ok bool) {
	if seedOrigin == "" || origin == "" {
		return "", false
	}
	seed, err := transport.NewEndpoint(strings.TrimSuffix(seedOrigin, "/"))
	if err != nil {
		return "", false
	}
	dep, err := transport.NewEndpoint(strings.TrimSuffix(origin, "/"))
	if err != nil {
		return "", false
	}
	if seed.Protocol != dep.Protocol || seed.User != dep.User || seed.Host != dep.Host || seed.Port != dep.Port {
		return "", false
	}
	seedPath := strings.ReplaceAll(seed.Path, `\`, "/")
	depPath := strings.ReplaceAll(dep.Path, `\`, "/")
	if seedPath == depPath || path.Dir(seedPath) != path.Dir(depPath) {
		return "", false
	}
	return "../" + path.Base(depPath), true
}
