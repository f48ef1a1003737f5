// Package pospath implements pure lexical operations on POSIX-style path
// strings: joining, splitting into parts, name and suffix manipulation, and
// non-recursive pattern matching. No function in this package touches the
// filesystem; callers layer local or remote I/O on top.
package pospath

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Join combines segments following os.path.join semantics: each absolute
// segment discards everything joined before it. The result is cleaned but an
// empty input stays empty.
func Join(segments ...string) string {
	joined := ""
	for _, seg := range segments {
		switch {
		case seg == "":
			continue
		case strings.HasPrefix(seg, "/"):
			joined = seg
		case joined == "" || strings.HasSuffix(joined, "/"):
			joined += seg
		default:
			joined += "/" + seg
		}
	}
	if joined == "" {
		return ""
	}
	return path.Clean(joined)
}

// IsAbs reports whether p starts at the root.
func IsAbs(p string) bool {
	return strings.HasPrefix(p, "/")
}

// Parts splits a cleaned path into its components. Absolute paths start with
// a "/" component, mirroring the anchor-plus-names convention, so
// Parts("/a/b") is ["/", "a", "b"] and Parts("a/b") is ["a", "b"].
func Parts(p string) []string {
	if p == "" || p == "." {
		return nil
	}
	p = path.Clean(p)
	if p == "/" {
		return []string{"/"}
	}
	var parts []string
	if strings.HasPrefix(p, "/") {
		parts = append(parts, "/")
		p = p[1:]
	}
	return append(parts, strings.Split(p, "/")...)
}

// Name returns the final component of p, or "" for the root.
func Name(p string) string {
	p = path.Clean(p)
	if p == "/" || p == "." {
		return ""
	}
	return path.Base(p)
}

// Parent returns the logical parent of p. The parent of the root is the root
// itself, and the parent of a single relative component is ".".
func Parent(p string) string {
	p = path.Clean(p)
	if p == "/" || p == "." {
		return p
	}
	dir := path.Dir(p)
	return dir
}

// Parents returns the chain of logical parents of p, nearest first, ending
// at the root (for absolute paths) or "." (for relative ones).
func Parents(p string) []string {
	p = path.Clean(p)
	var out []string
	for {
		next := Parent(p)
		if next == p {
			return out
		}
		out = append(out, next)
		p = next
	}
}

// Suffix returns the last dot-suffix of the name, including the leading dot.
// Names that start with a dot, or end with one, have no suffix.
func Suffix(p string) string {
	name := Name(p)
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return name[i:]
}

// Suffixes returns every dot-suffix of the name, in order, each including
// its leading dot. A leading dot on the name does not start a suffix.
func Suffixes(p string) []string {
	name := Name(p)
	if strings.HasSuffix(name, ".") {
		return nil
	}
	name = strings.TrimLeft(name, ".")
	pieces := strings.Split(name, ".")
	if len(pieces) < 2 {
		return nil
	}
	out := make([]string, 0, len(pieces)-1)
	for _, s := range pieces[1:] {
		out = append(out, "."+s)
	}
	return out
}

// Stem returns the name without its last suffix.
func Stem(p string) string {
	name := Name(p)
	return strings.TrimSuffix(name, Suffix(p))
}

// WithName replaces the final component of p. The new name must be a single
// non-empty component.
func WithName(p, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/') {
		return "", fmt.Errorf("invalid name %q", name)
	}
	old := Name(p)
	if old == "" {
		return "", fmt.Errorf("path %q has an empty name", p)
	}
	return Join(Parent(p), name), nil
}

// WithSuffix replaces the last suffix of the final component of p. The new
// suffix must begin with a dot, or be empty to strip the existing suffix.
func WithSuffix(p, suffix string) (string, error) {
	if suffix != "" && (!strings.HasPrefix(suffix, ".") || suffix == "." || strings.ContainsRune(suffix, '/')) {
		return "", fmt.Errorf("invalid suffix %q", suffix)
	}
	stem := Stem(p)
	if stem == "" {
		return "", fmt.Errorf("path %q has an empty name", p)
	}
	return WithName(p, stem+suffix)
}

// Match reports whether p matches the glob pattern. Relative patterns match
// from the right against the trailing components of p; absolute patterns must
// match the whole path. Matching is segment-wise and non-recursive. When fold
// is true, matching ignores case.
func Match(p, pattern string, fold bool) (bool, error) {
	if pattern == "" {
		return false, fmt.Errorf("empty pattern")
	}
	patParts := Parts(pattern)
	pathParts := Parts(p)
	if IsAbs(pattern) != IsAbs(p) && IsAbs(pattern) {
		return false, nil
	}
	if !IsAbs(pattern) {
		// match against the trailing components only
		if len(patParts) > len(pathParts) {
			return false, nil
		}
		pathParts = pathParts[len(pathParts)-len(patParts):]
	} else if len(patParts) != len(pathParts) {
		return false, nil
	}
	for i, pat := range patParts {
		target := pathParts[i]
		if fold {
			pat = strings.ToLower(pat)
			target = strings.ToLower(target)
		}
		ok, err := doublestar.Match(pat, target)
		if err != nil {
			return false, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// MatchSegment matches a single path component against a single-segment
// pattern. The pattern must not contain a separator.
func MatchSegment(pattern, name string) (bool, error) {
	if strings.ContainsRune(pattern, '/') {
		return false, fmt.Errorf("pattern %q spans multiple components", pattern)
	}
	return doublestar.Match(pattern, name)
}
