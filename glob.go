package pathkit

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// globEntry is one directory entry surfaced to the glob walker by a backend
// lister.
type globEntry struct {
	path  string
	isDir bool
}

// globLister lists the entries of dir whose names match a single-segment
// pattern. A dir that does not exist or is not a directory yields an empty
// result, not an error.
type globLister func(ctx context.Context, dir, pattern string) ([]globEntry, error)

// splitGlobPattern validates a glob pattern and splits it into segments.
// Patterns must be relative and non-recursive: globbing starts at the path
// the method is called on, and "**" has no bounded expansion over a remote
// listing protocol.
func splitGlobPattern(pattern string) ([]string, error) {
	if pattern == "" || pattern == "." || strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}
	segs := strings.Split(strings.TrimSuffix(pattern, "/"), "/")
	for _, seg := range segs {
		switch {
		case seg == "**":
			return nil, fmt.Errorf("%w: %q", ErrRecursiveGlob, pattern)
		case seg == "" || seg == ".":
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
		case strings.Contains(seg, "**"):
			return nil, fmt.Errorf(`%w: %q ("**" must be a full segment)`, ErrInvalidPattern, pattern)
		}
	}
	return segs, nil
}

// globWalk expands pattern segments below base, one directory level per
// segment. Results come back sorted by path.
func globWalk(ctx context.Context, base string, segs []string, list globLister) ([]string, error) {
	var out []string
	if err := globStep(ctx, base, segs, list, &out); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func globStep(ctx context.Context, dir string, segs []string, list globLister, out *[]string) error {
	entries, err := list(ctx, dir, segs[0])
	if err != nil {
		return err
	}
	for _, e := range entries {
		if len(segs) == 1 {
			*out = append(*out, e.path)
			continue
		}
		if !e.isDir {
			continue
		}
		if err := globStep(ctx, e.path, segs[1:], list, out); err != nil {
			return err
		}
	}
	return nil
}
