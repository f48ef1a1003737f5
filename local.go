package pathkit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"strconv"
	"unicode/utf8"

	"github.com/pathkit/pathkit/internal/pospath"
)

// LocalPath is a path on the local filesystem. It carries the same contract
// as RemotePath, so code written against Path runs unchanged on either
// backend. Local paths may be relative; they resolve against the process
// working directory like any os call.
type LocalPath struct {
	path string
}

var _ Path = (*LocalPath)(nil)

// NewLocalPath builds a local path from segments joined with POSIX rules.
func NewLocalPath(segments ...string) *LocalPath {
	joined := pospath.Join(segments...)
	if joined == "" {
		joined = "."
	}
	return &LocalPath{path: joined}
}

func (p *LocalPath) rebuild(path string) *LocalPath {
	return &LocalPath{path: path}
}

func (p *LocalPath) String() string     { return p.path }
func (p *LocalPath) Name() string       { return pospath.Name(p.path) }
func (p *LocalPath) Stem() string       { return pospath.Stem(p.path) }
func (p *LocalPath) Suffix() string     { return pospath.Suffix(p.path) }
func (p *LocalPath) Suffixes() []string { return pospath.Suffixes(p.path) }
func (p *LocalPath) Parts() []string    { return pospath.Parts(p.path) }
func (p *LocalPath) IsAbsolute() bool   { return pospath.IsAbs(p.path) }

// Equal reports whether other is a local path naming the same path string.
// No filesystem resolution happens: "/tmp/x" and a symlink to it are unequal.
func (p *LocalPath) Equal(other Path) bool {
	o, ok := other.(*LocalPath)
	return ok && o.path == p.path
}

func (p *LocalPath) Match(pattern string) (bool, error) {
	return pospath.Match(p.path, pattern, false)
}

func (p *LocalPath) MatchFold(pattern string) (bool, error) {
	return pospath.Match(p.path, pattern, true)
}

func (p *LocalPath) Parent() Path {
	return p.rebuild(pospath.Parent(p.path))
}

func (p *LocalPath) Parents() []Path {
	chain := pospath.Parents(p.path)
	out := make([]Path, 0, len(chain))
	for _, ancestor := range chain {
		out = append(out, p.rebuild(ancestor))
	}
	return out
}

func (p *LocalPath) Join(segments ...string) Path {
	return p.rebuild(pospath.Join(append([]string{p.path}, segments...)...))
}

func (p *LocalPath) WithName(name string) (Path, error) {
	next, err := pospath.WithName(p.path, name)
	if err != nil {
		return nil, err
	}
	return p.rebuild(next), nil
}

func (p *LocalPath) WithSuffix(suffix string) (Path, error) {
	next, err := pospath.WithSuffix(p.path, suffix)
	if err != nil {
		return nil, err
	}
	return p.rebuild(next), nil
}

func (p *LocalPath) ReadBytes(ctx context.Context) ([]byte, error) {
	return os.ReadFile(p.path)
}

func (p *LocalPath) ReadText(ctx context.Context) (string, error) {
	raw, err := p.ReadTextRaw(ctx)
	if err != nil {
		return "", err
	}
	return newlineReplacer.Replace(raw), nil
}

func (p *LocalPath) ReadTextRaw(ctx context.Context) (string, error) {
	data, err := p.ReadBytes(ctx)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("read %s: %w", p.path, ErrInvalidUTF8)
	}
	return string(data), nil
}

// WriteBytes writes data, creating or truncating the file. Ownership names
// are resolved before anything is written, so a bad name fails with
// *LookupError and leaves the file untouched. The mode is applied explicitly
// after writing: the umask never narrows it, matching the remote backend.
func (p *LocalPath) WriteBytes(ctx context.Context, data []byte, opts *WriteOptions) (int, error) {
	o := opts.normalize()
	uid, gid, err := resolveIDs(o.User, o.Group)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(p.path, data, o.Mode); err != nil {
		return 0, err
	}
	if err := applyOwnership(p.path, uid, gid); err != nil {
		return 0, err
	}
	// Chmod last: chown clears setuid/setgid bits.
	if err := os.Chmod(p.path, o.Mode); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (p *LocalPath) WriteText(ctx context.Context, data string, opts *WriteOptions) (int, error) {
	return p.WriteBytes(ctx, []byte(data), opts)
}

func (p *LocalPath) Mkdir(ctx context.Context, opts *MkdirOptions) error {
	o := opts.normalize()
	uid, gid, err := resolveIDs(o.User, o.Group)
	if err != nil {
		return err
	}
	if o.Parents {
		if err := os.MkdirAll(pospath.Parent(p.path), DefaultMkdirMode); err != nil {
			return err
		}
	}
	if err := os.Mkdir(p.path, o.Mode); err != nil {
		// ExistOK tolerates an existing directory only; an existing file is
		// still an error, like mkdir -p.
		if o.ExistOK && errors.Is(err, fs.ErrExist) {
			if fi, statErr := os.Stat(p.path); statErr == nil && fi.IsDir() {
				return nil
			}
		}
		return err
	}
	if err := applyOwnership(p.path, uid, gid); err != nil {
		return err
	}
	return os.Chmod(p.path, o.Mode)
}

func (p *LocalPath) Iterdir(ctx context.Context) ([]Path, error) {
	entries, err := os.ReadDir(p.path)
	if err != nil {
		return nil, err
	}
	out := make([]Path, 0, len(entries))
	for _, e := range entries {
		out = append(out, p.rebuild(pospath.Join(p.path, e.Name())))
	}
	return out, nil
}

func (p *LocalPath) Glob(ctx context.Context, pattern string) ([]Path, error) {
	segs, err := splitGlobPattern(pattern)
	if err != nil {
		return nil, err
	}
	matches, err := globWalk(ctx, p.path, segs, listLocalForGlob)
	if err != nil {
		return nil, err
	}
	out := make([]Path, 0, len(matches))
	for _, m := range matches {
		out = append(out, p.rebuild(m))
	}
	return out, nil
}

func listLocalForGlob(ctx context.Context, dir, pattern string) ([]globEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		// A base that is missing or not a directory just has no matches.
		if isStatMiss(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []globEntry
	for _, e := range entries {
		ok, err := pospath.MatchSegment(pattern, e.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, globEntry{path: pospath.Join(dir, e.Name()), isDir: e.IsDir()})
		}
	}
	return out, nil
}

func (p *LocalPath) Stat(ctx context.Context) (FileInfo, error) {
	return statLocal(p.path)
}

func (p *LocalPath) Owner(ctx context.Context) (string, error) {
	fi, err := p.Stat(ctx)
	if err != nil {
		return "", err
	}
	return fi.User, nil
}

func (p *LocalPath) Group(ctx context.Context) (string, error) {
	fi, err := p.Stat(ctx)
	if err != nil {
		return "", err
	}
	return fi.Group, nil
}

func (p *LocalPath) Exists(ctx context.Context) (bool, error) {
	return p.kindIs(nil)
}

func (p *LocalPath) IsDir(ctx context.Context) (bool, error) {
	return p.kindIs(func(m fs.FileMode) bool { return m.IsDir() })
}

func (p *LocalPath) IsFile(ctx context.Context) (bool, error) {
	return p.kindIs(func(m fs.FileMode) bool { return m.IsRegular() })
}

func (p *LocalPath) IsFifo(ctx context.Context) (bool, error) {
	return p.kindIs(func(m fs.FileMode) bool { return m&fs.ModeNamedPipe != 0 })
}

func (p *LocalPath) IsSocket(ctx context.Context) (bool, error) {
	return p.kindIs(func(m fs.FileMode) bool { return m&fs.ModeSocket != 0 })
}

func (p *LocalPath) kindIs(want func(fs.FileMode) bool) (bool, error) {
	fi, err := os.Stat(p.path)
	if err != nil {
		if isStatMiss(err) {
			return false, nil
		}
		return false, err
	}
	if want == nil {
		return true, nil
	}
	return want(fi.Mode()), nil
}

func (p *LocalPath) remove(ctx context.Context, recursive bool) error {
	if recursive {
		// RemoveAll tolerates a missing target; removal here does not.
		if _, err := os.Stat(p.path); err != nil {
			return err
		}
		return os.RemoveAll(p.path)
	}
	return os.Remove(p.path)
}

// resolveIDs maps user and group names to numeric IDs before any mutation.
// Empty names resolve to -1, which os.Chown treats as "leave unchanged".
func resolveIDs(userName, groupName string) (int, int, error) {
	uid, gid := -1, -1
	if userName != "" {
		u, err := user.Lookup(userName)
		if err != nil {
			return 0, 0, &LookupError{Name: userName, Err: err}
		}
		id, err := strconv.Atoi(u.Uid)
		if err != nil {
			return 0, 0, &LookupError{Name: userName, Err: err}
		}
		uid = id
	}
	if groupName != "" {
		g, err := user.LookupGroup(groupName)
		if err != nil {
			return 0, 0, &LookupError{Name: groupName, Err: err}
		}
		id, err := strconv.Atoi(g.Gid)
		if err != nil {
			return 0, 0, &LookupError{Name: groupName, Err: err}
		}
		gid = id
	}
	return uid, gid, nil
}

func applyOwnership(path string, uid, gid int) error {
	if uid == -1 && gid == -1 {
		return nil
	}
	return os.Chown(path, uid, gid)
}
