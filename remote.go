package pathkit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/pathkit/pathkit/internal/pospath"
	"github.com/pathkit/pathkit/supervisor"
)

// RemotePath is a path on the filesystem managed by a workload supervisor.
// It is immutable: derived paths are new values sharing the same client.
//
// Remote paths are always absolute. The file protocol has no
// working-directory concept, so a relative remote path would have no meaning.
type RemotePath struct {
	client supervisor.FileClient
	path   string
}

var _ Path = (*RemotePath)(nil)

// NewRemotePath builds an absolute path on client's filesystem from the
// given segments, joined with POSIX rules. Segments that resolve to a
// relative path fail with *RelativePathError.
func NewRemotePath(client supervisor.FileClient, segments ...string) (*RemotePath, error) {
	joined := pospath.Join(segments...)
	if !pospath.IsAbs(joined) {
		return nil, &RelativePathError{Path: joined}
	}
	return &RemotePath{client: client, path: joined}, nil
}

// rebuild derives a sibling value from an already-clean absolute path. All
// derived-path construction funnels through here.
func (p *RemotePath) rebuild(path string) *RemotePath {
	return &RemotePath{client: p.client, path: path}
}

// Client returns the capability client this path operates through.
func (p *RemotePath) Client() supervisor.FileClient { return p.client }

// Key renders the path with its client identity. Two paths have equal keys
// exactly when Equal reports true, so Key works as a map key.
func (p *RemotePath) Key() string { return p.describe() }

// describe renders the path with its client identity, for error messages.
func (p *RemotePath) describe() string {
	return p.client.Name() + ":" + p.path
}

func (p *RemotePath) String() string     { return p.path }
func (p *RemotePath) Name() string       { return pospath.Name(p.path) }
func (p *RemotePath) Stem() string       { return pospath.Stem(p.path) }
func (p *RemotePath) Suffix() string     { return pospath.Suffix(p.path) }
func (p *RemotePath) Suffixes() []string { return pospath.Suffixes(p.path) }
func (p *RemotePath) Parts() []string    { return pospath.Parts(p.path) }
func (p *RemotePath) IsAbsolute() bool   { return true }

// Equal reports whether other is a remote path on the same client naming the
// same path. A LocalPath never equals a RemotePath.
func (p *RemotePath) Equal(other Path) bool {
	o, ok := other.(*RemotePath)
	return ok && o.client.Name() == p.client.Name() && o.path == p.path
}

// Compare orders p against other by path string. Paths on different clients
// are not comparable and fail with ErrDifferentClients.
func (p *RemotePath) Compare(other *RemotePath) (int, error) {
	if other.client.Name() != p.client.Name() {
		return 0, ErrDifferentClients
	}
	return strings.Compare(p.path, other.path), nil
}

// Less reports whether p orders before other. See Compare.
func (p *RemotePath) Less(other *RemotePath) (bool, error) {
	c, err := p.Compare(other)
	return c < 0, err
}

func (p *RemotePath) Match(pattern string) (bool, error) {
	return pospath.Match(p.path, pattern, false)
}

func (p *RemotePath) MatchFold(pattern string) (bool, error) {
	return pospath.Match(p.path, pattern, true)
}

func (p *RemotePath) Parent() Path {
	return p.rebuild(pospath.Parent(p.path))
}

func (p *RemotePath) Parents() []Path {
	chain := pospath.Parents(p.path)
	out := make([]Path, 0, len(chain))
	for _, ancestor := range chain {
		out = append(out, p.rebuild(ancestor))
	}
	return out
}

func (p *RemotePath) Join(segments ...string) Path {
	return p.rebuild(pospath.Join(append([]string{p.path}, segments...)...))
}

func (p *RemotePath) WithName(name string) (Path, error) {
	next, err := pospath.WithName(p.path, name)
	if err != nil {
		return nil, err
	}
	return p.rebuild(next), nil
}

func (p *RemotePath) WithSuffix(suffix string) (Path, error) {
	next, err := pospath.WithSuffix(p.path, suffix)
	if err != nil {
		return nil, err
	}
	return p.rebuild(next), nil
}

func (p *RemotePath) ReadBytes(ctx context.Context) ([]byte, error) {
	rc, err := p.client.Pull(ctx, p.path)
	if err != nil {
		return nil, classifyRemote(err, "read", p.describe())
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, classifyRemote(err, "read", p.describe())
	}
	return data, nil
}

func (p *RemotePath) ReadText(ctx context.Context) (string, error) {
	raw, err := p.ReadTextRaw(ctx)
	if err != nil {
		return "", err
	}
	return newlineReplacer.Replace(raw), nil
}

func (p *RemotePath) ReadTextRaw(ctx context.Context) (string, error) {
	data, err := p.ReadBytes(ctx)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("read %s: %w", p.describe(), ErrInvalidUTF8)
	}
	return string(data), nil
}

func (p *RemotePath) WriteBytes(ctx context.Context, data []byte, opts *WriteOptions) (int, error) {
	o := opts.normalize()
	err := p.client.Push(ctx, p.path, bytes.NewReader(data), supervisor.PushOptions{
		Permissions: o.Mode,
		User:        o.User,
		Group:       o.Group,
	})
	if err != nil {
		return 0, classifyRemote(err, "write", p.describe())
	}
	return len(data), nil
}

func (p *RemotePath) WriteText(ctx context.Context, data string, opts *WriteOptions) (int, error) {
	return p.WriteBytes(ctx, []byte(data), opts)
}

// Mkdir creates the directory. The remote protocol's only creation modes are
// plain mkdir and full mkdir -p; the Parents/ExistOK combinations in between
// are synthesized with pre-flight checks, and implicitly created parents get
// DefaultMkdirMode with default ownership rather than the leaf's options.
func (p *RemotePath) Mkdir(ctx context.Context, opts *MkdirOptions) error {
	o := opts.normalize()
	if o.Parents && !o.ExistOK {
		// mkdir -p would mask an existing target.
		exists, err := p.Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return pathError("mkdir", p.describe(), syscall.EEXIST)
		}
	}
	if !o.Parents && o.ExistOK {
		// mkdir -p is the only way to tolerate an existing target, but it
		// would also create missing parents. Reject those up front.
		parent := p.rebuild(pospath.Parent(p.path))
		ok, err := parent.Exists(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return pathError("mkdir", p.describe(), syscall.ENOENT)
		}
	}
	if o.Parents && (o.Mode != DefaultMkdirMode || o.User != "" || o.Group != "") {
		// The protocol applies the leaf options to every directory it
		// creates. Create the ancestors separately so only the leaf gets
		// the requested mode and ownership.
		err := p.client.MakeDir(ctx, pospath.Parent(p.path), supervisor.MakeDirOptions{
			MakeParents: true,
			Permissions: DefaultMkdirMode,
		})
		if err != nil {
			return p.classifyMkdir(ctx, err)
		}
	}
	err := p.client.MakeDir(ctx, p.path, supervisor.MakeDirOptions{
		MakeParents: o.Parents || o.ExistOK,
		Permissions: o.Mode,
		User:        o.User,
		Group:       o.Group,
	})
	if err != nil {
		return p.classifyMkdir(ctx, err)
	}
	return nil
}

// classifyMkdir refines a creation failure. The protocol's not-a-directory
// kind covers both "an ancestor is not a directory" and "the target exists as
// a non-directory", so the two are told apart with a follow-up query on the
// parent. Only the error path pays for the extra round trip.
func (p *RemotePath) classifyMkdir(ctx context.Context, err error) error {
	if kind, ok := remoteKind(err); ok && kind == supervisor.ErrorKindNotADirectory {
		parent := p.rebuild(pospath.Parent(p.path))
		if isDir, statErr := parent.IsDir(ctx); statErr == nil {
			if isDir {
				return pathError("mkdir", p.describe(), syscall.EEXIST)
			}
			return pathError("mkdir", parent.describe(), syscall.ENOTDIR)
		}
	}
	return classifyRemote(err, "mkdir", p.describe())
}

// Iterdir lists the directory's immediate children. The directory check is
// a separate query so a file target fails before anything is listed.
func (p *RemotePath) Iterdir(ctx context.Context) ([]Path, error) {
	fi, err := p.Stat(ctx)
	if err != nil {
		return nil, err
	}
	if fi.Kind != KindDirectory {
		return nil, pathError("iterdir", p.describe(), syscall.ENOTDIR)
	}
	infos, err := p.client.List(ctx, p.path, supervisor.ListOptions{})
	if err != nil {
		return nil, classifyRemote(err, "iterdir", p.describe())
	}
	out := make([]Path, 0, len(infos))
	for _, wi := range infos {
		out = append(out, p.rebuild(wi.Path))
	}
	return out, nil
}

// Glob returns the existing paths below p matching a relative,
// non-recursive pattern, sorted by path. A missing or non-directory base
// yields no matches rather than an error.
func (p *RemotePath) Glob(ctx context.Context, pattern string) ([]Path, error) {
	segs, err := splitGlobPattern(pattern)
	if err != nil {
		return nil, err
	}
	matches, err := globWalk(ctx, p.path, segs, p.listForGlob)
	if err != nil {
		return nil, err
	}
	out := make([]Path, 0, len(matches))
	for _, m := range matches {
		out = append(out, p.rebuild(m))
	}
	return out, nil
}

// listForGlob adapts List to the glob walker. Listing a non-directory
// returns the entry itself, which must not count as a child match.
func (p *RemotePath) listForGlob(ctx context.Context, dir, pattern string) ([]globEntry, error) {
	infos, err := p.client.List(ctx, dir, supervisor.ListOptions{Pattern: pattern})
	if err != nil {
		if kind, ok := remoteKind(err); ok && kind == supervisor.ErrorKindNotFound {
			return nil, nil
		}
		return nil, classifyRemote(err, "glob", p.describe())
	}
	out := make([]globEntry, 0, len(infos))
	for _, wi := range infos {
		if wi.Path == dir {
			continue
		}
		out = append(out, globEntry{path: wi.Path, isDir: wi.Type == supervisor.TypeDirectory})
	}
	return out, nil
}

func (p *RemotePath) Stat(ctx context.Context) (FileInfo, error) {
	return statFromClient(ctx, p.client, p.path, "stat", p.describe())
}

func (p *RemotePath) Owner(ctx context.Context) (string, error) {
	fi, err := p.Stat(ctx)
	if err != nil {
		return "", err
	}
	return fi.User, nil
}

func (p *RemotePath) Group(ctx context.Context) (string, error) {
	fi, err := p.Stat(ctx)
	if err != nil {
		return "", err
	}
	return fi.Group, nil
}

func (p *RemotePath) Exists(ctx context.Context) (bool, error) {
	return p.kindIs(ctx, nil)
}

func (p *RemotePath) IsDir(ctx context.Context) (bool, error) {
	return p.kindIs(ctx, func(k FileKind) bool { return k == KindDirectory })
}

func (p *RemotePath) IsFile(ctx context.Context) (bool, error) {
	return p.kindIs(ctx, func(k FileKind) bool { return k == KindFile })
}

func (p *RemotePath) IsFifo(ctx context.Context) (bool, error) {
	return p.kindIs(ctx, func(k FileKind) bool { return k == KindNamedPipe })
}

func (p *RemotePath) IsSocket(ctx context.Context) (bool, error) {
	return p.kindIs(ctx, func(k FileKind) bool { return k == KindSocket })
}

// kindIs stats the path and applies want to its kind; nil means any kind. A
// path that does not exist, or whose ancestors prevent resolution, is
// reported as false rather than an error.
func (p *RemotePath) kindIs(ctx context.Context, want func(FileKind) bool) (bool, error) {
	fi, err := p.Stat(ctx)
	if err != nil {
		if isStatMiss(err) {
			return false, nil
		}
		return false, err
	}
	if want == nil {
		return true, nil
	}
	return want(fi.Kind), nil
}

// isStatMiss reports whether a stat failure means "the path is not there":
// the entry is missing, an ancestor is not a directory, or symlink
// resolution looped.
func isStatMiss(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, syscall.ENOTDIR) ||
		errors.Is(err, syscall.ELOOP)
}

func (p *RemotePath) remove(ctx context.Context, recursive bool) error {
	if err := p.client.Remove(ctx, p.path, recursive); err != nil {
		return classifyRemote(err, "remove", p.describe())
	}
	return nil
}
