package pathkit

import (
	"context"
	"io/fs"
	"strings"
)

const (
	// DefaultWriteMode is the permission mode applied to files created by
	// WriteBytes and WriteText when no mode is given.
	DefaultWriteMode fs.FileMode = 0o644
	// DefaultMkdirMode is the permission mode applied to directories created
	// by Mkdir when no mode is given, and always to implicitly created
	// parent directories.
	DefaultMkdirMode fs.FileMode = 0o755
)

// FileKind classifies a filesystem entry in a backend-independent way.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindFile
	KindDirectory
	KindSymlink
	KindSocket
	KindNamedPipe
	KindDevice
)

func (k FileKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	case KindSocket:
		return "socket"
	case KindNamedPipe:
		return "named-pipe"
	case KindDevice:
		return "device"
	default:
		return "unknown"
	}
}

// WriteOptions extend WriteBytes and WriteText with creation-time metadata.
// The remote protocol sets permissions and ownership atomically on creation,
// so there are no separate chmod/chown operations in the contract.
type WriteOptions struct {
	// Mode is the permission mode for the created file. Zero means
	// DefaultWriteMode.
	Mode fs.FileMode
	// User and Group name the desired owner. Empty means the backend
	// default. Names that do not resolve fail with *LookupError before
	// anything is written.
	User  string
	Group string
}

func (o *WriteOptions) normalize() WriteOptions {
	var out WriteOptions
	if o != nil {
		out = *o
	}
	if out.Mode == 0 {
		out.Mode = DefaultWriteMode
	}
	out.Mode = out.Mode.Perm()
	return out
}

// MkdirOptions control Mkdir.
type MkdirOptions struct {
	// Mode is the permission mode for the leaf directory. Zero means
	// DefaultMkdirMode. Implicitly created parents always get
	// DefaultMkdirMode, never Mode.
	Mode fs.FileMode
	// Parents creates missing ancestors.
	Parents bool
	// ExistOK tolerates an existing directory at the target.
	ExistOK bool
	User    string
	Group   string
}

func (o *MkdirOptions) normalize() MkdirOptions {
	var out MkdirOptions
	if o != nil {
		out = *o
	}
	if out.Mode == 0 {
		out.Mode = DefaultMkdirMode
	}
	out.Mode = out.Mode.Perm()
	return out
}

// Path is the operation contract shared by LocalPath and RemotePath. The two
// implementations share no code, only this contract; substrate-agnostic
// callers should accept a Path and let the caller pick the backend.
//
// Pure operations (everything without a context) never perform I/O. All
// I/O operations are synchronous and unretried; remote connectivity failures
// propagate unmodified.
type Path interface {
	// String renders the path in POSIX form. For remote paths this is the
	// path on the remote filesystem, with no indication of the client.
	String() string
	Name() string
	Stem() string
	Suffix() string
	Suffixes() []string
	Parts() []string
	IsAbsolute() bool

	// Equal reports path equality. Paths of different concrete types, or
	// remote paths on different clients, are unequal, never an error.
	Equal(other Path) bool
	// Match reports whether the path matches a non-recursive glob pattern.
	// Relative patterns match from the right.
	Match(pattern string) (bool, error)
	// MatchFold is Match with case-insensitive matching.
	MatchFold(pattern string) (bool, error)

	Parent() Path
	Parents() []Path
	// Join appends segments. An absolute segment replaces everything before
	// it, following POSIX join rules. Only plain strings are accepted:
	// joining one Path onto another is deliberately inexpressible.
	Join(segments ...string) Path
	WithName(name string) (Path, error)
	WithSuffix(suffix string) (Path, error)

	ReadBytes(ctx context.Context) ([]byte, error)
	// ReadText decodes the contents as UTF-8 and normalizes "\r\n" and "\r"
	// to "\n", matching text-mode read semantics.
	ReadText(ctx context.Context) (string, error)
	// ReadTextRaw decodes the contents as UTF-8 without newline translation.
	ReadTextRaw(ctx context.Context) (string, error)
	// WriteBytes writes data, creating the file with the options' mode and
	// ownership. Missing parent directories are not created. Returns the
	// number of bytes written.
	WriteBytes(ctx context.Context, data []byte, opts *WriteOptions) (int, error)
	// WriteText encodes data as UTF-8 and writes it. Newlines are written
	// exactly as given.
	WriteText(ctx context.Context, data string, opts *WriteOptions) (int, error)
	Mkdir(ctx context.Context, opts *MkdirOptions) error

	// Iterdir returns the directory's immediate children. It fails eagerly
	// with a not-a-directory or not-found error before any listing happens.
	Iterdir(ctx context.Context) ([]Path, error)
	// Glob returns children matching a relative, non-recursive pattern.
	// Recursive "**" segments fail with ErrRecursiveGlob.
	Glob(ctx context.Context, pattern string) ([]Path, error)

	// Stat returns the entry's metadata. The record is built fresh on every
	// call and never cached.
	Stat(ctx context.Context) (FileInfo, error)
	Owner(ctx context.Context) (string, error)
	Group(ctx context.Context) (string, error)

	Exists(ctx context.Context) (bool, error)
	IsDir(ctx context.Context) (bool, error)
	IsFile(ctx context.Context) (bool, error)
	IsFifo(ctx context.Context) (bool, error)
	IsSocket(ctx context.Context) (bool, error)

	// remove deletes the entry; reached through the package-level Remove
	// helper. Removal is kept off the public contract because the remote
	// protocol cannot distinguish a symlink to a directory from the
	// directory itself.
	remove(ctx context.Context, recursive bool) error
}

// newlineReplacer rewrites "\r\n" and "\r" to "\n" for text-mode reads.
var newlineReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")
