package pathkit

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"

	"github.com/pathkit/pathkit/supervisor"
)

// RelativePathError reports an attempt to build a remote path from segments
// that do not resolve to an absolute path. The remote protocol has no
// working-directory concept, so relative remote paths are never
// representable.
type RelativePathError struct {
	Path string
}

func (e *RelativePathError) Error() string {
	return fmt.Sprintf("remote path segments resolve to relative path %q", e.Path)
}

// LookupError reports a user or group name that could not be resolved,
// before any filesystem mutation was attempted. It is distinct from I/O
// errors so callers can tell bad input from a failed operation.
type LookupError struct {
	// Name is the user or group name that failed to resolve, when known.
	Name string
	Err  error
}

func (e *LookupError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("cannot look up %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("user/group lookup failed: %v", e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

var (
	// ErrRecursiveGlob is returned for glob patterns with a "**" segment.
	// The remote protocol has no recursion primitive that can be driven
	// without risking unbounded traversal of symlink cycles.
	ErrRecursiveGlob = errors.New(`recursive glob ("**") is not supported`)
	// ErrInvalidPattern is returned for malformed glob patterns, before any
	// I/O is attempted.
	ErrInvalidPattern = errors.New("invalid glob pattern")
	// ErrDifferentClients is returned when ordering remote paths that do not
	// share a client. Such paths have no meaningful order.
	ErrDifferentClients = errors.New("paths are on different remote clients")
	// ErrInvalidUTF8 is returned by the text read/write methods for content
	// that is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("content is not valid UTF-8")
)

// kindErrnos maps the supervisor's coarse error vocabulary onto errnos. The
// resulting *fs.PathError values satisfy errors.Is against fs.ErrNotExist,
// fs.ErrPermission and fs.ErrExist exactly like errors from the os package.
// Process-wide constant data; kinds absent here pass through unclassified.
var kindErrnos = map[supervisor.ErrorKind]syscall.Errno{
	supervisor.ErrorKindNotFound:          syscall.ENOENT,
	supervisor.ErrorKindPermissionDenied:  syscall.EPERM,
	supervisor.ErrorKindIsADirectory:      syscall.EISDIR,
	supervisor.ErrorKindNotADirectory:     syscall.ENOTDIR,
	supervisor.ErrorKindFileExists:        syscall.EEXIST,
	supervisor.ErrorKindDirectoryNotEmpty: syscall.ENOTEMPTY,
}

func pathError(op, desc string, errno syscall.Errno) error {
	return &fs.PathError{Op: op, Path: desc, Err: errno}
}

// classifyRemote translates a structured supervisor error into the native
// error taxonomy. desc is the failing path rendered with the capability
// identity. Lookup failures become *LookupError; anything unrecognized,
// including connectivity failures, is returned unchanged.
func classifyRemote(err error, op, desc string) error {
	var se *supervisor.Error
	if !errors.As(err, &se) {
		return err
	}
	if se.Kind == supervisor.ErrorKindLookup {
		return &LookupError{Err: se}
	}
	if errno, ok := kindErrnos[se.Kind]; ok {
		return pathError(op, desc, errno)
	}
	return err
}

// remoteKind extracts the supervisor error kind, if err carries one.
func remoteKind(err error) (supervisor.ErrorKind, bool) {
	var se *supervisor.Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}
