package pathkit

import (
	"context"
	"io/fs"
	"os"
	"os/user"
	"strconv"
	"syscall"
	"time"

	"github.com/pathkit/pathkit/supervisor"
)

// FileInfo describes a file on either backend. Both backends populate the
// same fields so tests and callers can compare results across them.
type FileInfo struct {
	// Path is the full path of the file.
	Path string
	// Name is the final path component.
	Name string
	// Kind classifies the file.
	Kind FileKind
	// Mode holds the permission bits.
	Mode fs.FileMode
	// Size is the file size in bytes, zero for directories on backends
	// that do not report directory sizes.
	Size int64
	// ModTime is the last modification time.
	ModTime time.Time
	// User and Group are the owning user and group names, empty when the
	// backend could not resolve them to names. Numeric IDs are reported as
	// decimal strings in that case.
	User  string
	Group string
}

// Map returns the info as a map keyed by field name, omitting the named
// fields. Useful for comparing results across backends where a field such
// as mod_time or size legitimately differs.
func (fi FileInfo) Map(exclude ...string) map[string]any {
	m := map[string]any{
		"path":     fi.Path,
		"name":     fi.Name,
		"kind":     fi.Kind,
		"mode":     fi.Mode,
		"size":     fi.Size,
		"mod_time": fi.ModTime,
		"user":     fi.User,
		"group":    fi.Group,
	}
	for _, k := range exclude {
		delete(m, k)
	}
	return m
}

// Stat returns the metadata of path. It reads the same as the package-level
// EnsureContents and Remove helpers for substrate-agnostic callers.
func Stat(ctx context.Context, path Path) (FileInfo, error) {
	return path.Stat(ctx)
}

// wireKinds maps the supervisor's file type vocabulary onto FileKind.
var wireKinds = map[supervisor.FileType]FileKind{
	supervisor.TypeFile:      KindFile,
	supervisor.TypeDirectory: KindDirectory,
	supervisor.TypeSymlink:   KindSymlink,
	supervisor.TypeSocket:    KindSocket,
	supervisor.TypeNamedPipe: KindNamedPipe,
	supervisor.TypeDevice:    KindDevice,
}

func infoFromWire(wi supervisor.FileInfo) FileInfo {
	kind, ok := wireKinds[wi.Type]
	if !ok {
		kind = KindUnknown
	}
	var mode fs.FileMode
	if wi.Permissions != "" {
		if bits, err := strconv.ParseUint(wi.Permissions, 8, 32); err == nil {
			mode = fs.FileMode(bits).Perm()
		}
	}
	return FileInfo{
		Path:    wi.Path,
		Name:    wi.Name,
		Kind:    kind,
		Mode:    mode,
		Size:    wi.Size,
		ModTime: wi.LastModified,
		User:    wi.User,
		Group:   wi.Group,
	}
}

// statFromClient fetches the info of a single remote path via a list of the
// path itself.
func statFromClient(ctx context.Context, client supervisor.FileClient, path, op, desc string) (FileInfo, error) {
	infos, err := client.List(ctx, path, supervisor.ListOptions{Itself: true})
	if err != nil {
		return FileInfo{}, classifyRemote(err, op, desc)
	}
	if len(infos) == 0 {
		return FileInfo{}, pathError(op, desc, syscall.ENOENT)
	}
	return infoFromWire(infos[0]), nil
}

func kindOfMode(mode fs.FileMode) FileKind {
	switch {
	case mode.IsRegular():
		return KindFile
	case mode.IsDir():
		return KindDirectory
	case mode&fs.ModeSymlink != 0:
		return KindSymlink
	case mode&fs.ModeSocket != 0:
		return KindSocket
	case mode&fs.ModeNamedPipe != 0:
		return KindNamedPipe
	case mode&fs.ModeDevice != 0:
		return KindDevice
	}
	return KindUnknown
}

// statLocal builds a FileInfo from the local filesystem. Owner and group
// names fall back to decimal IDs when the system databases have no entry.
func statLocal(path string) (FileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	info := FileInfo{
		Path:    path,
		Name:    fi.Name(),
		Kind:    kindOfMode(fi.Mode()),
		Mode:    fi.Mode().Perm(),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		info.User = userNameFor(st.Uid)
		info.Group = groupNameFor(st.Gid)
	}
	return info, nil
}

func userNameFor(uid uint32) string {
	id := strconv.FormatUint(uint64(uid), 10)
	if u, err := user.LookupId(id); err == nil {
		return u.Username
	}
	return id
}

func groupNameFor(gid uint32) string {
	id := strconv.FormatUint(uint64(gid), 10)
	if g, err := user.LookupGroupId(id); err == nil {
		return g.Name
	}
	return id
}
