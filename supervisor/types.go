package supervisor

import (
	"context"
	"io"
	"io/fs"
	"time"
)

// FileType identifies the kind of a remote filesystem entry.
type FileType string

const (
	TypeFile      FileType = "file"
	TypeDirectory FileType = "directory"
	TypeSymlink   FileType = "symlink"
	TypeSocket    FileType = "socket"
	TypeNamedPipe FileType = "named-pipe"
	TypeDevice    FileType = "device"
	TypeUnknown   FileType = "unknown"
)

// FileInfo is the wire-level metadata record returned by the supervisor for
// a single filesystem entry. Permissions are transmitted as an octal string,
// for example "644".
type FileInfo struct {
	Path         string    `json:"path"`
	Name         string    `json:"name"`
	Type         FileType  `json:"type"`
	Size         int64     `json:"size,omitempty"`
	Permissions  string    `json:"permissions"`
	User         string    `json:"user,omitempty"`
	Group        string    `json:"group,omitempty"`
	LastModified time.Time `json:"last-modified"`
}

// PushOptions control how Push creates the target file.
type PushOptions struct {
	// MakeDirs creates missing parent directories before writing.
	MakeDirs bool
	// Permissions to set on the created file. Zero means the server default.
	Permissions fs.FileMode
	// User and Group name the desired owner. Both must resolve on the remote
	// system or the push fails atomically with ErrorKindLookup.
	User  string
	Group string
}

// MakeDirOptions control how MakeDir creates the target directory.
type MakeDirOptions struct {
	// MakeParents creates missing ancestors and tolerates an existing
	// directory at the target, mirroring mkdir -p.
	MakeParents bool
	// Permissions to set on created directories. Zero means the server
	// default.
	Permissions fs.FileMode
	User        string
	Group       string
}

// ListOptions restrict what List returns.
type ListOptions struct {
	// Pattern filters direct children by a single-level glob. Empty matches
	// everything.
	Pattern string
	// Itself returns the entry for the path itself rather than its contents.
	// Used for metadata-only queries.
	Itself bool
}

// FileClient is the capability surface a workload supervisor exposes for
// file management. The path layer is written entirely against this
// interface; Client implements it over the supervisor's socket and
// supervisortest.Fake implements it in memory.
type FileClient interface {
	// Name identifies the remote target this client is connected to. Two
	// clients with equal names address the same filesystem.
	Name() string
	Pull(ctx context.Context, path string) (io.ReadCloser, error)
	Push(ctx context.Context, path string, source io.Reader, opts PushOptions) error
	List(ctx context.Context, path string, opts ListOptions) ([]FileInfo, error)
	MakeDir(ctx context.Context, path string, opts MakeDirOptions) error
	Remove(ctx context.Context, path string, recursive bool) error
}
