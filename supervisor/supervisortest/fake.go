// Package supervisortest provides an in-memory FileClient for tests.
//
// Fake mirrors the supervisor's file API semantics closely enough that code
// written against supervisor.FileClient behaves the same under test as
// against a live socket: the same error kinds in the same situations,
// ownership and permission bookkeeping, and single-level pattern listing.
package supervisortest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pathkit/pathkit/supervisor"
)

const (
	defaultFileMode fs.FileMode = 0o644
	defaultDirMode  fs.FileMode = 0o755
)

type entry struct {
	typ   supervisor.FileType
	mode  fs.FileMode
	user  string
	group string
	data  []byte
	mtime time.Time
}

// Fake is an in-memory filesystem implementing supervisor.FileClient.
// The zero value is not usable; construct with NewFake.
type Fake struct {
	mu           sync.Mutex
	name         string
	entries      map[string]*entry
	users        map[string]bool
	groups       map[string]bool
	disconnected bool
}

// NewFake returns a fake supervisor with an empty root directory owned by
// root:root. The users and groups "root" are pre-registered.
func NewFake(name string) *Fake {
	f := &Fake{
		name:    name,
		entries: make(map[string]*entry),
		users:   map[string]bool{"root": true},
		groups:  map[string]bool{"root": true},
	}
	f.entries["/"] = &entry{
		typ: supervisor.TypeDirectory, mode: defaultDirMode,
		user: "root", group: "root", mtime: time.Now(),
	}
	return f
}

// Name implements supervisor.FileClient.
func (f *Fake) Name() string { return f.name }

// AddUser registers a user name so pushes and mkdirs naming it resolve.
func (f *Fake) AddUser(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[name] = true
}

// AddGroup registers a group name.
func (f *Fake) AddGroup(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups[name] = true
}

// SetDisconnected makes every subsequent call fail with a ConnectionError,
// simulating an unreachable supervisor socket.
func (f *Fake) SetDisconnected(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = down
}

// PutFile seeds a regular file, creating parent directories.
func (f *Fake) PutFile(p string, data []byte, mode fs.FileMode, user, group string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.makeParents(path.Clean(p))
	f.entries[path.Clean(p)] = &entry{
		typ: supervisor.TypeFile, mode: mode.Perm(),
		user: user, group: group, data: append([]byte(nil), data...), mtime: time.Now(),
	}
}

// PutDir seeds a directory, creating parents.
func (f *Fake) PutDir(p string, mode fs.FileMode, user, group string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.makeParents(path.Clean(p))
	f.entries[path.Clean(p)] = &entry{
		typ: supervisor.TypeDirectory, mode: mode.Perm(),
		user: user, group: group, mtime: time.Now(),
	}
}

// PutEntry seeds an entry of an arbitrary type (socket, named pipe, ...).
func (f *Fake) PutEntry(p string, typ supervisor.FileType, mode fs.FileMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.makeParents(path.Clean(p))
	f.entries[path.Clean(p)] = &entry{
		typ: typ, mode: mode.Perm(), user: "root", group: "root", mtime: time.Now(),
	}
}

// Stat returns the metadata of a seeded or written entry, for assertions.
func (f *Fake) Stat(p string) (supervisor.FileInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[path.Clean(p)]
	if !ok {
		return supervisor.FileInfo{}, false
	}
	return f.info(path.Clean(p), e), true
}

// Bytes returns the raw contents of a file entry, for assertions.
func (f *Fake) Bytes(p string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[path.Clean(p)]
	if !ok || e.typ != supervisor.TypeFile {
		return nil, false
	}
	return append([]byte(nil), e.data...), true
}

// Pull implements supervisor.FileClient.
func (f *Fake) Pull(ctx context.Context, p string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx); err != nil {
		return nil, err
	}
	p = path.Clean(p)
	e, ok := f.entries[p]
	if !ok {
		return nil, notFound(p)
	}
	if e.typ == supervisor.TypeDirectory {
		return nil, &supervisor.Error{
			Kind: supervisor.ErrorKindIsADirectory, Path: p,
			Message: "can only read a regular file",
		}
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), e.data...))), nil
}

// Push implements supervisor.FileClient.
func (f *Fake) Push(ctx context.Context, p string, source io.Reader, opts supervisor.PushOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx); err != nil {
		return err
	}
	if err := f.lookup(opts.User, opts.Group); err != nil {
		return err
	}
	p = path.Clean(p)
	parent := path.Dir(p)
	pe, ok := f.entries[parent]
	switch {
	case !ok && !opts.MakeDirs:
		return notFound(parent)
	case ok && pe.typ != supervisor.TypeDirectory:
		return notADirectory(parent)
	case !ok:
		f.makeParents(p)
	}
	if e, ok := f.entries[p]; ok && e.typ == supervisor.TypeDirectory {
		return &supervisor.Error{
			Kind: supervisor.ErrorKindIsADirectory, Path: p,
			Message: "cannot write to a directory",
		}
	}
	data, err := io.ReadAll(source)
	if err != nil {
		return &supervisor.Error{
			Kind: supervisor.ErrorKindGeneric, Path: p, Message: err.Error(),
		}
	}
	mode := opts.Permissions.Perm()
	if opts.Permissions == 0 {
		mode = defaultFileMode
	}
	f.entries[p] = &entry{
		typ: supervisor.TypeFile, mode: mode,
		user: orRoot(opts.User), group: orRoot(opts.Group),
		data: data, mtime: time.Now(),
	}
	return nil
}

// List implements supervisor.FileClient.
func (f *Fake) List(ctx context.Context, p string, opts supervisor.ListOptions) ([]supervisor.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx); err != nil {
		return nil, err
	}
	p = path.Clean(p)
	e, ok := f.entries[p]
	if !ok {
		return nil, notFound(p)
	}
	if opts.Itself || e.typ != supervisor.TypeDirectory {
		return []supervisor.FileInfo{f.info(p, e)}, nil
	}
	var names []string
	for candidate := range f.entries {
		if candidate != p && path.Dir(candidate) == p {
			names = append(names, candidate)
		}
	}
	sort.Strings(names)
	var out []supervisor.FileInfo
	for _, candidate := range names {
		if opts.Pattern != "" {
			ok, err := path.Match(opts.Pattern, path.Base(candidate))
			if err != nil {
				return nil, &supervisor.Error{
					Kind: supervisor.ErrorKindGeneric, Path: p,
					Message: fmt.Sprintf("bad pattern %q", opts.Pattern),
				}
			}
			if !ok {
				continue
			}
		}
		out = append(out, f.info(candidate, f.entries[candidate]))
	}
	return out, nil
}

// MakeDir implements supervisor.FileClient. With MakeParents it follows
// mkdir -p semantics: missing ancestors are created and an existing
// directory at the target is tolerated, but an existing non-directory
// anywhere on the chain fails with ErrorKindNotADirectory. Without
// MakeParents it follows plain mkdir: an existing target of any type fails
// with ErrorKindFileExists and a missing parent with ErrorKindNotFound.
func (f *Fake) MakeDir(ctx context.Context, p string, opts supervisor.MakeDirOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx); err != nil {
		return err
	}
	if err := f.lookup(opts.User, opts.Group); err != nil {
		return err
	}
	p = path.Clean(p)
	mode := opts.Permissions.Perm()
	if opts.Permissions == 0 {
		mode = defaultDirMode
	}

	if e, ok := f.entries[p]; ok {
		if !opts.MakeParents {
			return &supervisor.Error{
				Kind: supervisor.ErrorKindFileExists, Path: p, Message: "file exists",
			}
		}
		if e.typ != supervisor.TypeDirectory {
			return notADirectory(p)
		}
		return nil
	}

	parent := path.Dir(p)
	pe, ok := f.entries[parent]
	switch {
	case ok && pe.typ != supervisor.TypeDirectory:
		return notADirectory(parent)
	case !ok && !opts.MakeParents:
		return notFound(parent)
	case !ok:
		for _, ancestor := range ancestors(parent) {
			if ae, ok := f.entries[ancestor]; ok && ae.typ != supervisor.TypeDirectory {
				return notADirectory(ancestor)
			}
		}
		f.makeParents(p)
	}
	f.entries[p] = &entry{
		typ: supervisor.TypeDirectory, mode: mode,
		user: orRoot(opts.User), group: orRoot(opts.Group), mtime: time.Now(),
	}
	return nil
}

// Remove implements supervisor.FileClient.
func (f *Fake) Remove(ctx context.Context, p string, recursive bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx); err != nil {
		return err
	}
	p = path.Clean(p)
	e, ok := f.entries[p]
	if !ok {
		return notFound(p)
	}
	if e.typ == supervisor.TypeDirectory && !recursive {
		for candidate := range f.entries {
			if path.Dir(candidate) == p && candidate != p {
				return &supervisor.Error{
					Kind: supervisor.ErrorKindDirectoryNotEmpty, Path: p,
					Message: "directory not empty",
				}
			}
		}
	}
	for candidate := range f.entries {
		if candidate == p || within(p, candidate) {
			delete(f.entries, candidate)
		}
	}
	return nil
}

func (f *Fake) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &supervisor.ConnectionError{Addr: f.name, Err: err}
	}
	if f.disconnected {
		return &supervisor.ConnectionError{Addr: f.name, Err: errors.New("socket closed")}
	}
	return nil
}

func (f *Fake) lookup(user, group string) error {
	if user != "" && !f.users[user] {
		return &supervisor.Error{
			Kind:    supervisor.ErrorKindLookup,
			Message: fmt.Sprintf("cannot look up user %q", user),
		}
	}
	if group != "" && !f.groups[group] {
		return &supervisor.Error{
			Kind:    supervisor.ErrorKindLookup,
			Message: fmt.Sprintf("cannot look up group %q", group),
		}
	}
	return nil
}

// makeParents creates any missing ancestor directories of p with defaults.
func (f *Fake) makeParents(p string) {
	chain := ancestors(p)
	for i := len(chain) - 1; i >= 0; i-- {
		a := chain[i]
		if _, ok := f.entries[a]; !ok {
			f.entries[a] = &entry{
				typ: supervisor.TypeDirectory, mode: defaultDirMode,
				user: "root", group: "root", mtime: time.Now(),
			}
		}
	}
}

func (f *Fake) info(p string, e *entry) supervisor.FileInfo {
	return supervisor.FileInfo{
		Path:         p,
		Name:         path.Base(p),
		Type:         e.typ,
		Size:         int64(len(e.data)),
		Permissions:  strconv.FormatUint(uint64(e.mode), 8),
		User:         e.user,
		Group:        e.group,
		LastModified: e.mtime,
	}
}

// ancestors lists the proper ancestors of p, nearest first, excluding p
// itself but including the root.
func ancestors(p string) []string {
	var out []string
	for p != "/" && p != "." {
		p = path.Dir(p)
		out = append(out, p)
	}
	return out
}

// within reports whether candidate is strictly inside the directory dir.
func within(dir, candidate string) bool {
	for _, a := range ancestors(candidate) {
		if a == dir {
			return true
		}
	}
	return false
}

func orRoot(name string) string {
	if name == "" {
		return "root"
	}
	return name
}

func notFound(p string) error {
	return &supervisor.Error{
		Kind: supervisor.ErrorKindNotFound, Path: p,
		Message: "no such file or directory",
	}
}

func notADirectory(p string) error {
	return &supervisor.Error{
		Kind: supervisor.ErrorKindNotADirectory, Path: p,
		Message: "not a directory",
	}
}

var _ supervisor.FileClient = (*Fake)(nil)
