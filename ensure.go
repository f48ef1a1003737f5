package pathkit

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// EnsureContents makes path a regular file with the given contents, mode and
// ownership, and reports whether anything changed. Source may be a []byte, a
// string, or an io.Reader. An existing file is rewritten only when its
// contents or requested metadata differ, so repeated calls with the same
// inputs are cheap and idempotent. Missing parent directories are created
// with DefaultMkdirMode.
func EnsureContents(ctx context.Context, path Path, source any, opts *WriteOptions) (bool, error) {
	data, err := sourceBytes(source)
	if err != nil {
		return false, err
	}
	o := opts.normalize()
	fi, err := path.Stat(ctx)
	switch {
	case err == nil:
		if fi.Kind == KindFile && metadataMatches(fi, o) {
			current, rerr := path.ReadBytes(ctx)
			if rerr != nil {
				return false, rerr
			}
			if bytes.Equal(current, data) {
				return false, nil
			}
		}
	case !isStatMiss(err):
		return false, err
	}
	err = path.Parent().Mkdir(ctx, &MkdirOptions{Parents: true, ExistOK: true})
	if err != nil {
		return false, err
	}
	if _, err := path.WriteBytes(ctx, data, opts); err != nil {
		return false, err
	}
	return true, nil
}

func sourceBytes(source any) ([]byte, error) {
	switch s := source.(type) {
	case []byte:
		return s, nil
	case string:
		return []byte(s), nil
	case io.Reader:
		return io.ReadAll(s)
	default:
		return nil, fmt.Errorf("unsupported source type %T", source)
	}
}

// metadataMatches reports whether the existing file already carries the
// requested metadata. Unrequested ownership matches anything.
func metadataMatches(fi FileInfo, o WriteOptions) bool {
	if fi.Mode != o.Mode {
		return false
	}
	if o.User != "" && o.User != fi.User {
		return false
	}
	if o.Group != "" && o.Group != fi.Group {
		return false
	}
	return true
}

// Remove deletes the file or directory at path. A non-empty directory is
// only removed when recursive is set; a missing target is an error either
// way. Removal lives here rather than on the Path contract because neither
// backend can safely distinguish unlink from rmdir through a symlink.
func Remove(ctx context.Context, path Path, recursive bool) error {
	return path.remove(ctx, recursive)
}
