package pathkit

import (
	"context"
	"io/fs"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathkit/pathkit/supervisor"
	"github.com/pathkit/pathkit/supervisor/supervisortest"
)

func newRemote(t *testing.T, fake *supervisortest.Fake, segments ...string) *RemotePath {
	t.Helper()
	p, err := NewRemotePath(fake, segments...)
	require.NoError(t, err)
	return p
}

func TestNewRemotePathRequiresAbsolute(t *testing.T) {
	fake := supervisortest.NewFake("workload")

	p, err := NewRemotePath(fake, "/foo", "bar")
	require.NoError(t, err)
	assert.Equal(t, "/foo/bar", p.String())
	assert.True(t, p.IsAbsolute())

	// A later absolute segment resets the join.
	p, err = NewRemotePath(fake, "foo", "/etc", "passwd")
	require.NoError(t, err)
	assert.Equal(t, "/etc/passwd", p.String())

	var relErr *RelativePathError
	_, err = NewRemotePath(fake, "foo", "bar")
	require.ErrorAs(t, err, &relErr)
	assert.Equal(t, "foo/bar", relErr.Path)

	_, err = NewRemotePath(fake)
	assert.ErrorAs(t, err, &relErr)
}

func TestRemotePathPureOps(t *testing.T) {
	fake := supervisortest.NewFake("workload")
	p := newRemote(t, fake, "/srv/data/archive.tar.gz")

	assert.Equal(t, "archive.tar.gz", p.Name())
	assert.Equal(t, "archive.tar", p.Stem())
	assert.Equal(t, ".gz", p.Suffix())
	assert.Equal(t, []string{".tar", ".gz"}, p.Suffixes())
	assert.Equal(t, []string{"/", "srv", "data", "archive.tar.gz"}, p.Parts())

	assert.Equal(t, "/srv/data", p.Parent().String())
	parents := p.Parents()
	require.Len(t, parents, 3)
	assert.Equal(t, "/srv/data", parents[0].String())
	assert.Equal(t, "/srv", parents[1].String())
	assert.Equal(t, "/", parents[2].String())

	joined := p.Parent().Join("sub", "file.txt")
	assert.Equal(t, "/srv/data/sub/file.txt", joined.String())

	renamed, err := p.WithName("backup.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "/srv/data/backup.tar.gz", renamed.String())

	reext, err := p.WithSuffix(".bz2")
	require.NoError(t, err)
	assert.Equal(t, "/srv/data/archive.tar.bz2", reext.String())

	ok, err := p.Match("data/*.gz")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = p.MatchFold("DATA/*.GZ")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRemotePathEquality(t *testing.T) {
	a := supervisortest.NewFake("a")
	b := supervisortest.NewFake("b")

	p1 := newRemote(t, a, "/x")
	p2 := newRemote(t, a, "/x")
	p3 := newRemote(t, b, "/x")
	p4 := newRemote(t, a, "/y")

	assert.True(t, p1.Equal(p2))
	assert.False(t, p1.Equal(p3), "different clients never compare equal")
	assert.False(t, p1.Equal(p4))
	assert.False(t, p1.Equal(NewLocalPath("/x")), "local and remote never compare equal")

	// Key follows Equal, so paths work as map keys.
	assert.Equal(t, p1.Key(), p2.Key())
	assert.NotEqual(t, p1.Key(), p3.Key())
	assert.NotEqual(t, p1.Key(), p4.Key())
}

func TestRemotePathOrdering(t *testing.T) {
	a := supervisortest.NewFake("a")
	b := supervisortest.NewFake("b")

	p1 := newRemote(t, a, "/x")
	p2 := newRemote(t, a, "/y")

	less, err := p1.Less(p2)
	require.NoError(t, err)
	assert.True(t, less)

	cmp, err := p2.Compare(p1)
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)

	_, err = p1.Compare(newRemote(t, b, "/x"))
	assert.ErrorIs(t, err, ErrDifferentClients)
}

func TestRemoteReadWriteRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := supervisortest.NewFake("workload")
	fake.PutDir("/data", 0o755, "root", "root")
	p := newRemote(t, fake, "/data/hello.txt")

	n, err := p.WriteText(ctx, "hello\n", nil)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	got, err := p.ReadText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", got)

	raw, err := p.ReadBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello\n"), raw)

	// Default mode applies when no options are given.
	fi, ok := fake.Stat("/data/hello.txt")
	require.True(t, ok)
	assert.Equal(t, "644", fi.Permissions)
}

func TestRemoteReadTextNormalizesNewlines(t *testing.T) {
	ctx := context.Background()
	fake := supervisortest.NewFake("workload")
	fake.PutFile("/notes.txt", []byte("a\r\nb\rc\n"), 0o644, "root", "root")
	p := newRemote(t, fake, "/notes.txt")

	got, err := p.ReadText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", got)

	raw, err := p.ReadTextRaw(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a\r\nb\rc\n", raw)
}

func TestRemoteReadTextRejectsInvalidUTF8(t *testing.T) {
	ctx := context.Background()
	fake := supervisortest.NewFake("workload")
	fake.PutFile("/blob", []byte{0xff, 0xfe}, 0o644, "root", "root")
	p := newRemote(t, fake, "/blob")

	_, err := p.ReadText(ctx)
	assert.ErrorIs(t, err, ErrInvalidUTF8)
	_, err = p.ReadTextRaw(ctx)
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestRemoteReadErrors(t *testing.T) {
	ctx := context.Background()
	fake := supervisortest.NewFake("workload")
	fake.PutDir("/dir", 0o755, "root", "root")

	_, err := newRemote(t, fake, "/missing").ReadBytes(ctx)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = newRemote(t, fake, "/dir").ReadBytes(ctx)
	assert.ErrorIs(t, err, syscall.EISDIR)
}

func TestRemoteWriteErrors(t *testing.T) {
	ctx := context.Background()
	fake := supervisortest.NewFake("workload")
	fake.PutDir("/dir", 0o755, "root", "root")
	fake.PutFile("/plain", nil, 0o644, "root", "root")

	// Parent missing: writes never create parents.
	_, err := newRemote(t, fake, "/missing/x").WriteBytes(ctx, []byte("x"), nil)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	// Parent is a file.
	_, err = newRemote(t, fake, "/plain/x").WriteBytes(ctx, []byte("x"), nil)
	assert.ErrorIs(t, err, syscall.ENOTDIR)

	// Target is a directory.
	_, err = newRemote(t, fake, "/dir").WriteBytes(ctx, []byte("x"), nil)
	assert.ErrorIs(t, err, syscall.EISDIR)
}

func TestRemoteWriteOwnership(t *testing.T) {
	ctx := context.Background()
	fake := supervisortest.NewFake("workload")
	fake.AddUser("app")
	fake.AddGroup("staff")
	p := newRemote(t, fake, "/conf")

	_, err := p.WriteBytes(ctx, []byte("x"), &WriteOptions{Mode: 0o600, User: "app", Group: "staff"})
	require.NoError(t, err)

	fi, ok := fake.Stat("/conf")
	require.True(t, ok)
	assert.Equal(t, "600", fi.Permissions)
	assert.Equal(t, "app", fi.User)
	assert.Equal(t, "staff", fi.Group)

	owner, err := p.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, "app", owner)
	group, err := p.Group(ctx)
	require.NoError(t, err)
	assert.Equal(t, "staff", group)
}

func TestRemoteWriteUnknownOwnerFailsBeforeWriting(t *testing.T) {
	ctx := context.Background()
	fake := supervisortest.NewFake("workload")
	p := newRemote(t, fake, "/conf")

	var lookupErr *LookupError
	_, err := p.WriteBytes(ctx, []byte("x"), &WriteOptions{User: "nobody-here"})
	require.ErrorAs(t, err, &lookupErr)

	_, ok := fake.Stat("/conf")
	assert.False(t, ok, "nothing must be written after a failed lookup")
}

func TestRemoteMkdir(t *testing.T) {
	ctx := context.Background()

	t.Run("plain", func(t *testing.T) {
		fake := supervisortest.NewFake("workload")
		p := newRemote(t, fake, "/a")
		require.NoError(t, p.Mkdir(ctx, nil))

		fi, ok := fake.Stat("/a")
		require.True(t, ok)
		assert.Equal(t, supervisor.TypeDirectory, fi.Type)
		assert.Equal(t, "755", fi.Permissions)

		// Exists already.
		assert.ErrorIs(t, p.Mkdir(ctx, nil), fs.ErrExist)
	})

	t.Run("missing parent", func(t *testing.T) {
		fake := supervisortest.NewFake("workload")
		err := newRemote(t, fake, "/a/b/c").Mkdir(ctx, nil)
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("parent is a file", func(t *testing.T) {
		fake := supervisortest.NewFake("workload")
		fake.PutFile("/a", nil, 0o644, "root", "root")
		err := newRemote(t, fake, "/a/b").Mkdir(ctx, nil)
		assert.ErrorIs(t, err, syscall.ENOTDIR)
	})

	t.Run("parents", func(t *testing.T) {
		fake := supervisortest.NewFake("workload")
		p := newRemote(t, fake, "/a/b/c")
		require.NoError(t, p.Mkdir(ctx, &MkdirOptions{Parents: true, Mode: 0o700}))

		// Leaf gets the requested mode, ancestors the default.
		fi, ok := fake.Stat("/a/b/c")
		require.True(t, ok)
		assert.Equal(t, "700", fi.Permissions)
		fi, ok = fake.Stat("/a/b")
		require.True(t, ok)
		assert.Equal(t, "755", fi.Permissions)

		// Without ExistOK a second call still fails.
		assert.ErrorIs(t, p.Mkdir(ctx, &MkdirOptions{Parents: true}), fs.ErrExist)
	})

	t.Run("exist ok", func(t *testing.T) {
		fake := supervisortest.NewFake("workload")
		p := newRemote(t, fake, "/a")
		require.NoError(t, p.Mkdir(ctx, nil))
		require.NoError(t, p.Mkdir(ctx, &MkdirOptions{ExistOK: true}))

		// ExistOK alone must not create missing parents.
		err := newRemote(t, fake, "/x/y").Mkdir(ctx, &MkdirOptions{ExistOK: true})
		assert.ErrorIs(t, err, fs.ErrNotExist)

		// An existing non-directory is still an error.
		fake.PutFile("/plain", nil, 0o644, "root", "root")
		err = newRemote(t, fake, "/plain").Mkdir(ctx, &MkdirOptions{ExistOK: true})
		assert.ErrorIs(t, err, fs.ErrExist)
	})

	t.Run("parents and exist ok", func(t *testing.T) {
		fake := supervisortest.NewFake("workload")
		p := newRemote(t, fake, "/a/b")
		opts := &MkdirOptions{Parents: true, ExistOK: true}
		require.NoError(t, p.Mkdir(ctx, opts))
		require.NoError(t, p.Mkdir(ctx, opts))
	})

	t.Run("ownership", func(t *testing.T) {
		fake := supervisortest.NewFake("workload")
		fake.AddUser("app")
		p := newRemote(t, fake, "/a/b")
		require.NoError(t, p.Mkdir(ctx, &MkdirOptions{Parents: true, User: "app"}))

		fi, ok := fake.Stat("/a/b")
		require.True(t, ok)
		assert.Equal(t, "app", fi.User)
		// Ancestors are not chowned.
		fi, ok = fake.Stat("/a")
		require.True(t, ok)
		assert.Equal(t, "root", fi.User)
	})
}

func TestRemoteIterdir(t *testing.T) {
	ctx := context.Background()
	fake := supervisortest.NewFake("workload")
	fake.PutFile("/d/b.txt", nil, 0o644, "root", "root")
	fake.PutFile("/d/a.txt", nil, 0o644, "root", "root")
	fake.PutDir("/d/sub", 0o755, "root", "root")

	children, err := newRemote(t, fake, "/d").Iterdir(ctx)
	require.NoError(t, err)
	var got []string
	for _, c := range children {
		got = append(got, c.String())
	}
	assert.Equal(t, []string{"/d/a.txt", "/d/b.txt", "/d/sub"}, got)

	_, err = newRemote(t, fake, "/missing").Iterdir(ctx)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = newRemote(t, fake, "/d/a.txt").Iterdir(ctx)
	assert.ErrorIs(t, err, syscall.ENOTDIR)
}

func TestRemoteGlob(t *testing.T) {
	ctx := context.Background()
	fake := supervisortest.NewFake("workload")
	fake.PutFile("/app/a.txt", nil, 0o644, "root", "root")
	fake.PutFile("/app/b.txt", nil, 0o644, "root", "root")
	fake.PutFile("/app/c.log", nil, 0o644, "root", "root")
	fake.PutFile("/app/sub/d.txt", nil, 0o644, "root", "root")
	fake.PutFile("/app/sub/deep/e.txt", nil, 0o644, "root", "root")
	p := newRemote(t, fake, "/app")

	tests := []struct {
		pattern string
		want    []string
	}{
		{"*.txt", []string{"/app/a.txt", "/app/b.txt"}},
		{"*", []string{"/app/a.txt", "/app/b.txt", "/app/c.log", "/app/sub"}},
		{"sub/*.txt", []string{"/app/sub/d.txt"}},
		{"*/*.txt", []string{"/app/sub/d.txt"}},
		{"*/deep/*", []string{"/app/sub/deep/e.txt"}},
		{"nope/*.txt", nil},
		{"a.txt", []string{"/app/a.txt"}},
	}
	for _, tc := range tests {
		matches, err := p.Glob(ctx, tc.pattern)
		require.NoError(t, err, "pattern %q", tc.pattern)
		var got []string
		for _, m := range matches {
			got = append(got, m.String())
		}
		assert.Equal(t, tc.want, got, "pattern %q", tc.pattern)
	}
}

func TestRemoteGlobRejectsBadPatterns(t *testing.T) {
	ctx := context.Background()
	fake := supervisortest.NewFake("workload")
	p := newRemote(t, fake, "/app")

	for _, pattern := range []string{"**", "**/*.txt", "x/**/y"} {
		_, err := p.Glob(ctx, pattern)
		assert.ErrorIs(t, err, ErrRecursiveGlob, "pattern %q", pattern)
	}
	for _, pattern := range []string{"", ".", "/abs/*.txt", "a//b", "x**"} {
		_, err := p.Glob(ctx, pattern)
		assert.ErrorIs(t, err, ErrInvalidPattern, "pattern %q", pattern)
	}
}

func TestRemoteGlobOnFileOrMissingBase(t *testing.T) {
	ctx := context.Background()
	fake := supervisortest.NewFake("workload")
	fake.PutFile("/plain", nil, 0o644, "root", "root")

	// Globbing a file must not match the file itself.
	matches, err := newRemote(t, fake, "/plain").Glob(ctx, "*")
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = newRemote(t, fake, "/missing").Glob(ctx, "*")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRemoteStat(t *testing.T) {
	ctx := context.Background()
	fake := supervisortest.NewFake("workload")
	fake.PutFile("/app/conf.yaml", []byte("x: 1\n"), 0o640, "root", "root")

	fi, err := newRemote(t, fake, "/app/conf.yaml").Stat(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/app/conf.yaml", fi.Path)
	assert.Equal(t, "conf.yaml", fi.Name)
	assert.Equal(t, KindFile, fi.Kind)
	assert.Equal(t, fs.FileMode(0o640), fi.Mode)
	assert.Equal(t, int64(5), fi.Size)
	assert.Equal(t, "root", fi.User)
	assert.False(t, fi.ModTime.IsZero())

	_, err = newRemote(t, fake, "/nope").Stat(ctx)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRemoteExistsFamily(t *testing.T) {
	ctx := context.Background()
	fake := supervisortest.NewFake("workload")
	fake.PutFile("/f", nil, 0o644, "root", "root")
	fake.PutDir("/d", 0o755, "root", "root")
	fake.PutEntry("/pipe", supervisor.TypeNamedPipe, 0o600)
	fake.PutEntry("/sock", supervisor.TypeSocket, 0o600)

	checks := []struct {
		path  string
		check func(ctx context.Context) (bool, error)
		want  bool
	}{
		{"/f", newRemote(t, fake, "/f").Exists, true},
		{"/f", newRemote(t, fake, "/f").IsFile, true},
		{"/f", newRemote(t, fake, "/f").IsDir, false},
		{"/d", newRemote(t, fake, "/d").IsDir, true},
		{"/d", newRemote(t, fake, "/d").IsFile, false},
		{"/pipe", newRemote(t, fake, "/pipe").IsFifo, true},
		{"/sock", newRemote(t, fake, "/sock").IsSocket, true},
		{"/sock", newRemote(t, fake, "/sock").IsFifo, false},
		{"/missing", newRemote(t, fake, "/missing").Exists, false},
		{"/missing", newRemote(t, fake, "/missing").IsDir, false},
	}
	for _, tc := range checks {
		got, err := tc.check(ctx)
		require.NoError(t, err, "path %s", tc.path)
		assert.Equal(t, tc.want, got, "path %s", tc.path)
	}
}

func TestRemoteRemove(t *testing.T) {
	ctx := context.Background()
	fake := supervisortest.NewFake("workload")
	fake.PutFile("/d/f", nil, 0o644, "root", "root")

	// Non-empty directory needs recursive.
	err := Remove(ctx, newRemote(t, fake, "/d"), false)
	assert.ErrorIs(t, err, syscall.ENOTEMPTY)

	require.NoError(t, Remove(ctx, newRemote(t, fake, "/d/f"), false))
	_, ok := fake.Stat("/d/f")
	assert.False(t, ok)

	require.NoError(t, Remove(ctx, newRemote(t, fake, "/d"), false))

	err = Remove(ctx, newRemote(t, fake, "/d"), false)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRemoteRemoveRecursive(t *testing.T) {
	ctx := context.Background()
	fake := supervisortest.NewFake("workload")
	fake.PutFile("/d/sub/f", nil, 0o644, "root", "root")

	require.NoError(t, Remove(ctx, newRemote(t, fake, "/d"), true))
	_, ok := fake.Stat("/d")
	assert.False(t, ok)
}

func TestRemoteConnectionErrorsPassThrough(t *testing.T) {
	ctx := context.Background()
	fake := supervisortest.NewFake("workload")
	fake.PutFile("/f", nil, 0o644, "root", "root")
	fake.SetDisconnected(true)

	var connErr *supervisor.ConnectionError

	_, err := newRemote(t, fake, "/f").ReadBytes(ctx)
	require.ErrorAs(t, err, &connErr)
	assert.NotErrorIs(t, err, fs.ErrNotExist)

	// Connectivity failures must not read as "does not exist".
	_, err = newRemote(t, fake, "/f").Exists(ctx)
	assert.ErrorAs(t, err, &connErr)
}

func TestRemoteWriteReadRemoveScenario(t *testing.T) {
	ctx := context.Background()
	fake := supervisortest.NewFake("workload")
	p := newRemote(t, fake, "/srv/app/state.json")

	require.NoError(t, p.Parent().Mkdir(ctx, &MkdirOptions{Parents: true}))
	_, err := p.WriteText(ctx, `{"ok":true}`, nil)
	require.NoError(t, err)

	got, err := p.ReadText(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, got)

	require.NoError(t, Remove(ctx, p, false))
	_, err = p.ReadText(ctx)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
