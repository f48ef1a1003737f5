// Package pathkit provides a uniform, pathlib-style interface over two
// filesystem backends: the local filesystem (LocalPath) and a remote
// filesystem managed by a sandboxed workload supervisor (RemotePath).
//
// Both types satisfy the Path contract, so filesystem logic can be written
// once and run unmodified against either backend:
//
//	func deploy(ctx context.Context, etc pathkit.Path) error {
//		cfg := etc.Join("app", "app.conf")
//		changed, err := pathkit.EnsureContents(ctx, cfg, rendered,
//			&pathkit.WriteOptions{Mode: 0o600, User: "app"})
//		...
//	}
//
// Errors follow the native taxonomy regardless of backend: a missing remote
// file satisfies errors.Is(err, fs.ErrNotExist) exactly like a missing local
// one. Conditions the remote protocol cannot express are unsupported rather
// than approximated: relative remote paths, symlink introspection and
// recursive globbing all fail fast with dedicated errors.
package pathkit
