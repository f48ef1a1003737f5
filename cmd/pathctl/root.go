package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pathkit/pathkit"
	"github.com/pathkit/pathkit/internal/logging"
	"github.com/pathkit/pathkit/supervisor"
)

// app carries the state shared by all subcommands: the logger and the
// backend selection.
type app struct {
	log      *zap.Logger
	remote   bool
	logLevel string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "pathctl",
		Short:         "Manage files on the local filesystem or on a supervised workload",
		Long:          "pathctl runs the same file operations against the local filesystem or, with --remote, against the file API of a workload supervisor (configured through PATHKIT_SUPERVISOR_* environment variables).",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(a.logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", a.logLevel, err)
			}
			a.log = log
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&a.remote, "remote", false, "operate on the workload supervisor instead of the local filesystem")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newReadCmd(a),
		newWriteCmd(a),
		newLsCmd(a),
		newGlobCmd(a),
		newMkdirCmd(a),
		newRmCmd(a),
		newStatCmd(a),
		newEnsureCmd(a),
		newSyncCmd(a),
	)
	return root
}

// path builds a backend path for target. A fresh supervisor client is built
// per invocation; pathctl is a one-shot tool.
func (a *app) path(target string) (pathkit.Path, error) {
	if !a.remote {
		return pathkit.NewLocalPath(target), nil
	}
	cfg, err := supervisor.LoadConfig()
	if err != nil {
		return nil, err
	}
	client := supervisor.NewClient(cfg, supervisor.WithLogger(a.log))
	return pathkit.NewRemotePath(client, target)
}

func parseMode(s string) (fs.FileMode, error) {
	if s == "" {
		return 0, nil
	}
	bits, err := strconv.ParseUint(strings.TrimPrefix(s, "0o"), 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode %q: %w", s, err)
	}
	return fs.FileMode(bits), nil
}

func newReadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read <path>",
		Short: "Print file contents to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.path(args[0])
			if err != nil {
				return err
			}
			data, err := p.ReadBytes(cmd.Context())
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}

func newWriteCmd(a *app) *cobra.Command {
	var mode, user, group string
	cmd := &cobra.Command{
		Use:   "write <path>",
		Short: "Write stdin to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.path(args[0])
			if err != nil {
				return err
			}
			m, err := parseMode(mode)
			if err != nil {
				return err
			}
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			n, err := p.WriteBytes(cmd.Context(), data, &pathkit.WriteOptions{Mode: m, User: user, Group: group})
			if err != nil {
				return err
			}
			a.log.Info("wrote file", zap.String("path", p.String()), zap.Int("bytes", n))
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "octal permission mode (default 644)")
	cmd.Flags().StringVar(&user, "user", "", "owning user")
	cmd.Flags().StringVar(&group, "group", "", "owning group")
	return cmd
}

func newLsCmd(a *app) *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "ls <path>",
		Short: "List directory contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.path(args[0])
			if err != nil {
				return err
			}
			children, err := p.Iterdir(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range children {
				if !long {
					fmt.Println(c.Name())
					continue
				}
				fi, err := c.Stat(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("%-9s %4o %8d %-8s %-8s %s\n", fi.Kind, fi.Mode, fi.Size, fi.User, fi.Group, fi.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show kind, mode, size and ownership")
	return cmd
}

func newGlobCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "glob <path> <pattern>",
		Short: "Print paths under <path> matching a non-recursive pattern",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.path(args[0])
			if err != nil {
				return err
			}
			matches, err := p.Glob(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			for _, m := range matches {
				fmt.Println(m.String())
			}
			return nil
		},
	}
}

func newMkdirCmd(a *app) *cobra.Command {
	var mode, user, group string
	var parents, existOK bool
	cmd := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.path(args[0])
			if err != nil {
				return err
			}
			m, err := parseMode(mode)
			if err != nil {
				return err
			}
			return p.Mkdir(cmd.Context(), &pathkit.MkdirOptions{
				Mode:    m,
				Parents: parents,
				ExistOK: existOK,
				User:    user,
				Group:   group,
			})
		},
	}
	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "create missing parent directories")
	cmd.Flags().BoolVar(&existOK, "exist-ok", false, "tolerate an existing directory")
	cmd.Flags().StringVar(&mode, "mode", "", "octal permission mode (default 755)")
	cmd.Flags().StringVar(&user, "user", "", "owning user")
	cmd.Flags().StringVar(&group, "group", "", "owning group")
	return cmd
}

func newRmCmd(a *app) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Remove a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.path(args[0])
			if err != nil {
				return err
			}
			return pathkit.Remove(cmd.Context(), p, recursive)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "remove directories and their contents")
	return cmd
}

func newStatCmd(a *app) *cobra.Command {
	var mime bool
	cmd := &cobra.Command{
		Use:   "stat <path>",
		Short: "Print file metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.path(args[0])
			if err != nil {
				return err
			}
			fi, err := pathkit.Stat(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Printf("path:  %s\n", fi.Path)
			fmt.Printf("kind:  %s\n", fi.Kind)
			fmt.Printf("mode:  %04o\n", fi.Mode)
			fmt.Printf("size:  %d\n", fi.Size)
			fmt.Printf("owner: %s:%s\n", fi.User, fi.Group)
			fmt.Printf("mtime: %s\n", fi.ModTime)
			if mime && fi.Kind == pathkit.KindFile {
				data, err := p.ReadBytes(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("mime:  %s\n", mimetype.Detect(data).String())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&mime, "mime", false, "detect and print the content type")
	return cmd
}

func newEnsureCmd(a *app) *cobra.Command {
	var mode, user, group, sourceFile string
	cmd := &cobra.Command{
		Use:   "ensure <path>",
		Short: "Idempotently set file contents, mode and ownership",
		Long:  "ensure writes the file only when its contents or metadata differ from the requested state, creating parent directories as needed. Content comes from --source or stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.path(args[0])
			if err != nil {
				return err
			}
			m, err := parseMode(mode)
			if err != nil {
				return err
			}
			var source io.Reader = cmd.InOrStdin()
			if sourceFile != "" {
				f, err := os.Open(sourceFile)
				if err != nil {
					return err
				}
				defer f.Close()
				source = f
			}
			changed, err := pathkit.EnsureContents(cmd.Context(), p, source, &pathkit.WriteOptions{Mode: m, User: user, Group: group})
			if err != nil {
				return err
			}
			if changed {
				fmt.Println("changed")
			} else {
				fmt.Println("unchanged")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sourceFile, "source", "", "read content from a local file instead of stdin")
	cmd.Flags().StringVar(&mode, "mode", "", "octal permission mode (default 644)")
	cmd.Flags().StringVar(&user, "user", "", "owning user")
	cmd.Flags().StringVar(&group, "group", "", "owning group")
	return cmd
}

func newSyncCmd(a *app) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "sync <local-dir> <dest-dir>",
		Short: "Copy a local directory tree to the destination",
		Long:  "sync walks a local directory and ensures every regular file exists with identical contents under the destination, which may be local or remote (--remote). Unchanged files are skipped.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dest := args[0], args[1]
			m, err := parseMode(mode)
			if err != nil {
				return err
			}
			destBase, err := a.path(dest)
			if err != nil {
				return err
			}

			files, err := collectFiles(src)
			if err != nil {
				return err
			}

			bar := progressbar.NewOptions(len(files),
				progressbar.OptionSetDescription("syncing"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)

			var changed int
			for _, rel := range files {
				data, err := os.ReadFile(pathkit.NewLocalPath(src, rel).String())
				if err != nil {
					return err
				}
				target := destBase.Join(rel)
				didChange, err := pathkit.EnsureContents(cmd.Context(), target, data, &pathkit.WriteOptions{Mode: m})
				if err != nil {
					return fmt.Errorf("sync %s: %w", target.String(), err)
				}
				if didChange {
					changed++
				}
				_ = bar.Add(1)
			}
			_ = bar.Finish()

			a.log.Info("sync complete",
				zap.String("source", src),
				zap.String("dest", dest),
				zap.Int("files", len(files)),
				zap.Int("changed", changed),
			)
			fmt.Printf("%d files, %d changed\n", len(files), changed)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "octal permission mode for synced files (default 644)")
	return cmd
}

// collectFiles walks root concurrently and returns the relative paths of all
// regular files, sorted for stable output.
func collectFiles(root string) ([]string, error) {
	var mu sync.Mutex
	var files []string
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
		mu.Lock()
		files = append(files, rel)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
