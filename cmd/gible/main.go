package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"gible/internal/config"
	gerrors "gible/internal/errors"
	"gible/internal/logging"
	"gible/internal/repo"
	"gible/internal/watch"
	"gible/internal/workspace"
	"gible/shared/utils"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	logger  = logging.Nop()
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "gible",
	Short:         "Gible is a local version control system",
	Long:          `Gible records snapshots of a working tree as a history of commits, with branches and three-way merges.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.NewDevelopment(verbose)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func openRepo() (*repo.Repository, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	r, err := repo.Open(dir, repo.Options{Logger: logger.Logger})
	if err != nil {
		return nil, err
	}
	// --verbose wins over the repository's log_level.
	if !verbose {
		if err := logger.SetLevel(r.Config().LogLevel); err != nil {
			r.Close()
			return nil, fmt.Errorf("applying log_level: %w", err)
		}
	}
	return r, nil
}

// absPaths resolves path arguments against the current directory. The
// engine reads relative paths as relative to the repository root, which is
// not where the user is standing when run from a subdirectory.
func absPaths(args []string) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", a, err)
		}
		out[i] = abs
	}
	return out, nil
}

// withRepo opens the repository around fn.
func withRepo(fn func(r *repo.Repository) error) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	defer r.Close()
	return fn(r)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create an empty repository in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
			hash, _ := cmd.Flags().GetString("hash")
			backend, _ := cmd.Flags().GetString("backend")

			r, err := repo.Init(dir, repo.Options{
				Logger:        logger.Logger,
				HashAlgorithm: hash,
				ObjectBackend: backend,
			})
			if err != nil {
				return err
			}
			defer r.Close()

			fmt.Println("Initialized empty gible repository in", filepath.Join(r.Root(), workspace.RepoDir))
			return nil
		},
	}
	initCmd.Flags().String("hash", config.HashSHA256, "object hash algorithm (sha256, blake3)")
	initCmd.Flags().String("backend", config.BackendFiles, "object backend (files, badger)")

	var addCmd = &cobra.Command{
		Use:   "add <paths...>",
		Short: "Stage files for the next commit",
		Long:  `Stages files. Directories are added recursively; use '.' for the whole tree.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			return withRepo(func(r *repo.Repository) error {
				res, err := r.Add(paths...)
				if err != nil {
					return err
				}
				printWarnings(res.Warnings)
				green := color.New(color.FgGreen).SprintFunc()
				for _, f := range res.Staged {
					fmt.Printf("\t%s %s (%s)\n", green("+"), f.Path, f.Mode)
				}
				return nil
			})
		},
	}

	var rmCmd = &cobra.Command{
		Use:   "rm <paths...>",
		Short: "Remove files from the worktree and the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			return withRepo(func(r *repo.Repository) error {
				res, err := r.Remove(paths...)
				if err != nil {
					return err
				}
				printWarnings(res.Warnings)
				red := color.New(color.FgRed).SprintFunc()
				for _, p := range res.Removed {
					fmt.Printf("\t%s %s\n", red("-"), p)
				}
				return nil
			})
		},
	}

	var commitCmd = &cobra.Command{
		Use:   "commit [message]",
		Short: "Record the staged and tracked changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")
			if len(args) == 1 {
				message = args[0]
			}
			return withRepo(func(r *repo.Repository) error {
				res, err := r.Commit(message)
				if err != nil {
					return err
				}
				printWarnings(res.Warnings)

				where := res.Branch
				if where == "" {
					where = "detached HEAD"
				}
				fmt.Printf("[%s %s] %s\n", where, color.YellowString(utils.ShortID(res.CommitID)), res.Message)
				if len(res.Parents) > 1 {
					fmt.Println(" merge commit")
				}
				printChanges(res.Changes)
				return nil
			})
		},
	}
	commitCmd.Flags().StringP("message", "m", "", "commit message")

	var branchCmd = &cobra.Command{
		Use:   "branch <name>",
		Short: "Create a branch at the current commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repository) error {
				info, err := r.CreateBranch(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("Created branch %s at %s\n", info.Name, shortOrNone(info.Tip))
				return nil
			})
		},
	}

	var branchesCmd = &cobra.Command{
		Use:   "branches",
		Short: "List branches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repository) error {
				branches, err := r.ListBranches()
				if err != nil {
					return err
				}
				for _, b := range branches {
					if b.Current {
						fmt.Printf("* %s %s\n", color.GreenString(b.Name), shortOrNone(b.Tip))
						continue
					}
					fmt.Printf("  %s %s\n", b.Name, shortOrNone(b.Tip))
				}
				return nil
			})
		},
	}

	var switchCmd = &cobra.Command{
		Use:   "switch <branch>",
		Short: "Switch to a branch and restore its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repository) error {
				res, err := r.SwitchBranch(args[0])
				if err != nil {
					return err
				}
				printRestore(res)
				fmt.Printf("Switched to branch '%s'\n", res.Branch)
				return nil
			})
		},
	}

	var mergeCmd = &cobra.Command{
		Use:   "merge <branch>",
		Short: "Merge a branch into the current branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repository) error {
				res, err := r.Merge(args[0])
				if err != nil {
					return err
				}
				printMerge(res)
				return nil
			})
		},
	}

	var checkoutCmd = &cobra.Command{
		Use:   "checkout <branch|commit>",
		Short: "Switch to a branch, or detach at a commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repository) error {
				res, err := r.Checkout(args[0])
				if err != nil {
					return err
				}
				printRestore(res)
				if res.Branch != "" {
					fmt.Printf("Switched to branch '%s'\n", res.Branch)
					return nil
				}
				fmt.Printf("HEAD is now at %s\n", utils.ShortID(res.CommitID))
				return nil
			})
		},
	}

	var restoreCmd = &cobra.Command{
		Use:   "restore [ref]",
		Short: "Make the worktree match a commit without moving HEAD",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := "HEAD"
			if len(args) == 1 {
				ref = args[0]
			}
			return withRepo(func(r *repo.Repository) error {
				res, err := r.Restore(ref)
				if err != nil {
					return err
				}
				printRestore(res)
				fmt.Printf("Restored worktree to %s\n", utils.ShortID(res.CommitID))
				return nil
			})
		},
	}

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the working tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(r *repo.Repository) error {
				st, err := r.Status()
				if err != nil {
					return err
				}
				printStatus(st)
				return nil
			})
		},
	}

	var logCmd = &cobra.Command{
		Use:   "log",
		Short: "Show first-parent history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withRepo(func(r *repo.Repository) error {
				log, err := r.ListCommits(limit)
				if err != nil {
					return err
				}
				printWarnings(log.Warnings)
				if len(log.Commits) == 0 {
					fmt.Println("No commits yet")
					return nil
				}
				for _, c := range log.Commits {
					printCommitHeader(c)
					fmt.Println()
				}
				return nil
			})
		},
	}
	logCmd.Flags().IntP("limit", "n", 0, "show at most n commits")

	var showCmd = &cobra.Command{
		Use:   "show [ref]",
		Short: "Show a commit and its changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := "HEAD"
			if len(args) == 1 {
				ref = args[0]
			}
			return withRepo(func(r *repo.Repository) error {
				detail, err := r.Show(ref)
				if err != nil {
					return err
				}
				printCommitHeader(detail.CommitInfo)
				for _, f := range detail.Files {
					fmt.Println()
					printFileDiff(f)
				}
				return nil
			})
		},
	}

	var catCmd = &cobra.Command{
		Use:   "cat <ref> <path>",
		Short: "Print a file as of a commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args[1:])
			if err != nil {
				return err
			}
			return withRepo(func(r *repo.Repository) error {
				data, err := r.ReadFile(args[0], paths[0])
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			})
		},
	}

	var diffCmd = &cobra.Command{
		Use:   "diff [paths...]",
		Short: "Show worktree changes against HEAD",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			return withRepo(func(r *repo.Repository) error {
				diffs, err := r.Diff(paths...)
				if err != nil {
					return err
				}
				if len(diffs) == 0 {
					fmt.Println("No changes")
					return nil
				}
				for _, f := range diffs {
					printFileDiff(f)
					fmt.Println()
				}
				return nil
			})
		},
	}

	var watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Stage files automatically as they change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			debounce, _ := cmd.Flags().GetDuration("debounce")
			return withRepo(func(r *repo.Repository) error {
				w, err := watch.New(r.Root(), repoStager{r}, logger.Logger, watch.WithDebounce(debounce))
				if err != nil {
					return err
				}
				fmt.Printf("Watching %s (Ctrl-C to stop)\n", r.Root())

				sig := make(chan os.Signal, 1)
				signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
				<-sig
				return w.Close()
			})
		},
	}
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "wait this long for edits to settle")

	var destroyCmd = &cobra.Command{
		Use:   "destroy",
		Short: "Delete the repository directory, keeping the worktree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				return gerrors.ValidationError("destroy deletes all history; rerun with --force", nil)
			}
			r, err := openRepo()
			if err != nil {
				return err
			}
			if err := r.Destroy(); err != nil {
				return err
			}
			fmt.Println("Removed", filepath.Join(r.Root(), workspace.RepoDir))
			return nil
		},
	}
	destroyCmd.Flags().Bool("force", false, "confirm deletion")

	rootCmd.AddCommand(initCmd, addCmd, rmCmd, commitCmd, branchCmd, branchesCmd,
		switchCmd, mergeCmd, checkoutCmd, restoreCmd, statusCmd, logCmd, showCmd,
		catCmd, diffCmd, watchCmd, destroyCmd)
}

// repoStager feeds watcher events into the index.
type repoStager struct {
	r *repo.Repository
}

func (s repoStager) Add(path string) error {
	res, err := s.r.Add(path)
	if err != nil {
		return err
	}
	for _, f := range res.Staged {
		fmt.Printf("\t%s %s\n", color.GreenString("staged"), f.Path)
	}
	return nil
}

func (s repoStager) Forget(path string) error {
	res, err := s.r.Unstage(path)
	if err != nil {
		return err
	}
	for _, p := range res.Removed {
		fmt.Printf("\t%s %s\n", color.RedString("unstaged"), p)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		msg := err.Error()
		if t := gerrors.TypeOf(err); t != "" {
			msg = strings.ToLower(strings.ReplaceAll(string(t), "_", " ")) + ": " + msg
		}
		fmt.Fprintln(os.Stderr, color.RedString("error:"), msg)
		os.Exit(1)
	}
}

var _ watch.Stager = repoStager{}
