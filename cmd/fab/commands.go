package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sergeknystautas/fab/internal/config"
	"github.com/sergeknystautas/fab/internal/forest"
	"github.com/sergeknystautas/fab/internal/manifest"
	"github.com/sergeknystautas/fab/internal/snapshot"
	"github.com/sergeknystautas/fab/internal/vcs"
	"github.com/sergeknystautas/fab/internal/version"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "fab",
		Short: "Manage a forest of git and Mercurial repositories",
		Long: `fab manages a seed repository and the repositories it depends on as one
forest. The seed repo's manifest (.fab/manifest.json) lists each dependency
as free (follows the seed's branch), locked to a branch, or pinned to a
revision.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log every VCS command to stderr")

	root.AddCommand(
		newInitCmd(a),
		newCloneCmd(a),
		newInstallCmd(a),
		newStatusCmd(a),
		newPullCmd(a),
		newOutgoingCmd(a),
		newSwitchCmd(a),
		newMakeBranchCmd(a),
		newForEachCmd(a, "for-each", "Run a command in every repo", forest.All),
		newForEachCmd(a, "for-free", "Run a command in the seed and every free repo", forest.FreeOnly),
		newVCSCmd(a, vcs.Git),
		newVCSCmd(a, vcs.Hg),
		newRootDirCmd(),
		newManifestCmd(a),
		newSnapshotCmd(a),
		newRecreateCmd(a),
		newRestoreCmd(a),
		newVersionCmd(a),
		newConfigCmd(a),
	)
	return root
}

// openForest opens the forest containing the working directory.
func openForest(ctx context.Context, a *app) (*forest.Manager, *forest.Forest, error) {
	m, err := a.forest()
	if err != nil {
		return nil, nil, err
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	f, err := m.OpenFrom(ctx, wd)
	if err != nil {
		return nil, nil, err
	}
	return m, f, nil
}

// forestCmd builds a command that runs op on the current forest.
func forestCmd(a *app, use, short string, args cobra.PositionalArgs, op func(ctx context.Context, m *forest.Manager, f *forest.Forest, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, f, err := openForest(cmd.Context(), a)
			if err != nil {
				return err
			}
			return op(cmd.Context(), m, f, args)
		},
	}
}

func newInitCmd(a *app) *cobra.Command {
	var opts forest.InitOptions
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a manifest describing the repos found under the forest root",
		Long: `Scans the forest root for git and Mercurial working copies and records each
one in the seed repo's manifest. The root defaults to the seed repo itself
(nested layout); use --root .. when dependencies sit beside the seed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.forest()
			if err != nil {
				return err
			}
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			f, err := m.Init(cmd.Context(), wd, opts)
			if err != nil {
				return err
			}
			a.style().Success("initialized forest at %s", f.Root)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Root, "root", "", "forest root relative to the seed repo")
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "name of the manifest variant to write")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing manifest")
	return cmd
}

func newCloneCmd(a *app) *cobra.Command {
	var opts forest.CloneOptions
	cmd := &cobra.Command{
		Use:   "clone SOURCE [DEST]",
		Short: "Clone a seed repo and install its forest",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.forest()
			if err != nil {
				return err
			}
			dest := ""
			if len(args) == 2 {
				dest = args[1]
			}
			f, err := m.Clone(cmd.Context(), args[0], dest, opts)
			if err != nil {
				return err
			}
			a.style().Success("forest ready at %s", f.Root)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "name of the manifest variant to install")
	return cmd
}

func newInstallCmd(a *app) *cobra.Command {
	var opts forest.InstallOptions
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Clone or check out every dependency of the seed repo's manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.forest()
			if err != nil {
				return err
			}
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			seed, err := forest.LocateSeed(wd)
			if err != nil {
				return err
			}
			f, err := m.Install(cmd.Context(), seed, opts)
			if err != nil {
				return err
			}
			a.style().Success("installed %d dependencies", len(f.Manifest.Dependencies))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "name of the manifest variant to install")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return forestCmd(a, "status", "Show the working copy status of every repo", cobra.NoArgs,
		func(ctx context.Context, m *forest.Manager, f *forest.Forest, _ []string) error {
			return m.Status(ctx, f)
		})
}

func newPullCmd(a *app) *cobra.Command {
	return forestCmd(a, "pull", "Pull the seed and every free or locked repo", cobra.NoArgs,
		func(ctx context.Context, m *forest.Manager, f *forest.Forest, _ []string) error {
			return m.Pull(ctx, f)
		})
}

func newOutgoingCmd(a *app) *cobra.Command {
	return forestCmd(a, "outgoing", "List changes not yet pushed", cobra.NoArgs,
		func(ctx context.Context, m *forest.Manager, f *forest.Forest, _ []string) error {
			return m.Outgoing(ctx, f)
		})
}

func newSwitchCmd(a *app) *cobra.Command {
	return forestCmd(a, "switch BRANCH", "Switch the seed and every free repo to a branch", cobra.ExactArgs(1),
		func(ctx context.Context, m *forest.Manager, f *forest.Forest, args []string) error {
			return m.Switch(ctx, f, args[0])
		})
}

func newMakeBranchCmd(a *app) *cobra.Command {
	var publish bool
	cmd := forestCmd(a, "make-branch BRANCH [START]", "Create a branch in the seed and every free repo", cobra.RangeArgs(1, 2),
		func(ctx context.Context, m *forest.Manager, f *forest.Forest, args []string) error {
			start := ""
			if len(args) == 2 {
				start = args[1]
			}
			return m.MakeBranch(ctx, f, args[0], start, publish)
		})
	cmd.Flags().BoolVar(&publish, "publish", false, "push the new branch upstream")
	return cmd
}

func newForEachCmd(a *app, use, short string, filter forest.Filter) *cobra.Command {
	var opts forest.ForEachOptions
	cmd := forestCmd(a, use+" [flags] [--] COMMAND [ARGS...]", short, cobra.MinimumNArgs(1),
		func(ctx context.Context, m *forest.Manager, f *forest.Forest, args []string) error {
			return m.ForEach(ctx, f, filter, args, opts)
		})
	// Flags after the command belong to the command.
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().BoolVarP(&opts.KeepGoing, "keep-going", "k", false, "report failures and carry on")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "number of repos to run in parallel (default from settings)")
	return cmd
}

func newVCSCmd(a *app, t vcs.Type) *cobra.Command {
	filter := forest.GitOnly
	if t == vcs.Hg {
		filter = forest.HgOnly
	}
	cmd := forestCmd(a, string(t)+" ARGS...", fmt.Sprintf("Run %s in every %s repo", t, t), cobra.ArbitraryArgs,
		func(ctx context.Context, m *forest.Manager, f *forest.Forest, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			exe := cfg.GetGitCommand()
			if t == vcs.Hg {
				exe = cfg.GetHgCommand()
			}
			return m.ForEach(ctx, f, filter, append([]string{exe}, args...), forest.ForEachOptions{Jobs: 1})
		})
	cmd.DisableFlagParsing = true
	return cmd
}

func newRootDirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "root",
		Short: "Print the forest root directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			root, err := forest.Locate(wd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), root)
			return nil
		},
	}
}

func newManifestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect or edit the forest manifest",
	}
	cmd.AddCommand(
		forestCmd(a, "list", "List the manifest variants of the seed repo", cobra.NoArgs,
			func(ctx context.Context, m *forest.Manager, f *forest.Forest, _ []string) error {
				names, err := manifest.Variants(f.SeedDir())
				if err != nil {
					return err
				}
				active := f.ManifestName
				if active == "" {
					active = manifest.DefaultVariant
				}
				for _, n := range names {
					if n == active {
						a.style().Println(a.style().Bold("* " + n))
					} else {
						a.style().Println("  " + n)
					}
				}
				return nil
			}),
		forestCmd(a, "path", "Print the path of the active manifest", cobra.NoArgs,
			func(ctx context.Context, m *forest.Manager, f *forest.Forest, _ []string) error {
				a.style().Println(manifest.Path(f.SeedDir(), f.ManifestName))
				return nil
			}),
		forestCmd(a, "edit", "Open the active manifest in $VISUAL or $EDITOR", cobra.NoArgs,
			func(ctx context.Context, m *forest.Manager, f *forest.Forest, _ []string) error {
				return editFile(ctx, manifest.Path(f.SeedDir(), f.ManifestName))
			}),
	)
	return cmd
}

// editorCommand returns the user's editor split into words.
func editorCommand() []string {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if fields := strings.Fields(os.Getenv(env)); len(fields) > 0 {
			return fields
		}
	}
	return []string{"vi"}
}

func editFile(ctx context.Context, path string) error {
	argv := append(editorCommand(), path)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor %s failed: %w", argv[0], err)
	}
	return nil
}

func newSnapshotCmd(a *app) *cobra.Command {
	var output string
	cmd := forestCmd(a, "snapshot", "Record the exact revision of every repo", cobra.NoArgs,
		func(ctx context.Context, m *forest.Manager, f *forest.Forest, _ []string) error {
			s, err := m.Capture(ctx, f)
			if err != nil {
				return err
			}
			if output == "" {
				data, err := snapshot.Encode(s)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := snapshot.WriteFile(output, s); err != nil {
				return err
			}
			a.style().Success("snapshot written to %s", output)
			return nil
		})
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the snapshot to a file instead of stdout")
	return cmd
}

func readSnapshot(a *app, path string) (*snapshot.Snapshot, error) {
	s, warnings, err := snapshot.ReadFile(path)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		a.style().Warn("%s", w)
	}
	return s, nil
}

func newRecreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recreate SNAPSHOT DEST",
		Short: "Build a new forest from a snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.forest()
			if err != nil {
				return err
			}
			s, err := readSnapshot(a, args[0])
			if err != nil {
				return err
			}
			f, err := m.Recreate(cmd.Context(), s, args[1])
			if err != nil {
				return err
			}
			a.style().Success("forest recreated at %s", f.Root)
			return nil
		},
	}
}

func newRestoreCmd(a *app) *cobra.Command {
	return forestCmd(a, "restore [SNAPSHOT]", "Return the forest to a snapshot, or to its manifest", cobra.MaximumNArgs(1),
		func(ctx context.Context, m *forest.Manager, f *forest.Forest, args []string) error {
			var s *snapshot.Snapshot
			if len(args) == 1 {
				var err error
				if s, err = readSnapshot(a, args[0]); err != nil {
					return err
				}
			}
			return m.Restore(ctx, f, s)
		})
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print fab's version and the VCS tools it will run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, version.String())
			m, err := a.forest()
			if err != nil {
				return err
			}
			for _, t := range vcs.Types() {
				b, err := m.Registry().Get(t)
				if err != nil {
					return err
				}
				v, err := vcs.CheckVersion(cmd.Context(), b)
				switch {
				case v == nil:
					fmt.Fprintf(out, "%s: not available (%v)\n", t, err)
				case err != nil:
					fmt.Fprintf(out, "%s %s\n", t, v)
					a.style().Warn("%v", err)
				default:
					fmt.Fprintf(out, "%s %s\n", t, v)
				}
			}
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change fab's settings",
		Long: `Settings live in ~/.fab/config.yaml, or in the file named by $FAB_CONFIG.
Keys: ` + strings.Join(config.Keys(), ", ") + ".",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the settings file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := a.config()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cfg.Path())
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print every setting with defaults applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := a.config()
				if err != nil {
					return err
				}
				for _, key := range config.Keys() {
					v, err := cfg.Get(key)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, v)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Change a setting and save the settings file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := a.config()
				if err != nil {
					return err
				}
				if err := cfg.Set(args[0], args[1]); err != nil {
					return err
				}
				if err := cfg.Save(); err != nil {
					return err
				}
				a.style().Success("%s set to %s in %s", args[0], args[1], cfg.Path())
				return nil
			},
		},
	)
	return cmd
}
