package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/fpp-125/fbh/internal/command"
	"github.com/fpp-125/fbh/internal/config"
	"github.com/fpp-125/fbh/internal/manager"
	"github.com/fpp-125/fbh/internal/manifest"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// CommitTime is the commit timestamp (set via -ldflags).
	CommitTime = "unknown"
)

type app struct {
	verbose    int
	configPath string
	stdout     io.Writer
	stderr     io.Writer
}

func Execute(args []string) int {
	root := newRootCommand(os.Stdout, os.Stderr)
	root.SetArgs(args)
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(versionString()),
		fang.WithCommit(Commit),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		return 1
	}
	return 0
}

func versionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, committed: %s)", Version, Commit, CommitTime)
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:   "fbh",
		Short: "Build and run flatpak applications from their source tree",
		Long: titleStyle.Render("fbh") + ` builds the last module of a flatpak manifest with its own build
system inside the SDK sandbox, and runs the result with host fonts,
accessibility and portals wired in.

Dependencies are prepared once by flatpak-builder; later builds only
rerun the final module.`,
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().CountVarP(&a.verbose, "verbose", "v", "increase log output (-v basic, -vv full)")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/fbh/config.yaml)")

	root.AddCommand(a.buildCommand(), a.runCommand(), a.planCommand(), a.historyCommand())
	return root
}

// session bundles what every subcommand needs for one project root.
type session struct {
	cfg     config.Config
	logger  *log.Logger
	manager *manager.Manager
}

func (a *app) open(root string) (*session, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	if a.verbose > 0 {
		level = config.LevelFromCount(a.verbose)
	}
	logger, err := config.NewLogger(a.stderr, level)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Load(root)
	if err != nil {
		return nil, err
	}
	logger.Debug("manifest loaded", "path", m.ManifestPath, "id", m.ID, "module", m.Module().Name)
	mgr, err := manager.New(m, manager.Options{
		Tools:     cfg.Tools(),
		Runner:    command.ExecRunner{},
		Logger:    logger,
		Out:       a.stdout,
		EnvPrefix: cfg.EnvPrefix,
		History:   cfg.History,
	})
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, manager: mgr}, nil
}

func rootArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func (a *app) buildCommand() *cobra.Command {
	var opts manager.BuildOptions
	cmd := &cobra.Command{
		Use:   "build [root]",
		Short: "Build the application into .flatpak/repo",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(rootArg(args))
			if err != nil {
				return err
			}
			defer s.manager.Close()
			if err := s.cfg.Tools().Check(cmd.Context()); err != nil {
				return err
			}
			rec, err := s.manager.Build(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s %s\n", statusStyle(rec.Status).Render(rec.Status), s.manager.Manifest().RepoDir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Rebuild, "rebuild", false, "skip configure steps of the final module")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "build even if the repo directory exists")
	return cmd
}

func (a *app) runCommand() *cobra.Command {
	var opts manager.RunOptions
	cmd := &cobra.Command{
		Use:   "run [root]",
		Short: "Build if needed, then run the application in the sandbox",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(rootArg(args))
			if err != nil {
				return err
			}
			defer s.manager.Close()
			if !opts.DryRun {
				if err := s.cfg.Tools().Check(cmd.Context()); err != nil {
					return err
				}
			}
			return s.manager.Run(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the launch command without building or running")
	return cmd
}

func (a *app) planCommand() *cobra.Command {
	var opts manager.BuildOptions
	cmd := &cobra.Command{
		Use:   "plan [root]",
		Short: "Print the commands a build would run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(rootArg(args))
			if err != nil {
				return err
			}
			defer s.manager.Close()
			specs, err := s.manager.Plan(opts)
			if err != nil {
				return err
			}
			for i, spec := range specs {
				fmt.Fprintf(a.stdout, "%s %s\n", indexStyle.Render(fmt.Sprintf("%2d.", i+1)), spec.String())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Rebuild, "rebuild", false, "plan without configure steps")
	return cmd
}

func (a *app) historyCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [root]",
		Short: "List recent builds of the project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(rootArg(args))
			if err != nil {
				return err
			}
			defer s.manager.Close()
			builds, err := s.manager.History(limit)
			if err != nil {
				return err
			}
			if len(builds) == 0 {
				fmt.Fprintln(a.stdout, mutedStyle.Render("no builds recorded"))
				return nil
			}
			for _, b := range builds {
				line := fmt.Sprintf("%s  %-9s  %s  steps=%d", b.BuildID, statusStyle(b.Status).Render(b.Status), b.StartedAt, b.Steps)
				if b.Rebuild {
					line += "  rebuild"
				}
				if b.LastError != "" {
					line += "  " + failureStyle.Render(b.LastError)
				}
				fmt.Fprintln(a.stdout, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of builds to list")
	return cmd
}
