package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fpp-125/fbh/internal/command"
	"github.com/fpp-125/fbh/internal/executor"
	"github.com/fpp-125/fbh/internal/flatpak"
	"github.com/fpp-125/fbh/internal/launcher"
	"github.com/fpp-125/fbh/internal/logs"
	"github.com/fpp-125/fbh/internal/manifest"
	"github.com/fpp-125/fbh/internal/planner"
	store "github.com/fpp-125/fbh/internal/store/sqlite"
)

const stateDirName = "fbh"

var ErrHistoryDisabled = errors.New("build history is disabled")

type Options struct {
	Tools  flatpak.Tools
	Runner command.Runner
	Logger *log.Logger
	// Out receives dry-run output and the application's stdout.
	Out io.Writer
	// EnvPrefix forwards matching host variables into build commands.
	EnvPrefix string
	// History records builds in a sqlite database under the build dir.
	History bool
	// Launcher overrides the default launcher, mainly for tests.
	Launcher *launcher.Launcher
	// CPUCount overrides the parallelism used for make.
	CPUCount func() int
}

type Manager struct {
	manifest *manifest.Manifest
	opts     Options
	logger   *log.Logger
	stateDir string
	store    *store.Store
	launcher *launcher.Launcher
}

type BuildOptions struct {
	// Rebuild skips configure steps of the final module.
	Rebuild bool
	// Force builds even when the repo directory already exists.
	Force bool
}

type RunOptions struct {
	// DryRun prints the launch command instead of building and running.
	DryRun bool
}

func New(m *manifest.Manifest, opts Options) (*Manager, error) {
	if opts.Runner == nil {
		opts.Runner = command.ExecRunner{}
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	mgr := &Manager{
		manifest: m,
		opts:     opts,
		logger:   logger,
		stateDir: filepath.Join(m.BuildDir, stateDirName),
		launcher: opts.Launcher,
	}
	if mgr.launcher == nil {
		mgr.launcher = launcher.New(opts.Tools, opts.Runner, logger)
		mgr.launcher.Out = opts.Out
	}
	if opts.History {
		s, err := store.Open(mgr.stateDir)
		if err != nil {
			return nil, fmt.Errorf("open build history: %w", err)
		}
		mgr.store = s
	}
	return mgr, nil
}

func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	return m.store.Close()
}

func (m *Manager) Manifest() *manifest.Manifest { return m.manifest }

// Plan returns every command Build would run for opts when it does not skip:
// the sandbox and dependency preparation for a fresh build directory, then
// the final module's build commands.
func (m *Manager) Plan(opts BuildOptions) ([]command.Spec, error) {
	mf := m.manifest
	initialized := mf.IsInitialized()
	rebuild := opts.Rebuild || initialized
	moduleSpecs, err := planner.Plan(mf, rebuild, planner.Options{
		Tools:     m.opts.Tools,
		CPUCount:  m.opts.CPUCount,
		EnvPrefix: m.opts.EnvPrefix,
	})
	if err != nil {
		return nil, err
	}
	if initialized {
		return moduleSpecs, nil
	}

	s := mf.Schema
	target := mf.Module().Name
	specs := []command.Spec{
		m.opts.Tools.BuildInit(mf.RepoDir, mf.ID, s.SDK, s.Runtime, s.RuntimeVersion),
		m.opts.Tools.Dependencies(flatpak.DownloadDependencies, mf.StateDir, target, mf.RepoDir, mf.ManifestPath),
		m.opts.Tools.Dependencies(flatpak.BuildDependencies, mf.StateDir, target, mf.RepoDir, mf.ManifestPath),
	}
	return append(specs, moduleSpecs...), nil
}

// Build brings the repo directory up to date. An existing repo directory is
// taken as a finished build unless opts.Force is set.
func (m *Manager) Build(ctx context.Context, opts BuildOptions) (store.BuildRecord, error) {
	mf := m.manifest
	digest, err := mf.Digest()
	if err != nil {
		return store.BuildRecord{}, err
	}
	buildID := makeBuildID()
	rec := store.BuildRecord{
		BuildID:        buildID,
		AppID:          mf.ID,
		ManifestPath:   mf.ManifestPath,
		ManifestDigest: digest,
		BuildSystem:    mf.Module().BuildSystem.String(),
		Rebuild:        opts.Rebuild,
		Status:         store.StatusRunning,
		StartedAt:      time.Now().UTC().Format(time.RFC3339Nano),
	}

	if mf.RepoExists() && !opts.Force {
		m.logger.Info("repo already exists, skipping build", "repo", mf.RepoDir)
		rec.Status = store.StatusSkipped
		rec.EndedAt = rec.StartedAt
		if m.store != nil {
			if err := m.store.InsertBuild(rec); err != nil {
				return rec, err
			}
		}
		m.event(buildID, logs.Event{Phase: "build.skip", Message: "repo already exists"})
		return rec, nil
	}

	specs, err := m.Plan(opts)
	if err != nil {
		return rec, err
	}
	rec.Rebuild = opts.Rebuild || mf.IsInitialized()
	if m.store != nil {
		if err := m.store.InsertBuild(rec); err != nil {
			return rec, err
		}
	}
	m.event(buildID, logs.Event{Phase: "build.start", Message: fmt.Sprintf("%d commands, digest %s", len(specs), digest)})

	exec := executor.New(m.opts.Runner, m.logger)
	exec.Observe = func(s executor.Step) { m.recordStep(buildID, s) }
	runErr := exec.Run(ctx, specs)

	rec.Steps = len(specs)
	rec.Status = store.StatusSucceeded
	if runErr != nil {
		rec.Status = store.StatusFailed
		rec.LastError = runErr.Error()
		var bf *executor.BuildFailedError
		if errors.As(runErr, &bf) {
			rec.Steps = bf.Index + 1
		}
		m.event(buildID, logs.Event{Phase: "build.failed", Message: "build failed", Error: rec.LastError})
	} else {
		m.event(buildID, logs.Event{Phase: "build.done", Message: "build finished"})
	}
	rec.EndedAt = time.Now().UTC().Format(time.RFC3339Nano)
	if m.store != nil {
		if err := m.store.UpdateBuildCompletion(buildID, rec.Status, rec.Steps, rec.LastError); err != nil {
			m.logger.Warn("update build history", "err", err)
		}
	}
	return rec, runErr
}

// Run builds if needed and launches the application. With DryRun only the
// launch command is printed.
func (m *Manager) Run(ctx context.Context, opts RunOptions) error {
	if opts.DryRun {
		args, err := m.launcher.Args(ctx, m.manifest)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(m.opts.Out, m.opts.Tools.Exec(args).String())
		return err
	}
	if _, err := m.Build(ctx, BuildOptions{}); err != nil {
		return err
	}
	return m.launcher.Run(ctx, m.manifest)
}

func (m *Manager) History(limit int) ([]store.BuildRecord, error) {
	if m.store == nil {
		return nil, ErrHistoryDisabled
	}
	return m.store.ListBuilds(limit)
}

func (m *Manager) Steps(buildID string) ([]store.StepRecord, error) {
	if m.store == nil {
		return nil, ErrHistoryDisabled
	}
	return m.store.ListSteps(buildID)
}

func (m *Manager) ReadEvents(buildID string) ([]logs.Event, error) {
	return logs.ReadEvents(m.stateDir, buildID)
}

func (m *Manager) recordStep(buildID string, s executor.Step) {
	line := s.Spec.String()
	code := s.Result.ExitCode
	ev := logs.Event{
		Phase:    "step",
		Step:     s.Index + 1,
		Command:  line,
		ExitCode: &code,
		Duration: s.Duration.String(),
		Message:  fmt.Sprintf("step %d/%d", s.Index+1, s.Total),
	}
	if s.Err != nil {
		ev.Error = s.Err.Error()
	}
	m.event(buildID, ev)
	if m.store != nil {
		if err := m.store.InsertStep(store.StepRecord{
			BuildID:    buildID,
			Index:      s.Index,
			Command:    line,
			ExitCode:   &code,
			DurationMS: s.Duration.Milliseconds(),
		}); err != nil {
			m.logger.Warn("record build step", "err", err)
		}
	}
}

func (m *Manager) event(buildID string, e logs.Event) {
	if err := logs.AppendEvent(m.stateDir, buildID, e); err != nil {
		m.logger.Warn("append build event", "err", err)
	}
}

func makeBuildID() string {
	now := time.Now().UTC()
	return now.Format("20060102t150405") + fmt.Sprintf("%09d", now.Nanosecond())
}
