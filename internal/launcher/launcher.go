// Package launcher starts a built application inside the flatpak sandbox
// with desktop integration: fonts, accessibility, portals and session env.
package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"

	"github.com/fpp-125/fbh/internal/command"
	"github.com/fpp-125/fbh/internal/flatpak"
	"github.com/fpp-125/fbh/internal/manifest"
	"github.com/fpp-125/fbh/internal/permissions"
)

type Launcher struct {
	Tools  flatpak.Tools
	Runner command.Runner
	Logger *log.Logger
	// Out receives the application's captured stdout after a successful run.
	Out io.Writer
	// UID defaults to the real user id of the process.
	UID func() int
	// Lookup reads host environment variables; nil means os.Getenv.
	Lookup func(string) string
	// Fonts overrides the font locations; nil means DefaultFontLocations.
	Fonts *FontLocations
}

func New(tools flatpak.Tools, runner command.Runner, logger *log.Logger) *Launcher {
	return &Launcher{
		Tools:  tools,
		Runner: runner,
		Logger: logger,
		Out:    os.Stdout,
		UID:    unix.Getuid,
		Lookup: os.Getenv,
	}
}

// Args assembles the full flatpak argument list for launching m without
// running it. Font and accessibility arguments are resolved once per
// manifest value.
func (l *Launcher) Args(ctx context.Context, m *manifest.Manifest) ([]string, error) {
	a11y, err := m.A11yBusArgs(func() ([]string, error) {
		return ResolveA11yBus(ctx, l.Runner, l.Tools)
	})
	if err != nil {
		return nil, err
	}
	fonts, err := m.FontsArgs(l.resolveFonts)
	if err != nil {
		return nil, err
	}

	uid := unix.Getuid
	if l.UID != nil {
		uid = l.UID
	}
	var args []string
	args = append(args, permissions.RunPrefix(uid(), m.ID)...)
	args = append(args, permissions.FilterFinishArgs(m.Schema.FinishArgs)...)
	args = append(args, permissions.RunGrants...)
	args = append(args, a11y...)
	args = append(args, permissions.HostEnv(l.Lookup)...)
	args = append(args, permissions.ShareNetwork)
	args = append(args, fonts...)
	args = append(args, m.RepoDir, m.Schema.Command)
	args = append(args, m.Schema.RunArgs...)
	return args, nil
}

// Run launches the application and waits for it to exit.
func (l *Launcher) Run(ctx context.Context, m *manifest.Manifest) error {
	args, err := l.Args(ctx, m)
	if err != nil {
		return err
	}
	spec := l.Tools.Exec(args)
	l.logger().Info("launching", "app", m.ID, "command", m.Schema.Command)
	l.logger().Debug("flatpak", "cmd", spec.String())

	res, err := l.Runner.Run(ctx, spec)
	if err == nil && res.ExitCode != 0 {
		err = &command.ExitError{Spec: spec, Result: res}
	}
	if err != nil {
		if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
			l.logger().Error("application stderr", "output", stderr)
		}
		return fmt.Errorf("run %s: %w", m.ID, err)
	}
	if l.Out != nil && res.Stdout != "" {
		if _, err := io.WriteString(l.Out, res.Stdout); err != nil {
			return fmt.Errorf("write application output: %w", err)
		}
	}
	return nil
}

func (l *Launcher) resolveFonts() ([]string, error) {
	if l.Fonts != nil {
		return ResolveFonts(*l.Fonts)
	}
	loc, err := DefaultFontLocations()
	if err != nil {
		return nil, err
	}
	return ResolveFonts(loc)
}

func (l *Launcher) logger() *log.Logger {
	if l.Logger == nil {
		l.Logger = log.New(io.Discard)
	}
	return l.Logger
}
