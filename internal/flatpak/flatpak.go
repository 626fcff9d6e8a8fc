// Package flatpak builds invocations of the flatpak, flatpak-builder and
// gdbus command line tools.
package flatpak

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/fpp-125/fbh/internal/command"
)

const (
	DefaultFlatpak = "flatpak"
	DefaultBuilder = "flatpak-builder"
	DefaultGdbus   = "gdbus"
)

// Tools names the binaries to invoke. Empty fields fall back to the defaults.
type Tools struct {
	Flatpak string
	Builder string
	Gdbus   string
}

func DefaultTools() Tools {
	return Tools{Flatpak: DefaultFlatpak, Builder: DefaultBuilder, Gdbus: DefaultGdbus}
}

func (t Tools) flatpak() string { return orDefault(t.Flatpak, DefaultFlatpak) }
func (t Tools) builder() string { return orDefault(t.Builder, DefaultBuilder) }
func (t Tools) gdbus() string { return orDefault(t.Gdbus, DefaultGdbus) }

// Check fails when flatpak or flatpak-builder is not on PATH.
func (t Tools) Check(_ context.Context) error {
	var missing []string
	for _, bin := range []string{t.flatpak(), t.builder()} {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required tools not found on PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}

// BuildInit prepares the repo directory for the application.
func (t Tools) BuildInit(repo, id, sdk, runtime, runtimeVersion string) command.Spec {
	return command.Spec{
		Program: t.flatpak(),
		Args:    []string{"build-init", repo, id, sdk, runtime, runtimeVersion},
	}
}

// Build wraps program in `flatpak build <buildArgs> <repo>`.
func (t Tools) Build(repo string, buildArgs []string, program string, args ...string) command.Spec {
	argv := make([]string, 0, len(buildArgs)+len(args)+3)
	argv = append(argv, "build")
	argv = append(argv, buildArgs...)
	argv = append(argv, repo, program)
	argv = append(argv, args...)
	return command.Spec{Program: t.flatpak(), Args: argv}
}

// Exec runs flatpak with a fully assembled argument list.
func (t Tools) Exec(args []string) command.Spec {
	return command.Spec{Program: t.flatpak(), Args: append([]string(nil), args...)}
}

// DependencyStep selects one of the two flatpak-builder passes run before the
// target module is built by the helper itself.
type DependencyStep int

const (
	DownloadDependencies DependencyStep = iota
	BuildDependencies
)

func (s DependencyStep) String() string {
	if s == BuildDependencies {
		return "build-dependencies"
	}
	return "update-dependencies"
}

// Dependencies runs flatpak-builder up to, but excluding, stopAt.
func (t Tools) Dependencies(step DependencyStep, stateDir, stopAt, repo, manifestPath string) command.Spec {
	args := []string{"--ccache", "--force-clean", "--disable-updates"}
	switch step {
	case DownloadDependencies:
		args = append(args, "--download-only")
	case BuildDependencies:
		args = append(args, "--disable-download", "--build-only", "--keep-build-dirs")
	}
	args = append(args,
		"--state-dir="+stateDir,
		"--stop-at="+stopAt,
		repo,
		manifestPath,
	)
	return command.Spec{Program: t.builder(), Args: args}
}

// A11yBusAddress asks the session bus for the accessibility bus address.
func (t Tools) A11yBusAddress() command.Spec {
	return command.Spec{
		Program: t.gdbus(),
		Args: []string{
			"call",
			"--session",
			"--dest=org.a11y.Bus",
			"--object-path=/org/a11y/bus",
			"--method=org.a11y.Bus.GetAddress",
		},
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
