// Package planner turns the target module of a manifest into the ordered
// list of commands that configure, compile and install it inside the
// flatpak build sandbox.
package planner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"

	"github.com/fpp-125/fbh/internal/buildenv"
	"github.com/fpp-125/fbh/internal/command"
	"github.com/fpp-125/fbh/internal/flatpak"
	"github.com/fpp-125/fbh/internal/manifest"
	v1 "github.com/fpp-125/fbh/internal/manifest/schema/v1"
	"github.com/tklauser/numcpus"
)

// BuildDirName is the out-of-tree build directory used by cmake and meson,
// relative to the project root.
const BuildDirName = "_build"

const installPrefix = "/app"

var (
	ErrNoBuildSystem          = fmt.Errorf("%w: target module has no buildsystem", manifest.ErrManifestInvalid)
	ErrUnsupportedBuildSystem = errors.New("unsupported buildsystem")
	ErrNoBuildCommands        = errors.New("buildsystem is simple but build-commands is empty")
)

type Options struct {
	Tools flatpak.Tools
	// CPUCount feeds `make -j`. Nil uses the host's online logical CPUs.
	CPUCount func() int
	// Lookup reads host variables for the well-known search paths. Nil reads
	// the process environment.
	Lookup buildenv.Lookup
	// EnvPrefix forwards host variables starting with it into every build
	// command. Empty disables forwarding.
	EnvPrefix string
	// Environ is scanned for EnvPrefix. Nil uses os.Environ.
	Environ []string
}

// plan carries what every build-system strategy shares.
type plan struct {
	m          *manifest.Manifest
	tools      flatpak.Tools
	buildArgs  []string
	configOpts []string
	rebuild    bool
	cpus       func() int
}

// Plan returns the commands for the target module. With rebuild set the
// configure step is left out; compile and install steps are always present.
func Plan(m *manifest.Manifest, rebuild bool, opts Options) ([]command.Spec, error) {
	module := m.Module()
	if !module.BuildSystem.Valid() {
		return nil, fmt.Errorf("module %s: %w", module.Name, ErrNoBuildSystem)
	}

	p := plan{
		m:          m,
		tools:      opts.Tools,
		buildArgs:  sharedBuildArgs(m, module, opts),
		configOpts: mergedConfigOpts(m, module),
		rebuild:    rebuild,
		cpus:       opts.CPUCount,
	}
	if p.cpus == nil {
		p.cpus = LogicalCPUs
	}

	switch module.BuildSystem {
	case v1.BuildSystemAutotools:
		return p.autotools(), nil
	case v1.BuildSystemCmake, v1.BuildSystemCmakeNinja:
		return p.cmake(), nil
	case v1.BuildSystemMeson:
		return p.meson(), nil
	case v1.BuildSystemSimple:
		if len(module.BuildCommands) == 0 {
			return nil, fmt.Errorf("module %s: %w", module.Name, ErrNoBuildCommands)
		}
		return p.simple(module.BuildCommands), nil
	case v1.BuildSystemQmake:
		return nil, fmt.Errorf("%w: %s is not implemented yet", ErrUnsupportedBuildSystem, module.BuildSystem)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBuildSystem, module.BuildSystem)
	}
}

// sharedBuildArgs lists the sandbox flags common to every build command:
// network and filesystem grants, declared env (manifest then module), the
// composed search paths and any forwarded host variables.
func sharedBuildArgs(m *manifest.Manifest, module v1.Module, opts Options) []string {
	args := []string{
		"--share=network",
		"--filesystem=" + m.RootDir,
		"--filesystem=" + m.RepoDir,
	}
	args = append(args, buildenv.Declared(m.Schema.BuildOptions.GetEnv())...)
	args = append(args, buildenv.Declared(module.BuildOptions.GetEnv())...)
	args = append(args, buildenv.ComposeAll(m.Schema.BuildOptions, module.BuildOptions, opts.Lookup)...)

	environ := opts.Environ
	if environ == nil && opts.EnvPrefix != "" {
		environ = os.Environ()
	}
	args = append(args, buildenv.HostPassthrough(opts.EnvPrefix, environ)...)
	return args
}

// mergedConfigOpts puts module options before manifest-level ones.
func mergedConfigOpts(m *manifest.Manifest, module v1.Module) []string {
	out := append([]string(nil), module.ConfigOpts...)
	out = append(out, module.BuildOptions.GetConfigOpts()...)
	return append(out, m.Schema.BuildOptions.GetConfigOpts()...)
}

// sandboxed builds a `flatpak build` command running in the project root.
func (p plan) sandboxed(extraArgs []string, program string, args ...string) command.Spec {
	buildArgs := append(append([]string(nil), p.buildArgs...), extraArgs...)
	s := p.tools.Build(p.m.RepoDir, buildArgs, program, args...)
	s.Dir = p.m.RootDir
	return s
}

func (p plan) autotools() []command.Spec {
	var out []command.Spec
	if !p.rebuild {
		args := append([]string{"--prefix=" + installPrefix}, p.configOpts...)
		out = append(out, p.sandboxed(nil, "./configure", args...))
	}
	out = append(out,
		p.sandboxed(nil, "make", "-p", "-n", "-s"),
		p.sandboxed(nil, "make", "V=0", fmt.Sprintf("-j%d", p.cpus()), "install"),
	)
	return out
}

func (p plan) buildDir() (string, []string) {
	dir := filepath.Join(p.m.RootDir, BuildDirName)
	return dir, []string{"--filesystem=" + dir}
}

func (p plan) cmake() []command.Spec {
	dir, grant := p.buildDir()
	inBuildDir := func(s command.Spec) command.Spec {
		s.Dir = dir
		return s
	}

	var out []command.Spec
	if !p.rebuild {
		out = append(out, command.Spec{Program: "mkdir", Args: []string{"-p", dir}, Dir: p.m.RootDir})
		args := []string{
			"-G", "Ninja", "..", ".",
			"-DCMAKE_EXPORT_COMPILE_COMMANDS=1",
			"-DCMAKE_BUILD_TYPE=RelWithDebInfo",
			"-DCMAKE_INSTALL_PREFIX=" + installPrefix,
		}
		args = append(args, p.configOpts...)
		out = append(out, inBuildDir(p.sandboxed(grant, "cmake", args...)))
	}
	out = append(out,
		inBuildDir(p.sandboxed(grant, "ninja")),
		inBuildDir(p.sandboxed(grant, "ninja", "install")),
	)
	return out
}

func (p plan) meson() []command.Spec {
	_, grant := p.buildDir()

	var out []command.Spec
	if !p.rebuild {
		args := append([]string{"--prefix", installPrefix, BuildDirName}, p.configOpts...)
		out = append(out, p.sandboxed(grant, "meson", args...))
	}
	out = append(out,
		p.sandboxed(grant, "ninja", "-C", BuildDirName),
		p.sandboxed(grant, "ninja", "install", "-C", BuildDirName),
	)
	return out
}

// simple emits one command per declared line, split on single spaces
// without any shell interpretation.
func (p plan) simple(lines []string) []command.Spec {
	out := make([]command.Spec, 0, len(lines))
	for _, line := range lines {
		tokens := strings.Split(line, " ")
		out = append(out, p.sandboxed(nil, tokens[0], tokens[1:]...))
	}
	return out
}

// LogicalCPUs returns the number of online logical CPUs.
func LogicalCPUs() int {
	n, err := numcpus.GetOnline()
	if err != nil || n < 1 {
		return goruntime.NumCPU()
	}
	return n
}
