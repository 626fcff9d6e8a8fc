package v1

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrManifestInvalid marks manifests that cannot be built: no id, no modules,
// or a target module without a build system.
var ErrManifestInvalid = errors.New("invalid manifest")

type BuildSystem int

const (
	BuildSystemAutotools BuildSystem = iota + 1
	BuildSystemCmake
	BuildSystemCmakeNinja
	BuildSystemMeson
	BuildSystemSimple
	BuildSystemQmake
)

var buildSystemNames = map[BuildSystem]string{
	BuildSystemAutotools:  "autotools",
	BuildSystemCmake:      "cmake",
	BuildSystemCmakeNinja: "cmake-ninja",
	BuildSystemMeson:      "meson",
	BuildSystemSimple:     "simple",
	BuildSystemQmake:      "qmake",
}

type SourceType int

const (
	SourceArchive SourceType = iota + 1
	SourceGit
	SourceBzr
	SourceSvn
	SourceDir
	SourceFile
	SourceScript
	SourceInline
	SourceShell
	SourcePatch
	SourceExtraData
)

var sourceTypeNames = map[SourceType]string{
	SourceArchive:   "archive",
	SourceGit:       "git",
	SourceBzr:       "bzr",
	SourceSvn:       "svn",
	SourceDir:       "dir",
	SourceFile:      "file",
	SourceScript:    "script",
	SourceInline:    "inline",
	SourceShell:     "shell",
	SourcePatch:     "patch",
	SourceExtraData: "extra-data",
}

type ManifestSchema struct {
	ID             string       `yaml:"id" json:"id"`
	Branch         string       `yaml:"branch,omitempty" json:"branch,omitempty"`
	AppID          string       `yaml:"app-id,omitempty" json:"app-id,omitempty"`
	Modules        []Module     `yaml:"modules" json:"modules"`
	SDK            string       `yaml:"sdk" json:"sdk"`
	Runtime        string       `yaml:"runtime" json:"runtime"`
	RuntimeVersion string       `yaml:"runtime-version" json:"runtime-version"`
	SDKExtensions  []string     `yaml:"sdk-extensions,omitempty" json:"sdk-extensions,omitempty"`
	Command        string       `yaml:"command" json:"command"`
	FinishArgs     []string     `yaml:"finish-args,omitempty" json:"finish-args,omitempty"`
	BuildOptions   *BuildOption `yaml:"build-options,omitempty" json:"build-options,omitempty"`
	RunArgs        []string     `yaml:"x-run-args,omitempty" json:"x-run-args,omitempty"`
}

type Module struct {
	Name          string       `yaml:"name" json:"name"`
	BuildSystem   BuildSystem  `yaml:"buildsystem,omitempty" json:"buildsystem,omitempty"`
	ConfigOpts    []string     `yaml:"config-opts,omitempty" json:"config-opts,omitempty"`
	Sources       []Source     `yaml:"sources,omitempty" json:"sources,omitempty"`
	BuildCommands []string     `yaml:"build-commands,omitempty" json:"build-commands,omitempty"`
	BuildOptions  *BuildOption `yaml:"build-options,omitempty" json:"build-options,omitempty"`
	PostInstall   []string     `yaml:"post-install,omitempty" json:"post-install,omitempty"`
}

type Source struct {
	Type   SourceType `yaml:"type" json:"type"`
	URL    string     `yaml:"url,omitempty" json:"url,omitempty"`
	Path   string     `yaml:"path,omitempty" json:"path,omitempty"`
	Tag    string     `yaml:"tag,omitempty" json:"tag,omitempty"`
	Commit string     `yaml:"commit,omitempty" json:"commit,omitempty"`
	SHA256 string     `yaml:"sha256,omitempty" json:"sha256,omitempty"`
}

// Target returns the module the helper builds itself. Every module before it
// is a dependency handled by flatpak-builder.
func (s ManifestSchema) Target() (Module, bool) {
	if len(s.Modules) == 0 {
		return Module{}, false
	}
	return s.Modules[len(s.Modules)-1], true
}

func (b BuildSystem) String() string {
	if name, ok := buildSystemNames[b]; ok {
		return name
	}
	return ""
}

// Valid reports whether b is one of the declared build systems. The zero
// value means the module did not declare one.
func (b BuildSystem) Valid() bool {
	_, ok := buildSystemNames[b]
	return ok
}

func ParseBuildSystem(v string) (BuildSystem, error) {
	for b, name := range buildSystemNames {
		if name == v {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown buildsystem %q (want one of %s)", v, strings.Join(BuildSystemNames(), ","))
}

// BuildSystemNames lists the accepted spellings in declaration order.
func BuildSystemNames() []string {
	out := make([]string, 0, len(buildSystemNames))
	for b := BuildSystemAutotools; b <= BuildSystemQmake; b++ {
		out = append(out, buildSystemNames[b])
	}
	return out
}

func (b BuildSystem) MarshalText() ([]byte, error) {
	if b == 0 {
		return []byte{}, nil
	}
	if !b.Valid() {
		return nil, fmt.Errorf("invalid buildsystem value %d", int(b))
	}
	return []byte(b.String()), nil
}

func (b *BuildSystem) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*b = 0
		return nil
	}
	parsed, err := ParseBuildSystem(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

func (b *BuildSystem) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: buildsystem must be a string", value.Line)
	}
	return b.UnmarshalText([]byte(value.Value))
}

func (t SourceType) String() string {
	if name, ok := sourceTypeNames[t]; ok {
		return name
	}
	return ""
}

func ParseSourceType(v string) (SourceType, error) {
	for t, name := range sourceTypeNames {
		if name == v {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown source type %q", v)
}

func (t SourceType) MarshalText() ([]byte, error) {
	name, ok := sourceTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("invalid source type value %d", int(t))
	}
	return []byte(name), nil
}

func (t *SourceType) UnmarshalText(text []byte) error {
	parsed, err := ParseSourceType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t *SourceType) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: source type must be a string", value.Line)
	}
	return t.UnmarshalText([]byte(value.Value))
}
