package v1

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// BuildOption carries the build-options block of a manifest or module. A nil
// *BuildOption is valid everywhere and reads as all-empty.
type BuildOption struct {
	BuildArgs            []string          `yaml:"build-args,omitempty" json:"build-args,omitempty"`
	PrependPath          string            `yaml:"prepend-path,omitempty" json:"prepend-path,omitempty"`
	AppendPath           string            `yaml:"append-path,omitempty" json:"append-path,omitempty"`
	PrependLdLibraryPath string            `yaml:"prepend-ld-library-path,omitempty" json:"prepend-ld-library-path,omitempty"`
	AppendLdLibraryPath  string            `yaml:"append-ld-library-path,omitempty" json:"append-ld-library-path,omitempty"`
	PrependPkgConfigPath string            `yaml:"prepend-pkg-config-path,omitempty" json:"prepend-pkg-config-path,omitempty"`
	AppendPkgConfigPath  string            `yaml:"append-pkg-config-path,omitempty" json:"append-pkg-config-path,omitempty"`
	Env                  map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	ConfigOpts           []string          `yaml:"config-opts,omitempty" json:"config-opts,omitempty"`
}

// buildOptionFields has the same layout as BuildOption without its decoders.
type buildOptionFields BuildOption

func (o *BuildOption) GetBuildArgs() []string {
	if o == nil {
		return nil
	}
	return o.BuildArgs
}

func (o *BuildOption) GetEnv() map[string]string {
	if o == nil {
		return nil
	}
	return o.Env
}

func (o *BuildOption) GetConfigOpts() []string {
	if o == nil {
		return nil
	}
	return o.ConfigOpts
}

// UnmarshalJSON accepts the single object flatpak-builder documents as well
// as a list of objects, which is folded into one option.
func (o *BuildOption) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		var list []buildOptionFields
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return fmt.Errorf("build-options: %w", err)
		}
		*o = fold(list)
		return nil
	}
	var single buildOptionFields
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return fmt.Errorf("build-options: %w", err)
	}
	*o = BuildOption(single)
	return nil
}

func (o *BuildOption) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var list []buildOptionFields
		if err := value.Decode(&list); err != nil {
			return fmt.Errorf("build-options: %w", err)
		}
		*o = fold(list)
		return nil
	case yaml.MappingNode:
		var single buildOptionFields
		if err := value.Decode(&single); err != nil {
			return fmt.Errorf("build-options: %w", err)
		}
		*o = BuildOption(single)
		return nil
	default:
		return fmt.Errorf("line %d: build-options must be a mapping or a list of mappings", value.Line)
	}
}

// fold merges options in order: lists concatenate, later non-empty strings
// and env keys win.
func fold(list []buildOptionFields) BuildOption {
	var out BuildOption
	for _, item := range list {
		out.BuildArgs = append(out.BuildArgs, item.BuildArgs...)
		out.ConfigOpts = append(out.ConfigOpts, item.ConfigOpts...)
		pick(&out.PrependPath, item.PrependPath)
		pick(&out.AppendPath, item.AppendPath)
		pick(&out.PrependLdLibraryPath, item.PrependLdLibraryPath)
		pick(&out.AppendLdLibraryPath, item.AppendLdLibraryPath)
		pick(&out.PrependPkgConfigPath, item.PrependPkgConfigPath)
		pick(&out.AppendPkgConfigPath, item.AppendPkgConfigPath)
		for k, v := range item.Env {
			if out.Env == nil {
				out.Env = make(map[string]string, len(item.Env))
			}
			out.Env[k] = v
		}
	}
	return out
}

func pick(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
