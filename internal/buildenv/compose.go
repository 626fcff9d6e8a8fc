// Package buildenv computes the --env overrides passed to the sandboxed
// build commands.
package buildenv

import (
	"fmt"
	"os"
	"sort"
	"strings"

	v1 "github.com/fpp-125/fbh/internal/manifest/schema/v1"
)

// Lookup returns the host value of an environment variable, or "" when unset.
type Lookup func(name string) string

// HostLookup reads the process environment.
func HostLookup(name string) string { return os.Getenv(name) }

// Variable is a colon-separated search path with its sandbox defaults and the
// build-option fields that extend it.
type Variable struct {
	Name     string
	Defaults []string
	Prepend  func(*v1.BuildOption) string
	Append   func(*v1.BuildOption) string
}

var wellKnown = []Variable{
	{
		Name:     "PATH",
		Defaults: []string{"/app/bin", "/usr/bin"},
		Prepend:  func(o *v1.BuildOption) string { return o.PrependPath },
		Append:   func(o *v1.BuildOption) string { return o.AppendPath },
	},
	{
		Name:     "LD_LIBRARY_PATH",
		Defaults: []string{"/app/lib"},
		Prepend:  func(o *v1.BuildOption) string { return o.PrependLdLibraryPath },
		Append:   func(o *v1.BuildOption) string { return o.AppendLdLibraryPath },
	},
	{
		Name:     "PKG_CONFIG_PATH",
		Defaults: []string{"/app/lib/pkgconfig", "/app/share/pkgconfig", "/usr/lib/pkgconfig", "/usr/share/pkgconfig"},
		Prepend:  func(o *v1.BuildOption) string { return o.PrependPkgConfigPath },
		Append:   func(o *v1.BuildOption) string { return o.AppendPkgConfigPath },
	},
}

// WellKnown returns PATH, LD_LIBRARY_PATH and PKG_CONFIG_PATH in that order.
func WellKnown() []Variable {
	return append([]Variable(nil), wellKnown...)
}

// Compose merges, in order: manifest prepend, module prepend, host value,
// defaults, manifest append, module append. Empty entries are dropped.
func Compose(v Variable, manifestOpt, moduleOpt *v1.BuildOption, lookup Lookup) string {
	if lookup == nil {
		lookup = HostLookup
	}
	parts := make([]string, 0, len(v.Defaults)+5)
	parts = append(parts, field(v.Prepend, manifestOpt), field(v.Prepend, moduleOpt), lookup(v.Name))
	parts = append(parts, v.Defaults...)
	parts = append(parts, field(v.Append, manifestOpt), field(v.Append, moduleOpt))

	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return fmt.Sprintf("--env=%s=%s", v.Name, strings.Join(kept, ":"))
}

// ComposeAll applies Compose to every well-known variable.
func ComposeAll(manifestOpt, moduleOpt *v1.BuildOption, lookup Lookup) []string {
	out := make([]string, 0, len(wellKnown))
	for _, v := range wellKnown {
		out = append(out, Compose(v, manifestOpt, moduleOpt, lookup))
	}
	return out
}

// Declared turns a build-options env map into --env tokens, sorted by name.
func Declared(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("--env=%s=%s", k, env[k]))
	}
	return out
}

// HostPassthrough forwards every variable in environ whose name starts with
// prefix. An empty prefix forwards nothing.
func HostPassthrough(prefix string, environ []string) []string {
	if prefix == "" {
		return nil
	}
	var out []string
	for _, kv := range environ {
		name, _, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		out = append(out, "--env="+kv)
	}
	sort.Strings(out)
	return out
}

func field(get func(*v1.BuildOption) string, o *v1.BuildOption) string {
	if o == nil || get == nil {
		return ""
	}
	return get(o)
}
