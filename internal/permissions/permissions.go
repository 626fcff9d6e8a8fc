// Package permissions compiles the sandbox permission flags used when the
// built application is launched.
package permissions

import (
	"fmt"
	"os"
	"strings"
)

// reservedFinishArgs are derived from build-init state and must not be
// passed twice.
var reservedFinishArgs = map[string]bool{
	"--metadata":        true,
	"--require-version": true,
}

// HostEnvAllowlist is the set of desktop-session variables forwarded to the
// application when they are set on the host.
var HostEnvAllowlist = []string{
	"COLORTERM",
	"DESKTOP_SESSION",
	"LANG",
	"WAYLAND_DISPLAY",
	"XDG_CURRENT_DESKTOP",
	"XDG_SEAT",
	"XDG_SESSION_DESKTOP",
	"XDG_SESSION_ID",
	"XDG_SESSION_TYPE",
	"XDG_VTNR",
	"AT_SPI_BUS_ADDRESS",
}

// RunGrants are always added after the manifest's finish-args.
var RunGrants = []string{
	"--talk-name=org.freedesktop.portal.*",
	"--talk-name=org.a11y.Bus",
}

const ShareNetwork = "--share=network"

// FilterFinishArgs drops entries whose key, the part before the first '=',
// is --metadata or --require-version.
func FilterFinishArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		key, _, _ := strings.Cut(a, "=")
		if reservedFinishArgs[key] {
			continue
		}
		out = append(out, a)
	}
	return out
}

// RunPrefix opens every launch: app-dir mode, devel permissions and the
// document portal mounted for appID.
func RunPrefix(uid int, appID string) []string {
	return []string{
		"build",
		"--with-appdir",
		"--allow=devel",
		fmt.Sprintf("--bind-mount=/run/user/%d/doc=/run/user/%d/doc/by-app/%s", uid, uid, appID),
	}
}

// HostEnv forwards the allow-listed variables that are set and non-empty.
// A nil lookup reads the process environment.
func HostEnv(lookup func(string) string) []string {
	if lookup == nil {
		lookup = os.Getenv
	}
	var out []string
	for _, name := range HostEnvAllowlist {
		if v := lookup(name); v != "" {
			out = append(out, fmt.Sprintf("--env=%s=%s", name, v))
		}
	}
	return out
}
