package launcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/fpp-125/fbh/internal/command"
	"github.com/fpp-125/fbh/internal/command/commandtest"
	"github.com/fpp-125/fbh/internal/flatpak"
	"github.com/fpp-125/fbh/internal/manifest"
	v1 "github.com/fpp-125/fbh/internal/manifest/schema/v1"
)

const busReply = "('unix:path=/run/user/1000/at-spi/bus_0,guid=abc123',)\n"

func testManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	root := t.TempDir()
	m, err := manifest.New(root, v1.ManifestSchema{
		ID:         "org.example.App",
		Command:    "example-app",
		FinishArgs: []string{"--socket=wayland", "--metadata=X-DConf=migrate-path=/org/example/", "--require-version=1.0"},
		RunArgs:    []string{"--verbose"},
		Modules:    []v1.Module{{Name: "app", BuildSystem: v1.BuildSystemMeson}},
	}, filepath.Join(root, "org.example.App.json"))
	if err != nil {
		t.Fatalf("manifest.New() error = %v", err)
	}
	return m
}

func busRunner() *commandtest.Runner {
	return &commandtest.Runner{Respond: func(s command.Spec) command.Result {
		if s.Program == "gdbus" {
			return command.Result{Stdout: busReply}
		}
		return command.Result{Stdout: "hello from sandbox\n"}
	}}
}

func testLauncher(t *testing.T, r command.Runner) (*Launcher, FontLocations) {
	t.Helper()
	dir := t.TempDir()
	loc := FontLocations{
		SystemFonts: filepath.Join(dir, "share-fonts"),
		MappedFile:  filepath.Join(dir, "cache", "font-dirs.xml"),
	}
	if err := os.MkdirAll(loc.SystemFonts, 0o755); err != nil {
		t.Fatal(err)
	}
	env := map[string]string{"LANG": "C.UTF-8", "XDG_SESSION_TYPE": "wayland"}
	l := New(flatpak.DefaultTools(), r, nil)
	l.Out = &bytes.Buffer{}
	l.UID = func() int { return 1000 }
	l.Lookup = func(k string) string { return env[k] }
	l.Fonts = &loc
	return l, loc
}

func TestArgsAssemblyOrder(t *testing.T) {
	m := testManifest(t)
	l, loc := testLauncher(t, busRunner())
	got, err := l.Args(context.Background(), m)
	if err != nil {
		t.Fatalf("Args() error = %v", err)
	}
	want := []string{
		"build",
		"--with-appdir",
		"--allow=devel",
		"--bind-mount=/run/user/1000/doc=/run/user/1000/doc/by-app/org.example.App",
		"--socket=wayland",
		"--talk-name=org.freedesktop.portal.*",
		"--talk-name=org.a11y.Bus",
		"--bind-mount=/run/flatpak/at-spi-bus=/run/user/1000/at-spi/bus_0",
		"--env=AT_SPI_BUS_ADDRESS=unix:path=/run/flatpak/at-spi-bus,guid=abc123",
		"--env=LANG=C.UTF-8",
		"--env=XDG_SESSION_TYPE=wayland",
		"--share=network",
		"--bind-mount=/run/host/fonts=" + loc.SystemFonts,
		"--bind-mount=/run/host/font-dirs.xml=" + loc.MappedFile,
		m.RepoDir,
		"example-app",
		"--verbose",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Args() mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRunQueriesBusOncePerManifest(t *testing.T) {
	m := testManifest(t)
	r := busRunner()
	l, _ := testLauncher(t, r)
	for i := 0; i < 2; i++ {
		if err := l.Run(context.Background(), m); err != nil {
			t.Fatalf("Run() #%d error = %v", i, err)
		}
	}
	want := []string{"gdbus", "flatpak build", "flatpak build"}
	if got := r.Programs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	if out := l.Out.(*bytes.Buffer).String(); strings.Count(out, "hello from sandbox") != 2 {
		t.Fatalf("stdout not forwarded: %q", out)
	}
}

func TestFontsCachedUntilNewManifest(t *testing.T) {
	m := testManifest(t)
	l, loc := testLauncher(t, busRunner())
	first, err := l.Args(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(loc.SystemFonts); err != nil {
		t.Fatal(err)
	}
	again, err := l.Args(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, again) {
		t.Fatal("cached font args changed after the host directory was removed")
	}

	fresh, err := l.Args(context.Background(), testManifest(t))
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range fresh {
		if strings.HasPrefix(a, "--bind-mount=/run/host/fonts=") {
			t.Fatalf("fresh manifest should not mount the removed font dir: %v", fresh)
		}
	}
}

func TestRunFailureCarriesStderr(t *testing.T) {
	m := testManifest(t)
	r := &commandtest.Runner{Respond: func(s command.Spec) command.Result {
		if s.Program == "gdbus" {
			return command.Result{Stdout: busReply}
		}
		return command.Result{ExitCode: 1, Stderr: "error: app crashed"}
	}}
	l, _ := testLauncher(t, r)
	err := l.Run(context.Background(), m)
	if !errors.Is(err, command.ErrExternalCommandFailed) {
		t.Fatalf("expected ErrExternalCommandFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "app crashed") {
		t.Fatalf("error should include stderr, got %v", err)
	}
	if l.Out.(*bytes.Buffer).Len() != 0 {
		t.Fatal("nothing should be written on failure")
	}
}

func TestArgsFailsWhenBusUnavailable(t *testing.T) {
	m := testManifest(t)
	r := &commandtest.Runner{Respond: func(command.Spec) command.Result {
		return command.Result{ExitCode: 1, Stderr: "Cannot autolaunch D-Bus without X11 $DISPLAY"}
	}}
	l, _ := testLauncher(t, r)
	if _, err := l.Args(context.Background(), m); !errors.Is(err, command.ErrExternalCommandFailed) {
		t.Fatalf("expected ErrExternalCommandFailed, got %v", err)
	}
}
