package flatpak

import (
	"context"
	"strings"
	"testing"
)

func TestBuildWrapsProgram(t *testing.T) {
	s := DefaultTools().Build("/src/.flatpak/repo", []string{"--share=network"}, "make", "-p", "-n", "-s")
	want := []string{"build", "--share=network", "/src/.flatpak/repo", "make", "-p", "-n", "-s"}
	if s.Program != "flatpak" || strings.Join(s.Args, " ") != strings.Join(want, " ") {
		t.Fatalf("unexpected spec: %+v", s)
	}
}

func TestBuildInitArgs(t *testing.T) {
	s := Tools{Flatpak: "/opt/flatpak"}.BuildInit("/repo", "org.example.App", "org.gnome.Sdk", "org.gnome.Platform", "46")
	if s.Program != "/opt/flatpak" {
		t.Fatalf("expected configured binary, got %s", s.Program)
	}
	if strings.Join(s.Args, " ") != "build-init /repo org.example.App org.gnome.Sdk org.gnome.Platform 46" {
		t.Fatalf("unexpected args: %v", s.Args)
	}
}

func TestDependenciesPasses(t *testing.T) {
	tools := DefaultTools()
	download := tools.Dependencies(DownloadDependencies, "/state", "app", "/repo", "/src/m.json")
	if download.Program != "flatpak-builder" {
		t.Fatalf("unexpected program: %s", download.Program)
	}
	if strings.Join(download.Args, " ") != "--ccache --force-clean --disable-updates --download-only --state-dir=/state --stop-at=app /repo /src/m.json" {
		t.Fatalf("unexpected download args: %v", download.Args)
	}
	build := tools.Dependencies(BuildDependencies, "/state", "app", "/repo", "/src/m.json")
	if strings.Join(build.Args, " ") != "--ccache --force-clean --disable-updates --disable-download --build-only --keep-build-dirs --state-dir=/state --stop-at=app /repo /src/m.json" {
		t.Fatalf("unexpected build args: %v", build.Args)
	}
	if BuildDependencies.String() != "build-dependencies" || DownloadDependencies.String() != "update-dependencies" {
		t.Fatal("unexpected step names")
	}
}

func TestExecCopiesArgs(t *testing.T) {
	args := []string{"build", "--with-appdir"}
	s := DefaultTools().Exec(args)
	args[0] = "mutated"
	if s.Args[0] != "build" {
		t.Fatal("Exec should copy its arguments")
	}
}

func TestCheckReportsMissingTools(t *testing.T) {
	err := Tools{Flatpak: "fbh-missing-flatpak", Builder: "fbh-missing-builder"}.Check(context.Background())
	if err == nil || !strings.Contains(err.Error(), "fbh-missing-flatpak") || !strings.Contains(err.Error(), "fbh-missing-builder") {
		t.Fatalf("expected both missing tools in error, got %v", err)
	}
}
