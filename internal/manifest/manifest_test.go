package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	v1 "github.com/fpp-125/fbh/internal/manifest/schema/v1"
)

func testSchema() v1.ManifestSchema {
	return v1.ManifestSchema{
		ID:      "org.example.App",
		Modules: []v1.Module{{Name: "dep"}, {Name: "app", BuildSystem: v1.BuildSystemMeson}},
	}
}

func TestNewDerivesPaths(t *testing.T) {
	m, err := New("/src/app", testSchema(), "/src/app/org.example.App.json")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if m.BuildDir != "/src/app/.flatpak" {
		t.Fatalf("unexpected build dir: %s", m.BuildDir)
	}
	if m.RepoDir != "/src/app/.flatpak/repo" {
		t.Fatalf("unexpected repo dir: %s", m.RepoDir)
	}
	if m.StateDir != "/src/app/.flatpak/flatpak-builder" {
		t.Fatalf("unexpected state dir: %s", m.StateDir)
	}
	if m.ID != "org.example.App" || m.Module().Name != "app" {
		t.Fatalf("unexpected id/module: %s %s", m.ID, m.Module().Name)
	}
}

func TestNewRejectsMissingIDAndModules(t *testing.T) {
	noID := testSchema()
	noID.ID = ""
	if _, err := New("/src", noID, "m.json"); !errors.Is(err, ErrManifestInvalid) {
		t.Fatalf("expected ErrManifestInvalid for missing id, got %v", err)
	}
	noModules := testSchema()
	noModules.Modules = nil
	if _, err := New("/src", noModules, "m.json"); !errors.Is(err, ErrManifestInvalid) {
		t.Fatalf("expected ErrManifestInvalid for missing modules, got %v", err)
	}
}

func TestIsInitializedRequiresAllMarkers(t *testing.T) {
	root := t.TempDir()
	m, err := New(root, testSchema(), filepath.Join(root, "m.json"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if m.IsInitialized() || m.RepoExists() {
		t.Fatal("fresh root should be neither initialized nor built")
	}
	for _, dir := range []string{"files", "var"} {
		if err := os.MkdirAll(filepath.Join(m.RepoDir, dir), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	if !m.RepoExists() {
		t.Fatal("expected repo dir to exist")
	}
	if m.IsInitialized() {
		t.Fatal("metadata file missing, expected not initialized")
	}
	if err := os.Mkdir(filepath.Join(m.RepoDir, "metadata"), 0o755); err != nil {
		t.Fatalf("mkdir metadata: %v", err)
	}
	if m.IsInitialized() {
		t.Fatal("metadata must be a regular file")
	}
	if err := os.Remove(filepath.Join(m.RepoDir, "metadata")); err != nil {
		t.Fatalf("remove metadata dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(m.RepoDir, "metadata"), []byte("[Application]\n"), 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	if !m.IsInitialized() {
		t.Fatal("expected initialized repo")
	}
}

func TestMemoCachesOnlySuccess(t *testing.T) {
	m, err := New("/src", testSchema(), "m.json")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	calls := 0
	failing := func() ([]string, error) {
		calls++
		return nil, errors.New("boom")
	}
	if _, err := m.FontsArgs(failing); err == nil {
		t.Fatal("expected resolve error")
	}
	ok := func() ([]string, error) {
		calls++
		return []string{"--bind-mount=/a=/b"}, nil
	}
	for i := 0; i < 3; i++ {
		args, err := m.FontsArgs(ok)
		if err != nil {
			t.Fatalf("FontsArgs() error = %v", err)
		}
		if len(args) != 1 {
			t.Fatalf("unexpected args: %v", args)
		}
		args[0] = "mutated"
	}
	if calls != 2 {
		t.Fatalf("expected one failed and one successful resolve, got %d calls", calls)
	}
	again, _ := m.FontsArgs(ok)
	if again[0] != "--bind-mount=/a=/b" {
		t.Fatal("cached args must not be mutable through returned slice")
	}
	bus, _ := m.A11yBusArgs(func() ([]string, error) { return []string{"bus"}, nil })
	if len(bus) != 1 || bus[0] != "bus" {
		t.Fatalf("a11y cache should be independent of fonts cache: %v", bus)
	}
}

func TestLoadFindsAndNormalizes(t *testing.T) {
	root := t.TempDir()
	body := `{"app-id": "org.example.Loaded", "modules": [{"name": "app", "buildsystem": "simple", "build-commands": ["true"]}]}`
	if err := os.WriteFile(filepath.Join(root, "org.example.Loaded.json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	m, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.ID != "org.example.Loaded" {
		t.Fatalf("expected id from app-id, got %q", m.ID)
	}
	d1, err := m.Digest()
	if err != nil || len(d1) != 64 {
		t.Fatalf("unexpected digest %q err=%v", d1, err)
	}
	d2, _ := m.Digest()
	if d1 != d2 {
		t.Fatal("digest should be stable")
	}
}
