// Package manifest holds a parsed flatpak manifest together with the paths
// the helper derives from the project root.
package manifest

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fpp-125/fbh/internal/manifest/parse"
	v1 "github.com/fpp-125/fbh/internal/manifest/schema/v1"
	"github.com/fpp-125/fbh/internal/manifest/validate"
	"github.com/zeebo/blake3"
)

var ErrManifestInvalid = v1.ErrManifestInvalid

const (
	buildDirName = ".flatpak"
	repoDirName  = "repo"
	stateDirName = "flatpak-builder"
)

type Manifest struct {
	RootDir      string
	ManifestPath string
	BuildDir     string
	RepoDir      string
	StateDir     string
	ID           string
	Schema       v1.ManifestSchema

	fonts   memo
	a11yBus memo
}

// New builds a Manifest from an already decoded schema. Paths are fixed here
// and never recomputed.
func New(rootDir string, schema v1.ManifestSchema, manifestPath string) (*Manifest, error) {
	if schema.ID == "" {
		return nil, fmt.Errorf("%w: manifest %s declares no id", ErrManifestInvalid, manifestPath)
	}
	if len(schema.Modules) == 0 {
		return nil, fmt.Errorf("%w: manifest %s declares no modules", ErrManifestInvalid, manifestPath)
	}
	buildDir := filepath.Join(rootDir, buildDirName)
	return &Manifest{
		RootDir:      rootDir,
		ManifestPath: manifestPath,
		BuildDir:     buildDir,
		RepoDir:      filepath.Join(buildDir, repoDirName),
		StateDir:     filepath.Join(buildDir, stateDirName),
		ID:           schema.ID,
		Schema:       schema,
	}, nil
}

// Load finds, parses and validates the manifest under root.
func Load(root string) (*Manifest, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	path, raw, err := parse.Find(abs)
	if err != nil {
		return nil, err
	}
	schema, err := validate.NormalizeAndValidate(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return New(abs, schema, path)
}

// Module returns the target module, the last one declared.
func (m *Manifest) Module() v1.Module {
	target, _ := m.Schema.Target()
	return target
}

// RepoExists is the coarse "already built" check the build command uses.
func (m *Manifest) RepoExists() bool {
	_, err := os.Stat(m.RepoDir)
	return err == nil
}

// IsInitialized reports whether build-init has produced the metadata file and
// the files and var directories in the repo.
func (m *Manifest) IsInitialized() bool {
	if !isDir(m.RootDir) {
		return false
	}
	st, err := os.Stat(filepath.Join(m.RepoDir, "metadata"))
	if err != nil || !st.Mode().IsRegular() {
		return false
	}
	return isDir(filepath.Join(m.RepoDir, "files")) && isDir(filepath.Join(m.RepoDir, "var"))
}

// Digest is the BLAKE3 hash of the manifest file as read from disk.
func (m *Manifest) Digest() (string, error) {
	b, err := os.ReadFile(m.ManifestPath)
	if err != nil {
		return "", fmt.Errorf("read manifest: %w", err)
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// FontsArgs returns the font sandbox arguments, calling resolve only until it
// succeeds once for this Manifest.
func (m *Manifest) FontsArgs(resolve func() ([]string, error)) ([]string, error) {
	return m.fonts.get(resolve)
}

// A11yBusArgs works like FontsArgs for the accessibility bus arguments.
func (m *Manifest) A11yBusArgs(resolve func() ([]string, error)) ([]string, error) {
	return m.a11yBus.get(resolve)
}

type memo struct {
	mu   sync.Mutex
	done bool
	args []string
}

func (c *memo) get(resolve func() ([]string, error)) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.done {
		args, err := resolve()
		if err != nil {
			return nil, err
		}
		c.args = args
		c.done = true
	}
	return append([]string(nil), c.args...), nil
}

func isDir(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
