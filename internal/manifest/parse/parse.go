package parse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	v1 "github.com/fpp-125/fbh/internal/manifest/schema/v1"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

var ErrManifestNotFound = errors.New("no flatpak manifest found")

var manifestExts = map[string]bool{".json": true, ".yaml": true, ".yml": true}

func File(path string) (v1.ManifestSchema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return v1.ManifestSchema{}, fmt.Errorf("read manifest: %w", err)
	}
	return Bytes(b, filepath.Ext(path), filepath.Base(path))
}

// Bytes decodes a manifest body. ext selects the format: ".json" is read as
// JSON with comments and trailing commas, ".yaml" and ".yml" as YAML.
func Bytes(b []byte, ext, name string) (v1.ManifestSchema, error) {
	var cfg v1.ManifestSchema
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(jsonc.ToJSON(b), &cfg); err != nil {
			return v1.ManifestSchema{}, fmt.Errorf("parse json (%s): %w", name, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		if err := dec.Decode(&cfg); err != nil {
			return v1.ManifestSchema{}, fmt.Errorf("parse yaml (%s): %w", name, err)
		}
	default:
		return v1.ManifestSchema{}, fmt.Errorf("unsupported manifest extension %q (%s)", ext, name)
	}
	return cfg, nil
}

// Find looks for a manifest directly under root. Candidates are visited in
// name order and the first one that declares an id and at least one module
// wins; other json/yaml files in the project are skipped.
func Find(root string) (string, v1.ManifestSchema, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", v1.ManifestSchema{}, fmt.Errorf("read project root: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !manifestExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var firstErr error
	for _, name := range names {
		path := filepath.Join(root, name)
		cfg, err := File(path)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if (cfg.ID == "" && cfg.AppID == "") || len(cfg.Modules) == 0 {
			continue
		}
		return path, cfg, nil
	}
	if firstErr != nil {
		return "", v1.ManifestSchema{}, fmt.Errorf("%w in %s (last parse error: %v)", ErrManifestNotFound, root, firstErr)
	}
	return "", v1.ManifestSchema{}, fmt.Errorf("%w in %s", ErrManifestNotFound, root)
}
