package validate

import (
	"fmt"
	"strings"

	v1 "github.com/fpp-125/fbh/internal/manifest/schema/v1"
)

// NormalizeAndValidate fills the id from app-id when only the latter is set
// and rejects manifests the helper cannot build.
func NormalizeAndValidate(cfg v1.ManifestSchema) (v1.ManifestSchema, error) {
	cfg.ID = strings.TrimSpace(cfg.ID)
	if cfg.ID == "" {
		cfg.ID = strings.TrimSpace(cfg.AppID)
	}
	if cfg.ID == "" {
		return v1.ManifestSchema{}, fmt.Errorf("%w: id or app-id is required", v1.ErrManifestInvalid)
	}
	if len(cfg.Modules) == 0 {
		return v1.ManifestSchema{}, fmt.Errorf("%w: modules must not be empty", v1.ErrManifestInvalid)
	}
	for i, m := range cfg.Modules {
		if strings.TrimSpace(m.Name) == "" {
			return v1.ManifestSchema{}, fmt.Errorf("%w: modules[%d] has no name", v1.ErrManifestInvalid, i)
		}
	}
	return cfg, nil
}
