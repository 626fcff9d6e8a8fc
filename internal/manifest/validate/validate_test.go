package validate

import (
	"errors"
	"testing"

	v1 "github.com/fpp-125/fbh/internal/manifest/schema/v1"
)

func TestNormalizeFillsIDFromAppID(t *testing.T) {
	cfg := v1.ManifestSchema{AppID: "org.example.App", Modules: []v1.Module{{Name: "app"}}}
	n, err := NormalizeAndValidate(cfg)
	if err != nil {
		t.Fatalf("NormalizeAndValidate() error = %v", err)
	}
	if n.ID != "org.example.App" {
		t.Fatalf("expected id from app-id, got %q", n.ID)
	}
}

func TestNormalizeKeepsExplicitID(t *testing.T) {
	cfg := v1.ManifestSchema{ID: "org.example.ID", AppID: "org.example.Other", Modules: []v1.Module{{Name: "app"}}}
	n, err := NormalizeAndValidate(cfg)
	if err != nil {
		t.Fatalf("NormalizeAndValidate() error = %v", err)
	}
	if n.ID != "org.example.ID" {
		t.Fatalf("expected explicit id to win, got %q", n.ID)
	}
}

func TestNormalizeRejectsInvalidManifests(t *testing.T) {
	cases := map[string]v1.ManifestSchema{
		"missing id":      {Modules: []v1.Module{{Name: "app"}}},
		"missing modules": {ID: "org.example.App"},
		"unnamed module":  {ID: "org.example.App", Modules: []v1.Module{{Name: " "}}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NormalizeAndValidate(cfg)
			if !errors.Is(err, v1.ErrManifestInvalid) {
				t.Fatalf("expected ErrManifestInvalid, got %v", err)
			}
		})
	}
}
