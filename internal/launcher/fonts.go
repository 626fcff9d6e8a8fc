package launcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrFilesystem = errors.New("filesystem error")

const fontConfigHeader = `<?xml version="1.0"?>
<!DOCTYPE fontconfig SYSTEM "urn:fontconfig:fonts:dtd">
<fontconfig>
`

const fontConfigFooter = "</fontconfig>\n"

// Sandbox-side mount points for the host font trees.
const (
	sandboxFonts          = "/run/host/fonts"
	sandboxLocalFonts     = "/run/host/local-fonts"
	sandboxFontsCache     = "/run/host/fonts-cache"
	sandboxUserFontsCache = "/run/host/user-fonts-cache"
	sandboxFontDirsFile   = "/run/host/font-dirs.xml"
)

// FontLocations are the host paths consulted when exposing fonts to the
// sandbox. Only paths that exist at resolve time contribute.
type FontLocations struct {
	SystemFonts      string
	SystemLocalFonts string
	SystemCaches     []string
	UserFontDirs     []string
	UserFontsCache   string
	// MappedFile receives the generated fontconfig remap document.
	MappedFile string
}

// DefaultFontLocations follows the XDG base directory layout of the current
// user.
func DefaultFontLocations() (FontLocations, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return FontLocations{}, fmt.Errorf("%w: home directory: %v", ErrFilesystem, err)
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return FontLocations{}, fmt.Errorf("%w: cache directory: %v", ErrFilesystem, err)
	}
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		dataDir = filepath.Join(home, ".local", "share")
	}
	return FontLocations{
		SystemFonts:      "/usr/share/fonts",
		SystemLocalFonts: "/usr/share/local/fonts",
		SystemCaches:     []string{"/usr/lib/fontconfig/cache", "/var/cache/fontconfig"},
		UserFontDirs:     []string{filepath.Join(dataDir, "fonts"), filepath.Join(home, ".fonts")},
		UserFontsCache:   filepath.Join(cacheDir, "fontconfig"),
		MappedFile:       filepath.Join(cacheDir, "font-dirs.xml"),
	}, nil
}

// ResolveFonts computes the font arguments and writes the remap document to
// loc.MappedFile, replacing any previous content.
func ResolveFonts(loc FontLocations) ([]string, error) {
	var args []string
	var doc strings.Builder
	doc.WriteString(fontConfigHeader)

	if exists(loc.SystemFonts) {
		args = append(args, fmt.Sprintf("--bind-mount=%s=%s", sandboxFonts, loc.SystemFonts))
		writeRemap(&doc, loc.SystemFonts, sandboxFonts)
	}
	if exists(loc.SystemLocalFonts) {
		args = append(args, fmt.Sprintf("--bind-mount=%s=%s", sandboxLocalFonts, loc.SystemLocalFonts))
		writeRemap(&doc, loc.SystemLocalFonts, sandboxLocalFonts)
	}
	// Both caches target the same mount point; flatpak keeps the last one.
	for _, dir := range loc.SystemCaches {
		if exists(dir) {
			args = append(args, fmt.Sprintf("--bind-mount=%s=%s", sandboxFontsCache, dir))
		}
	}
	for _, dir := range loc.UserFontDirs {
		if exists(dir) {
			args = append(args, fmt.Sprintf("--filesystem=%s:ro", dir))
			writeRemap(&doc, dir, sandboxFonts)
		}
	}
	if exists(loc.UserFontsCache) {
		args = append(args,
			fmt.Sprintf("--filesystem=%s:ro", loc.UserFontsCache),
			fmt.Sprintf("--bind-mount=%s=%s", sandboxUserFontsCache, loc.UserFontsCache),
		)
	}
	doc.WriteString(fontConfigFooter)

	if loc.MappedFile == "" {
		return nil, fmt.Errorf("%w: no path for the font remap file", ErrFilesystem)
	}
	if err := os.MkdirAll(filepath.Dir(loc.MappedFile), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	if err := os.WriteFile(loc.MappedFile, []byte(doc.String()), 0o644); err != nil {
		return nil, fmt.Errorf("%w: write font remap file: %v", ErrFilesystem, err)
	}
	args = append(args, fmt.Sprintf("--bind-mount=%s=%s", sandboxFontDirsFile, loc.MappedFile))
	return args, nil
}

func writeRemap(doc *strings.Builder, hostPath, sandboxPath string) {
	fmt.Fprintf(doc, "\t<remap-dir as-path=%q>%s</remap-dir>\n", hostPath, sandboxPath)
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
