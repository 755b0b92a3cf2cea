// Package icons resolves XDG icon names to files on disk. Rasterization is
// left to the compositor's asset pipeline; the launcher only hands over paths.
package icons

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/StardustXR/protostar/utils"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Kind is the icon file format.
type Kind string

const (
	KindPNG  Kind = "png"
	KindSVG  Kind = "svg"
	KindGLTF Kind = "gltf"
)

// Icon is a resolved icon file.
type Icon struct {
	Kind Kind   `json:"kind"`
	Path string `json:"path"`
	Size int    `json:"size"`
}

// FromPath classifies a file by extension. Unknown extensions resolve to no icon.
func FromPath(path string, size int) (Icon, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return Icon{Kind: KindPNG, Path: path, Size: size}, true
	case ".svg":
		return Icon{Kind: KindSVG, Path: path, Size: size}, true
	case ".glb", ".gltf":
		return Icon{Kind: KindGLTF, Path: path, Size: size}, true
	default:
		return Icon{}, false
	}
}

const cacheSize = 512

// Resolver looks up icon names in the XDG icon theme directories and caches
// resolved paths.
type Resolver struct {
	theme string
	cache *lru.Cache[string, Icon]
}

func NewResolver(theme string) (*Resolver, error) {
	if theme == "" {
		theme = os.Getenv("XDG_ICON_THEME")
	}
	if theme == "" {
		theme = "hicolor"
	}

	cache, err := lru.New[string, Icon](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create icon cache: %w", err)
	}
	return &Resolver{theme: theme, cache: cache}, nil
}

// Resolve finds the best icon for name: an absolute path is used directly, a
// 3D icon is preferred when prefer3D is set, otherwise the largest raster not
// exceeding size wins (or the smallest available if all are larger).
func (r *Resolver) Resolve(name string, size int, prefer3D bool) (Icon, bool) {
	if name == "" {
		return Icon{}, false
	}

	key := fmt.Sprintf("%s/%d/%t", name, size, prefer3D)
	if icon, ok := r.cache.Get(key); ok {
		return icon, true
	}

	icon, ok := r.lookup(name, size, prefer3D)
	if ok {
		r.cache.Add(key, icon)
	}
	return icon, ok
}

func (r *Resolver) lookup(name string, size int, prefer3D bool) (Icon, bool) {
	// an absolute path in the Icon field bypasses theme lookup
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err == nil {
			return FromPath(name, size)
		}
		return Icon{}, false
	}

	candidates := r.scanThemes(name)
	if len(candidates) == 0 {
		utils.Verbose("No icon found for %q in theme %s", name, r.theme)
		return Icon{}, false
	}

	if prefer3D {
		for _, c := range candidates {
			if c.Kind == KindGLTF {
				return c, true
			}
		}
	} else {
		// rasters only, unless the theme ships nothing else
		rasters := candidates[:0:0]
		for _, c := range candidates {
			if c.Kind != KindGLTF {
				rasters = append(rasters, c)
			}
		}
		if len(rasters) > 0 {
			candidates = rasters
		}
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if better(c, best, size) {
			best = c
		}
	}
	return best, true
}

// better prefers the candidate closest to the wanted size from below,
// falling back to the smallest oversized icon.
func better(c, best Icon, want int) bool {
	cFits, bestFits := c.Size <= want, best.Size <= want
	switch {
	case cFits && !bestFits:
		return true
	case !cFits && bestFits:
		return false
	case cFits:
		return c.Size > best.Size
	default:
		return c.Size < best.Size
	}
}

// scanThemes walks <data>/icons/<theme>/<size>/apps for files whose stem
// matches the icon name, falling back to the pixmaps directories.
func (r *Resolver) scanThemes(name string) []Icon {
	var found []Icon

	themes := []string{r.theme}
	if r.theme != "hicolor" {
		themes = append(themes, "hicolor")
	}

	for _, data := range utils.DataDirs() {
		for _, theme := range themes {
			themeDir := filepath.Join(data, "icons", theme)
			sizeDirs, err := os.ReadDir(themeDir)
			if err != nil {
				continue
			}
			for _, sizeDir := range sizeDirs {
				if !sizeDir.IsDir() {
					continue
				}
				appsDir := filepath.Join(themeDir, sizeDir.Name(), "apps")
				found = append(found, matchIn(appsDir, name, parseSizeDir(sizeDir.Name()))...)
			}
		}
		found = append(found, matchIn(filepath.Join(data, "pixmaps"), name, 0)...)
	}

	return found
}

func matchIn(dir, name string, size int) []Icon {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var found []Icon
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if stem != name {
			continue
		}
		if icon, ok := FromPath(filepath.Join(dir, entry.Name()), size); ok {
			found = append(found, icon)
		}
	}
	return found
}

// parseSizeDir extracts the pixel size from directory names like "48x48"
// or "scalable" (treated as unbounded).
func parseSizeDir(name string) int {
	if name == "scalable" {
		return 1 << 14
	}
	var w, h int
	if _, err := fmt.Sscanf(name, "%dx%d", &w, &h); err == nil {
		return w
	}
	return 0
}
