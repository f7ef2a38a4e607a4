// Package assets describes the on-disk layout of store assets and generated
// storefront sources.
package assets

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Kind is an asset subfolder of a store.
type Kind string

const (
	Products Kind = "products"
	Sliders  Kind = "sliders"
	Logo     Kind = "logo"
)

// Kinds lists every asset subfolder in reclaim order.
var Kinds = []Kind{Products, Sliders, Logo}

// ImageExtensions is the probe order for default images.
var ImageExtensions = []string{"png", "jpg", "jpeg", "svg", "webp", "gif"}

// SourceFiles are the per-store frontend files the generator must produce.
var SourceFiles = []string{"config.ts", "products.ts", "Slider.tsx", "index.ts", "sliderData.ts"}

// Layout maps stores onto the filesystem.
//
//	<AssetsRoot>/<slug>/{products,sliders,logo}/<file>
//	<AssetsRoot>/<slug>/store.json
//	<AssetsRoot>/stores/index.json
//	<SourceRoot>/src/data/stores/<slug>/*.ts
type Layout struct {
	AssetsRoot   string
	PublicPrefix string
	SourceRoot   string
	TempDir      string
}

// StoreDir is the asset directory of one store.
func (l Layout) StoreDir(slug string) string {
	return filepath.Join(l.AssetsRoot, slug)
}

// KindDir is one asset subfolder of a store.
func (l Layout) KindDir(slug string, kind Kind) string {
	return filepath.Join(l.AssetsRoot, slug, string(kind))
}

// ManifestPath is the per-store store.json.
func (l Layout) ManifestPath(slug string) string {
	return filepath.Join(l.AssetsRoot, slug, "store.json")
}

// IndexPath is the global store index.
func (l Layout) IndexPath() string {
	return filepath.Join(l.AssetsRoot, "stores", "index.json")
}

// SourceDir is the generated frontend source directory of a store.
func (l Layout) SourceDir(slug string) string {
	return filepath.Join(l.SourceRoot, "src", "data", "stores", slug)
}

// PublicPath is the URL path under which an asset file is served.
func (l Layout) PublicPath(slug string, kind Kind, filename string) string {
	return path.Join(l.prefix(), slug, string(kind), filename)
}

// GlobalPublicPath is the URL path of a file at the assets root.
func (l Layout) GlobalPublicPath(filename string) string {
	return path.Join(l.prefix(), filename)
}

func (l Layout) prefix() string {
	if l.PublicPrefix == "" {
		return "/assets"
	}
	return "/" + strings.Trim(l.PublicPrefix, "/")
}

// DefaultProductImage probes the store folder and then the assets root for a
// default-product image, falling back to the global PNG path.
func (l Layout) DefaultProductImage(slug string) string {
	for _, ext := range ImageExtensions {
		name := "default-product." + ext
		if fileExists(filepath.Join(l.StoreDir(slug), name)) {
			return path.Join(l.prefix(), slug, name)
		}
	}
	for _, ext := range ImageExtensions {
		name := "default-product." + ext
		if fileExists(filepath.Join(l.AssetsRoot, name)) {
			return l.GlobalPublicPath(name)
		}
	}
	return l.GlobalPublicPath("default-product.png")
}

// Contains reports whether target resolves inside base.
func Contains(base, target string) bool {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absBase, absTarget)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// SafeJoin joins name under dir and rejects anything escaping dir.
func SafeJoin(dir, name string) (string, error) {
	joined := filepath.Join(dir, name)
	if !Contains(dir, joined) {
		return "", fmt.Errorf("unsafe path %q", name)
	}
	return joined, nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
