// Package artifact writes the per-store manifest, the global store index and
// the generated frontend sources.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/suteetoe/storefront/internal/assets"
	"github.com/suteetoe/storefront/internal/storefront"
	"github.com/suteetoe/storefront/pkg/config"
	"go.uber.org/zap"
)

// Generator writes every mandatory artifact of a store or fails.
type Generator interface {
	Generate(ctx context.Context, p storefront.Payload) error
	Remove(ctx context.Context, slug string) error
}

// Manifest is the content of <assets>/<slug>/store.json.
type Manifest struct {
	storefront.Payload
	CreatedAt time.Time `json:"createdAt"`
	Status    string    `json:"status"`
}

// IndexEntry is one store in <assets>/stores/index.json.
type IndexEntry struct {
	ID          int64  `json:"id"`
	StoreID     int64  `json:"storeId"`
	NameAr      string `json:"nameAr"`
	NameEn      string `json:"nameEn"`
	Subdomain   string `json:"subdomain"`
	Slug        string `json:"slug"`
	Logo        string `json:"logo"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	Category    string `json:"category"`
}

// Index is the global store index.
type Index struct {
	Stores    []IndexEntry `json:"stores"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// New selects the generator strategy once at startup.
func New(cfg config.ProvisioningConfig, layout assets.Layout, log *zap.Logger) (Generator, error) {
	files := NewFileGenerator(layout)
	switch cfg.Generator {
	case "", "file":
		log.Info("Using file artifact generator")
		return files, nil
	case "command":
		log.Info("Using command artifact generator", zap.String("command", cfg.HookCommand))
		return NewCommandGenerator(cfg.HookCommand, cfg.HookTimeout, files, log), nil
	}
	return nil, fmt.Errorf("unknown artifact generator %q", cfg.Generator)
}

// FileGenerator renders artifacts directly onto the filesystem.
type FileGenerator struct {
	layout assets.Layout
	// guards index.json read-modify-write
	indexMu sync.Mutex
	now     func() time.Time
}

func NewFileGenerator(layout assets.Layout) *FileGenerator {
	return &FileGenerator{layout: layout, now: time.Now}
}

func (g *FileGenerator) Generate(ctx context.Context, p storefront.Payload) error {
	if p.Slug == "" || p.Name == "" || p.StoreID == 0 {
		return errors.New("missing required store data: slug, name or store id")
	}
	if p.Categories == nil {
		p.Categories = []any{}
	}
	if p.Products == nil {
		p.Products = []storefront.Product{}
	}
	if p.Sliders == nil {
		p.Sliders = []storefront.Slider{}
	}
	createdAt := g.now().UTC()

	manifest := Manifest{Payload: p, CreatedAt: createdAt, Status: "active"}
	if err := writeJSON(g.layout.ManifestPath(p.Slug), manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := g.updateIndex(func(idx *Index) {
		entry := indexEntry(p)
		for i := range idx.Stores {
			if idx.Stores[i].Slug == p.Slug || idx.Stores[i].Subdomain == p.Slug {
				idx.Stores[i] = entry
				return
			}
		}
		idx.Stores = append(idx.Stores, entry)
	}); err != nil {
		return fmt.Errorf("update store index: %w", err)
	}

	if err := g.writeSources(p, createdAt); err != nil {
		return fmt.Errorf("write sources: %w", err)
	}
	return nil
}

func (g *FileGenerator) writeSources(p storefront.Payload, createdAt time.Time) error {
	dir := g.layout.SourceDir(p.Slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	ident, component := identifiers(p.Slug)
	data := struct {
		Payload   storefront.Payload
		Products  []storefront.Product
		Ident     string
		Component string
		CreatedAt string
	}{p, p.Products, ident, component, createdAt.Format(time.RFC3339)}

	for _, name := range assets.SourceFiles {
		var buf bytes.Buffer
		if err := sourceTemplates.ExecuteTemplate(&buf, name, data); err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		if err := writeFileAtomic(filepath.Join(dir, name), buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes everything Generate writes for slug. Missing files are
// not an error.
func (g *FileGenerator) Remove(_ context.Context, slug string) error {
	var errs []error
	if err := os.Remove(g.layout.ManifestPath(slug)); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	if err := g.updateIndex(func(idx *Index) {
		kept := idx.Stores[:0]
		for _, s := range idx.Stores {
			if s.Slug != slug && s.Subdomain != slug {
				kept = append(kept, s)
			}
		}
		idx.Stores = kept
	}); err != nil {
		errs = append(errs, err)
	}
	dir := g.layout.SourceDir(slug)
	if assets.Contains(g.layout.SourceRoot, dir) {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (g *FileGenerator) updateIndex(mutate func(*Index)) error {
	g.indexMu.Lock()
	defer g.indexMu.Unlock()

	idx, err := ReadIndex(g.layout)
	if err != nil {
		return err
	}
	mutate(idx)
	idx.UpdatedAt = g.now().UTC()
	return writeJSON(g.layout.IndexPath(), idx)
}

// ReadIndex loads the global store index. A missing file is an empty index.
func ReadIndex(layout assets.Layout) (*Index, error) {
	idx := &Index{Stores: []IndexEntry{}}
	raw, err := os.ReadFile(layout.IndexPath())
	if errors.Is(err, os.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, idx); err != nil {
		return nil, fmt.Errorf("parse %s: %w", layout.IndexPath(), err)
	}
	if idx.Stores == nil {
		idx.Stores = []IndexEntry{}
	}
	return idx, nil
}

// ReadManifest loads the store.json of slug.
func ReadManifest(layout assets.Layout, slug string) (*Manifest, error) {
	raw, err := os.ReadFile(layout.ManifestPath(slug))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest of %s: %w", slug, err)
	}
	return &m, nil
}

func indexEntry(p storefront.Payload) IndexEntry {
	return IndexEntry{
		ID:          p.StoreID,
		StoreID:     p.StoreID,
		NameAr:      p.Name,
		NameEn:      p.NameEn,
		Subdomain:   p.Slug,
		Slug:        p.Slug,
		Logo:        p.Logo,
		Description: p.Description,
		Icon:        p.Icon,
		Color:       p.Color,
		Category:    p.Category,
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes through a temp file in the same directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
