package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProductImageProbe(t *testing.T) {
	root := t.TempDir()
	l := Layout{AssetsRoot: root, PublicPrefix: "/assets"}

	assert.Equal(t, "/assets/default-product.png", l.DefaultProductImage("shop"))

	require.NoError(t, os.WriteFile(filepath.Join(root, "default-product.webp"), []byte("g"), 0o644))
	assert.Equal(t, "/assets/default-product.webp", l.DefaultProductImage("shop"))

	require.NoError(t, os.MkdirAll(l.StoreDir("shop"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(l.StoreDir("shop"), "default-product.jpg"), []byte("s"), 0o644))
	assert.Equal(t, "/assets/shop/default-product.jpg", l.DefaultProductImage("shop"))

	// png wins over jpg inside the same folder
	require.NoError(t, os.WriteFile(filepath.Join(l.StoreDir("shop"), "default-product.png"), []byte("s"), 0o644))
	assert.Equal(t, "/assets/shop/default-product.png", l.DefaultProductImage("shop"))
}

func TestPaths(t *testing.T) {
	l := Layout{AssetsRoot: "/srv/assets", PublicPrefix: "assets/", SourceRoot: "/srv/app"}

	assert.Equal(t, "/assets/shop/products/a.png", l.PublicPath("shop", Products, "a.png"))
	assert.Equal(t, filepath.Join("/srv/assets", "shop", "store.json"), l.ManifestPath("shop"))
	assert.Equal(t, filepath.Join("/srv/assets", "stores", "index.json"), l.IndexPath())
	assert.Equal(t, filepath.Join("/srv/app", "src", "data", "stores", "shop"), l.SourceDir("shop"))
}

func TestSafeJoin(t *testing.T) {
	dir := t.TempDir()

	p, err := SafeJoin(dir, "a.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.png"), p)

	_, err = SafeJoin(dir, "../escape.png")
	assert.Error(t, err)
	assert.False(t, Contains(dir, filepath.Join(dir, "..")))
	assert.True(t, Contains(dir, filepath.Join(dir, "..a")))
}
