package defaults

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinIsValid(t *testing.T) {
	d := Builtin()
	require.NoError(t, d.Validate())
	assert.Len(t, d.Sliders, 2)
	assert.Equal(t, "black", d.ProductColor.Name)
	assert.Equal(t, "#000000", d.ProductColor.Value)
	assert.Equal(t, "one-size", d.ProductSize)
}

func TestSliderTemplateRendersStoreName(t *testing.T) {
	sliders := Builtin().SliderTemplate("Delta")
	require.Len(t, sliders, 2)
	assert.Contains(t, sliders[0].Title, "Delta")
	assert.NotContains(t, sliders[1].Title, StorePlaceholder)
	assert.Equal(t, "banner1", sliders[0].ID)
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
product_size: free
ads:
  - template_id: promo
    title: "Hello {{store}}"
    description: "first order discount"
    placement: between_products
`), 0o644))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "free", d.ProductSize)
	assert.Equal(t, "black", d.ProductColor.Name)
	require.Len(t, d.Ads, 1)
	assert.Equal(t, "Hello Delta", Render(d.Ads[0].Title, "Delta"))
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("ads: [{placement: sidebar}]"), 0o644))
	_, err := Load(bad)
	assert.ErrorContains(t, err, "unknown placement")

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("sliders: {"), 0o644))
	_, err = Load(broken)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEmptyPath(t *testing.T) {
	d, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Builtin(), d)
}
