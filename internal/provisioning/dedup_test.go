package provisioning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/storefront/internal/assets"
	"go.uber.org/zap"
)

func writeAsset(t *testing.T, layout assets.Layout, kind assets.Kind, name, body string) string {
	t.Helper()
	dir := layout.KindDir("delta", kind)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestReclaimKeepsFirstDuplicate(t *testing.T) {
	layout := testLayout(t)
	first := writeAsset(t, layout, assets.Products, "a.png", "same")
	second := writeAsset(t, layout, assets.Products, "b.png", "same")
	other := writeAsset(t, layout, assets.Products, "c.png", "different")
	// identical bytes in another subfolder are left alone
	slider := writeAsset(t, layout, assets.Sliders, "a.png", "same")

	report := NewReclaimer(layout, 100, 1<<20).Reclaim("delta", zap.NewNop())

	assert.Equal(t, []string{second}, report.Removed)
	assert.Equal(t, map[string]string{second: first}, report.Replaced)
	assert.Equal(t, 4, report.Scanned)
	assert.Empty(t, report.Failures)
	assert.FileExists(t, first)
	assert.NoFileExists(t, second)
	assert.FileExists(t, other)
	assert.FileExists(t, slider)
}

func TestReclaimCeilings(t *testing.T) {
	layout := testLayout(t)
	writeAsset(t, layout, assets.Products, "a.png", "same")
	writeAsset(t, layout, assets.Products, "b.png", "same")
	writeAsset(t, layout, assets.Products, "c.png", "same")

	report := NewReclaimer(layout, 2, 1<<20).Reclaim("delta", zap.NewNop())
	assert.Len(t, report.Removed, 1)
	assert.Equal(t, 1, report.Skipped)

	writeAsset(t, layout, assets.Logo, "big.png", "0123456789")
	writeAsset(t, layout, assets.Logo, "big2.png", "0123456789")
	report = NewReclaimer(layout, 100, 4).Reclaim("delta", zap.NewNop())
	assert.Equal(t, 2, report.Skipped)
	assert.FileExists(t, filepath.Join(layout.KindDir("delta", assets.Logo), "big2.png"))
}

func TestReclaimMissingStore(t *testing.T) {
	report := NewReclaimer(testLayout(t), 100, 1<<20).Reclaim("ghost", zap.NewNop())
	assert.Empty(t, report.Removed)
	assert.Empty(t, report.Failures)
}
