package provisioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/storefront/internal/defaults"
)

func values(fields map[string]string) map[string][]string {
	out := make(map[string][]string, len(fields))
	for k, v := range fields {
		out[k] = []string{v}
	}
	return out
}

func TestParseRequestDefaults(t *testing.T) {
	req, err := ParseRequest(values(baseFields()), defaults.Builtin())
	require.NoError(t, err)

	assert.Equal(t, int64(7), req.StoreID)
	assert.Equal(t, "Delta Shop", req.NameEn)
	assert.Equal(t, "general", req.Category)
	assert.Equal(t, "Dana", req.Owner.FirstName)
	assert.Equal(t, "Delta", req.Owner.LastName)
	assert.Equal(t, "000000000", req.Owner.Phone)
	assert.Equal(t, []string{"owner@example.com"}, req.Emails())
	assert.Empty(t, req.Products)
}

func TestParseRequestArrays(t *testing.T) {
	fields := baseFields()
	fields["categories"] = `[{"name":"Shoes"}]`
	fields["products"] = `[{"name":"A","price":10},{"name":"B","price":5,"sizes":["M"]}]`
	fields["productsImageCounts"] = `[2,null]`
	fields["sliderImages"] = `[{"id":"s1","title":"Hi"}]`
	fields["ownerSecondEmail"] = "Other@Example.com"
	fields["email"] = "legacy@example.com"

	req, err := ParseRequest(values(fields), defaults.Builtin())
	require.NoError(t, err)

	assert.Equal(t, "Shoes", req.Category)
	require.Len(t, req.Products, 2)
	assert.Equal(t, []string{"M"}, req.Products[1].Sizes)
	assert.Equal(t, []int{2, 0}, req.ImageCounts)
	require.Len(t, req.Sliders, 1)
	assert.Equal(t, "s1", req.Sliders[0].ID)
	assert.Equal(t, []string{"owner@example.com", "other@example.com"}, req.Emails())
}

func TestParseRequestRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{"missing slug", func(f map[string]string) { delete(f, "storeSlug") }},
		{"missing store id", func(f map[string]string) { delete(f, "storeId") }},
		{"non numeric store id", func(f map[string]string) { f["storeId"] = "abc" }},
		{"uppercase slug", func(f map[string]string) { f["storeSlug"] = "Delta" }},
		{"path slug", func(f map[string]string) { f["storeSlug"] = "../etc" }},
		{"reserved slug", func(f map[string]string) { f["storeSlug"] = "stores" }},
		{"missing password", func(f map[string]string) { delete(f, "ownerPassword") }},
		{"bad email", func(f map[string]string) { f["ownerEmail"] = "not-an-email" }},
		{"malformed products", func(f map[string]string) { f["products"] = `[{"name":` }},
		{"products not array", func(f map[string]string) { f["products"] = `{"name":"A"}` }},
		{"unnamed product", func(f map[string]string) { f["products"] = `[{"price":1}]` }},
		{"negative price", func(f map[string]string) { f["products"] = `[{"name":"A","price":-1}]` }},
		{"bad counts", func(f map[string]string) { f["productsImageCounts"] = `["two"]` }},
		{"malformed sliders", func(f map[string]string) { f["sliderImages"] = `nope` }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := baseFields()
			tt.mutate(fields)
			_, err := ParseRequest(values(fields), defaults.Builtin())
			require.Error(t, err)
			assert.True(t, IsKind(err, KindValidation), "got %v", err)

			pe, _ := AsError(err)
			assert.Equal(t, 400, pe.HTTPStatus())
		})
	}
}

func TestCategoryLabel(t *testing.T) {
	assert.Equal(t, "general", categoryLabel(nil, "general"))
	assert.Equal(t, "shoes", categoryLabel([]any{"shoes"}, "general"))
	assert.Equal(t, "c-1", categoryLabel([]any{map[string]any{"id": "c-1"}}, "general"))
	assert.Equal(t, "3", categoryLabel([]any{float64(3)}, "general"))
	assert.Equal(t, "general", categoryLabel([]any{""}, "general"))
}
