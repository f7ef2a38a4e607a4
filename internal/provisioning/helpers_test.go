package provisioning

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"
)

type testFile struct {
	field string
	name  string
	body  string
}

// buildForm encodes fields and files as multipart and parses them back the
// way the HTTP layer does.
func buildForm(t *testing.T, fields map[string]string, files []testFile) *multipart.Form {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name))
		h.Set("Content-Type", "image/png")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form
}

func baseFields() map[string]string {
	return map[string]string{
		"storeId":       "7",
		"storeSlug":     "delta-shop",
		"storeName":     "Delta Shop",
		"ownerEmail":    "owner@example.com",
		"ownerPassword": "s3cret",
		"ownerName":     "Dana Delta",
	}
}
