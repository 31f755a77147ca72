package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/graphcraft/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestUpload(t *testing.T) {
	var gotBody, gotType, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody, gotType, gotMethod = string(body), r.Header.Get("Content-Type"), r.Method
		if r.URL.Path == "/denied" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, os.WriteFile(path, []byte("pixels"), 0o644))

	m := &Module{}
	b := registry.NewBuilder(nil)
	require.NoError(t, b.Install(m))
	reg, err := b.Build()
	require.NoError(t, err)
	def, ok := reg.Lookup("io.upload")
	require.True(t, ok)
	impl := def.Implementations()[0]
	assert.False(t, impl.Pure)

	invoke := func(src, url string) (cty.Value, error) {
		return impl.Func(context.Background(), []cty.Value{cty.StringVal(src), cty.StringVal(url)}, cty.Bool)
	}

	v, err := invoke(path, srv.URL+"/bucket/out.png")
	require.NoError(t, err)
	assert.Equal(t, cty.True, v)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "pixels", gotBody)
	assert.Equal(t, "image/png", gotType)

	_, err = invoke(path, srv.URL+"/denied")
	assert.ErrorContains(t, err, "403")

	_, err = invoke(filepath.Join(t.TempDir(), "missing"), srv.URL)
	assert.ErrorContains(t, err, "failed to open source file")
}
