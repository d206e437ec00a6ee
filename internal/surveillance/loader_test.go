package surveillance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoaderRefreshFromFiles(t *testing.T) {
	s := &stubStore{}
	l := NewLoader(
		writeFixture(t, "grippeweb.tsv", grippewebFixture),
		writeFixture(t, "amelag.tsv", wastewaterFixture),
		s,
		http.DefaultClient,
	)

	require.NoError(t, l.Refresh(context.Background()))

	require.NotNil(t, s.incidence)
	assert.Len(t, s.incidence.Records, 5)
	require.NotNil(t, s.wastewater)
	assert.Len(t, s.wastewater.Records, 5)
}

func TestLoaderRefreshFromHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/grippeweb.tsv":
			w.Write([]byte(grippewebFixture))
		case "/amelag.tsv":
			w.Write([]byte(wastewaterFixture))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := &stubStore{}
	l := NewLoader(srv.URL+"/grippeweb.tsv", srv.URL+"/amelag.tsv", s, srv.Client())

	require.NoError(t, l.Refresh(context.Background()))
	assert.NotNil(t, s.incidence)
	assert.NotNil(t, s.wastewater)
}

func TestLoaderPartialFailureKeepsSuccessfulDataset(t *testing.T) {
	s := &stubStore{}
	l := NewLoader(
		writeFixture(t, "grippeweb.tsv", grippewebFixture),
		filepath.Join(t.TempDir(), "missing.tsv"),
		s,
		http.DefaultClient,
	)

	err := l.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrDatasetUnavailable)

	// The dataset that did load is stored despite the overall error.
	assert.NotNil(t, s.incidence)
	assert.Nil(t, s.wastewater)
}

func TestLoaderRejectsMalformedDataset(t *testing.T) {
	s := &stubStore{}
	l := NewLoader(
		writeFixture(t, "grippeweb.tsv", "wrong\theader\nrow\trow\n"),
		writeFixture(t, "amelag.tsv", wastewaterFixture),
		s,
		http.DefaultClient,
	)

	err := l.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrDatasetUnavailable)
	assert.Nil(t, s.incidence)
	assert.NotNil(t, s.wastewater)
}
