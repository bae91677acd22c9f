package unpaywall

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ctei-manager/providers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/10.1000/abc", r.URL.Path)
		assert.Equal(t, "ops@ctei.example", r.URL.Query().Get("email"))
		_, _ = w.Write([]byte(`{"doi": "10.1000/abc", "is_oa": true, "journal_name": "Acta Biológica"}`))
	}))
	defer srv.Close()

	m, err := NewFetcher(srv.URL, "ops@ctei.example", zap.NewNop()).Lookup(context.Background(), "DOI:10.1000/ABC")
	require.NoError(t, err)
	require.NotNil(t, m.IsOpenAccess)
	assert.True(t, *m.IsOpenAccess)
	assert.Nil(t, m.CitationCount)
	assert.Equal(t, "Acta Biológica", m.Journal)
}

func TestLookupNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewFetcher(srv.URL, "ops@ctei.example", zap.NewNop()).Lookup(context.Background(), "10.1000/abc")
	assert.ErrorIs(t, err, providers.ErrNotFound)
}

func TestLookupWithoutEmail(t *testing.T) {
	_, err := NewFetcher("http://unused", "", zap.NewNop()).Lookup(context.Background(), "10.1000/abc")
	assert.ErrorIs(t, err, ErrNoEmail)
}
