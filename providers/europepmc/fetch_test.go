package europepmc

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
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("query")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"hitCount": 1,
			"resultList": {"result": [
				{"id": "1", "doi": "10.1000/XYZ.1", "citedByCount": 42, "isOpenAccess": "Y",
				 "journalInfo": {"journal": {"title": "Revista Colombiana de Química"}}}
			]}
		}`))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL+"/", zap.NewNop())
	m, err := f.Lookup(context.Background(), "https://doi.org/10.1000/xyz.1")
	require.NoError(t, err)

	assert.Equal(t, `DOI:"10.1000/xyz.1"`, gotQuery)
	require.NotNil(t, m.CitationCount)
	assert.Equal(t, 42, *m.CitationCount)
	require.NotNil(t, m.IsOpenAccess)
	assert.True(t, *m.IsOpenAccess)
	assert.Equal(t, "Revista Colombiana de Química", m.Journal)
}

func TestLookupNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hitCount": 1, "resultList": {"result": [{"doi": "10.1000/other"}]}}`))
	}))
	defer srv.Close()

	_, err := NewFetcher(srv.URL, zap.NewNop()).Lookup(context.Background(), "10.1000/xyz")
	assert.ErrorIs(t, err, providers.ErrNotFound)
}

func TestLookupServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewFetcher(srv.URL, zap.NewNop()).Lookup(context.Background(), "10.1000/xyz")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, providers.ErrNotFound)
}
