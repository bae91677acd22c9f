package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"ctei-manager/models"
	"ctei-manager/providers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	name    string
	metrics map[string]*providers.ProductMetrics
	err     error
	calls   int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Lookup(_ context.Context, doi string) (*providers.ProductMetrics, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.metrics[doi]
	if !ok {
		return nil, providers.ErrNotFound
	}
	return m, nil
}

func TestMergeMetrics(t *testing.T) {
	merged := MergeMetrics([]*providers.ProductMetrics{
		{CitationCount: ptr(4), IsOpenAccess: ptr(false), Journal: "Biotecnología"},
		nil,
		{CitationCount: ptr(9), IsOpenAccess: ptr(true), Journal: "Other"},
		{IsOpenAccess: ptr(false)},
	})
	require.NotNil(t, merged.CitationCount)
	assert.Equal(t, 9, *merged.CitationCount)
	require.NotNil(t, merged.IsOpenAccess)
	assert.True(t, *merged.IsOpenAccess)
	assert.Equal(t, "Biotecnología", merged.Journal)

	empty := MergeMetrics(nil)
	assert.Nil(t, empty.CitationCount)
	assert.Nil(t, empty.IsOpenAccess)
}

func TestProductUpdatesNeverLowerCitations(t *testing.T) {
	p := models.Product{CitationCount: ptr(20), Journal: "Revista Colombiana"}
	u := productUpdates(p, providers.ProductMetrics{CitationCount: ptr(12), Journal: "Other"}, testNow)
	assert.NotContains(t, u, "citation_count")
	assert.NotContains(t, u, "journal")
	assert.Equal(t, testNow, u["metrics_updated_at"])
}

func TestEnrichProject(t *testing.T) {
	db := newTestDB(t)
	owner := createUser(t, db, "owner@udea.edu.co")
	p := createProject(t, db, owner.ID, "Con DOI")
	addProducts(t, db, p.ID,
		models.Product{ProductType: "ART", DOI: "10.1000/known"},
		models.Product{ProductType: "ART", DOI: "10.1000/unknown"},
		models.Product{ProductType: "SW"},
	)

	epmc := &fakeProvider{name: "europepmc", metrics: map[string]*providers.ProductMetrics{
		"10.1000/known": {CitationCount: ptr(14), IsOpenAccess: ptr(false), Journal: "Acta Biológica"},
	}}
	upw := &fakeProvider{name: "unpaywall", metrics: map[string]*providers.ProductMetrics{
		"10.1000/known": {IsOpenAccess: ptr(true)},
	}}
	broken := &fakeProvider{name: "broken", err: errors.New("timeout")}

	e := NewEnrichmentService(db, zap.NewNop(), []providers.MetricsProvider{epmc, upw, broken})
	e.Now = func() time.Time { return testNow }

	n, err := e.EnrichProject(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, epmc.calls, "products without DOI are skipped")

	var known models.Product
	require.NoError(t, db.Where("doi = ?", "10.1000/known").First(&known).Error)
	require.NotNil(t, known.CitationCount)
	assert.Equal(t, 14, *known.CitationCount)
	assert.True(t, known.IsOpenAccess)
	assert.Equal(t, "Acta Biológica", known.Journal)
	assert.NotNil(t, known.MetricsUpdatedAt)

	var unknown models.Product
	require.NoError(t, db.Where("doi = ?", "10.1000/unknown").First(&unknown).Error)
	assert.Nil(t, unknown.CitationCount)
	assert.Nil(t, unknown.MetricsUpdatedAt)

	_, err = e.EnrichProject(context.Background(), 404)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestEnrichAllFeedsScoring(t *testing.T) {
	db := newTestDB(t)
	owner := createUser(t, db, "owner@udea.edu.co")
	p := createProject(t, db, owner.ID, "Citado")
	addProducts(t, db, p.ID, models.Product{ProductType: "ART", DOI: "10.1000/cited"})

	s := newTestScorer(db)
	before, err := s.CalculateProject(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, before.Scores.Impact, "baseline without bibliometric data")

	e := NewEnrichmentService(db, zap.NewNop(), []providers.MetricsProvider{
		&fakeProvider{name: "europepmc", metrics: map[string]*providers.ProductMetrics{
			"10.1000/cited": {CitationCount: ptr(15)},
		}},
	})
	e.Now = func() time.Time { return testNow }
	n, err := e.EnrichAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	after, err := s.CalculateProject(context.Background(), p.ID)
	require.NoError(t, err)
	// 10 + round(15*log2(16))
	assert.Equal(t, 70, after.Scores.Impact)
	assert.Equal(t, 2, after.CalculationVersion)
}
