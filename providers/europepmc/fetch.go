package europepmc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ctei-manager/providers"

	"go.uber.org/zap"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Fetcher implementiert das MetricsProvider-Interface für Europe PMC.
type Fetcher struct {
	BaseURL string
	Logger  *zap.Logger
}

// NewFetcher erstellt einen neuen Europe PMC Fetcher.
func NewFetcher(baseURL string, logger *zap.Logger) *Fetcher {
	return &Fetcher{BaseURL: strings.TrimRight(baseURL, "/"), Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "europepmc"
}

// Lookup sucht die DOI auf Europe PMC und liefert Zitationen und Open-Access-Status.
func (f *Fetcher) Lookup(ctx context.Context, doi string) (*providers.ProductMetrics, error) {
	doi = providers.NormalizeDOI(doi)
	log := f.Logger.With(zap.String("doi", doi))

	query := fmt.Sprintf(`DOI:"%s"`, doi)
	searchURL := fmt.Sprintf("%s/search?query=%s&format=json&resultType=core&pageSize=1", f.BaseURL, url.QueryEscape(query))
	log.Debug("Rufe Europe PMC API auf", zap.String("url", searchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("europepmc request failed with status: %d", resp.StatusCode)
	}

	var searchResponse SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResponse); err != nil {
		return nil, err
	}

	for _, article := range searchResponse.ResultList.Result {
		if providers.NormalizeDOI(article.DOI) != doi {
			continue
		}
		log.Debug("Artikel auf Europe PMC gefunden", zap.Int("cited_by", article.CitedByCount))
		return mapArticle(&article), nil
	}
	return nil, providers.ErrNotFound
}

// mapArticle konvertiert einen Europe PMC Artikel in unsere Kennzahlen.
func mapArticle(article *Article) *providers.ProductMetrics {
	cited := article.CitedByCount
	oa := strings.EqualFold(article.IsOpenAccess, "y")
	return &providers.ProductMetrics{
		CitationCount: &cited,
		IsOpenAccess:  &oa,
		Journal:       article.journal(),
	}
}
