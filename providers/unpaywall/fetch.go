package unpaywall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ctei-manager/providers"

	"go.uber.org/zap"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// ErrNoEmail: Unpaywall verlangt eine Kontaktadresse.
var ErrNoEmail = errors.New("unpaywall email ist nicht konfiguriert")

// Response repräsentiert die JSON-Antwort der Unpaywall-API.
type Response struct {
	DOI         string `json:"doi"`
	IsOA        bool   `json:"is_oa"`
	JournalName string `json:"journal_name"`
}

// Fetcher kapselt die Logik für Unpaywall.
type Fetcher struct {
	BaseURL string
	Email   string
	Logger  *zap.Logger
}

// NewFetcher erstellt einen neuen Unpaywall-Fetcher.
func NewFetcher(baseURL, email string, logger *zap.Logger) *Fetcher {
	return &Fetcher{BaseURL: strings.TrimRight(baseURL, "/"), Email: email, Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "unpaywall"
}

// Lookup holt den Open-Access-Status via Unpaywall anhand der DOI.
func (f *Fetcher) Lookup(ctx context.Context, doi string) (*providers.ProductMetrics, error) {
	if f.Email == "" {
		return nil, ErrNoEmail
	}
	doi = providers.NormalizeDOI(doi)

	reqURL := fmt.Sprintf("%s/%s?email=%s", f.BaseURL, doi, url.QueryEscape(f.Email))
	log := f.Logger.With(zap.String("doi", doi))
	log.Debug("Rufe Unpaywall API auf.")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, providers.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unpaywall request failed with status: %d", resp.StatusCode)
	}

	var ur Response
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return nil, err
	}

	oa := ur.IsOA
	return &providers.ProductMetrics{IsOpenAccess: &oa, Journal: ur.JournalName}, nil
}
