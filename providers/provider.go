package providers

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound meldet, dass der Provider die DOI nicht kennt.
var ErrNotFound = errors.New("doi not found")

// ProductMetrics sind bibliometrische Angaben zu einer DOI. Nil-Felder sind unbekannt.
type ProductMetrics struct {
	CitationCount *int
	IsOpenAccess  *bool
	Journal       string
}

// MetricsProvider ist das Interface, das jede Bibliometrie-Quelle (z.B. Europe PMC, Unpaywall) implementieren muss.
type MetricsProvider interface {
	// Lookup liefert die Kennzahlen zu einer DOI.
	Lookup(ctx context.Context, doi string) (*ProductMetrics, error)

	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "europepmc").
	Name() string
}

// NormalizeDOI entfernt URL-Präfixe und vereinheitlicht die Schreibweise.
func NormalizeDOI(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(s, "https://doi.org/")
	s = strings.TrimPrefix(s, "http://doi.org/")
	s = strings.TrimPrefix(s, "https://dx.doi.org/")
	s = strings.TrimPrefix(s, "doi:")
	return strings.TrimSpace(s)
}
