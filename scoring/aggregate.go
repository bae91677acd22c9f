package scoring

import (
	"errors"
	"fmt"
)

// Scores hält die sechs Kriterienwerte (je 0-100).
type Scores struct {
	Completeness  int `json:"completeness"`
	Collaboration int `json:"collaboration"`
	Productivity  int `json:"productivity"`
	Impact        int `json:"impact"`
	Innovation    int `json:"innovation"`
	Timeline      int `json:"timeline"`
}

// Get liefert den Wert eines Kriteriums.
func (s Scores) Get(c Criterion) int {
	switch c {
	case Completeness:
		return s.Completeness
	case Collaboration:
		return s.Collaboration
	case Productivity:
		return s.Productivity
	case Impact:
		return s.Impact
	case Innovation:
		return s.Innovation
	case Timeline:
		return s.Timeline
	}
	return 0
}

// Category ist die diskrete Einstufung der Gesamtnote.
type Category string

const (
	Excelente      Category = "EXCELENTE"
	Bueno          Category = "BUENO"
	Regular        Category = "REGULAR"
	NecesitaMejora Category = "NECESITA_MEJORA"
)

// Categories in absteigender Reihenfolge.
var Categories = []Category{Excelente, Bueno, Regular, NecesitaMejora}

// ParseCategory prüft einen Kategorienamen aus einer Anfrage.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// CategoryFor ordnet eine Gesamtnote ein. Untergrenzen sind inklusiv.
func CategoryFor(total int) Category {
	switch {
	case total >= 85:
		return Excelente
	case total >= 70:
		return Bueno
	case total >= 50:
		return Regular
	default:
		return NecesitaMejora
	}
}

// Weights sind ganzzahlige Prozentgewichte je Kriterium; zusammen exakt 100.
type Weights map[Criterion]int

// DefaultWeights liefert die Standardgewichtung.
func DefaultWeights() Weights {
	return Weights{
		Completeness:  25,
		Collaboration: 20,
		Productivity:  25,
		Impact:        15,
		Innovation:    10,
		Timeline:      5,
	}
}

var (
	ErrUnknownCriterion = errors.New("unknown criterion")
	ErrWeightSum        = errors.New("weights must sum to 100")
)

// Set überschreibt ein einzelnes Gewicht.
func (w Weights) Set(c Criterion, pct int) error {
	if _, ok := criterionInfo[c]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCriterion, c)
	}
	if pct < 0 || pct > 100 {
		return fmt.Errorf("weight for %s out of range: %d", c, pct)
	}
	w[c] = pct
	return nil
}

// Validate prüft Vollständigkeit und Summe.
func (w Weights) Validate() error {
	sum := 0
	for _, c := range Criteria {
		pct, ok := w[c]
		if !ok {
			return fmt.Errorf("missing weight for %s", c)
		}
		if pct < 0 {
			return fmt.Errorf("negative weight for %s", c)
		}
		sum += pct
	}
	if len(w) != len(Criteria) {
		return ErrUnknownCriterion
	}
	if sum != 100 {
		return fmt.Errorf("%w, got %d", ErrWeightSum, sum)
	}
	return nil
}

// Fraction liefert das Gewicht als Anteil (0.25 statt 25).
func (w Weights) Fraction(c Criterion) float64 {
	return float64(w[c]) / 100
}

// Total berechnet round(Σ score*gewicht) in Ganzzahlarithmetik, halbe Punkte
// werden aufgerundet (70.5 -> 71).
func (w Weights) Total(s Scores) int {
	sum := 0
	for _, c := range Criteria {
		sum += clamp(s.Get(c)) * w[c]
	}
	return clamp((sum + 50) / 100)
}

// Result ist das vollständige Ergebnis einer Bewertung.
type Result struct {
	Scores          Scores
	Total           int
	Category        Category
	Recommendations []string
}

// Evaluate berechnet Kriterien, Gesamtnote, Kategorie und Empfehlungen.
func Evaluate(d ProjectData, w Weights) Result {
	scores := Calculate(d)
	total := w.Total(scores)
	return Result{
		Scores:          scores,
		Total:           total,
		Category:        CategoryFor(total),
		Recommendations: Recommend(scores, total, w),
	}
}
