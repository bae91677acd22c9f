// Package scoring berechnet die gewichtete Projektbewertung. Alle Funktionen
// sind rein: gleiche Eingabe, gleiche Ausgabe, keine Datenbankzugriffe.
package scoring

import (
	"math"
	"strings"
	"time"
)

// Criterion ist eine der sechs Bewertungsdimensionen.
type Criterion string

const (
	Completeness  Criterion = "completeness"
	Collaboration Criterion = "collaboration"
	Productivity  Criterion = "productivity"
	Impact        Criterion = "impact"
	Innovation    Criterion = "innovation"
	Timeline      Criterion = "timeline"
)

// Criteria enthält alle Kriterien in fester Reihenfolge.
var Criteria = []Criterion{Completeness, Collaboration, Productivity, Impact, Innovation, Timeline}

// CriterionInfo beschreibt ein Kriterium für die Oberfläche.
type CriterionInfo struct {
	Key         Criterion `json:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

var criterionInfo = map[Criterion]CriterionInfo{
	Completeness:  {Completeness, "Completitud", "Metadatos del proyecto diligenciados: título, resumen, metodología, fechas, institución y presupuesto"},
	Collaboration: {Collaboration, "Colaboración", "Número de colaboradores activos y diversidad de roles y permisos"},
	Productivity:  {Productivity, "Productividad", "Productos generados por año de vida del proyecto"},
	Impact:        {Impact, "Impacto", "Citaciones acumuladas y factor de impacto promedio de los productos"},
	Innovation:    {Innovation, "Innovación", "Presencia de patentes, software y bases de datos frente a productos descriptivos"},
	Timeline:      {Timeline, "Cronograma", "Cumplimiento de hitos en la fecha planeada"},
}

// Info liefert Name und Beschreibung eines Kriteriums.
func Info(c Criterion) CriterionInfo {
	return criterionInfo[c]
}

// Produktgruppen aus product_categories.category_group
const (
	GroupPublication = "PUBLICATION"
	GroupSoftware    = "SOFTWARE"
	GroupPatent      = "PATENT"
	GroupDatabase    = "DATABASE"
	GroupTraining    = "TRAINING"
	GroupOther       = "OTHER"
)

// ProjectFacts sind die Stammdaten eines Projekts, die in die Bewertung eingehen.
type ProjectFacts struct {
	Title       string
	Abstract    string
	Methodology string
	Institution string
	StartDate   *time.Time
	EndDate     *time.Time
	Budget      float64
	CreatedAt   time.Time
}

// ProductFacts beschreibt ein Produkt des Projekts.
type ProductFacts struct {
	CategoryGroup string
	DOI           string
	ImpactFactor  *float64
	CitationCount *int
}

// CollaboratorFacts beschreibt eine Mitarbeit am Projekt.
type CollaboratorFacts struct {
	UserID         uint
	Role           string
	CanEditProject bool
	CanAddProducts bool
	CanManageTeam  bool
}

// MilestoneFacts beschreibt einen geplanten Meilenstein.
type MilestoneFacts struct {
	TargetDate  time.Time
	CompletedAt *time.Time
}

// ProjectData bündelt alles, was die Kriterien lesen. Now ist der Stichtag.
type ProjectData struct {
	Project       ProjectFacts
	Products      []ProductFacts
	Collaborators []CollaboratorFacts
	Milestones    []MilestoneFacts
	Now           time.Time
}

const (
	collaboratorSaturation = 6
	productsPerYearFull    = 4.0
	minProjectYears        = 0.5
	impactBaseline         = 10
	graceDays              = 60.0
)

// CompletenessScore zählt die befüllten Stammdatenfelder.
func CompletenessScore(p ProjectFacts) int {
	fields := []bool{
		strings.TrimSpace(p.Title) != "",
		strings.TrimSpace(p.Abstract) != "",
		strings.TrimSpace(p.Methodology) != "",
		p.StartDate != nil,
		p.EndDate != nil,
		strings.TrimSpace(p.Institution) != "",
		p.Budget > 0,
	}
	filled := 0
	for _, ok := range fields {
		if ok {
			filled++
		}
	}
	return clamp(int(math.Round(100 * float64(filled) / float64(len(fields)))))
}

// CollaborationScore bewertet Anzahl und Vielfalt der Mitarbeitenden.
// Ab sechs Personen steigt der Anteil für die Anzahl nicht mehr.
func CollaborationScore(collaborators []CollaboratorFacts) int {
	if len(collaborators) == 0 {
		return 0
	}
	users := map[uint]struct{}{}
	roles := map[string]struct{}{}
	var canEdit, canAdd, canManage bool
	for _, c := range collaborators {
		users[c.UserID] = struct{}{}
		if c.Role != "" {
			roles[c.Role] = struct{}{}
		}
		canEdit = canEdit || c.CanEditProject
		canAdd = canAdd || c.CanAddProducts
		canManage = canManage || c.CanManageTeam
	}

	score := 10 * min(len(users), collaboratorSaturation)
	for _, has := range []bool{canEdit, canAdd, canManage} {
		if has {
			score += 10
		}
	}
	if len(roles) >= 2 {
		score += 10
	}
	return clamp(score)
}

// ProductivityScore setzt die Produktanzahl ins Verhältnis zur Projektlaufzeit.
func ProductivityScore(p ProjectFacts, products int, now time.Time) int {
	if products == 0 {
		return 0
	}
	years := projectYears(p, now)
	return clamp(int(math.Round(25 * float64(products) / years)))
}

func projectYears(p ProjectFacts, now time.Time) float64 {
	start := p.CreatedAt
	if p.StartDate != nil {
		start = *p.StartDate
	}
	end := now
	if p.EndDate != nil && p.EndDate.Before(now) {
		end = *p.EndDate
	}
	if start.IsZero() || !end.After(start) {
		return minProjectYears
	}
	years := end.Sub(start).Hours() / 24 / 365.25
	return math.Max(years, minProjectYears)
}

// ImpactScore kombiniert Zitationen und mittleren Impact-Faktor. Projekte mit
// Produkten, aber ohne bibliometrische Daten, erhalten den Grundwert.
func ImpactScore(products []ProductFacts) int {
	if len(products) == 0 {
		return 0
	}
	citations := 0
	var ifSum float64
	ifCount := 0
	for _, p := range products {
		if p.CitationCount != nil && *p.CitationCount > 0 {
			citations += *p.CitationCount
		}
		if p.ImpactFactor != nil && *p.ImpactFactor >= 0 {
			ifSum += *p.ImpactFactor
			ifCount++
		}
	}

	score := impactBaseline
	if citations > 0 {
		score += min(60, int(math.Round(15*math.Log2(1+float64(citations)))))
	}
	if ifCount > 0 {
		score += min(30, int(math.Round(6*ifSum/float64(ifCount))))
	}
	return clamp(score)
}

var innovationPoints = map[string]int{
	GroupPatent:   40,
	GroupSoftware: 25,
	GroupDatabase: 15,
}

// InnovationScore belohnt Patente, Software und Datenbanken.
func InnovationScore(products []ProductFacts) int {
	score := 0
	for _, p := range products {
		score += innovationPoints[strings.ToUpper(p.CategoryGroup)]
	}
	return clamp(score)
}

// TimelineScore misst die termingerechte Erfüllung der Meilensteine. Verspätungen
// kosten anteilig, nach 60 Tagen ist ein offener Meilenstein wertlos.
func TimelineScore(milestones []MilestoneFacts, now time.Time) int {
	if len(milestones) == 0 {
		return 0
	}
	var credit float64
	for _, m := range milestones {
		switch {
		case m.CompletedAt != nil && !m.CompletedAt.After(m.TargetDate):
			credit += 1
		case m.CompletedAt != nil:
			late := m.CompletedAt.Sub(m.TargetDate).Hours() / 24
			credit += math.Max(0.25, 1-late/graceDays)
		case !now.After(m.TargetDate):
			credit += 1
		default:
			overdue := now.Sub(m.TargetDate).Hours() / 24
			credit += math.Max(0, 1-overdue/graceDays)
		}
	}
	return clamp(int(math.Round(100 * credit / float64(len(milestones)))))
}

// OverdueDays liefert die größte Überfälligkeit offener Meilensteine in ganzen Tagen.
func OverdueDays(milestones []MilestoneFacts, now time.Time) int {
	worst := 0
	for _, m := range milestones {
		if m.CompletedAt != nil || !now.After(m.TargetDate) {
			continue
		}
		days := int(now.Sub(m.TargetDate).Hours() / 24)
		worst = max(worst, days)
	}
	return worst
}

// Calculate führt alle sechs Kriterien aus.
func Calculate(d ProjectData) Scores {
	return Scores{
		Completeness:  CompletenessScore(d.Project),
		Collaboration: CollaborationScore(d.Collaborators),
		Productivity:  ProductivityScore(d.Project, len(d.Products), d.Now),
		Impact:        ImpactScore(d.Products),
		Innovation:    InnovationScore(d.Products),
		Timeline:      TimelineScore(d.Milestones, d.Now),
	}
}

func clamp(v int) int {
	return max(0, min(100, v))
}
