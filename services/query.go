package services

import (
	"context"
	"errors"
	"math"
	"time"

	"ctei-manager/models"
	"ctei-manager/scoring"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	historyLimit    = 10
)

// ScoreFilter schränkt die Übersicht ein. Nil bzw. leer heißt ungefiltert.
type ScoreFilter struct {
	Category scoring.Category
	MinScore *int
	MaxScore *int
}

// ScoreOverviewRow ist eine aktuelle Bewertung mit Projekt- und Eigentümerdaten.
type ScoreOverviewRow struct {
	ScoreID            uint                        `json:"score_id"`
	ProjectID          uint                        `json:"project_id"`
	ProjectTitle       string                      `json:"project_title"`
	ProjectStatus      string                      `json:"project_status"`
	Institution        string                      `json:"institution"`
	OwnerName          string                      `json:"owner_name"`
	CompletenessScore  int                         `json:"completeness_score"`
	CollaborationScore int                         `json:"collaboration_score"`
	ProductivityScore  int                         `json:"productivity_score"`
	ImpactScore        int                         `json:"impact_score"`
	InnovationScore    int                         `json:"innovation_score"`
	TimelineScore      int                         `json:"timeline_score"`
	TotalScore         int                         `json:"total_score"`
	EvaluationCategory string                      `json:"evaluation_category"`
	Recommendations    datatypes.JSONSlice[string] `json:"recommendations"`
	LastCalculatedAt   time.Time                   `json:"last_calculated_at"`
	CalculationVersion int                         `json:"calculation_version"`
}

// ScoreStats sind Kennzahlen über alle aktuellen Bewertungen.
type ScoreStats struct {
	ByCategory    map[string]int64   `json:"by_category"`
	ByCriteria    map[string]float64 `json:"by_criteria"`
	TotalProjects int64              `json:"total_projects"`
}

// NormalizePage begrenzt limit und offset auf gültige Werte.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)
	return limit, max(0, offset)
}

// ListScores liefert die aktuellen Bewertungen, beste zuerst, bei Gleichstand die neueste.
func (s *ScoringService) ListScores(ctx context.Context, f ScoreFilter, limit, offset int) ([]ScoreOverviewRow, int64, error) {
	limit, offset = NormalizePage(limit, offset)

	base := func() *gorm.DB {
		q := s.DB.WithContext(ctx).
			Table("project_scores AS ps").
			Joins("JOIN projects p ON p.id = ps.project_id").
			Joins("LEFT JOIN users u ON u.id = p.owner_id").
			Where("ps.is_current = ?", true)
		if f.Category != "" {
			q = q.Where("ps.evaluation_category = ?", string(f.Category))
		}
		if f.MinScore != nil {
			q = q.Where("ps.total_score >= ?", *f.MinScore)
		}
		if f.MaxScore != nil {
			q = q.Where("ps.total_score <= ?", *f.MaxScore)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	rows := []ScoreOverviewRow{}
	err := base().
		Select(`ps.id AS score_id, ps.project_id, p.title AS project_title, p.status AS project_status,
			COALESCE(p.institution, '') AS institution, COALESCE(u.full_name, '') AS owner_name,
			ps.completeness_score, ps.collaboration_score, ps.productivity_score, ps.impact_score,
			ps.innovation_score, ps.timeline_score, ps.total_score, ps.evaluation_category,
			ps.recommendations, ps.last_calculated_at, ps.calculation_version`).
		Order("ps.total_score DESC, ps.last_calculated_at DESC, ps.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Stats aggregiert die aktuellen Bewertungen in der Datenbank.
func (s *ScoringService) Stats(ctx context.Context) (*ScoreStats, error) {
	db := s.DB.WithContext(ctx)

	var counts []struct {
		Category string
		Count    int64
	}
	if err := db.Model(&models.ProjectScore{}).
		Select("evaluation_category AS category, COUNT(*) AS count").
		Where("is_current = ?", true).
		Group("evaluation_category").
		Scan(&counts).Error; err != nil {
		return nil, err
	}

	var avg struct {
		Completeness  float64
		Collaboration float64
		Productivity  float64
		Impact        float64
		Innovation    float64
		Timeline      float64
		Total         float64
	}
	if err := db.Model(&models.ProjectScore{}).
		Select(`COALESCE(AVG(completeness_score), 0) AS completeness,
			COALESCE(AVG(collaboration_score), 0) AS collaboration,
			COALESCE(AVG(productivity_score), 0) AS productivity,
			COALESCE(AVG(impact_score), 0) AS impact,
			COALESCE(AVG(innovation_score), 0) AS innovation,
			COALESCE(AVG(timeline_score), 0) AS timeline,
			COALESCE(AVG(total_score), 0) AS total`).
		Where("is_current = ?", true).
		Scan(&avg).Error; err != nil {
		return nil, err
	}

	stats := &ScoreStats{
		ByCategory: map[string]int64{},
		ByCriteria: map[string]float64{
			string(scoring.Completeness):  round1(avg.Completeness),
			string(scoring.Collaboration): round1(avg.Collaboration),
			string(scoring.Productivity):  round1(avg.Productivity),
			string(scoring.Impact):        round1(avg.Impact),
			string(scoring.Innovation):    round1(avg.Innovation),
			string(scoring.Timeline):      round1(avg.Timeline),
			"total":                       round1(avg.Total),
		},
	}
	for _, c := range scoring.Categories {
		stats.ByCategory[string(c)] = 0
	}
	for _, c := range counts {
		stats.ByCategory[c.Category] = c.Count
		stats.TotalProjects += c.Count
	}
	return stats, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// CriterionDefinition beschreibt ein Kriterium mit aktiver Gewichtung.
type CriterionDefinition struct {
	scoring.CriterionInfo
	Weight        float64 `json:"weight"`
	WeightPercent int     `json:"weight_percent"`
	Threshold     int     `json:"recommendation_threshold"`
}

// Criteria liefert die Kriterien in fester Reihenfolge.
func (s *ScoringService) Criteria() []CriterionDefinition {
	defs := make([]CriterionDefinition, 0, len(scoring.Criteria))
	for _, c := range scoring.Criteria {
		defs = append(defs, CriterionDefinition{
			CriterionInfo: scoring.Info(c),
			Weight:        s.Weights.Fraction(c),
			WeightPercent: s.Weights[c],
			Threshold:     scoring.Threshold(c),
		})
	}
	return defs
}

// CriterionBreakdown ist ein Kriterium der aktuellen Bewertung.
type CriterionBreakdown struct {
	CriterionDefinition
	Score         int     `json:"score"`
	WeightedScore float64 `json:"weighted_score"`
}

// ProjectMetrics sind abgeleitete Kennzahlen eines Projekts.
type ProjectMetrics struct {
	ProductCount      int64   `json:"product_count"`
	CollaboratorCount int64   `json:"collaborator_count"`
	DOICount          int64   `json:"doi_count"`
	AvgImpactFactor   float64 `json:"avg_impact_factor"`
}

// ProjectDetail ist die Detailansicht der Bewertung eines Projekts.
type ProjectDetail struct {
	Project      *models.Project       `json:"project"`
	CurrentScore *models.ProjectScore  `json:"current_score"`
	Breakdown    []CriterionBreakdown  `json:"breakdown"`
	History      []models.ProjectScore `json:"history"`
	Metrics      ProjectMetrics        `json:"metrics"`
}

// ProjectDetail liefert aktuelle Bewertung, Aufschlüsselung, Verlauf und Kennzahlen.
func (s *ScoringService) ProjectDetail(ctx context.Context, projectID uint) (*ProjectDetail, error) {
	db := s.DB.WithContext(ctx)

	var project models.Project
	if err := db.Preload("Owner").First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}

	detail := &ProjectDetail{Project: &project, Breakdown: []CriterionBreakdown{}, History: []models.ProjectScore{}}

	var current models.ProjectScore
	err := db.Where("project_id = ? AND is_current = ?", projectID, true).First(&current).Error
	switch {
	case err == nil:
		detail.CurrentScore = &current
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	if detail.CurrentScore != nil {
		values := scoring.Scores{
			Completeness:  current.CompletenessScore,
			Collaboration: current.CollaborationScore,
			Productivity:  current.ProductivityScore,
			Impact:        current.ImpactScore,
			Innovation:    current.InnovationScore,
			Timeline:      current.TimelineScore,
		}
		for _, def := range s.Criteria() {
			score := values.Get(def.Key)
			detail.Breakdown = append(detail.Breakdown, CriterionBreakdown{
				CriterionDefinition: def,
				Score:               score,
				WeightedScore:       round1(float64(score) * def.Weight),
			})
		}
	}

	if err := db.Where("project_id = ?", projectID).
		Order("last_calculated_at DESC, calculation_version DESC").
		Limit(historyLimit).
		Find(&detail.History).Error; err != nil {
		return nil, err
	}

	var productAgg struct {
		ProductCount    int64
		DOICount        int64
		AvgImpactFactor float64
	}
	if err := db.Model(&models.Product{}).
		Select(`COUNT(*) AS product_count,
			COUNT(CASE WHEN doi IS NOT NULL AND doi <> '' THEN 1 END) AS doi_count,
			COALESCE(AVG(impact_factor), 0) AS avg_impact_factor`).
		Where("project_id = ?", projectID).
		Scan(&productAgg).Error; err != nil {
		return nil, err
	}
	detail.Metrics.ProductCount = productAgg.ProductCount
	detail.Metrics.DOICount = productAgg.DOICount
	detail.Metrics.AvgImpactFactor = math.Round(productAgg.AvgImpactFactor*100) / 100

	if err := db.Model(&models.Collaborator{}).
		Where("project_id = ?", projectID).
		Count(&detail.Metrics.CollaboratorCount).Error; err != nil {
		return nil, err
	}
	return detail, nil
}
