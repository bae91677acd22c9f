package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProjectScore speichert das Ergebnis eines Bewertungslaufs. Zeilen werden nie
// geändert außer is_current; pro Projekt ist höchstens eine Zeile aktuell.
type ProjectScore struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ProjectID uint `json:"project_id" gorm:"not null;index;uniqueIndex:idx_project_scores_current,where:is_current = true;uniqueIndex:idx_project_scores_version,priority:1"`

	CompletenessScore  int `json:"completeness_score"`
	CollaborationScore int `json:"collaboration_score"`
	ProductivityScore  int `json:"productivity_score"`
	ImpactScore        int `json:"impact_score"`
	InnovationScore    int `json:"innovation_score"`
	TimelineScore      int `json:"timeline_score"`

	TotalScore         int                         `json:"total_score" gorm:"index"`
	EvaluationCategory string                      `json:"evaluation_category" gorm:"index;size:32"`
	Recommendations    datatypes.JSONSlice[string] `json:"recommendations"`

	LastCalculatedAt   time.Time `json:"last_calculated_at" gorm:"index"`
	IsCurrent          bool      `json:"is_current" gorm:"index;default:false"`
	CalculationVersion int       `json:"calculation_version" gorm:"uniqueIndex:idx_project_scores_version,priority:2"`
}

// TableName gibt explizit den Tabellennamen an.
func (ProjectScore) TableName() string {
	return "project_scores"
}
