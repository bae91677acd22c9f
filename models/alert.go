package models

import (
	"time"

	"gorm.io/datatypes"
)

// Alarmkategorien
const (
	AlertRisk        = "RISK"
	AlertOpportunity = "OPPORTUNITY"
	AlertPerformance = "PERFORMANCE"
	AlertCompliance  = "COMPLIANCE"
)

// Alarmstatus
const (
	AlertActive       = "ACTIVE"
	AlertAcknowledged = "ACKNOWLEDGED"
	AlertResolved     = "RESOLVED"
	AlertDismissed    = "DISMISSED"
)

// Alert ist ein erkanntes Risiko oder eine Chance eines Projekts. Alarme werden nie gelöscht.
type Alert struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectID     uint   `json:"project_id" gorm:"index;not null"`
	AlertType     string `json:"alert_type" gorm:"index;size:64"`
	Category      string `json:"category" gorm:"index;size:32"`
	Severity      int    `json:"severity"`
	Status        string `json:"status" gorm:"index;default:'ACTIVE'"`
	PriorityScore int    `json:"priority_score" gorm:"index"`

	Title   string         `json:"title"`
	Message string         `json:"message" gorm:"type:text"`
	Details datatypes.JSON `json:"details,omitempty"`

	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

func (Alert) TableName() string { return "project_alerts" }
