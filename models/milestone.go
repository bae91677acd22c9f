package models

import "time"

const (
	MilestonePending   = "PENDING"
	MilestoneCompleted = "COMPLETED"
)

// Milestone ist ein geplanter Meilenstein eines Projekts.
type Milestone struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectID   uint       `json:"project_id" gorm:"index;not null"`
	Title       string     `json:"title" gorm:"not null"`
	TargetDate  time.Time  `json:"target_date"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      string     `json:"status" gorm:"default:'PENDING'"`
}

func (Milestone) TableName() string { return "project_milestones" }
