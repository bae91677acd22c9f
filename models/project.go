package models

import "time"

// Projektstatus
const (
	ProjectDraft     = "DRAFT"
	ProjectActive    = "ACTIVE"
	ProjectReview    = "REVIEW"
	ProjectCompleted = "COMPLETED"
	ProjectSuspended = "SUSPENDED"
)

// ScorableStatuses sind die Status, die der Sammellauf bewertet.
var ScorableStatuses = []string{ProjectActive, ProjectReview, ProjectCompleted}

// ValidProjectStatus prüft einen Statuswert aus einer Anfrage.
func ValidProjectStatus(s string) bool {
	switch s {
	case ProjectDraft, ProjectActive, ProjectReview, ProjectCompleted, ProjectSuspended:
		return true
	}
	return false
}

// Project repräsentiert ein Forschungsprojekt.
type Project struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title       string `json:"title" gorm:"not null"`
	Abstract    string `json:"abstract" gorm:"type:text"`
	Keywords    string `json:"keywords,omitempty"`
	Methodology string `json:"methodology,omitempty" gorm:"type:text"`

	OwnerID  uint  `json:"owner_id" gorm:"index"`
	Owner    *User `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	IsPublic bool  `json:"is_public" gorm:"default:false"`

	Status        string     `json:"status" gorm:"index;default:'DRAFT'"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	Institution   string     `json:"institution,omitempty"`
	FundingSource string     `json:"funding_source,omitempty"`
	Budget        float64    `json:"budget"`
	ProjectCode   string     `json:"project_code,omitempty" gorm:"index"`
}

// TableName gibt explizit den Tabellennamen an.
func (Project) TableName() string {
	return "projects"
}
