package models

import "time"

// Collaborator verbindet einen Benutzer mit einem Projekt.
type Collaborator struct {
	ProjectID uint      `json:"project_id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"primaryKey"`
	AddedAt   time.Time `json:"added_at" gorm:"autoCreateTime"`

	CollaborationRole string `json:"collaboration_role"` // CO_INVESTIGATOR, RESEARCH_ASSISTANT, ADVISOR, EXTERNAL_COLLABORATOR
	CanEditProject    bool   `json:"can_edit_project"`
	CanAddProducts    bool   `json:"can_add_products"`
	CanManageTeam     bool   `json:"can_manage_team"`
	RoleDescription   string `json:"role_description,omitempty"`
}

func (Collaborator) TableName() string { return "project_collaborators" }
