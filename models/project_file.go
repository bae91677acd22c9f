package models

import "time"

// ProjectFile ist eine im Objektspeicher abgelegte Datei eines Projekts.
type ProjectFile struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UploadedAt time.Time `json:"uploaded_at" gorm:"autoCreateTime"`

	ProjectID   uint   `json:"project_id" gorm:"index;not null"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
	ObjectKey   string `json:"object_key" gorm:"uniqueIndex;size:512"`
	URL         string `json:"url" gorm:"type:text"`
}

func (ProjectFile) TableName() string { return "project_files" }
