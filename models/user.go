package models

import "time"

// User ist ein Benutzer des Portals. Anmeldung und Passwörter verwaltet ein externer Dienst.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email    string `json:"email" gorm:"uniqueIndex;not null"`
	FullName string `json:"full_name"`
	Role     string `json:"role" gorm:"default:'INVESTIGATOR'"` // ADMIN, INVESTIGATOR, COMMUNITY
}

func (User) TableName() string { return "users" }
