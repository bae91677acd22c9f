package models

// All listet alle Modelle für die Auto-Migration.
func All() []any {
	return []any{
		&User{},
		&Project{},
		&ProductCategory{},
		&Product{},
		&Collaborator{},
		&Milestone{},
		&ProjectFile{},
		&ProjectScore{},
		&Alert{},
	}
}
