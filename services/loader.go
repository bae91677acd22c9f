package services

import (
	"context"
	"errors"

	"ctei-manager/models"
	"ctei-manager/scoring"

	"gorm.io/gorm"
)

type productFactsRow struct {
	CategoryGroup string
	DOI           string
	ImpactFactor  *float64
	CitationCount *int
}

// loadProjectData liest Projekt, Eigentümer und alle Kindzeilen und bildet sie
// auf die Eingabe der Bewertung ab.
func loadProjectData(ctx context.Context, db *gorm.DB, projectID uint) (*models.Project, *scoring.ProjectData, error) {
	db = db.WithContext(ctx)

	var project models.Project
	if err := db.Preload("Owner").First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrProjectNotFound
		}
		return nil, nil, err
	}

	var products []productFactsRow
	err := db.Table("products").
		Select("COALESCE(product_categories.category_group, '') AS category_group, COALESCE(products.doi, '') AS doi, products.impact_factor, products.citation_count").
		Joins("LEFT JOIN product_categories ON product_categories.code = products.product_type").
		Where("products.project_id = ?", projectID).
		Order("products.id").
		Scan(&products).Error
	if err != nil {
		return nil, nil, err
	}

	var collaborators []models.Collaborator
	if err := db.Where("project_id = ?", projectID).Find(&collaborators).Error; err != nil {
		return nil, nil, err
	}

	var milestones []models.Milestone
	if err := db.Where("project_id = ?", projectID).Order("target_date").Find(&milestones).Error; err != nil {
		return nil, nil, err
	}

	data := &scoring.ProjectData{
		Project: scoring.ProjectFacts{
			Title:       project.Title,
			Abstract:    project.Abstract,
			Methodology: project.Methodology,
			Institution: project.Institution,
			StartDate:   project.StartDate,
			EndDate:     project.EndDate,
			Budget:      project.Budget,
			CreatedAt:   project.CreatedAt,
		},
	}
	for _, p := range products {
		data.Products = append(data.Products, scoring.ProductFacts{
			CategoryGroup: p.CategoryGroup,
			DOI:           p.DOI,
			ImpactFactor:  p.ImpactFactor,
			CitationCount: p.CitationCount,
		})
	}
	for _, c := range collaborators {
		data.Collaborators = append(data.Collaborators, scoring.CollaboratorFacts{
			UserID:         c.UserID,
			Role:           c.CollaborationRole,
			CanEditProject: c.CanEditProject,
			CanAddProducts: c.CanAddProducts,
			CanManageTeam:  c.CanManageTeam,
		})
	}
	for _, m := range milestones {
		data.Milestones = append(data.Milestones, scoring.MilestoneFacts{
			TargetDate:  m.TargetDate,
			CompletedAt: m.CompletedAt,
		})
	}
	return &project, data, nil
}
