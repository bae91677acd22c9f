package main

import (
	"errors"
	"net/http"
	"time"

	"ctei-manager/models"
	"ctei-manager/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type projectQuery struct {
	Status string `form:"status"`
	Search string `form:"search"`
	Limit  int    `form:"limit" binding:"omitempty,min=0"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

type projectInput struct {
	Title         string     `json:"title" binding:"required"`
	Abstract      string     `json:"abstract"`
	Keywords      string     `json:"keywords"`
	Methodology   string     `json:"methodology"`
	OwnerID       uint       `json:"owner_id" binding:"required"`
	IsPublic      bool       `json:"is_public"`
	Status        string     `json:"status"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	Institution   string     `json:"institution"`
	FundingSource string     `json:"funding_source"`
	Budget        float64    `json:"budget" binding:"min=0"`
	ProjectCode   string     `json:"project_code"`
}

func (in projectInput) apply(p *models.Project) {
	p.Title = in.Title
	p.Abstract = in.Abstract
	p.Keywords = in.Keywords
	p.Methodology = in.Methodology
	p.OwnerID = in.OwnerID
	p.IsPublic = in.IsPublic
	p.StartDate = in.StartDate
	p.EndDate = in.EndDate
	p.Institution = in.Institution
	p.FundingSource = in.FundingSource
	p.Budget = in.Budget
	p.ProjectCode = in.ProjectCode
	if in.Status != "" {
		p.Status = in.Status
	}
}

func (in projectInput) valid() bool {
	if in.Status != "" && !models.ValidProjectStatus(in.Status) {
		return false
	}
	return in.StartDate == nil || in.EndDate == nil || !in.EndDate.Before(*in.StartDate)
}

type collaboratorInput struct {
	UserID            uint   `json:"user_id" binding:"required"`
	CollaborationRole string `json:"collaboration_role" binding:"required"`
	CanEditProject    bool   `json:"can_edit_project"`
	CanAddProducts    bool   `json:"can_add_products"`
	CanManageTeam     bool   `json:"can_manage_team"`
	RoleDescription   string `json:"role_description"`
}

type milestoneInput struct {
	Title      string    `json:"title" binding:"required"`
	TargetDate time.Time `json:"target_date" binding:"required"`
}

// projectExists schreibt bei Fehlern selbst die Antwort.
func projectExists(c *gin.Context, db *gorm.DB, log *zap.Logger, id uint) bool {
	var count int64
	if err := db.WithContext(c.Request.Context()).Model(&models.Project{}).Where("id = ?", id).Count(&count).Error; err != nil {
		failService(c, log, err)
		return false
	}
	if count == 0 {
		failService(c, log, services.ErrProjectNotFound)
		return false
	}
	return true
}

func setupProjectRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/projects")

	rg.GET("", func(c *gin.Context) {
		var q projectQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			fail(c, http.StatusBadRequest, "invalid query parameters")
			return
		}
		limit, offset := services.NormalizePage(q.Limit, q.Offset)

		query := db.WithContext(c.Request.Context()).Model(&models.Project{})
		if q.Status != "" {
			query = query.Where("status = ?", q.Status)
		}
		if q.Search != "" {
			like := "%" + q.Search + "%"
			query = query.Where("title LIKE ? OR keywords LIKE ? OR project_code LIKE ?", like, like, like)
		}

		var total int64
		if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
			failService(c, log, err)
			return
		}
		projects := []models.Project{}
		if err := query.Preload("Owner").Order("updated_at desc, id desc").Limit(limit).Offset(offset).Find(&projects).Error; err != nil {
			failService(c, log, err)
			return
		}
		c.JSON(http.StatusOK, apiResponse{
			Success:    true,
			Data:       projects,
			Pagination: &pagination{Limit: limit, Offset: offset, Total: total},
		})
	})

	rg.POST("", func(c *gin.Context) {
		var in projectInput
		if err := c.ShouldBindJSON(&in); err != nil || !in.valid() {
			fail(c, http.StatusBadRequest, "invalid request body")
			return
		}
		project := models.Project{Status: models.ProjectDraft}
		in.apply(&project)
		if err := db.WithContext(c.Request.Context()).Create(&project).Error; err != nil {
			failService(c, log, err)
			return
		}
		ok(c, http.StatusCreated, project)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		var project models.Project
		if err := db.WithContext(c.Request.Context()).Preload("Owner").First(&project, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = services.ErrProjectNotFound
			}
			failService(c, log, err)
			return
		}
		ok(c, http.StatusOK, project)
	})

	rg.PUT("/:id", func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		var in projectInput
		if err := c.ShouldBindJSON(&in); err != nil || !in.valid() {
			fail(c, http.StatusBadRequest, "invalid request body")
			return
		}

		var project models.Project
		if err := db.WithContext(c.Request.Context()).First(&project, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = services.ErrProjectNotFound
			}
			failService(c, log, err)
			return
		}
		in.apply(&project)
		if err := db.WithContext(c.Request.Context()).Save(&project).Error; err != nil {
			failService(c, log, err)
			return
		}
		ok(c, http.StatusOK, project)
	})

	rg.POST("/:id/collaborators", func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		var in collaboratorInput
		if err := c.ShouldBindJSON(&in); err != nil {
			fail(c, http.StatusBadRequest, "invalid request body")
			return
		}
		if !projectExists(c, db, log, id) {
			return
		}

		collab := models.Collaborator{
			ProjectID:         id,
			UserID:            in.UserID,
			CollaborationRole: in.CollaborationRole,
			CanEditProject:    in.CanEditProject,
			CanAddProducts:    in.CanAddProducts,
			CanManageTeam:     in.CanManageTeam,
			RoleDescription:   in.RoleDescription,
		}
		// erneutes Hinzufügen aktualisiert Rolle und Rechte
		err := db.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"collaboration_role", "can_edit_project", "can_add_products", "can_manage_team", "role_description"}),
		}).Create(&collab).Error
		if err != nil {
			failService(c, log, err)
			return
		}
		ok(c, http.StatusCreated, collab)
	})

	rg.GET("/:id/collaborators", func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid || !projectExists(c, db, log, id) {
			return
		}
		collaborators := []models.Collaborator{}
		if err := db.WithContext(c.Request.Context()).Where("project_id = ?", id).Order("added_at").Find(&collaborators).Error; err != nil {
			failService(c, log, err)
			return
		}
		ok(c, http.StatusOK, collaborators)
	})

	rg.POST("/:id/milestones", func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		var in milestoneInput
		if err := c.ShouldBindJSON(&in); err != nil {
			fail(c, http.StatusBadRequest, "invalid request body")
			return
		}
		if !projectExists(c, db, log, id) {
			return
		}
		m := models.Milestone{ProjectID: id, Title: in.Title, TargetDate: in.TargetDate, Status: models.MilestonePending}
		if err := db.WithContext(c.Request.Context()).Create(&m).Error; err != nil {
			failService(c, log, err)
			return
		}
		ok(c, http.StatusCreated, m)
	})

	rg.GET("/:id/milestones", func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid || !projectExists(c, db, log, id) {
			return
		}
		milestones := []models.Milestone{}
		if err := db.WithContext(c.Request.Context()).Where("project_id = ?", id).Order("target_date").Find(&milestones).Error; err != nil {
			failService(c, log, err)
			return
		}
		ok(c, http.StatusOK, milestones)
	})

	router.PATCH("/milestones/:id/complete", func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		var m models.Milestone
		if err := db.WithContext(c.Request.Context()).First(&m, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				fail(c, http.StatusNotFound, "milestone not found")
				return
			}
			failService(c, log, err)
			return
		}
		if m.CompletedAt == nil {
			if err := db.WithContext(c.Request.Context()).Model(&m).Updates(map[string]any{
				"completed_at": time.Now(),
				"status":       models.MilestoneCompleted,
			}).Error; err != nil {
				failService(c, log, err)
				return
			}
		}
		ok(c, http.StatusOK, m)
	})
}
