package main

import (
	"errors"
	"io"
	"net/http"
	"time"

	"ctei-manager/models"
	"ctei-manager/providers"
	"ctei-manager/scoring"
	"ctei-manager/services"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type productInput struct {
	ProductCode     string     `json:"product_code"`
	ProductType     string     `json:"product_type" binding:"required"`
	Description     string     `json:"description"`
	DOI             string     `json:"doi"`
	URL             string     `json:"url"`
	Journal         string     `json:"journal"`
	PublicationDate *time.Time `json:"publication_date"`
	ImpactFactor    *float64   `json:"impact_factor" binding:"omitempty,min=0"`
	CitationCount   *int       `json:"citation_count" binding:"omitempty,min=0"`
}

type enrichRequest struct {
	ProjectID *uint `json:"project_id"`
}

var categoryGroups = []string{
	scoring.GroupPublication, scoring.GroupSoftware, scoring.GroupPatent,
	scoring.GroupDatabase, scoring.GroupTraining, scoring.GroupOther,
}

func setupProductRoutes(router *gin.Engine, db *gorm.DB, enricher *services.EnrichmentService, log *zap.Logger) {
	router.POST("/projects/:id/products", func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		var in productInput
		if err := c.ShouldBindJSON(&in); err != nil {
			fail(c, http.StatusBadRequest, "invalid request body")
			return
		}
		if !projectExists(c, db, log, id) {
			return
		}

		var category models.ProductCategory
		if err := db.WithContext(c.Request.Context()).First(&category, "code = ?", in.ProductType).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				fail(c, http.StatusBadRequest, "unknown product_type")
				return
			}
			failService(c, log, err)
			return
		}

		product := models.Product{
			ProjectID:       id,
			ProductCode:     in.ProductCode,
			ProductType:     in.ProductType,
			Description:     in.Description,
			DOI:             providers.NormalizeDOI(in.DOI),
			URL:             in.URL,
			Journal:         in.Journal,
			PublicationDate: in.PublicationDate,
			ImpactFactor:    in.ImpactFactor,
			CitationCount:   in.CitationCount,
		}
		if err := db.WithContext(c.Request.Context()).Create(&product).Error; err != nil {
			failService(c, log, err)
			return
		}
		ok(c, http.StatusCreated, product)
	})

	router.GET("/projects/:id/products", func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid || !projectExists(c, db, log, id) {
			return
		}
		products := []models.Product{}
		if err := db.WithContext(c.Request.Context()).Where("project_id = ?", id).Order("id").Find(&products).Error; err != nil {
			failService(c, log, err)
			return
		}
		ok(c, http.StatusOK, products)
	})

	// Bibliometrie-Abgleich für ein Projekt oder alle bewertbaren Projekte
	router.POST("/products/enrich", func(c *gin.Context) {
		var req enrichRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			fail(c, http.StatusBadRequest, "invalid request body")
			return
		}

		var (
			n   int
			err error
		)
		if req.ProjectID != nil {
			n, err = enricher.EnrichProject(c.Request.Context(), *req.ProjectID)
		} else {
			n, err = enricher.EnrichAll(c.Request.Context())
		}
		if err != nil {
			failService(c, log, err)
			return
		}
		ok(c, http.StatusOK, gin.H{"products_updated": n})
	})

	rg := router.Group("/product-categories")
	rg.GET("", func(c *gin.Context) {
		categories := []models.ProductCategory{}
		if err := db.WithContext(c.Request.Context()).Order("category_group, code").Find(&categories).Error; err != nil {
			failService(c, log, err)
			return
		}
		ok(c, http.StatusOK, categories)
	})
	rg.POST("", func(c *gin.Context) {
		var category models.ProductCategory
		if err := c.ShouldBindJSON(&category); err != nil || category.Code == "" || category.Name == "" {
			fail(c, http.StatusBadRequest, "invalid request body")
			return
		}
		if !lo.Contains(categoryGroups, category.CategoryGroup) {
			fail(c, http.StatusBadRequest, "invalid category_group")
			return
		}
		result := db.WithContext(c.Request.Context()).Where("code = ?", category.Code).FirstOrCreate(&category)
		if result.Error != nil {
			failService(c, log, result.Error)
			return
		}
		if result.RowsAffected == 0 {
			fail(c, http.StatusConflict, "category already exists")
			return
		}
		ok(c, http.StatusCreated, category)
	})
}
