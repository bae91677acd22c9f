package main

import (
	"errors"
	"io"
	"net/http"

	"ctei-manager/scoring"
	"ctei-manager/services"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type calculateRequest struct {
	ProjectID *uint `json:"project_id"`
}

type overviewQuery struct {
	Category string `form:"category"`
	MinScore *int   `form:"min_score" binding:"omitempty,min=0,max=100"`
	MaxScore *int   `form:"max_score" binding:"omitempty,min=0,max=100"`
	Limit    int    `form:"limit" binding:"omitempty,min=0"`
	Offset   int    `form:"offset" binding:"omitempty,min=0"`
}

type overviewData struct {
	Scores     []services.ScoreOverviewRow `json:"scores"`
	Statistics *services.ScoreStats        `json:"statistics"`
}

func setupScoringRoutes(router *gin.Engine, scorer *services.ScoringService, log *zap.Logger) {
	rg := router.Group("/scoring")

	// Ohne project_id werden alle bewertbaren Projekte neu berechnet
	rg.POST("/calculate", func(c *gin.Context) {
		var req calculateRequest
		// leerer Body ist erlaubt
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			fail(c, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.ProjectID != nil {
			res, err := scorer.CalculateProject(c.Request.Context(), *req.ProjectID)
			if err != nil {
				failService(c, log, err)
				return
			}
			ok(c, http.StatusOK, []*services.CalculationResult{res})
			return
		}

		batch, err := scorer.CalculateAll(c.Request.Context())
		if err != nil {
			failService(c, log, err)
			return
		}
		c.JSON(http.StatusOK, apiResponse{Success: true, Data: batch.Results, Errors: batch.Errors})
	})

	rg.GET("/overview", func(c *gin.Context) {
		var q overviewQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			fail(c, http.StatusBadRequest, "invalid query parameters")
			return
		}
		filter := services.ScoreFilter{MinScore: q.MinScore, MaxScore: q.MaxScore}
		if q.Category != "" {
			cat, valid := scoring.ParseCategory(q.Category)
			if !valid {
				fail(c, http.StatusBadRequest, "invalid category")
				return
			}
			filter.Category = cat
		}

		rows, total, err := scorer.ListScores(c.Request.Context(), filter, q.Limit, q.Offset)
		if err != nil {
			failService(c, log, err)
			return
		}
		stats, err := scorer.Stats(c.Request.Context())
		if err != nil {
			failService(c, log, err)
			return
		}

		rows = lo.Map(rows, func(r services.ScoreOverviewRow, _ int) services.ScoreOverviewRow {
			r.Recommendations = scoring.Top(r.Recommendations, scoring.SummaryLimit)
			return r
		})
		limit, offset := services.NormalizePage(q.Limit, q.Offset)
		c.JSON(http.StatusOK, apiResponse{
			Success:    true,
			Data:       overviewData{Scores: rows, Statistics: stats},
			Pagination: &pagination{Limit: limit, Offset: offset, Total: total},
		})
	})

	rg.GET("/project/:projectId", func(c *gin.Context) {
		id, valid := idParam(c, "projectId")
		if !valid {
			return
		}
		detail, err := scorer.ProjectDetail(c.Request.Context(), id)
		if err != nil {
			failService(c, log, err)
			return
		}
		ok(c, http.StatusOK, detail)
	})

	rg.GET("/criteria", func(c *gin.Context) {
		ok(c, http.StatusOK, scorer.Criteria())
	})
}
