package main

import (
	"errors"
	"io"
	"net/http"

	"ctei-manager/models"
	"ctei-manager/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type alertQuery struct {
	ProjectID   uint   `form:"project_id"`
	Status      string `form:"status"`
	Category    string `form:"category"`
	MinSeverity int    `form:"min_severity" binding:"omitempty,min=1,max=5"`
	Limit       int    `form:"limit" binding:"omitempty,min=0"`
	Offset      int    `form:"offset" binding:"omitempty,min=0"`
}

type analyzeRequest struct {
	ProjectID *uint `json:"project_id"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required,oneof=ACKNOWLEDGED RESOLVED DISMISSED"`
}

func setupAlertRoutes(router *gin.Engine, alerts *services.AlertService, log *zap.Logger) {
	rg := router.Group("/alerts")

	rg.GET("", func(c *gin.Context) {
		var q alertQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			fail(c, http.StatusBadRequest, "invalid query parameters")
			return
		}
		list, total, err := alerts.ListAlerts(c.Request.Context(), services.AlertFilter{
			ProjectID:   q.ProjectID,
			Status:      q.Status,
			Category:    q.Category,
			MinSeverity: q.MinSeverity,
		}, q.Limit, q.Offset)
		if err != nil {
			failService(c, log, err)
			return
		}
		limit, offset := services.NormalizePage(q.Limit, q.Offset)
		c.JSON(http.StatusOK, apiResponse{
			Success:    true,
			Data:       list,
			Pagination: &pagination{Limit: limit, Offset: offset, Total: total},
		})
	})

	rg.POST("/analyze", func(c *gin.Context) {
		var req analyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			fail(c, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.ProjectID != nil {
			list, err := alerts.AnalyzeProject(c.Request.Context(), *req.ProjectID)
			if err != nil {
				failService(c, log, err)
				return
			}
			ok(c, http.StatusOK, list)
			return
		}

		batch, err := alerts.AnalyzeAll(c.Request.Context())
		if err != nil {
			failService(c, log, err)
			return
		}
		c.JSON(http.StatusOK, apiResponse{Success: true, Data: batch.Alerts, Errors: batch.Errors})
	})

	rg.PATCH("/:id/status", func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "status must be one of "+models.AlertAcknowledged+", "+models.AlertResolved+", "+models.AlertDismissed)
			return
		}
		alert, err := alerts.Transition(c.Request.Context(), id, req.Status)
		if err != nil {
			failService(c, log, err)
			return
		}
		ok(c, http.StatusOK, alert)
	})
}
