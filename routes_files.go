package main

import (
	"errors"
	"net/http"

	"ctei-manager/models"
	"ctei-manager/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxUploadSize = 50 << 20

func setupFileRoutes(router *gin.Engine, db *gorm.DB, store storage.ObjectStore, log *zap.Logger) {
	rg := router.Group("/projects/:id/files")

	rg.POST("", func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
		header, err := c.FormFile("file")
		if err != nil {
			fail(c, http.StatusBadRequest, "multipart field 'file' required")
			return
		}
		if !projectExists(c, db, log, id) {
			return
		}

		f, err := header.Open()
		if err != nil {
			fail(c, http.StatusBadRequest, "unreadable upload")
			return
		}
		defer f.Close()

		contentType := header.Header.Get("Content-Type")
		key := storage.ProjectFileKey(id, header.Filename)
		url, err := store.Upload(c.Request.Context(), key, contentType, f)
		if err != nil {
			log.Error("Upload to object storage failed", zap.Uint("project_id", id), zap.String("key", key), zap.Error(err))
			fail(c, http.StatusBadGateway, "upload to object storage failed")
			return
		}

		file := models.ProjectFile{
			ProjectID:   id,
			FileName:    header.Filename,
			ContentType: contentType,
			Size:        header.Size,
			ObjectKey:   key,
			URL:         url,
		}
		if err := db.WithContext(c.Request.Context()).Create(&file).Error; err != nil {
			// verwaistes Objekt entfernen
			if delErr := store.Delete(c.Request.Context(), key); delErr != nil {
				log.Warn("Failed to remove orphaned object", zap.String("key", key), zap.Error(delErr))
			}
			failService(c, log, err)
			return
		}
		ok(c, http.StatusCreated, file)
	})

	rg.GET("", func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid || !projectExists(c, db, log, id) {
			return
		}
		files := []models.ProjectFile{}
		if err := db.WithContext(c.Request.Context()).Where("project_id = ?", id).Order("uploaded_at desc, id desc").Find(&files).Error; err != nil {
			failService(c, log, err)
			return
		}
		ok(c, http.StatusOK, files)
	})

	rg.DELETE("/:fileId", func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		fileID, valid := idParam(c, "fileId")
		if !valid {
			return
		}

		var file models.ProjectFile
		if err := db.WithContext(c.Request.Context()).Where("project_id = ?", id).First(&file, fileID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				fail(c, http.StatusNotFound, "file not found")
				return
			}
			failService(c, log, err)
			return
		}
		if err := store.Delete(c.Request.Context(), file.ObjectKey); err != nil {
			log.Error("Delete from object storage failed", zap.String("key", file.ObjectKey), zap.Error(err))
			fail(c, http.StatusBadGateway, "delete from object storage failed")
			return
		}
		if err := db.WithContext(c.Request.Context()).Delete(&file).Error; err != nil {
			failService(c, log, err)
			return
		}
		ok(c, http.StatusOK, gin.H{"deleted": file.ID})
	})
}
