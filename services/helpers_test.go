package services

import (
	"fmt"
	"testing"
	"time"

	"ctei-manager/locker"
	"ctei-manager/models"
	"ctei-manager/scoring"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	require.NoError(t, db.Create([]models.ProductCategory{
		{Code: "ART", Name: "Artículo", CategoryGroup: scoring.GroupPublication},
		{Code: "PAT", Name: "Patente", CategoryGroup: scoring.GroupPatent},
		{Code: "SW", Name: "Software", CategoryGroup: scoring.GroupSoftware},
	}).Error)
	return db
}

func newTestScorer(db *gorm.DB) *ScoringService {
	s := NewScoringService(db, zap.NewNop(), locker.NewMemory(), scoring.DefaultWeights())
	s.Now = func() time.Time { return testNow }
	return s
}

func createUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	u := models.User{Email: email, FullName: "Investigador " + email}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// createProject legt ein aktives Projekt mit vollständigen Stammdaten an.
func createProject(t *testing.T, db *gorm.DB, ownerID uint, title string) models.Project {
	t.Helper()
	p := models.Project{
		Title:       title,
		Abstract:    "Resumen",
		Methodology: "Metodología",
		Institution: "Universidad de Antioquia",
		OwnerID:     ownerID,
		Status:      models.ProjectActive,
		StartDate:   ptr(testNow.AddDate(-2, 0, 0)),
		EndDate:     ptr(testNow.AddDate(1, 0, 0)),
		Budget:      50000,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func addProducts(t *testing.T, db *gorm.DB, projectID uint, products ...models.Product) {
	t.Helper()
	for i := range products {
		products[i].ProjectID = projectID
		require.NoError(t, db.Create(&products[i]).Error)
	}
}
