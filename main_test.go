package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ctei-manager/locker"
	"ctei-manager/models"
	"ctei-manager/scoring"
	"ctei-manager/services"
	"ctei-manager/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryStore) Upload(_ context.Context, key, _ string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return "https://files.example.org/ctei/" + key, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Object
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.Object{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

type testEnv struct {
	db     *gorm.DB
	router *gin.Engine
	store  *memoryStore
	owner  models.User
}

func newTestEnv(t *testing.T, apiKey string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
	log := zap.NewNop()
	seedDefaultCategories(db, log)

	owner := models.User{Email: "owner@udea.edu.co", FullName: "Ana Gómez"}
	require.NoError(t, db.Create(&owner).Error)

	scorer := services.NewScoringService(db, log, locker.NewMemory(), scoring.DefaultWeights())
	store := &memoryStore{objects: map[string][]byte{}}
	srv := server{
		DB:       db,
		Log:      log,
		Scorer:   scorer,
		Alerts:   services.NewAlertService(db, log, scorer),
		Enricher: services.NewEnrichmentService(db, log, nil),
		Store:    store,
		APIKey:   apiKey,
	}
	return &testEnv{db: db, router: newRouter(srv), store: store, owner: owner}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func (e *testEnv) createProject(t *testing.T, title string) uint {
	t.Helper()
	w, resp := e.do(t, http.MethodPost, "/projects", map[string]any{
		"title":       title,
		"abstract":    "Resumen del proyecto",
		"methodology": "Investigación aplicada",
		"institution": "Universidad de Antioquia",
		"owner_id":    e.owner.ID,
		"status":      models.ProjectActive,
		"start_date":  "2023-01-01T00:00:00Z",
		"end_date":    "2026-12-31T00:00:00Z",
		"budget":      120000,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return uint(resp["data"].(map[string]any)["id"].(float64))
}

func TestHealthAndAuth(t *testing.T) {
	env := newTestEnv(t, "secret")

	w, resp := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])

	w, resp = env.do(t, http.MethodGet, "/scoring/criteria", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, resp["success"])

	req := httptest.NewRequest(http.MethodGet, "/scoring/criteria", nil)
	req.Header.Set("X-API-KEY", "secret")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestScoringCriteriaRoute(t *testing.T) {
	env := newTestEnv(t, "")
	w, resp := env.do(t, http.MethodGet, "/scoring/criteria", nil)
	require.Equal(t, http.StatusOK, w.Code)

	defs := resp["data"].([]any)
	require.Len(t, defs, 6)
	first := defs[0].(map[string]any)
	assert.Equal(t, "completeness", first["key"])
	assert.Equal(t, 0.25, first["weight"])
}

func TestCalculateSingleProject(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.createProject(t, "Bioinsumos")

	for i := 1; i <= 2; i++ {
		w, resp := env.do(t, http.MethodPost, "/scoring/calculate", map[string]any{"project_id": id})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		results := resp["data"].([]any)
		require.Len(t, results, 1)
		res := results[0].(map[string]any)
		assert.EqualValues(t, id, res["project_id"])
		assert.Equal(t, "Bioinsumos", res["project_title"])
		assert.EqualValues(t, i, res["calculation_version"])
		scores := res["scores"].(map[string]any)
		assert.EqualValues(t, 100, scores["completeness"])
		assert.Contains(t, scores, "total")
		assert.NotEmpty(t, res["evaluation_category"])
	}

	var current int64
	require.NoError(t, env.db.Model(&models.ProjectScore{}).Where("project_id = ? AND is_current = ?", id, true).Count(&current).Error)
	assert.EqualValues(t, 1, current)
}

func TestCalculateErrors(t *testing.T) {
	env := newTestEnv(t, "")

	w, resp := env.do(t, http.MethodPost, "/scoring/calculate", map[string]any{"project_id": 4040})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "project not found", resp["error"])

	w, _ = env.do(t, http.MethodPost, "/scoring/calculate", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalculateAllRoute(t *testing.T) {
	env := newTestEnv(t, "")
	a := env.createProject(t, "A")
	b := env.createProject(t, "B")
	orphan := models.Project{Title: "Sin investigador", OwnerID: 999, Status: models.ProjectActive}
	require.NoError(t, env.db.Create(&orphan).Error)

	w, resp := env.do(t, http.MethodPost, "/scoring/calculate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	results := resp["data"].([]any)
	require.Len(t, results, 2)
	assert.EqualValues(t, a, results[0].(map[string]any)["project_id"])
	assert.EqualValues(t, b, results[1].(map[string]any)["project_id"])

	errs := resp["errors"].([]any)
	require.Len(t, errs, 1)
	assert.EqualValues(t, orphan.ID, errs[0].(map[string]any)["project_id"])
}

func TestOverviewRoute(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.createProject(t, "Panorama")
	w, _ := env.do(t, http.MethodPost, "/scoring/calculate", map[string]any{"project_id": id})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := env.do(t, http.MethodGet, "/scoring/overview?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := resp["data"].(map[string]any)
	rows := data["scores"].([]any)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "Panorama", row["project_title"])
	assert.Equal(t, "Ana Gómez", row["owner_name"])
	assert.LessOrEqual(t, len(row["recommendations"].([]any)), scoring.SummaryLimit)

	stats := data["statistics"].(map[string]any)
	assert.EqualValues(t, 1, stats["total_projects"])
	assert.Len(t, stats["by_category"], 4)
	assert.EqualValues(t, 5, resp["pagination"].(map[string]any)["limit"])

	w, resp = env.do(t, http.MethodGet, "/scoring/overview?min_score=90", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp["data"].(map[string]any)["scores"])

	w, _ = env.do(t, http.MethodGet, "/scoring/overview?category=MUY_BUENO", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = env.do(t, http.MethodGet, "/scoring/overview?min_score=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProjectDetailRoute(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.createProject(t, "Detalle")

	w, resp := env.do(t, http.MethodPost, fmt.Sprintf("/projects/%d/products", id), map[string]any{
		"product_type":  "ART_A1",
		"doi":           "https://doi.org/10.1000/XYZ",
		"impact_factor": 3.2,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "10.1000/xyz", resp["data"].(map[string]any)["doi"])

	w, _ = env.do(t, http.MethodPost, "/scoring/calculate", map[string]any{"project_id": id})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = env.do(t, http.MethodGet, fmt.Sprintf("/scoring/project/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := resp["data"].(map[string]any)
	assert.NotNil(t, data["current_score"])
	assert.Len(t, data["breakdown"], 6)
	assert.Len(t, data["history"], 1)
	metrics := data["metrics"].(map[string]any)
	assert.EqualValues(t, 1, metrics["product_count"])
	assert.EqualValues(t, 1, metrics["doi_count"])

	w, _ = env.do(t, http.MethodGet, "/scoring/project/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = env.do(t, http.MethodGet, "/scoring/project/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProjectRoutes(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.createProject(t, "Café especial")

	w, _ := env.do(t, http.MethodPost, "/projects", map[string]any{"title": "Sin dueño"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = env.do(t, http.MethodPost, "/projects", map[string]any{"title": "X", "owner_id": env.owner.ID, "status": "ARCHIVED"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp := env.do(t, http.MethodGet, "/projects?search=Caf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp["data"], 1)

	w, resp = env.do(t, http.MethodPut, fmt.Sprintf("/projects/%d", id), map[string]any{
		"title": "Café de origen", "owner_id": env.owner.ID, "status": models.ProjectReview,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.ProjectReview, resp["data"].(map[string]any)["status"])

	w, _ = env.do(t, http.MethodGet, "/projects/12345", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = env.do(t, http.MethodPost, fmt.Sprintf("/projects/%d/collaborators", id), map[string]any{
		"user_id": env.owner.ID, "collaboration_role": "ADVISOR", "can_add_products": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w, _ = env.do(t, http.MethodPost, fmt.Sprintf("/projects/%d/collaborators", id), map[string]any{
		"user_id": env.owner.ID, "collaboration_role": "CO_INVESTIGATOR",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w, resp = env.do(t, http.MethodGet, fmt.Sprintf("/projects/%d/collaborators", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	collabs := resp["data"].([]any)
	require.Len(t, collabs, 1)
	assert.Equal(t, "CO_INVESTIGATOR", collabs[0].(map[string]any)["collaboration_role"])

	w, resp = env.do(t, http.MethodPost, fmt.Sprintf("/projects/%d/milestones", id), map[string]any{
		"title": "Informe parcial", "target_date": "2024-03-01T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	mid := uint(resp["data"].(map[string]any)["id"].(float64))

	w, resp = env.do(t, http.MethodPatch, fmt.Sprintf("/milestones/%d/complete", mid), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.MilestoneCompleted, resp["data"].(map[string]any)["status"])
	assert.NotNil(t, resp["data"].(map[string]any)["completed_at"])

	w, _ = env.do(t, http.MethodPost, fmt.Sprintf("/projects/%d/products", id), map[string]any{"product_type": "NOPE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProductCategoryRoutes(t *testing.T) {
	env := newTestEnv(t, "")

	w, resp := env.do(t, http.MethodGet, "/product-categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp["data"], len(defaultCategories))

	w, _ = env.do(t, http.MethodPost, "/product-categories", map[string]any{"code": "APP", "name": "Aplicación móvil", "category_group": scoring.GroupSoftware})
	assert.Equal(t, http.StatusCreated, w.Code)
	w, _ = env.do(t, http.MethodPost, "/product-categories", map[string]any{"code": "APP", "name": "Otra", "category_group": scoring.GroupSoftware})
	assert.Equal(t, http.StatusConflict, w.Code)
	w, _ = env.do(t, http.MethodPost, "/product-categories", map[string]any{"code": "X", "name": "X", "category_group": "BLOG"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAlertRoutes(t *testing.T) {
	env := newTestEnv(t, "")
	weak := models.Project{Title: "Débil", OwnerID: env.owner.ID, Status: models.ProjectActive}
	require.NoError(t, env.db.Create(&weak).Error)

	w, resp := env.do(t, http.MethodPost, "/alerts/analyze", map[string]any{"project_id": weak.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := resp["data"].([]any)
	require.NotEmpty(t, created)
	alertID := uint(created[0].(map[string]any)["id"].(float64))

	w, resp = env.do(t, http.MethodGet, fmt.Sprintf("/alerts?project_id=%d", weak.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp["data"], len(created))

	w, _ = env.do(t, http.MethodPatch, fmt.Sprintf("/alerts/%d/status", alertID), map[string]any{"status": "ACTIVE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, resp = env.do(t, http.MethodPatch, fmt.Sprintf("/alerts/%d/status", alertID), map[string]any{"status": models.AlertDismissed})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.AlertDismissed, resp["data"].(map[string]any)["status"])
	w, _ = env.do(t, http.MethodPatch, fmt.Sprintf("/alerts/%d/status", alertID), map[string]any{"status": models.AlertResolved})
	assert.Equal(t, http.StatusConflict, w.Code)
	w, _ = env.do(t, http.MethodPatch, "/alerts/999/status", map[string]any{"status": models.AlertResolved})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp = env.do(t, http.MethodPost, "/alerts/analyze", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, resp["data"])
}

func TestFileRoutes(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.createProject(t, "Archivos")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "informe final.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 contenido"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/projects/%d/files", id), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	file := created.Data.(map[string]any)
	key := file["object_key"].(string)
	assert.True(t, strings.HasPrefix(key, fmt.Sprintf("projects/%d/", id)))
	assert.True(t, strings.HasSuffix(key, "informe_final.pdf"))
	assert.Contains(t, env.store.objects, key)

	w, resp := env.do(t, http.MethodGet, fmt.Sprintf("/projects/%d/files", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp["data"], 1)

	fileID := uint(file["id"].(float64))
	w, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/projects/%d/files/%d", id, fileID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, env.store.objects, key)

	w, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/projects/%d/files/%d", id, fileID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewLocker(t *testing.T) {
	ctx := context.Background()

	lk, err := newLocker(ctx, "", "", 0, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &locker.Memory{}, lk)

	mr := miniredis.RunT(t)
	lk, err = newLocker(ctx, mr.Addr(), "", 0, zap.NewNop())
	require.NoError(t, err)
	release, ok, err := lk.TryLock(ctx, "scoring:project:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("ctei:scoring:project:1"))
	release()

	addr := mr.Addr()
	mr.Close()
	_, err = newLocker(ctx, addr, "", 0, zap.NewNop())
	assert.Error(t, err)
}
