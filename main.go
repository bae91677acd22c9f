package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"ctei-manager/config"
	"ctei-manager/locker"
	"ctei-manager/models"
	"ctei-manager/providers"
	"ctei-manager/providers/europepmc"
	"ctei-manager/providers/unpaywall"
	"ctei-manager/scoring"
	"ctei-manager/services"
	"ctei-manager/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// server bündelt die Abhängigkeiten der HTTP-Routen.
type server struct {
	DB       *gorm.DB
	Log      *zap.Logger
	Scorer   *services.ScoringService
	Alerts   *services.AlertService
	Enricher *services.EnrichmentService
	Store    storage.ObjectStore
	APIKey   string
}

func apiKeyAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-KEY") != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiResponse{Error: "unauthorized: invalid API key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}
	weights, err := cfg.Weights()
	if err != nil {
		logging.Fatal("Invalid scoring weights", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(models.All()...); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}
	seedDefaultCategories(db, logging)

	// Sperren
	lk, err := newLocker(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logging)
	if err != nil {
		logging.Fatal("Redis not reachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	// Provider
	var enabledProviders []providers.MetricsProvider
	for _, name := range cfg.ProviderNames() {
		switch name {
		case "europepmc":
			enabledProviders = append(enabledProviders, europepmc.NewFetcher(cfg.EuropePMCBaseURL, logging))
		case "unpaywall":
			if cfg.UnpaywallEmail == "" {
				logging.Warn("Unpaywall enabled without UNPAYWALL_EMAIL, skipping")
				continue
			}
			enabledProviders = append(enabledProviders, unpaywall.NewFetcher(cfg.UnpaywallBaseURL, cfg.UnpaywallEmail, logging))
		default:
			logging.Warn("Unknown provider in config", zap.String("provider_name", name))
		}
	}
	logging.Info("Active providers loaded", zap.Int("count", len(enabledProviders)))

	// Services
	scorer := services.NewScoringService(db, logging, lk, weights)
	scorer.MaxParallel = cfg.ScoringMaxParallel
	scorer.LockTTL = cfg.ScoringLockTTL
	enricher := services.NewEnrichmentService(db, logging, enabledProviders)
	enricher.MaxParallel = cfg.ScoringMaxParallel
	alerts := services.NewAlertService(db, logging, scorer)

	srv := server{
		DB:       db,
		Log:      logging,
		Scorer:   scorer,
		Alerts:   alerts,
		Enricher: enricher,
		APIKey:   cfg.APISecretKey,
	}
	if cfg.StorageEnabled() {
		store, err := storage.NewStore(context.Background(), storage.S3Config{
			Endpoint: cfg.S3URL,
			Region:   cfg.S3Region,
			Key:      cfg.S3Key,
			Secret:   cfg.S3Secret,
			Bucket:   cfg.S3Bucket,
		})
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		srv.Store = store
	} else {
		logging.Info("S3_BUCKET not set, project file routes disabled")
	}

	router := newRouter(srv)

	cronScheduler := cron.New()
	if _, err := cronScheduler.AddFunc(cfg.ScoringCronSchedule, func() {
		runNightlyBatch(context.Background(), srv)
	}); err != nil {
		logging.Fatal("Invalid SCORING_CRON_SCHEDULE", zap.String("schedule", cfg.ScoringCronSchedule), zap.Error(err))
	}
	cronScheduler.Start()
	defer cronScheduler.Stop()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := httpServer.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

const redisLockPrefix = "ctei:"

// newLocker nutzt Redis, sobald eine Adresse konfiguriert ist, sonst Sperren im Prozess.
func newLocker(ctx context.Context, addr, password string, db int, logger *zap.Logger) (locker.Locker, error) {
	if addr == "" {
		return locker.NewMemory(), nil
	}
	rdb := locker.NewRedisClient(addr, password, db)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	logger.Info("Using Redis for scoring locks", zap.String("addr", addr))
	return locker.NewRedis(rdb, redisLockPrefix, logger), nil
}

func newRouter(s server) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", func(c *gin.Context) {
		ok(c, http.StatusOK, gin.H{"status": "healthy", "service": "ctei-manager"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Use(apiKeyAuthMiddleware(s.APIKey))

	setupScoringRoutes(router, s.Scorer, s.Log)
	setupProjectRoutes(router, s.DB, s.Log)
	setupProductRoutes(router, s.DB, s.Enricher, s.Log)
	setupAlertRoutes(router, s.Alerts, s.Log)
	if s.Store != nil {
		setupFileRoutes(router, s.DB, s.Store, s.Log)
	}
	return router
}

// runNightlyBatch aktualisiert Bibliometrie, Bewertungen und Alarme in dieser Reihenfolge.
func runNightlyBatch(ctx context.Context, s server) {
	s.Log.Info("Running scheduled scoring job...")

	if n, err := s.Enricher.EnrichAll(ctx); err != nil {
		s.Log.Error("Scheduled enrichment failed", zap.Error(err))
	} else {
		s.Log.Info("Scheduled enrichment completed", zap.Int("products_updated", n))
	}

	batch, err := s.Scorer.CalculateAll(ctx)
	if err != nil {
		s.Log.Error("Scheduled scoring failed", zap.Error(err))
		return
	}
	s.Log.Info("Scheduled scoring completed", zap.Int("scored", len(batch.Results)), zap.Int("failed", len(batch.Errors)))

	alerts, err := s.Alerts.AnalyzeAll(ctx)
	if err != nil {
		s.Log.Error("Scheduled alert analysis failed", zap.Error(err))
		return
	}
	s.Log.Info("Scheduled alert analysis completed", zap.Int("alerts", len(alerts.Alerts)), zap.Int("failed", len(alerts.Errors)))
}

// defaultCategories sind die Produkttypen des Minciencias-Modells.
var defaultCategories = []models.ProductCategory{
	{Code: "ART_A1", Name: "Artículo de investigación A1", CategoryGroup: scoring.GroupPublication, ImpactWeight: 1.0},
	{Code: "ART_A2", Name: "Artículo de investigación A2", CategoryGroup: scoring.GroupPublication, ImpactWeight: 0.8},
	{Code: "ART_B", Name: "Artículo de investigación B", CategoryGroup: scoring.GroupPublication, ImpactWeight: 0.6},
	{Code: "LIB", Name: "Libro resultado de investigación", CategoryGroup: scoring.GroupPublication, ImpactWeight: 0.9},
	{Code: "CAP", Name: "Capítulo de libro", CategoryGroup: scoring.GroupPublication, ImpactWeight: 0.5},
	{Code: "PAT", Name: "Patente de invención", CategoryGroup: scoring.GroupPatent, ImpactWeight: 1.0},
	{Code: "SW", Name: "Software registrado", CategoryGroup: scoring.GroupSoftware, ImpactWeight: 0.7},
	{Code: "BD", Name: "Base de datos", CategoryGroup: scoring.GroupDatabase, ImpactWeight: 0.5},
	{Code: "TES", Name: "Tesis dirigida", CategoryGroup: scoring.GroupTraining, ImpactWeight: 0.4},
	{Code: "OTRO", Name: "Otro producto", CategoryGroup: scoring.GroupOther, ImpactWeight: 0.2},
}

func seedDefaultCategories(db *gorm.DB, logger *zap.Logger) {
	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaultCategories).Error
	if err != nil {
		logger.Warn("Failed to seed default product categories", zap.Error(err))
		return
	}
	logger.Info("Default product categories seeded.")
}
