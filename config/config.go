package config

import (
	"fmt"
	"strings"
	"time"

	"ctei-manager/scoring"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Bewertungslauf
	ScoringCronSchedule string         `envconfig:"SCORING_CRON_SCHEDULE" default:"0 3 * * *"`
	ScoringMaxParallel  int            `envconfig:"SCORING_MAX_PARALLEL" default:"4"`
	ScoringLockTTL      time.Duration  `envconfig:"SCORING_LOCK_TTL" default:"2m"`
	ScoringWeights      map[string]int `envconfig:"SCORING_WEIGHTS"`

	// Redis ist optional, ohne Adresse wird lokal gesperrt
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// S3-kompatibler Speicher für Projektdateien (R2, Strato, MinIO)
	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION" default:"auto"`
	S3Bucket string `envconfig:"S3_BUCKET"`

	// Bibliometrie-Provider
	EuropePMCBaseURL string `envconfig:"EUROPEPMC_BASE_URL" default:"https://www.ebi.ac.uk/europepmc/webservices/rest"`
	UnpaywallBaseURL string `envconfig:"UNPAYWALL_BASE_URL" default:"https://api.unpaywall.org/v2"`
	UnpaywallEmail   string `envconfig:"UNPAYWALL_EMAIL"`
	EnabledProviders string `envconfig:"ENABLED_PROVIDERS" default:"europepmc,unpaywall"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// StorageEnabled meldet, ob ein Bucket für Projektdateien konfiguriert ist.
func (c *Config) StorageEnabled() bool {
	return c.S3Bucket != ""
}

// ProviderNames liefert die aktivierten Provider ohne Leerzeichen und leere Einträge.
func (c *Config) ProviderNames() []string {
	var names []string
	for _, name := range strings.Split(c.EnabledProviders, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Weights baut die Kriteriengewichte aus SCORING_WEIGHTS (z.B. "impact:20,timeline:0")
// auf den Standardwerten auf und prüft, dass sie zusammen 100 ergeben.
func (c *Config) Weights() (scoring.Weights, error) {
	w := scoring.DefaultWeights()
	for key, pct := range c.ScoringWeights {
		if err := w.Set(scoring.Criterion(strings.TrimSpace(strings.ToLower(key))), pct); err != nil {
			return scoring.Weights{}, fmt.Errorf("SCORING_WEIGHTS: %w", err)
		}
	}
	if err := w.Validate(); err != nil {
		return scoring.Weights{}, fmt.Errorf("SCORING_WEIGHTS: %w", err)
	}
	return w, nil
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
