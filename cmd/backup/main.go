package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"time"

	"ctei-manager/storage"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

const backupPrefix = "backups/"

type BackupConfig struct {
	PostgresHost     string        `envconfig:"POSTGRES_HOST" required:"true"`
	PostgresUser     string        `envconfig:"POSTGRES_USER" required:"true"`
	PostgresPassword string        `envconfig:"POSTGRES_PASSWORD" required:"true"`
	PostgresDB       string        `envconfig:"POSTGRES_DB" required:"true"`
	BackupBucket     string        `envconfig:"BACKUP_S3_BUCKET" required:"true"`
	BackupEndpoint   string        `envconfig:"BACKUP_S3_ENDPOINT" required:"true"`
	BackupAccessKey  string        `envconfig:"BACKUP_S3_ACCESS_KEY" required:"true"`
	BackupSecretKey  string        `envconfig:"BACKUP_S3_SECRET_KEY" required:"true"`
	BackupRegion     string        `envconfig:"BACKUP_S3_REGION" required:"true"`
	KeepBackups      int           `envconfig:"KEEP_BACKUPS" default:"4"`
	Timeout          time.Duration `envconfig:"BACKUP_TIMEOUT" default:"30m"`
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()
	logging.Info("Starte Backup-Prozess...")

	var cfg BackupConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logging.Fatal("Fehler beim Laden der Konfiguration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	// 1. Datenbank-Dump erstellen
	dumpData, err := createDump(ctx, cfg)
	if err != nil {
		logging.Fatal("Fehler beim Erstellen des DB-Dumps", zap.Error(err))
	}

	// 2. S3-Store erstellen
	store, err := storage.NewStore(ctx, storage.S3Config{
		Endpoint: cfg.BackupEndpoint,
		Region:   cfg.BackupRegion,
		Key:      cfg.BackupAccessKey,
		Secret:   cfg.BackupSecretKey,
		Bucket:   cfg.BackupBucket,
	})
	if err != nil {
		logging.Fatal("Fehler beim Erstellen des S3-Clients", zap.Error(err))
	}

	// 3. Backup hochladen
	key := backupKey(time.Now())
	if _, err := store.Upload(ctx, key, "application/gzip", bytes.NewReader(dumpData)); err != nil {
		logging.Fatal("Fehler beim Hochladen nach S3", zap.Error(err))
	}
	logging.Info("Backup hochgeladen", zap.String("bucket", cfg.BackupBucket), zap.String("key", key), zap.Int("bytes", len(dumpData)))

	// 4. Alte Backups rotieren
	if err := rotateBackups(ctx, store, cfg.KeepBackups, logging); err != nil {
		logging.Fatal("Fehler bei der Rotation alter Backups", zap.Error(err))
	}

	logging.Info("Backup-Prozess erfolgreich abgeschlossen.")
}

func backupKey(now time.Time) string {
	return fmt.Sprintf("%sbackup-%s.sql.gz", backupPrefix, now.UTC().Format("2006-01-02T15-04-05Z"))
}

func createDump(ctx context.Context, cfg BackupConfig) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "pg_dump",
		"-h", cfg.PostgresHost,
		"-U", cfg.PostgresUser,
		"-d", cfg.PostgresDB,
		"-w", // Passwort kommt über PGPASSWORD
	)
	cmd.Env = append(os.Environ(), fmt.Sprintf("PGPASSWORD=%s", cfg.PostgresPassword))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	if _, err := io.Copy(gzipWriter, stdout); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}
	if err := cmd.Wait(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// selectExpired liefert die Backups, die über die neuesten keep hinausgehen.
func selectExpired(objects []storage.Object, keep int) []storage.Object {
	if keep < 0 {
		keep = 0
	}
	if len(objects) <= keep {
		return nil
	}
	sorted := append([]storage.Object(nil), objects...)
	storage.SortNewestFirst(sorted)
	return sorted[keep:]
}

func rotateBackups(ctx context.Context, store storage.ObjectStore, keep int, logging *zap.Logger) error {
	objects, err := store.List(ctx, backupPrefix)
	if err != nil {
		return err
	}

	expired := selectExpired(objects, keep)
	if len(expired) == 0 {
		logging.Info("Keine Rotation nötig", zap.Int("backups", len(objects)), zap.Int("keep", keep))
		return nil
	}

	for _, obj := range expired {
		logging.Info("Lösche altes Backup", zap.String("key", obj.Key))
		if err := store.Delete(ctx, obj.Key); err != nil {
			logging.Warn("Fehler beim Löschen", zap.String("key", obj.Key), zap.Error(err))
		}
	}
	return nil
}
