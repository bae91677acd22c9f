package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Config beschreibt einen S3-kompatiblen Endpunkt (R2, Strato, MinIO).
type S3Config struct {
	Endpoint string
	Region   string
	Key      string
	Secret   string
	Bucket   string
}

// Object ist ein Eintrag aus einer Bucket-Auflistung.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore ist die Schnittstelle, die Handler und Backup-Tool benutzen.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Object, error)
}

// Store ist die S3-Implementierung von ObjectStore.
type Store struct {
	client *s3.Client
	cfg    S3Config
}

// NewS3Client erstellt einen S3-Client für einen festen Endpunkt mit Path-Style-Adressierung.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.Key, cfg.Secret, "")),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	}), nil
}

// NewStore erstellt einen Store für den konfigurierten Bucket.
func NewStore(ctx context.Context, cfg S3Config) (*Store, error) {
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{client: client, cfg: cfg}, nil
}

// Upload lädt ein Objekt hoch und gibt den Link zurück.
func (s *Store) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", err
	}
	return ObjectURL(s.cfg.Endpoint, s.cfg.Bucket, key), nil
}

// Delete entfernt ein Objekt.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	return err
}

// List liefert alle Objekte unter prefix, neueste zuerst.
func (s *Store) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	SortNewestFirst(objects)
	return objects, nil
}

// SortNewestFirst sortiert nach LastModified absteigend, bei Gleichstand nach Key.
func SortNewestFirst(objects []Object) {
	sort.SliceStable(objects, func(i, j int) bool {
		if objects[i].LastModified.Equal(objects[j].LastModified) {
			return objects[i].Key > objects[j].Key
		}
		return objects[i].LastModified.After(objects[j].LastModified)
	})
}

// ObjectURL baut den öffentlichen Link eines Objekts.
func ObjectURL(endpoint, bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(endpoint, "/"), bucket, key)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ProjectFileKey erzeugt einen eindeutigen Schlüssel für eine Projektdatei.
func ProjectFileKey(projectID uint, fileName string) string {
	name := unsafeChars.ReplaceAllString(path.Base(fileName), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	return fmt.Sprintf("projects/%d/%s-%s", projectID, uuid.NewString(), name)
}
