package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"ctei-manager/models"
	"ctei-manager/providers"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// EnrichmentService gleicht Produkte mit DOI gegen Bibliometrie-Provider ab.
type EnrichmentService struct {
	DB          *gorm.DB
	Logger      *zap.Logger
	Providers   []providers.MetricsProvider
	MaxParallel int
	Now         func() time.Time
}

// NewEnrichmentService erstellt eine neue Instanz des EnrichmentService.
func NewEnrichmentService(db *gorm.DB, logger *zap.Logger, providerList []providers.MetricsProvider) *EnrichmentService {
	return &EnrichmentService{
		DB:          db,
		Logger:      logger,
		Providers:   providerList,
		MaxParallel: 4,
		Now:         time.Now,
	}
}

// MergeMetrics führt die Antworten mehrerer Provider zusammen: höchste
// Zitationszahl, Open Access sobald ein Provider es meldet, erstes Journal.
func MergeMetrics(results []*providers.ProductMetrics) providers.ProductMetrics {
	var merged providers.ProductMetrics
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.CitationCount != nil && (merged.CitationCount == nil || *r.CitationCount > *merged.CitationCount) {
			c := *r.CitationCount
			merged.CitationCount = &c
		}
		if r.IsOpenAccess != nil {
			oa := *r.IsOpenAccess || (merged.IsOpenAccess != nil && *merged.IsOpenAccess)
			merged.IsOpenAccess = &oa
		}
		if merged.Journal == "" {
			merged.Journal = r.Journal
		}
	}
	return merged
}

// productUpdates bildet die zusammengeführten Kennzahlen auf Spaltenänderungen ab.
// Zitationen sinken nie; ein gepflegtes Journal wird nicht überschrieben.
func productUpdates(p models.Product, m providers.ProductMetrics, now time.Time) map[string]any {
	updates := map[string]any{}
	if m.CitationCount != nil && (p.CitationCount == nil || *m.CitationCount > *p.CitationCount) {
		updates["citation_count"] = *m.CitationCount
	}
	if m.IsOpenAccess != nil && *m.IsOpenAccess != p.IsOpenAccess {
		updates["is_open_access"] = *m.IsOpenAccess
	}
	if p.Journal == "" && m.Journal != "" {
		updates["journal"] = m.Journal
	}
	updates["metrics_updated_at"] = now
	return updates
}

// EnrichProject aktualisiert alle Produkte eines Projekts mit DOI und liefert
// die Anzahl der Produkte, für die mindestens ein Provider Daten hatte.
func (e *EnrichmentService) EnrichProject(ctx context.Context, projectID uint) (int, error) {
	var project models.Project
	if err := e.DB.WithContext(ctx).Select("id").First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrProjectNotFound
		}
		return 0, err
	}

	var products []models.Product
	if err := e.DB.WithContext(ctx).
		Where("project_id = ? AND doi IS NOT NULL AND doi <> ''", projectID).
		Order("id").
		Find(&products).Error; err != nil {
		return 0, err
	}

	updated := 0
	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		ok, err := e.enrichProduct(ctx, p)
		if err != nil {
			return updated, err
		}
		if ok {
			updated++
		}
	}
	return updated, nil
}

func (e *EnrichmentService) enrichProduct(ctx context.Context, p models.Product) (bool, error) {
	log := e.Logger.With(zap.Uint("product_id", p.ID), zap.String("doi", p.DOI))

	var results []*providers.ProductMetrics
	for _, provider := range e.Providers {
		m, err := provider.Lookup(ctx, p.DOI)
		if err != nil {
			if errors.Is(err, providers.ErrNotFound) {
				log.Debug("DOI unknown to provider", zap.String("provider", provider.Name()))
			} else {
				log.Warn("Provider lookup failed", zap.String("provider", provider.Name()), zap.Error(err))
			}
			continue
		}
		productsEnriched.WithLabelValues(provider.Name()).Inc()
		results = append(results, m)
	}
	if len(results) == 0 {
		return false, nil
	}

	updates := productUpdates(p, MergeMetrics(results), e.Now())
	if err := e.DB.WithContext(ctx).Model(&p).Updates(updates).Error; err != nil {
		return false, err
	}
	return true, nil
}

// EnrichAll gleicht die Produkte aller bewertbaren Projekte ab. Fehler einzelner
// Projekte werden protokolliert und übersprungen.
func (e *EnrichmentService) EnrichAll(ctx context.Context) (int, error) {
	ids, err := scorableProjectIDs(ctx, e.DB)
	if err != nil {
		return 0, err
	}

	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.MaxParallel))
	for _, id := range ids {
		g.Go(func() error {
			n, err := e.EnrichProject(gctx, id)
			total.Add(int64(n))
			if err != nil {
				e.Logger.Error("Product enrichment failed, continuing", zap.Uint("project_id", id), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return int(total.Load()), err
	}
	e.Logger.Info("Product enrichment completed", zap.Int("projects", len(ids)), zap.Int64("products_updated", total.Load()))
	return int(total.Load()), nil
}
