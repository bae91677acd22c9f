package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ctei-manager/locker"
	"ctei-manager/models"
	"ctei-manager/scoring"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScoreValues sind die Kriterienwerte plus Gesamtnote, wie sie die API ausgibt.
type ScoreValues struct {
	scoring.Scores
	Total int `json:"total"`
}

// CalculationResult ist das Ergebnis der Bewertung eines Projekts.
type CalculationResult struct {
	ProjectID          uint             `json:"project_id"`
	ProjectTitle       string           `json:"project_title"`
	Scores             ScoreValues      `json:"scores"`
	EvaluationCategory scoring.Category `json:"evaluation_category"`
	Recommendations    []string         `json:"recommendations"`
	ScoreID            uint             `json:"score_id"`
	CalculationVersion int              `json:"calculation_version"`
}

// BatchError beschreibt ein Projekt, das im Sammellauf nicht bewertet wurde.
type BatchError struct {
	ProjectID uint   `json:"project_id"`
	Error     string `json:"error"`
}

// BatchResult fasst einen Sammellauf zusammen.
type BatchResult struct {
	Results []*CalculationResult `json:"results"`
	Errors  []BatchError         `json:"errors"`
}

// ScoringService berechnet Projektbewertungen und speichert sie versioniert.
type ScoringService struct {
	DB          *gorm.DB
	Logger      *zap.Logger
	Locker      locker.Locker
	Weights     scoring.Weights
	MaxParallel int
	LockTTL     time.Duration
	Now         func() time.Time
}

// NewScoringService erstellt eine neue Instanz des ScoringService.
func NewScoringService(db *gorm.DB, logger *zap.Logger, lk locker.Locker, weights scoring.Weights) *ScoringService {
	return &ScoringService{
		DB:          db,
		Logger:      logger,
		Locker:      lk,
		Weights:     weights,
		MaxParallel: 4,
		LockTTL:     2 * time.Minute,
		Now:         time.Now,
	}
}

// CalculateProject bewertet ein Projekt anhand des aktuellen Datenbankstands.
func (s *ScoringService) CalculateProject(ctx context.Context, projectID uint) (*CalculationResult, error) {
	log := s.Logger.With(zap.Uint("project_id", projectID))

	project, data, err := loadProjectData(ctx, s.DB, projectID)
	if err != nil {
		scoreCalculations.WithLabelValues("failed").Inc()
		return nil, err
	}
	if project.Owner == nil {
		scoreCalculations.WithLabelValues("failed").Inc()
		return nil, &CalculationError{ProjectID: projectID, Err: ErrMissingOwner}
	}
	data.Now = s.Now()

	res := scoring.Evaluate(*data, s.Weights)
	record, err := s.RecordScore(ctx, projectID, res)
	if err != nil {
		return nil, err
	}

	log.Info("Project score calculated",
		zap.Int("total", res.Total),
		zap.String("category", string(res.Category)),
		zap.Int("version", record.CalculationVersion))

	return &CalculationResult{
		ProjectID:          projectID,
		ProjectTitle:       project.Title,
		Scores:             ScoreValues{Scores: res.Scores, Total: res.Total},
		EvaluationCategory: res.Category,
		Recommendations:    res.Recommendations,
		ScoreID:            record.ID,
		CalculationVersion: record.CalculationVersion,
	}, nil
}

// RecordScore schreibt eine neue aktuelle Bewertung. Die bisherige aktuelle Zeile
// wird in derselben Transaktion historisch; schlägt das Einfügen fehl, bleibt sie aktuell.
func (s *ScoringService) RecordScore(ctx context.Context, projectID uint, res scoring.Result) (*models.ProjectScore, error) {
	release, ok, err := s.Locker.TryLock(ctx, fmt.Sprintf("scoring:project:%d", projectID), s.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire scoring lock: %w", err)
	}
	if !ok {
		return nil, ErrCalculationInProgress
	}
	defer release()

	score := &models.ProjectScore{
		ProjectID:          projectID,
		CompletenessScore:  res.Scores.Completeness,
		CollaborationScore: res.Scores.Collaboration,
		ProductivityScore:  res.Scores.Productivity,
		ImpactScore:        res.Scores.Impact,
		InnovationScore:    res.Scores.Innovation,
		TimelineScore:      res.Scores.Timeline,
		TotalScore:         res.Total,
		EvaluationCategory: string(res.Category),
		Recommendations:    res.Recommendations,
		LastCalculatedAt:   s.Now(),
		IsCurrent:          true,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			var locked models.Project
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&locked, projectID).Error; err != nil {
				return err
			}
		}

		var maxVersion int
		if err := tx.Model(&models.ProjectScore{}).
			Where("project_id = ?", projectID).
			Select("COALESCE(MAX(calculation_version), 0)").
			Scan(&maxVersion).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.ProjectScore{}).
			Where("project_id = ? AND is_current = ?", projectID, true).
			Update("is_current", false).Error; err != nil {
			return err
		}

		score.CalculationVersion = maxVersion + 1
		return tx.Create(score).Error
	})
	if err != nil {
		scoreCalculations.WithLabelValues("failed").Inc()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("persist project score: %w", err)
	}

	scoreCalculations.WithLabelValues("ok").Inc()
	projectTotalScore.Observe(float64(res.Total))
	return score, nil
}

// CalculateAll bewertet alle Projekte in den Status ACTIVE, REVIEW und COMPLETED.
// Fehler einzelner Projekte brechen den Lauf nicht ab, nur ein abgebrochener Kontext.
func (s *ScoringService) CalculateAll(ctx context.Context) (*BatchResult, error) {
	ids, err := scorableProjectIDs(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("Starting batch scoring", zap.Int("projects", len(ids)))

	results := make([]*CalculationResult, len(ids))
	failures := make([]error, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.MaxParallel))
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.CalculateProject(gctx, id)
			if err != nil {
				s.Logger.Error("Project scoring failed, continuing batch", zap.Uint("project_id", id), zap.Error(err))
				if errors.Is(err, ErrCalculationInProgress) {
					scoreCalculations.WithLabelValues("skipped").Inc()
				}
				failures[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := &BatchResult{Results: []*CalculationResult{}, Errors: []BatchError{}}
	for i, id := range ids {
		if failures[i] != nil {
			batch.Errors = append(batch.Errors, BatchError{ProjectID: id, Error: publicError(failures[i])})
			continue
		}
		batch.Results = append(batch.Results, results[i])
	}
	sort.Slice(batch.Results, func(i, j int) bool { return batch.Results[i].ProjectID < batch.Results[j].ProjectID })

	s.Logger.Info("Batch scoring completed",
		zap.Int("scored", len(batch.Results)),
		zap.Int("failed", len(batch.Errors)))
	return batch, nil
}

func scorableProjectIDs(ctx context.Context, db *gorm.DB) ([]uint, error) {
	var ids []uint
	err := db.WithContext(ctx).Model(&models.Project{}).
		Where("status IN ?", models.ScorableStatuses).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

// publicError liefert eine Meldung, die ohne interne Details an Clients gehen darf.
func publicError(err error) string {
	var calcErr *CalculationError
	switch {
	case errors.As(err, &calcErr):
		return calcErr.Err.Error()
	case errors.Is(err, ErrCalculationInProgress), errors.Is(err, ErrProjectNotFound):
		return err.Error()
	default:
		return "calculation failed"
	}
}
