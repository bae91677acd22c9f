package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ctei-manager/models"
	"ctei-manager/scoring"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Alarmtypen, je Projekt höchstens ein offener Alarm pro Typ.
const (
	AlertTypeOverdueMilestones  = "overdue_milestones"
	AlertTypeLowScore           = "low_score"
	AlertTypeIncompleteMetadata = "incomplete_metadata"
	AlertTypeHighImpact         = "high_impact"
)

var openAlertStatuses = []string{models.AlertActive, models.AlertAcknowledged}

// Condition ist ein erkannter Zustand, aus dem ein Alarm wird.
type Condition struct {
	AlertType string
	Category  string
	Severity  int
	Title     string
	Message   string
	Details   map[string]any
}

// ScoreSnapshot sind die Bewertungswerte, die die Alarmregeln lesen.
type ScoreSnapshot struct {
	Scores   scoring.Scores
	Total    int
	Category scoring.Category
}

// OverdueSeverity stuft die größte Überfälligkeit in Tagen ein.
func OverdueSeverity(days int) int {
	switch {
	case days <= 7:
		return 2
	case days <= 30:
		return 3
	case days <= 90:
		return 4
	default:
		return 5
	}
}

// LowScoreSeverity stuft eine Gesamtnote unter 50 ein.
func LowScoreSeverity(total int) int {
	switch {
	case total < 20:
		return 5
	case total < 35:
		return 4
	default:
		return 3
	}
}

// PriorityScore leitet die Sortierpriorität aus Kategorie und Schweregrad ab.
func PriorityScore(category string, severity int) int {
	p := severity * 20
	if category == models.AlertOpportunity {
		p -= 10
	}
	return max(0, min(100, p))
}

// DetectConditions wertet die Alarmregeln aus. Reine Funktion.
func DetectConditions(d scoring.ProjectData, snap ScoreSnapshot) []Condition {
	var out []Condition

	if days := scoring.OverdueDays(d.Milestones, d.Now); days > 0 {
		open := lo.CountBy(d.Milestones, func(m scoring.MilestoneFacts) bool {
			return m.CompletedAt == nil && d.Now.After(m.TargetDate)
		})
		out = append(out, Condition{
			AlertType: AlertTypeOverdueMilestones,
			Category:  models.AlertRisk,
			Severity:  OverdueSeverity(days),
			Title:     "Hitos vencidos",
			Message:   fmt.Sprintf("%d hito(s) vencido(s); el más atrasado lleva %d día(s)", open, days),
			Details:   map[string]any{"overdue_milestones": open, "max_overdue_days": days},
		})
	}

	if snap.Total < 50 {
		out = append(out, Condition{
			AlertType: AlertTypeLowScore,
			Category:  models.AlertPerformance,
			Severity:  LowScoreSeverity(snap.Total),
			Title:     "Puntaje de evaluación bajo",
			Message:   fmt.Sprintf("El puntaje total es %d (%s)", snap.Total, snap.Category),
			Details:   map[string]any{"total_score": snap.Total, "evaluation_category": snap.Category},
		})
	}

	if c := snap.Scores.Completeness; c < 60 {
		severity := 2
		if c < 30 {
			severity = 3
		}
		out = append(out, Condition{
			AlertType: AlertTypeIncompleteMetadata,
			Category:  models.AlertCompliance,
			Severity:  severity,
			Title:     "Información del proyecto incompleta",
			Message:   fmt.Sprintf("La completitud de metadatos es %d%%", c),
			Details:   map[string]any{"completeness_score": c},
		})
	}

	if snap.Category == scoring.Excelente || snap.Scores.Impact >= 80 {
		out = append(out, Condition{
			AlertType: AlertTypeHighImpact,
			Category:  models.AlertOpportunity,
			Severity:  1,
			Title:     "Proyecto destacado",
			Message:   "El proyecto tiene alto impacto; considérelo para convocatorias y divulgación",
			Details:   map[string]any{"impact_score": snap.Scores.Impact, "total_score": snap.Total},
		})
	}
	return out
}

var alertTransitions = map[string][]string{
	models.AlertActive:       {models.AlertAcknowledged, models.AlertResolved, models.AlertDismissed},
	models.AlertAcknowledged: {models.AlertResolved, models.AlertDismissed},
}

// CanTransition prüft einen Statuswechsel. RESOLVED und DISMISSED sind endgültig.
func CanTransition(from, to string) bool {
	return lo.Contains(alertTransitions[from], to)
}

// AlertFilter schränkt die Alarmliste ein.
type AlertFilter struct {
	ProjectID   uint
	Status      string
	Category    string
	MinSeverity int
}

// AlertBatch fasst einen Analyse-Sammellauf zusammen.
type AlertBatch struct {
	Alerts []models.Alert `json:"alerts"`
	Errors []BatchError   `json:"errors"`
}

// AlertService erkennt Projektrisiken und verwaltet den Alarmstatus.
type AlertService struct {
	DB     *gorm.DB
	Logger *zap.Logger
	Scorer *ScoringService
	Now    func() time.Time
}

// NewAlertService erstellt eine neue Instanz des AlertService.
func NewAlertService(db *gorm.DB, logger *zap.Logger, scorer *ScoringService) *AlertService {
	return &AlertService{DB: db, Logger: logger, Scorer: scorer, Now: time.Now}
}

// AnalyzeProject wertet die Regeln für ein Projekt aus. Offene Alarme gleichen
// Typs werden aktualisiert statt dupliziert; entfällt der Zustand, wird der
// offene Alarm aufgelöst.
func (a *AlertService) AnalyzeProject(ctx context.Context, projectID uint) ([]models.Alert, error) {
	_, data, err := loadProjectData(ctx, a.DB, projectID)
	if err != nil {
		return nil, err
	}
	now := a.Now()
	data.Now = now

	snap, err := a.snapshot(ctx, projectID, *data)
	if err != nil {
		return nil, err
	}
	conditions := DetectConditions(*data, snap)

	var touched []models.Alert
	err = a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open []models.Alert
		if err := tx.Where("project_id = ? AND status IN ?", projectID, openAlertStatuses).Find(&open).Error; err != nil {
			return err
		}
		openByType := lo.KeyBy(open, func(al models.Alert) string { return al.AlertType })

		for _, c := range conditions {
			details, err := json.Marshal(c.Details)
			if err != nil {
				return err
			}
			if existing, ok := openByType[c.AlertType]; ok {
				updates := map[string]any{
					"severity":       c.Severity,
					"priority_score": PriorityScore(c.Category, c.Severity),
					"title":          c.Title,
					"message":        c.Message,
					"details":        datatypes.JSON(details),
				}
				if err := tx.Model(&existing).Updates(updates).Error; err != nil {
					return err
				}
				touched = append(touched, existing)
				delete(openByType, c.AlertType)
				continue
			}

			alert := models.Alert{
				ProjectID:     projectID,
				AlertType:     c.AlertType,
				Category:      c.Category,
				Severity:      c.Severity,
				Status:        models.AlertActive,
				PriorityScore: PriorityScore(c.Category, c.Severity),
				Title:         c.Title,
				Message:       c.Message,
				Details:       datatypes.JSON(details),
			}
			if err := tx.Create(&alert).Error; err != nil {
				return err
			}
			alertsCreated.WithLabelValues(c.Category).Inc()
			touched = append(touched, alert)
		}

		// Zustand entfallen
		for _, stale := range openByType {
			if err := tx.Model(&stale).Updates(map[string]any{
				"status":      models.AlertResolved,
				"resolved_at": now,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persist alerts: %w", err)
	}

	a.Logger.Info("Project alerts analyzed", zap.Uint("project_id", projectID), zap.Int("conditions", len(conditions)))
	if touched == nil {
		touched = []models.Alert{}
	}
	return touched, nil
}

// snapshot nimmt die aktuelle gespeicherte Bewertung, sonst eine ungespeicherte Berechnung.
func (a *AlertService) snapshot(ctx context.Context, projectID uint, d scoring.ProjectData) (ScoreSnapshot, error) {
	var current models.ProjectScore
	err := a.DB.WithContext(ctx).Where("project_id = ? AND is_current = ?", projectID, true).First(&current).Error
	if err == nil {
		return ScoreSnapshot{
			Scores: scoring.Scores{
				Completeness:  current.CompletenessScore,
				Collaboration: current.CollaborationScore,
				Productivity:  current.ProductivityScore,
				Impact:        current.ImpactScore,
				Innovation:    current.InnovationScore,
				Timeline:      current.TimelineScore,
			},
			Total:    current.TotalScore,
			Category: scoring.Category(current.EvaluationCategory),
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return ScoreSnapshot{}, err
	}
	res := scoring.Evaluate(d, a.Scorer.Weights)
	return ScoreSnapshot{Scores: res.Scores, Total: res.Total, Category: res.Category}, nil
}

// AnalyzeAll analysiert alle bewertbaren Projekte nacheinander.
func (a *AlertService) AnalyzeAll(ctx context.Context) (*AlertBatch, error) {
	ids, err := scorableProjectIDs(ctx, a.DB)
	if err != nil {
		return nil, err
	}
	batch := &AlertBatch{Alerts: []models.Alert{}, Errors: []BatchError{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		alerts, err := a.AnalyzeProject(ctx, id)
		if err != nil {
			a.Logger.Error("Alert analysis failed, continuing", zap.Uint("project_id", id), zap.Error(err))
			batch.Errors = append(batch.Errors, BatchError{ProjectID: id, Error: publicError(err)})
			continue
		}
		batch.Alerts = append(batch.Alerts, alerts...)
	}
	return batch, nil
}

// Transition ändert den Status eines Alarms.
func (a *AlertService) Transition(ctx context.Context, alertID uint, to string) (*models.Alert, error) {
	var alert models.Alert
	err := a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&alert, alertID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAlertNotFound
			}
			return err
		}
		if !CanTransition(alert.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, alert.Status, to)
		}

		now := a.Now()
		updates := map[string]any{"status": to}
		switch to {
		case models.AlertAcknowledged:
			updates["acknowledged_at"] = now
		case models.AlertResolved, models.AlertDismissed:
			updates["resolved_at"] = now
		}
		return tx.Model(&alert).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// ListAlerts liefert Alarme nach Priorität, dann neueste zuerst.
func (a *AlertService) ListAlerts(ctx context.Context, f AlertFilter, limit, offset int) ([]models.Alert, int64, error) {
	limit, offset = NormalizePage(limit, offset)

	q := a.DB.WithContext(ctx).Model(&models.Alert{})
	if f.ProjectID != 0 {
		q = q.Where("project_id = ?", f.ProjectID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.MinSeverity > 0 {
		q = q.Where("severity >= ?", f.MinSeverity)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	alerts := []models.Alert{}
	if err := q.Order("priority_score DESC, created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&alerts).Error; err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}
