package services

import (
	"errors"
	"fmt"
)

var (
	ErrProjectNotFound       = errors.New("project not found")
	ErrAlertNotFound         = errors.New("alert not found")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrCalculationInProgress = errors.New("calculation already in progress for this project")
	ErrMissingOwner          = errors.New("project has no owner")
)

// CalculationError meldet, dass die Daten eines einzelnen Projekts nicht
// bewertbar sind. Im Sammellauf wird das Projekt übersprungen.
type CalculationError struct {
	ProjectID uint
	Err       error
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("project %d: %v", e.ProjectID, e.Err)
}

func (e *CalculationError) Unwrap() error { return e.Err }
