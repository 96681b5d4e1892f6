package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/foxseedlab/gymvoice/internal/workout"
)

var (
	ErrNotFound        = errors.New("workout session not found")
	ErrIncomplete      = errors.New("workout session is not completed")
	ErrNoExercises     = errors.New("workout session has no exercises")
	ErrAnalysisPresent = errors.New("workout session already has an analysis")
)

// History stores completed workout sessions. List returns the most recent first.
type History interface {
	List(ctx context.Context, filter ListFilter) ([]workout.Session, error)
	Get(ctx context.Context, id string) (*workout.Session, error)
	Append(ctx context.Context, s workout.Session) error
	UpdateByID(ctx context.Context, id string, patch Patch) error
}

// ValidateAppend enforces the store invariants every driver shares.
func ValidateAppend(s workout.Session) error {
	if s.ID == "" {
		return fmt.Errorf("workout session id is empty")
	}
	if !s.Completed() {
		return ErrIncomplete
	}
	if len(s.Exercises) == 0 {
		return ErrNoExercises
	}
	if s.Analysis != nil {
		return ErrAnalysisPresent
	}
	return nil
}
