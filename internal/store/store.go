// Package store persists search runs, their results and validation outcomes.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/convocatoriaspro/convocatorias/internal/model"
)

var (
	// ErrNotFound is returned when a run or result does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrRunFinalized is returned when a completed or failed run is updated.
	ErrRunFinalized = eris.New("store: run already finalized")
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	UserID string          `json:"user_id,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for search runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.SearchRun) (*model.SearchRun, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, c model.RunCompletion) error
	GetRun(ctx context.Context, runID string) (*model.SearchRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.SearchRun, error)

	// Results
	SaveResults(ctx context.Context, runID string, records []model.ResultRecord) ([]model.ResultRecord, error)
	ListResults(ctx context.Context, runID string) ([]model.ResultRecord, error)
	GetResult(ctx context.Context, resultID string) (*model.ResultRecord, error)
	SetReview(ctx context.Context, resultID string, review model.ReviewState) (*model.ResultRecord, error)

	// Validations
	SaveValidation(ctx context.Context, outcome model.ValidationOutcome) error
	ListValidations(ctx context.Context, resultID string) ([]model.ValidationOutcome, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(n int) int {
	if n <= 0 || n > 500 {
		return defaultListLimit
	}
	return n
}

// notUpdated explains why a conditional run update touched no rows.
func notUpdated(runID string, found bool) error {
	if !found {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return eris.Wrapf(ErrRunFinalized, "run %s", runID)
}

// prepareResults assigns ids, run id and defaults to records before insert.
// created_at grows with position so listing by it keeps the model's order.
func prepareResults(runID string, records []model.ResultRecord) []model.ResultRecord {
	out := make([]model.ResultRecord, len(records))
	created := time.Now().UTC().Truncate(time.Microsecond)
	for i, r := range records {
		r.ID = uuid.New().String()
		r.RunID = runID
		if r.Review == "" {
			r.Review = model.ReviewPending
		}
		if r.Tags == nil {
			r.Tags = []string{}
		}
		r.CreatedAt = created.Add(time.Duration(i) * time.Microsecond)
		out[i] = r
	}
	return out
}
