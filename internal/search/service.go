package search

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/convocatoriaspro/convocatorias/internal/model"
	"github.com/convocatoriaspro/convocatorias/internal/provider"
	"github.com/convocatoriaspro/convocatorias/internal/store"
)

// ErrEmptyQuery is returned when a search has no query text.
var ErrEmptyQuery = eris.New("search: query is empty")

// Service runs searches and records them as SearchRuns.
type Service struct {
	orch           *Orchestrator
	store          store.Store
	degradeOnError bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDegradeOnError controls whether provider failures complete the run
// with synthetic records (true) or fail it (false).
func WithDegradeOnError(enabled bool) ServiceOption {
	return func(s *Service) { s.degradeOnError = enabled }
}

// NewService creates a Service. Degrading on provider errors is on by default.
func NewService(orch *Orchestrator, st store.Store, opts ...ServiceOption) *Service {
	s := &Service{orch: orch, store: st, degradeOnError: true}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Result is a run together with its records.
type Result struct {
	Run     *model.SearchRun     `json:"run"`
	Results []model.ResultRecord `json:"results"`
}

// Search creates a run, executes the strategy and persists the records.
// On a non-degraded failure the run is marked failed and the error is
// returned alongside it.
func (s *Service) Search(ctx context.Context, userID string, q model.SearchQuery, strategy model.Strategy) (*Result, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return nil, ErrEmptyQuery
	}
	if strategy == "" {
		strategy = model.StrategySingle
	}

	run, err := s.store.CreateRun(ctx, model.SearchRun{UserID: userID, Query: q, Strategy: strategy})
	if err != nil {
		return nil, eris.Wrap(err, "search: create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("strategy", string(strategy)))

	if err := s.store.UpdateRunStatus(ctx, run.ID, model.RunStatusProcessing); err != nil {
		return s.fail(ctx, run.ID, eris.Wrap(err, "search: mark run processing"))
	}

	records, err := s.orch.RunSearch(ctx, q, strategy)
	degraded := false
	if err != nil {
		if !s.degradeOnError || !provider.IsFailure(err) {
			return s.fail(ctx, run.ID, err)
		}
		log.Warn("search: provider failed, degrading to synthetic records", zap.Error(err))
		records = s.orch.Parser().Fallback(q.Text)
		degraded = true
	}

	saved, err := s.store.SaveResults(ctx, run.ID, records)
	if err != nil {
		return s.fail(ctx, run.ID, eris.Wrap(err, "search: save results"))
	}

	if err := s.store.CompleteRun(ctx, run.ID, model.RunCompletion{
		Status:      model.RunStatusCompleted,
		ResultCount: len(saved),
		Degraded:    degraded,
	}); err != nil {
		return s.fail(ctx, run.ID, eris.Wrap(err, "search: complete run"))
	}

	final, err := s.store.GetRun(ctx, run.ID)
	if err != nil {
		return nil, eris.Wrap(err, "search: reload run")
	}
	log.Info("search: run completed", zap.Int("results", len(saved)), zap.Bool("degraded", degraded))
	return &Result{Run: final, Results: saved}, nil
}

// fail marks the run failed, even when ctx is already done, and returns cause.
func (s *Service) fail(ctx context.Context, runID string, cause error) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	if err := s.store.CompleteRun(ctx, runID, model.RunCompletion{
		Status: model.RunStatusFailed,
		Error:  cause.Error(),
	}); err != nil {
		zap.L().Error("search: mark run failed", zap.String("run_id", runID), zap.Error(err))
	}

	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, cause
	}
	return &Result{Run: run, Results: []model.ResultRecord{}}, cause
}

// Get returns a run and its records.
func (s *Service) Get(ctx context.Context, runID string) (*Result, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	results, err := s.store.ListResults(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &Result{Run: run, Results: results}, nil
}

// List returns runs matching filter, newest first.
func (s *Service) List(ctx context.Context, filter store.RunFilter) ([]model.SearchRun, error) {
	return s.store.ListRuns(ctx, filter)
}

// Review records the user's approve/reject decision on a result. A result
// in another user's run is reported as store.ErrNotFound.
func (s *Service) Review(ctx context.Context, userID, resultID string, review model.ReviewState) (*model.ResultRecord, error) {
	rec, err := s.store.GetResult(ctx, resultID)
	if err != nil {
		return nil, err
	}
	run, err := s.store.GetRun(ctx, rec.RunID)
	if err != nil {
		return nil, err
	}
	if run.UserID != userID {
		return nil, eris.Wrapf(store.ErrNotFound, "search: result %s", resultID)
	}
	return s.store.SetReview(ctx, resultID, review)
}

// ParseText extracts a single record from pasted text.
func (s *Service) ParseText(ctx context.Context, text string) (model.ResultRecord, error) {
	return s.orch.ParseText(ctx, text)
}
