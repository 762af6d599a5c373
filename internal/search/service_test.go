package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/convocatoriaspro/convocatorias/internal/model"
	"github.com/convocatoriaspro/convocatorias/internal/provider"
	"github.com/convocatoriaspro/convocatorias/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestService_SearchCompletesRun(t *testing.T) {
	or, gm := newMocks()
	or.On("Complete", mock.Anything, mock.Anything).Return(detailJSON, nil).Once()
	st := newTestStore(t)
	svc := NewService(newTestOrchestrator(or, gm), st)

	res, err := svc.Search(context.Background(), "user-1", query, model.StrategySingle)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, res.Run.Status)
	assert.Equal(t, 1, res.Run.ResultCount)
	assert.False(t, res.Run.Degraded)
	assert.NotNil(t, res.Run.CompletedAt)
	require.Len(t, res.Results, 1)
	assert.Equal(t, res.Run.ID, res.Results[0].RunID)

	got, err := svc.Get(context.Background(), res.Run.ID)
	require.NoError(t, err)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "Capital Semilla", got.Results[0].Title)

	runs, err := svc.List(context.Background(), store.RunFilter{UserID: "user-1"})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestService_DegradesOnProviderFailure(t *testing.T) {
	or, gm := newMocks()
	or.On("Complete", mock.Anything, mock.Anything).
		Return("", &provider.Error{Provider: "openrouter", StatusCode: 502, Err: errors.New("bad gateway")}).Once()
	svc := NewService(newTestOrchestrator(or, gm), newTestStore(t))

	res, err := svc.Search(context.Background(), "", query, model.StrategySingle)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, res.Run.Status)
	assert.True(t, res.Run.Degraded)
	require.NotEmpty(t, res.Results)
	for _, r := range res.Results {
		assert.True(t, r.IsSynthetic)
	}
}

func TestService_FailsRunWithoutDegrade(t *testing.T) {
	or, gm := newMocks()
	gm.On("Complete", mock.Anything, mock.Anything).Return("", provider.ErrEmptyResponse).Once()
	st := newTestStore(t)
	svc := NewService(newTestOrchestrator(or, gm), st, WithDegradeOnError(false))

	res, err := svc.Search(context.Background(), "user-1", query, model.StrategySmart)
	require.Error(t, err)
	assert.True(t, errors.Is(err, provider.ErrEmptyResponse))
	require.NotNil(t, res)
	assert.Equal(t, model.RunStatusFailed, res.Run.Status)
	assert.Contains(t, res.Run.Error, "empty response")
	assert.Empty(t, res.Results)
	or.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)

	err = st.UpdateRunStatus(context.Background(), res.Run.ID, model.RunStatusProcessing)
	assert.True(t, errors.Is(err, store.ErrRunFinalized))
}

func TestService_ConfigErrorFailsEvenWhenDegrading(t *testing.T) {
	or, _ := newMocks()
	svc := NewService(newTestOrchestrator(or), newTestStore(t))

	res, err := svc.Search(context.Background(), "", query, model.StrategySmart)
	require.Error(t, err)
	assert.Equal(t, model.RunStatusFailed, res.Run.Status)
}

func TestService_EmptyQuery(t *testing.T) {
	or, gm := newMocks()
	svc := NewService(newTestOrchestrator(or, gm), newTestStore(t))

	_, err := svc.Search(context.Background(), "", model.SearchQuery{Text: "  "}, model.StrategySingle)
	assert.True(t, errors.Is(err, ErrEmptyQuery))
}

func TestService_Review(t *testing.T) {
	or, gm := newMocks()
	or.On("Complete", mock.Anything, mock.Anything).Return(detailJSON, nil).Once()
	svc := NewService(newTestOrchestrator(or, gm), newTestStore(t))

	res, err := svc.Search(context.Background(), "", query, "")
	require.NoError(t, err)
	assert.Equal(t, model.StrategySingle, res.Run.Strategy)

	rec, err := svc.Review(context.Background(), "", res.Results[0].ID, model.ReviewApproved)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewApproved, rec.Review)
}

func TestService_ReviewRejectsOtherUsersResult(t *testing.T) {
	or, gm := newMocks()
	or.On("Complete", mock.Anything, mock.Anything).Return(detailJSON, nil).Once()
	st := newTestStore(t)
	svc := NewService(newTestOrchestrator(or, gm), st)

	res, err := svc.Search(context.Background(), "alice", query, model.StrategySingle)
	require.NoError(t, err)
	resultID := res.Results[0].ID

	_, err = svc.Review(context.Background(), "mallory", resultID, model.ReviewRejected)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	_, err = svc.Review(context.Background(), "mallory", "missing", model.ReviewRejected)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	results, err := st.ListResults(context.Background(), res.Run.ID)
	require.NoError(t, err)
	assert.NotEqual(t, model.ReviewRejected, results[0].Review)

	rec, err := svc.Review(context.Background(), "alice", resultID, model.ReviewApproved)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewApproved, rec.Review)
}

// faultyStore fails selected run transitions on top of a real store.
type faultyStore struct {
	store.Store
	failProcessing bool
	failComplete   model.RunStatus
}

func (f *faultyStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	if f.failProcessing && status == model.RunStatusProcessing {
		return errors.New("connection reset")
	}
	return f.Store.UpdateRunStatus(ctx, runID, status)
}

func (f *faultyStore) CompleteRun(ctx context.Context, runID string, c model.RunCompletion) error {
	if c.Status == f.failComplete {
		return errors.New("connection reset")
	}
	return f.Store.CompleteRun(ctx, runID, c)
}

func TestService_StoreFailuresStillFinalizeRun(t *testing.T) {
	tests := []struct {
		name  string
		store func(store.Store) *faultyStore
	}{
		{
			name:  "mark processing fails",
			store: func(st store.Store) *faultyStore { return &faultyStore{Store: st, failProcessing: true} },
		},
		{
			name: "complete fails",
			store: func(st store.Store) *faultyStore {
				return &faultyStore{Store: st, failComplete: model.RunStatusCompleted}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			or, gm := newMocks()
			or.On("Complete", mock.Anything, mock.Anything).Return(detailJSON, nil).Maybe()
			svc := NewService(newTestOrchestrator(or, gm), tt.store(newTestStore(t)))

			res, err := svc.Search(context.Background(), "user-1", query, model.StrategySingle)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "connection reset")
			require.NotNil(t, res)
			assert.Equal(t, model.RunStatusFailed, res.Run.Status)
			assert.True(t, res.Run.Status.IsTerminal())
		})
	}
}
