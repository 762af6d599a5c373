package api

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/convocatoriaspro/convocatorias/internal/model"
	"github.com/convocatoriaspro/convocatorias/internal/search"
	"github.com/convocatoriaspro/convocatorias/internal/store"
)

// --- SearchService Mock ---

type mockSearchService struct {
	mock.Mock
}

func (m *mockSearchService) Search(ctx context.Context, userID string, q model.SearchQuery, strategy model.Strategy) (*search.Result, error) {
	args := m.Called(ctx, userID, q, strategy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*search.Result), args.Error(1)
}

func (m *mockSearchService) Get(ctx context.Context, runID string) (*search.Result, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*search.Result), args.Error(1)
}

func (m *mockSearchService) List(ctx context.Context, filter store.RunFilter) ([]model.SearchRun, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SearchRun), args.Error(1)
}

func (m *mockSearchService) Review(ctx context.Context, userID, resultID string, review model.ReviewState) (*model.ResultRecord, error) {
	args := m.Called(ctx, userID, resultID, review)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ResultRecord), args.Error(1)
}

func (m *mockSearchService) ParseText(ctx context.Context, text string) (model.ResultRecord, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(model.ResultRecord), args.Error(1)
}

// --- Validator Mock ---

type mockValidator struct {
	mock.Mock
}

func (m *mockValidator) ValidateBatch(ctx context.Context, records []model.ResultRecord, concurrency int, timeout time.Duration) []model.ValidationOutcome {
	args := m.Called(ctx, records, concurrency, timeout)
	return args.Get(0).([]model.ValidationOutcome)
}

// --- ValidationStore Mock ---

type mockValidationStore struct {
	mock.Mock
}

func (m *mockValidationStore) SaveValidation(ctx context.Context, o model.ValidationOutcome) error {
	return m.Called(ctx, o).Error(0)
}
