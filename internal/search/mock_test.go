package search

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/convocatoriaspro/convocatorias/internal/provider"
)

type mockProvider struct {
	mock.Mock
	name string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Complete(ctx context.Context, c provider.Completion) (string, error) {
	args := m.Called(ctx, c)
	return args.String(0), args.Error(1)
}
