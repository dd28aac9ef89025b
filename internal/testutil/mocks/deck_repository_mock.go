package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/arlomb/cardbridge/internal/models"
)

// MockDeckRepository is a mock implementation of repository.DeckRepository
type MockDeckRepository struct {
	mock.Mock
}

func (m *MockDeckRepository) Get(ctx context.Context, id int64) (*models.Deck, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Deck), args.Error(1)
}

func (m *MockDeckRepository) List(ctx context.Context) ([]models.Deck, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Deck), args.Error(1)
}

func (m *MockDeckRepository) Insert(ctx context.Context, deck models.Deck) (int64, error) {
	args := m.Called(ctx, deck)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDeckRepository) Upsert(ctx context.Context, deck models.Deck) error {
	args := m.Called(ctx, deck)
	return args.Error(0)
}

func (m *MockDeckRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDeckRepository) RefreshStats(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
