package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/arlomb/cardbridge/internal/models"
)

// MockMappingRepository is a mock implementation of repository.MappingRepository
type MockMappingRepository struct {
	mock.Mock
}

func (m *MockMappingRepository) GetOrCreate(ctx context.Context, source, sourceID string, kind models.EntityKind, batchID string) (int64, error) {
	args := m.Called(ctx, source, sourceID, kind, batchID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMappingRepository) GetOrCreateBatch(ctx context.Context, source string, sourceIDs []string, kind models.EntityKind, batchID string) (map[string]int64, error) {
	args := m.Called(ctx, source, sourceIDs, kind, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockMappingRepository) Link(ctx context.Context, source, sourceID string, kind models.EntityKind, internalID int64, batchID string) error {
	args := m.Called(ctx, source, sourceID, kind, internalID, batchID)
	return args.Error(0)
}

func (m *MockMappingRepository) InternalID(ctx context.Context, source, sourceID string, kind models.EntityKind) (int64, error) {
	args := m.Called(ctx, source, sourceID, kind)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMappingRepository) ExternalID(ctx context.Context, source string, kind models.EntityKind, internalID int64) (string, error) {
	args := m.Called(ctx, source, kind, internalID)
	return args.String(0), args.Error(1)
}

func (m *MockMappingRepository) CreateBatch(ctx context.Context, batch models.ImportBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockMappingRepository) GetBatch(ctx context.Context, id string) (*models.ImportBatch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImportBatch), args.Error(1)
}

func (m *MockMappingRepository) ListBatches(ctx context.Context) ([]models.ImportBatch, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ImportBatch), args.Error(1)
}

func (m *MockMappingRepository) CompleteBatch(ctx context.Context, id string, cardCount, deckCount int) error {
	args := m.Called(ctx, id, cardCount, deckCount)
	return args.Error(0)
}

func (m *MockMappingRepository) FailBatch(ctx context.Context, id string, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockMappingRepository) RollbackBatch(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMappingRepository) DeckBatch(ctx context.Context, source, sourceDeckID string) (*models.ImportBatch, error) {
	args := m.Called(ctx, source, sourceDeckID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImportBatch), args.Error(1)
}
