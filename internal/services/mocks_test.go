package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/beanbot/backend/internal/models"
)

type MockLedgerStore struct {
	mock.Mock
}

func (m *MockLedgerStore) Load(ctx context.Context, userID string) (*models.Ledger, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ledger), args.Error(1)
}

func (m *MockLedgerStore) Save(ctx context.Context, userID string, ledger *models.Ledger) error {
	args := m.Called(ctx, userID, ledger)
	return args.Error(0)
}
