package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/beanbot/backend/internal/models"
)

var ErrEmptyUserID = errors.New("user id is required")

// decodeLedger restores a stored ledger and repairs missing fields.
func decodeLedger(data []byte) (*models.Ledger, error) {
	var ledger models.Ledger
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, fmt.Errorf("failed to decode ledger: %w", err)
	}
	ledger.Normalize()
	return &ledger, nil
}

func encodeLedger(ledger *models.Ledger) ([]byte, error) {
	data, err := json.Marshal(ledger)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ledger: %w", err)
	}
	return data, nil
}

// MemoryLedgerStore keeps encoded ledgers in process memory. Every Load returns a
// fresh copy, so a half-processed ledger never leaks back into the store.
type MemoryLedgerStore struct {
	mu       sync.RWMutex
	ledgers  map[string][]byte
	defaults models.UserConfig
}

func NewMemoryLedgerStore(defaults models.UserConfig) *MemoryLedgerStore {
	return &MemoryLedgerStore{
		ledgers:  make(map[string][]byte),
		defaults: defaults,
	}
}

func (s *MemoryLedgerStore) Load(ctx context.Context, userID string) (*models.Ledger, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	s.mu.RLock()
	data, ok := s.ledgers[userID]
	s.mu.RUnlock()

	if !ok {
		return models.NewLedger(s.defaults.Clone()), nil
	}
	return decodeLedger(data)
}

func (s *MemoryLedgerStore) Save(ctx context.Context, userID string, ledger *models.Ledger) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	data, err := encodeLedger(ledger)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ledgers[userID] = data
	s.mu.Unlock()
	return nil
}
