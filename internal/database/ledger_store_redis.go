package database

import (
	"context"
	"fmt"

	"github.com/beanbot/backend/internal/models"
	"github.com/go-redis/redis/v8"
)

const ledgerKeyPrefix = "ledger:"

// RedisLedgerStore keeps one JSON document per user under ledger:<userID>.
type RedisLedgerStore struct {
	redis    *redis.Client
	defaults models.UserConfig
}

func NewRedisLedgerStore(client *redis.Client, defaults models.UserConfig) *RedisLedgerStore {
	return &RedisLedgerStore{
		redis:    client,
		defaults: defaults,
	}
}

func ledgerKey(userID string) string {
	return ledgerKeyPrefix + userID
}

func (s *RedisLedgerStore) Load(ctx context.Context, userID string) (*models.Ledger, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	data, err := s.redis.Get(ctx, ledgerKey(userID)).Bytes()
	if err == redis.Nil {
		return models.NewLedger(s.defaults.Clone()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger for %s: %w", userID, err)
	}
	return decodeLedger(data)
}

func (s *RedisLedgerStore) Save(ctx context.Context, userID string, ledger *models.Ledger) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	data, err := encodeLedger(ledger)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, ledgerKey(userID), string(data), 0).Err(); err != nil {
		return fmt.Errorf("failed to save ledger for %s: %w", userID, err)
	}
	return nil
}
