package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/beanbot/backend/internal/models"
)

const createLedgersTable = `
CREATE TABLE IF NOT EXISTS ledgers (
	user_id    TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// PostgresLedgerStore keeps one JSONB row per user in the ledgers table.
type PostgresLedgerStore struct {
	db       *sql.DB
	defaults models.UserConfig
}

func NewPostgresLedgerStore(db *sql.DB, defaults models.UserConfig) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db:       db,
		defaults: defaults,
	}
}

// EnsureSchema creates the ledgers table if it does not exist yet.
func (s *PostgresLedgerStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createLedgersTable); err != nil {
		return fmt.Errorf("failed to create ledgers table: %w", err)
	}
	return nil
}

func (s *PostgresLedgerStore) Load(ctx context.Context, userID string) (*models.Ledger, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM ledgers WHERE user_id = $1`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewLedger(s.defaults.Clone()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger for %s: %w", userID, err)
	}
	return decodeLedger(data)
}

func (s *PostgresLedgerStore) Save(ctx context.Context, userID string, ledger *models.Ledger) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	data, err := encodeLedger(ledger)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ledgers (user_id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		userID, string(data), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save ledger for %s: %w", userID, err)
	}
	return nil
}
