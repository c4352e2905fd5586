package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/beanbot/backend/internal/models"
	"github.com/go-redis/redismock/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLedger() *models.Ledger {
	ledger := models.NewLedger(models.DefaultUserConfig())
	posting := &models.Posting{
		ID:            ledger.AllocatePostingID(),
		DebitAccount:  "Lunch",
		CreditAccount: "Cash",
		Amount:        decimal.RequireFromString("12.50"),
		Currency:      "USD",
	}
	tx := &models.Transaction{
		ID:       ledger.AllocateTransactionID(),
		Date:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Info:     "Office",
		Postings: []*models.Posting{posting},
	}
	ledger.AppendTransaction(tx)
	postingID := posting.ID
	ledger.MessageIndex[100] = models.MessageRef{TransactionID: tx.ID, PostingID: &postingID}
	return ledger
}

func TestMemoryLedgerStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLedgerStore(models.DefaultUserConfig())

	t.Run("unknown user gets a fresh ledger", func(t *testing.T) {
		ledger, err := store.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, ledger.Transactions)
		assert.Equal(t, int64(1), ledger.NextIDs.Transaction)
		assert.Equal(t, "USD", ledger.Config.DefaultCurrency())
	})

	t.Run("round trip keeps state", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "u1", sampleLedger()))

		ledger, err := store.Load(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, ledger.Transactions, 1)
		tx := ledger.Transaction(1)
		require.NotNil(t, tx)
		assert.Equal(t, "Office", tx.Info)
		assert.True(t, tx.Postings[0].Amount.Equal(decimal.RequireFromString("12.5")))
		assert.Equal(t, int64(1), *ledger.MessageIndex[100].PostingID)
		assert.Equal(t, int64(2), ledger.NextIDs.Posting)
	})

	t.Run("loaded ledgers are copies", func(t *testing.T) {
		ledger, err := store.Load(ctx, "u1")
		require.NoError(t, err)
		ledger.Transactions[0].Info = "changed"

		again, err := store.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Office", again.Transactions[0].Info)
	})

	t.Run("empty user id", func(t *testing.T) {
		_, err := store.Load(ctx, "")
		assert.ErrorIs(t, err, ErrEmptyUserID)
	})
}

func TestRedisLedgerStore(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	store := NewRedisLedgerStore(client, models.DefaultUserConfig())

	t.Run("missing key", func(t *testing.T) {
		mock.ExpectGet("ledger:42").RedisNil()

		ledger, err := store.Load(ctx, "42")
		require.NoError(t, err)
		assert.Empty(t, ledger.Transactions)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("save then load", func(t *testing.T) {
		ledger := sampleLedger()
		data, err := json.Marshal(ledger)
		require.NoError(t, err)

		mock.ExpectSet("ledger:42", string(data), 0).SetVal("OK")
		require.NoError(t, store.Save(ctx, "42", ledger))

		mock.ExpectGet("ledger:42").SetVal(string(data))
		loaded, err := store.Load(ctx, "42")
		require.NoError(t, err)
		require.Len(t, loaded.Transactions, 1)
		assert.Equal(t, "Lunch", loaded.Transactions[0].Postings[0].DebitAccount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis failure", func(t *testing.T) {
		mock.ExpectGet("ledger:42").SetErr(errors.New("connection refused"))

		_, err := store.Load(ctx, "42")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("corrupt document", func(t *testing.T) {
		mock.ExpectGet("ledger:42").SetVal("{not json")

		_, err := store.Load(ctx, "42")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode ledger")
	})
}

func TestPostgresLedgerStore(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresLedgerStore(db, models.DefaultUserConfig())

	t.Run("ensure schema", func(t *testing.T) {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS ledgers").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, store.EnsureSchema(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectQuery("SELECT data FROM ledgers WHERE user_id = \\$1").
			WithArgs("7").
			WillReturnError(sql.ErrNoRows)

		ledger, err := store.Load(ctx, "7")
		require.NoError(t, err)
		assert.Empty(t, ledger.Transactions)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing row", func(t *testing.T) {
		data, err := json.Marshal(sampleLedger())
		require.NoError(t, err)

		mock.ExpectQuery("SELECT data FROM ledgers WHERE user_id = \\$1").
			WithArgs("7").
			WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(data))

		ledger, err := store.Load(ctx, "7")
		require.NoError(t, err)
		require.Len(t, ledger.Transactions, 1)
		assert.Equal(t, "Office", ledger.Transactions[0].Info)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("upsert", func(t *testing.T) {
		ledger := sampleLedger()
		data, err := json.Marshal(ledger)
		require.NoError(t, err)

		mock.ExpectExec("INSERT INTO ledgers").
			WithArgs("7", string(data), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		assert.NoError(t, store.Save(ctx, "7", ledger))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("save failure", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO ledgers").
			WillReturnError(errors.New("disk full"))

		err := store.Save(ctx, "7", sampleLedger())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save ledger for 7")
	})
}
