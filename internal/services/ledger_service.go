package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/beanbot/backend/internal/models"
)

// DefaultMergeWindow is how close two NEW events have to be to land on the same receipt.
const DefaultMergeWindow = 5 * time.Minute

// LedgerEngine applies events to a user's ledger. It keeps no per-user state of its
// own; callers pass the ledger in and must not process two events for the same
// ledger concurrently.
type LedgerEngine struct {
	mergeWindow time.Duration
	now         func() time.Time
}

func NewLedgerEngine(mergeWindow time.Duration) *LedgerEngine {
	if mergeWindow <= 0 {
		mergeWindow = DefaultMergeWindow
	}
	return &LedgerEngine{
		mergeWindow: mergeWindow,
		now:         time.Now,
	}
}

// WithClock replaces the clock used for events without a timestamp.
func (e *LedgerEngine) WithClock(now func() time.Time) *LedgerEngine {
	e.now = now
	return e
}

// Process applies event to ledger and returns the affected transaction and posting.
// Either the whole event is applied or, on error, the ledger is left untouched.
// COMMIT returns no entities.
func (e *LedgerEngine) Process(ledger *models.Ledger, event models.Event) (*models.Transaction, *models.Posting, error) {
	if err := event.Validate(); err != nil {
		if errors.Is(err, models.ErrUnknownEventKind) {
			return nil, nil, err
		}
		return nil, nil, &UserError{Msg: capitalize(err.Error()), Err: ErrInvalidInput}
	}

	at := event.Timestamp
	if at.IsZero() {
		at = e.now()
	}
	kind := e.resolveKind(ledger, event, at)

	var (
		tx      *models.Transaction
		posting *models.Posting
		err     error
	)
	switch kind {
	case models.EventNew:
		tx, posting, err = e.newTransaction(ledger, event.Posting, at)
	case models.EventAdd:
		tx, posting, err = e.addPosting(ledger, event.Posting)
	case models.EventSetInfo:
		tx, err = e.setInfo(ledger, event.Info)
	case models.EventFixAmount:
		tx, posting, err = e.fixAmount(ledger, event)
	case models.EventSetCurrency:
		tx, posting, err = e.setCurrency(ledger, *event.MessageID, event.Index)
	case models.EventSetCreditAccount:
		tx, posting, err = e.setCreditAccount(ledger, *event.MessageID, event.Index)
	case models.EventDelete:
		tx, posting, err = e.deletePosting(ledger, *event.MessageID)
	case models.EventCommit:
	default:
		err = fmt.Errorf("%w: %s", models.ErrUnknownEventKind, kind)
	}
	if err != nil {
		return nil, nil, err
	}

	if kind == models.EventCommit {
		ledger.LastEventAt = nil
	} else {
		last := at
		ledger.LastEventAt = &last
	}
	return tx, posting, nil
}

// resolveKind rewrites NEW into ADD for rapid follow-ups and ADD into NEW on an empty ledger.
func (e *LedgerEngine) resolveKind(ledger *models.Ledger, event models.Event, at time.Time) models.EventKind {
	kind := event.Kind
	if kind == models.EventNew && event.Posting.DaysOld == 0 && ledger.LastEventAt != nil &&
		at.Sub(*ledger.LastEventAt) < e.mergeWindow {
		kind = models.EventAdd
	}
	if kind == models.EventAdd && len(ledger.Transactions) == 0 {
		kind = models.EventNew
	}
	return kind
}

// RecordIndex remembers that messageID renders tx (and posting, if any) so later
// button presses on that message can find them again.
func (e *LedgerEngine) RecordIndex(ledger *models.Ledger, messageID int64, tx *models.Transaction, posting *models.Posting) error {
	if tx == nil {
		return errors.New("record index: transaction is required")
	}
	stored := ledger.Transaction(tx.ID)
	if stored == nil {
		return userError(ErrUnknownMessage, "Transaction %d does not exist", tx.ID)
	}

	ref := models.MessageRef{TransactionID: tx.ID}
	if posting != nil {
		if stored.Posting(posting.ID) == nil {
			return userError(ErrNoPosting, "Posting %d does not belong to transaction %d", posting.ID, tx.ID)
		}
		id := posting.ID
		ref.PostingID = &id
	}
	ledger.MessageIndex[messageID] = ref
	return nil
}

// Clear forgets every transaction and message reference. Id counters keep going.
func (e *LedgerEngine) Clear(ledger *models.Ledger) {
	ledger.Transactions = []*models.Transaction{}
	ledger.MessageIndex = map[int64]models.MessageRef{}
	ledger.LastEventAt = nil
	ledger.Normalize()
}

func (e *LedgerEngine) newTransaction(ledger *models.Ledger, payload models.PostingPayload, at time.Time) (*models.Transaction, *models.Posting, error) {
	loc, err := ledger.Config.Location()
	if err != nil {
		return nil, nil, err
	}
	creditAccount, currency, err := postingDefaults(ledger.Config)
	if err != nil {
		return nil, nil, err
	}

	tx := &models.Transaction{
		ID:       ledger.AllocateTransactionID(),
		Date:     at.In(loc).AddDate(0, 0, -payload.DaysOld),
		Info:     "",
		Postings: []*models.Posting{},
	}
	posting := newPosting(ledger, payload, creditAccount, currency)
	tx.Postings = append(tx.Postings, posting)
	ledger.AppendTransaction(tx)
	return tx, posting, nil
}

func (e *LedgerEngine) addPosting(ledger *models.Ledger, payload models.PostingPayload) (*models.Transaction, *models.Posting, error) {
	tx := ledger.LastTransaction()
	if tx == nil {
		return nil, nil, userError(ErrNoTransactions, "There are no transactions")
	}
	creditAccount, currency, err := postingDefaults(ledger.Config)
	if err != nil {
		return nil, nil, err
	}

	posting := newPosting(ledger, payload, creditAccount, currency)
	tx.Postings = append(tx.Postings, posting)
	return tx, posting, nil
}

func (e *LedgerEngine) setInfo(ledger *models.Ledger, info string) (*models.Transaction, error) {
	tx := ledger.LastTransaction()
	if tx == nil {
		return nil, userError(ErrNoTransactions, "There are no transactions")
	}
	tx.Info = info
	return tx, nil
}

func (e *LedgerEngine) fixAmount(ledger *models.Ledger, event models.Event) (*models.Transaction, *models.Posting, error) {
	tx := ledger.LastTransaction()
	if tx == nil {
		return nil, nil, userError(ErrNoTransactions, "There are no transactions")
	}
	posting := tx.LastPosting()
	amount := posting.Amount.Add(event.Delta)
	if err := checkAmount(amount); err != nil {
		return nil, nil, err
	}
	posting.Amount = amount
	return tx, posting, nil
}

func (e *LedgerEngine) setCurrency(ledger *models.Ledger, messageID int64, index int) (*models.Transaction, *models.Posting, error) {
	tx, posting, err := e.resolvePosting(ledger, messageID)
	if err != nil {
		return nil, nil, err
	}
	if index >= len(ledger.Config.Currencies) {
		return nil, nil, userError(ErrInvalidIndex, "Unknown currency option %d", index)
	}
	posting.Currency = ledger.Config.Currencies[index]
	return tx, posting, nil
}

func (e *LedgerEngine) setCreditAccount(ledger *models.Ledger, messageID int64, index int) (*models.Transaction, *models.Posting, error) {
	tx, posting, err := e.resolvePosting(ledger, messageID)
	if err != nil {
		return nil, nil, err
	}
	if index >= len(ledger.Config.CreditAccounts) {
		return nil, nil, userError(ErrInvalidIndex, "Unknown account option %d", index)
	}
	posting.CreditAccount = ledger.Config.CreditAccounts[index]
	return tx, posting, nil
}

// deletePosting removes the referenced posting, and its transaction once empty.
// Index entries pointing at removed entities are dropped right away.
func (e *LedgerEngine) deletePosting(ledger *models.Ledger, messageID int64) (*models.Transaction, *models.Posting, error) {
	tx, posting, err := e.resolvePosting(ledger, messageID)
	if err != nil {
		return nil, nil, err
	}

	tx.RemovePosting(posting.ID)
	dropIndex(ledger, func(ref models.MessageRef) bool {
		return ref.PostingID != nil && *ref.PostingID == posting.ID
	})

	if len(tx.Postings) == 0 {
		ledger.RemoveTransaction(tx.ID)
		dropIndex(ledger, func(ref models.MessageRef) bool {
			return ref.TransactionID == tx.ID
		})
	}
	return tx, posting, nil
}

// lookup resolves a message reference. The posting is nil for info-only references.
func (e *LedgerEngine) lookup(ledger *models.Ledger, messageID int64) (*models.Transaction, *models.Posting, error) {
	ref, ok := ledger.MessageIndex[messageID]
	if !ok {
		return nil, nil, userError(ErrUnknownMessage, "No transaction for message %d", messageID)
	}
	tx := ledger.Transaction(ref.TransactionID)
	if tx == nil {
		return nil, nil, userError(ErrUnknownMessage, "No transaction for message %d", messageID)
	}
	if ref.PostingID == nil {
		return tx, nil, nil
	}
	posting := tx.Posting(*ref.PostingID)
	if posting == nil {
		return nil, nil, userError(ErrNoPosting, "No posting for message %d", messageID)
	}
	return tx, posting, nil
}

func (e *LedgerEngine) resolvePosting(ledger *models.Ledger, messageID int64) (*models.Transaction, *models.Posting, error) {
	tx, posting, err := e.lookup(ledger, messageID)
	if err != nil {
		return nil, nil, err
	}
	if posting == nil {
		return nil, nil, userError(ErrNoPosting, "No posting for message %d", messageID)
	}
	return tx, posting, nil
}

func postingDefaults(config models.UserConfig) (string, string, error) {
	if len(config.CreditAccounts) == 0 {
		return "", "", userError(ErrInvalidInput, "There are no accounts configured")
	}
	if len(config.Currencies) == 0 {
		return "", "", userError(ErrInvalidInput, "There are no currencies configured")
	}
	return config.CreditAccounts[0], config.Currencies[0], nil
}

func newPosting(ledger *models.Ledger, payload models.PostingPayload, creditAccount, currency string) *models.Posting {
	return &models.Posting{
		ID:            ledger.AllocatePostingID(),
		DebitAccount:  payload.Info,
		CreditAccount: creditAccount,
		Amount:        payload.Amount,
		Currency:      currency,
	}
}

func dropIndex(ledger *models.Ledger, match func(models.MessageRef) bool) {
	for id, ref := range ledger.MessageIndex {
		if match(ref) {
			delete(ledger.MessageIndex, id)
		}
	}
}
