package models

import (
	"time"
)

// IDCounters are the next ids to hand out. Ids are never reused, not even after a clear.
type IDCounters struct {
	Transaction int64 `json:"transaction"`
	Posting     int64 `json:"posting"`
}

// MessageRef is what a rendered chat message points at. PostingID is nil for info-only messages.
type MessageRef struct {
	TransactionID int64  `json:"transaction_id"`
	PostingID     *int64 `json:"posting_id,omitempty"`
}

// Ledger is the complete state of one user.
type Ledger struct {
	Config       UserConfig           `json:"config"`
	Transactions []*Transaction       `json:"transactions"`
	NextIDs      IDCounters           `json:"next_ids"`
	MessageIndex map[int64]MessageRef `json:"message_index"`
	LastEventAt  *time.Time           `json:"last_event_at,omitempty"`

	byID map[int64]*Transaction
}

// NewLedger returns an empty ledger using config.
func NewLedger(config UserConfig) *Ledger {
	return &Ledger{
		Config:       config,
		Transactions: []*Transaction{},
		NextIDs:      IDCounters{Transaction: 1, Posting: 1},
		MessageIndex: map[int64]MessageRef{},
	}
}

// Normalize repairs the zero values a decoded ledger may carry and drops
// transactions left without postings.
func (l *Ledger) Normalize() {
	kept := make([]*Transaction, 0, len(l.Transactions))
	for _, tx := range l.Transactions {
		if tx != nil && len(tx.Postings) > 0 {
			kept = append(kept, tx)
		}
	}
	l.Transactions = kept
	if l.MessageIndex == nil {
		l.MessageIndex = map[int64]MessageRef{}
	}
	if l.NextIDs.Transaction < 1 {
		l.NextIDs.Transaction = 1
	}
	if l.NextIDs.Posting < 1 {
		l.NextIDs.Posting = 1
	}
	l.byID = nil
}

// Transaction looks a transaction up by id.
func (l *Ledger) Transaction(id int64) *Transaction {
	if l.byID == nil {
		l.byID = make(map[int64]*Transaction, len(l.Transactions))
		for _, tx := range l.Transactions {
			l.byID[tx.ID] = tx
		}
	}
	return l.byID[id]
}

// LastTransaction returns the most recent transaction, or nil for an empty ledger.
func (l *Ledger) LastTransaction() *Transaction {
	if len(l.Transactions) == 0 {
		return nil
	}
	return l.Transactions[len(l.Transactions)-1]
}

// AppendTransaction adds tx at the end of the ledger.
func (l *Ledger) AppendTransaction(tx *Transaction) {
	l.Transactions = append(l.Transactions, tx)
	if l.byID != nil {
		l.byID[tx.ID] = tx
	}
}

// RemoveTransaction drops the transaction with the given id and reports whether it was present.
func (l *Ledger) RemoveTransaction(id int64) bool {
	for i, tx := range l.Transactions {
		if tx.ID == id {
			l.Transactions = append(l.Transactions[:i], l.Transactions[i+1:]...)
			if l.byID != nil {
				delete(l.byID, id)
			}
			return true
		}
	}
	return false
}

// AllocateTransactionID hands out the next transaction id.
func (l *Ledger) AllocateTransactionID() int64 {
	id := l.NextIDs.Transaction
	l.NextIDs.Transaction++
	return id
}

// AllocatePostingID hands out the next posting id.
func (l *Ledger) AllocatePostingID() int64 {
	id := l.NextIDs.Posting
	l.NextIDs.Posting++
	return id
}
