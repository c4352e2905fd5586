package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Posting is one debit/credit pair inside a transaction.
type Posting struct {
	ID            int64           `json:"id"`
	DebitAccount  string          `json:"debit_account"`  // money goes into this account, usually an expense
	CreditAccount string          `json:"credit_account"` // money comes out of this account, one of the configured accounts
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

// Transaction groups the postings of a single receipt.
type Transaction struct {
	ID       int64      `json:"id"`
	Date     time.Time  `json:"date"`
	Info     string     `json:"info"`
	Postings []*Posting `json:"postings"`
}

// Posting returns the posting with the given id, or nil.
func (t *Transaction) Posting(id int64) *Posting {
	for _, p := range t.Postings {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// LastPosting returns the most recently appended posting, or nil for an empty transaction.
func (t *Transaction) LastPosting() *Posting {
	if len(t.Postings) == 0 {
		return nil
	}
	return t.Postings[len(t.Postings)-1]
}

// RemovePosting drops the posting with the given id and reports whether it was present.
func (t *Transaction) RemovePosting(id int64) bool {
	for i, p := range t.Postings {
		if p.ID == id {
			t.Postings = append(t.Postings[:i], t.Postings[i+1:]...)
			return true
		}
	}
	return false
}
