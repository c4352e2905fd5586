package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EventKind tells the engine what a user intends.
type EventKind int

const (
	EventNew              EventKind = iota + 1 // new transaction
	EventAdd                                   // add a posting to the last transaction
	EventSetInfo                               // set the last transaction's narration
	EventFixAmount                             // increase/decrease the last posting's amount
	EventSetCurrency                           // set the currency of a referenced posting
	EventSetCreditAccount                      // set the credit account of a referenced posting
	EventDelete                                // delete a referenced posting
	EventCommit                                // close the current receipt
)

var eventKindNames = map[EventKind]string{
	EventNew:              "NEW",
	EventAdd:              "ADD",
	EventSetInfo:          "SET_INFO",
	EventFixAmount:        "FIX_AMOUNT",
	EventSetCurrency:      "SET_CURRENCY",
	EventSetCreditAccount: "SET_CREDIT_ACCOUNT",
	EventDelete:           "DELETE",
	EventCommit:           "COMMIT",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// PostingPayload is carried by NEW and ADD events.
type PostingPayload struct {
	Info    string          `json:"info"`
	Amount  decimal.Decimal `json:"amount"`
	DaysOld int             `json:"days_old,omitempty"`
}

// Event is one user intent. Which payload field is meaningful depends on Kind;
// use the constructors below to build events with the right shape.
type Event struct {
	Kind      EventKind
	Posting   PostingPayload  // NEW, ADD
	Info      string          // SET_INFO
	Delta     decimal.Decimal // FIX_AMOUNT
	Index     int             // SET_CURRENCY, SET_CREDIT_ACCOUNT
	Timestamp time.Time       // zero means "now"
	MessageID *int64          // SET_CURRENCY, SET_CREDIT_ACCOUNT, DELETE
}

var (
	ErrEmptyInfo        = errors.New("info can't be empty")
	ErrMissingMessageID = errors.New("message id is required")
	ErrNegativeIndex    = errors.New("index can't be negative")
	ErrUnknownEventKind = errors.New("unknown event kind")
	ErrAmountTooLarge   = errors.New("amount is too large")
	ErrAmountTooPrecise = errors.New("amount has too many decimal places")
)

// Amounts must stay below MaxAmount in magnitude and carry at most MaxAmountScale
// decimal places.
const (
	MaxAmountScale  = 8
	maxAmountDigits = 12
)

var MaxAmount = decimal.New(1, maxAmountDigits)

// ValidateAmount bounds an amount before anything formats or stores it. The exponent
// is checked first: comparing or printing a decimal with a huge exponent expands it
// digit by digit.
func ValidateAmount(amount decimal.Decimal) error {
	exp := amount.Exponent()
	if exp < -MaxAmountScale {
		return ErrAmountTooPrecise
	}
	if exp > maxAmountDigits || amount.Abs().GreaterThanOrEqual(MaxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

func NewPostingEvent(info string, amount decimal.Decimal) Event {
	return Event{Kind: EventNew, Posting: PostingPayload{Info: info, Amount: amount}}
}

func AddPostingEvent(info string, amount decimal.Decimal) Event {
	return Event{Kind: EventAdd, Posting: PostingPayload{Info: info, Amount: amount}}
}

func SetInfoEvent(info string) Event {
	return Event{Kind: EventSetInfo, Info: info}
}

func FixAmountEvent(delta decimal.Decimal) Event {
	return Event{Kind: EventFixAmount, Delta: delta}
}

func SetCurrencyEvent(index int) Event {
	return Event{Kind: EventSetCurrency, Index: index}
}

func SetCreditAccountEvent(index int) Event {
	return Event{Kind: EventSetCreditAccount, Index: index}
}

func DeleteEvent() Event {
	return Event{Kind: EventDelete}
}

func CommitEvent() Event {
	return Event{Kind: EventCommit}
}

// WithMessage returns a copy of e referencing the given chat message.
func (e Event) WithMessage(messageID int64) Event {
	e.MessageID = &messageID
	return e
}

// At returns a copy of e stamped with t.
func (e Event) At(t time.Time) Event {
	e.Timestamp = t
	return e
}

// Validate checks that the payload matches the kind.
func (e Event) Validate() error {
	switch e.Kind {
	case EventNew, EventAdd:
		if strings.TrimSpace(e.Posting.Info) == "" {
			return ErrEmptyInfo
		}
		if e.Posting.DaysOld < 0 {
			return fmt.Errorf("days old can't be negative: %d", e.Posting.DaysOld)
		}
		return ValidateAmount(e.Posting.Amount)
	case EventSetInfo:
		if strings.TrimSpace(e.Info) == "" {
			return ErrEmptyInfo
		}
	case EventFixAmount:
		return ValidateAmount(e.Delta)
	case EventCommit:
	case EventSetCurrency, EventSetCreditAccount:
		if e.MessageID == nil {
			return ErrMissingMessageID
		}
		if e.Index < 0 {
			return ErrNegativeIndex
		}
	case EventDelete:
		if e.MessageID == nil {
			return ErrMissingMessageID
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownEventKind, int(e.Kind))
	}
	return nil
}
