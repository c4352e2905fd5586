package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/beanbot/backend/internal/models"
	"github.com/shopspring/decimal"
)

// Keyboard tokens sent back by button presses.
const (
	KeyboardDelete = "delete"
	KeyboardCommit = "commit"

	currencyPrefix = "cur"
	accountPrefix  = "acc"
)

var ErrInvalidKeyboardData = errors.New("invalid keyboard data")

// ParseMessage turns a chat message into an event:
//
//	#Dinner with Ana    set the last transaction's info
//	+2.50 / -0.30       fix the last posting's amount
//	+Tip 3              add a posting to the last transaction
//	Lunch 12.00         new transaction
//
// Leading carets ("^^Taxi 8") back-date a posting by one day each.
// The returned event has no timestamp; the caller stamps it.
func ParseMessage(text string) (models.Event, error) {
	message := strings.TrimSpace(text)

	if strings.HasPrefix(message, "#") {
		info := strings.TrimSpace(message[1:])
		if info == "" {
			return models.Event{}, userError(ErrInvalidInput, "Info can't be empty")
		}
		return models.SetInfoEvent(info), nil
	}

	if strings.HasPrefix(message, "+") || strings.HasPrefix(message, "-") {
		if delta, err := decimal.NewFromString(message); err == nil {
			if err := checkAmount(delta); err != nil {
				return models.Event{}, err
			}
			return models.FixAmountEvent(delta), nil
		}
	}

	if strings.HasPrefix(message, "+") {
		payload, err := parsePosting(message[1:])
		if err != nil {
			return models.Event{}, err
		}
		event := models.AddPostingEvent(payload.Info, payload.Amount)
		event.Posting.DaysOld = payload.DaysOld
		return event, nil
	}

	payload, err := parsePosting(message)
	if err != nil {
		return models.Event{}, err
	}
	event := models.NewPostingEvent(payload.Info, payload.Amount)
	event.Posting.DaysOld = payload.DaysOld
	return event, nil
}

// parsePosting reads "[^...]<info words> <amount>".
func parsePosting(text string) (models.PostingPayload, error) {
	text = strings.TrimSpace(text)
	carets := len(text) - len(strings.TrimLeft(text, "^"))

	fields := strings.Fields(text[carets:])
	if len(fields) < 2 {
		if len(fields) == 1 {
			if _, err := decimal.NewFromString(fields[0]); err == nil {
				return models.PostingPayload{}, userError(ErrInvalidInput, "Info can't be empty")
			}
		}
		return models.PostingPayload{}, userError(ErrInvalidInput, "Cannot parse message: %q", text)
	}

	amount, err := decimal.NewFromString(fields[len(fields)-1])
	if err != nil {
		return models.PostingPayload{}, userError(ErrInvalidInput, "Cannot parse amount %q", fields[len(fields)-1])
	}
	if err := checkAmount(amount); err != nil {
		return models.PostingPayload{}, err
	}
	return models.PostingPayload{
		Info:    strings.Join(fields[:len(fields)-1], " "),
		Amount:  amount,
		DaysOld: carets,
	}, nil
}

func checkAmount(amount decimal.Decimal) error {
	if err := models.ValidateAmount(amount); err != nil {
		return &UserError{Msg: capitalize(err.Error()), Err: ErrInvalidInput}
	}
	return nil
}

// ParseKeyboardData decodes a button token. Tokens come from ActionsKeyboard, so an
// unknown one is an internal error rather than a user mistake.
func ParseKeyboardData(data string) (models.Event, error) {
	switch data {
	case KeyboardDelete:
		return models.DeleteEvent(), nil
	case KeyboardCommit:
		return models.CommitEvent(), nil
	}

	sep := strings.LastIndex(data, "_")
	if sep < 0 {
		return models.Event{}, fmt.Errorf("%w: %q", ErrInvalidKeyboardData, data)
	}
	key, rawIndex := data[:sep], data[sep+1:]
	index, err := strconv.Atoi(rawIndex)
	if err != nil || index < 0 {
		return models.Event{}, fmt.Errorf("%w: %q", ErrInvalidKeyboardData, data)
	}

	switch key {
	case currencyPrefix:
		return models.SetCurrencyEvent(index), nil
	case accountPrefix:
		return models.SetCreditAccountEvent(index), nil
	}
	return models.Event{}, fmt.Errorf("%w: unknown key %q", ErrInvalidKeyboardData, key)
}
