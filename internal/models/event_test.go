package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEvent_Validate(t *testing.T) {
	one := decimal.NewFromInt(1)

	valid := []Event{
		NewPostingEvent("Food", one),
		AddPostingEvent("Tip", one),
		SetInfoEvent("Dinner"),
		FixAmountEvent(one.Neg()),
		SetCurrencyEvent(0).WithMessage(1),
		SetCreditAccountEvent(3).WithMessage(1),
		DeleteEvent().WithMessage(1),
		CommitEvent(),
	}
	for _, e := range valid {
		t.Run(e.Kind.String(), func(t *testing.T) {
			assert.NoError(t, e.Validate())
		})
	}

	t.Run("empty info", func(t *testing.T) {
		assert.ErrorIs(t, NewPostingEvent(" ", one).Validate(), ErrEmptyInfo)
		assert.ErrorIs(t, SetInfoEvent("").Validate(), ErrEmptyInfo)
	})

	t.Run("message id required", func(t *testing.T) {
		assert.ErrorIs(t, SetCurrencyEvent(0).Validate(), ErrMissingMessageID)
		assert.ErrorIs(t, DeleteEvent().Validate(), ErrMissingMessageID)
	})

	t.Run("negative index", func(t *testing.T) {
		assert.ErrorIs(t, SetCreditAccountEvent(-1).WithMessage(1).Validate(), ErrNegativeIndex)
	})

	t.Run("negative days", func(t *testing.T) {
		e := NewPostingEvent("Food", one)
		e.Posting.DaysOld = -1
		assert.Error(t, e.Validate())
	})

	t.Run("unknown kind", func(t *testing.T) {
		assert.ErrorIs(t, Event{}.Validate(), ErrUnknownEventKind)
	})

	t.Run("amount bounds", func(t *testing.T) {
		huge := decimal.RequireFromString("1e10000000")
		assert.ErrorIs(t, NewPostingEvent("Lunch", huge).Validate(), ErrAmountTooLarge)
		assert.ErrorIs(t, AddPostingEvent("Lunch", huge.Neg()).Validate(), ErrAmountTooLarge)
		assert.ErrorIs(t, FixAmountEvent(huge).Validate(), ErrAmountTooLarge)
		assert.ErrorIs(t, FixAmountEvent(decimal.RequireFromString("1e-10000000")).Validate(), ErrAmountTooPrecise)
	})
}

func TestValidateAmount(t *testing.T) {
	for _, ok := range []string{"0", "-0.30", "999999999999.99", "0.00000001", "1e11"} {
		assert.NoError(t, ValidateAmount(decimal.RequireFromString(ok)), ok)
	}

	assert.ErrorIs(t, ValidateAmount(decimal.RequireFromString("1000000000000")), ErrAmountTooLarge)
	assert.ErrorIs(t, ValidateAmount(decimal.RequireFromString("-1e12")), ErrAmountTooLarge)
	assert.ErrorIs(t, ValidateAmount(decimal.RequireFromString("0e100")), ErrAmountTooLarge)
	assert.ErrorIs(t, ValidateAmount(decimal.RequireFromString("0.000000001")), ErrAmountTooPrecise)
}

func TestEvent_CopyHelpers(t *testing.T) {
	base := DeleteEvent()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	withMsg := base.WithMessage(5).At(at)

	assert.Nil(t, base.MessageID)
	assert.True(t, base.Timestamp.IsZero())
	assert.Equal(t, int64(5), *withMsg.MessageID)
	assert.Equal(t, at, withMsg.Timestamp)
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "SET_CREDIT_ACCOUNT", EventSetCreditAccount.String())
	assert.Equal(t, "EventKind(99)", EventKind(99).String())
}
