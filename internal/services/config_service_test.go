package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigService_Apply(t *testing.T) {
	s := NewConfigService(4)
	current := testConfig()

	t.Run("usage", func(t *testing.T) {
		reply, updated, err := s.Apply(current, nil)
		require.NoError(t, err)
		assert.Equal(t, configUsage, reply)
		assert.Equal(t, current, updated)
	})

	t.Run("show current values", func(t *testing.T) {
		reply, _, err := s.Apply(current, []string{"timezone"})
		require.NoError(t, err)
		assert.Equal(t, "UTC", reply)

		reply, _, err = s.Apply(current, []string{"currencies"})
		require.NoError(t, err)
		assert.Equal(t, "USD\nEUR", reply)

		reply, _, err = s.Apply(current, []string{"accounts"})
		require.NoError(t, err)
		assert.Equal(t, "Cash\nOther", reply)
	})

	t.Run("set timezone", func(t *testing.T) {
		reply, updated, err := s.Apply(current, []string{"timezone", "Europe/Berlin"})
		require.NoError(t, err)
		assert.Equal(t, "Updated!", reply)
		assert.Equal(t, "Europe/Berlin", updated.Timezone)
		assert.Equal(t, "UTC", current.Timezone)
	})

	t.Run("set currencies uppercases codes", func(t *testing.T) {
		_, updated, err := s.Apply(current, []string{"currencies", "gbp", "JPY"})
		require.NoError(t, err)
		assert.Equal(t, []string{"GBP", "JPY"}, updated.Currencies)
		assert.Equal(t, []string{"USD", "EUR"}, current.Currencies)
	})

	t.Run("set accounts", func(t *testing.T) {
		_, updated, err := s.Apply(current, []string{"accounts", "Wallet", "Bank"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Wallet", "Bank"}, updated.CreditAccounts)
	})

	errorCases := []struct {
		name string
		args []string
		want string
	}{
		{"unknown key", []string{"colour", "red"}, "Unknown key colour"},
		{"invalid timezone", []string{"timezone", "Mars/Olympus"}, "Invalid IANA timezone: Mars/Olympus"},
		{"local timezone", []string{"timezone", "Local"}, "Invalid IANA timezone: Local"},
		{"too many values", []string{"accounts", "a", "b", "c", "d", "e"}, "Max values allowed are 4"},
		{"blank value", []string{"accounts", "a", " "}, "There are invalid values"},
		{"unknown currency", []string{"currencies", "USD", "XYZ"}, "Unknown currency: XYZ"},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := s.Apply(current, tc.args)
			require.Error(t, err)
			ue, ok := AsUserError(err)
			require.True(t, ok)
			assert.Equal(t, tc.want, ue.Msg)
		})
	}
}

func TestNewConfigService_DefaultMax(t *testing.T) {
	assert.Equal(t, 4, NewConfigService(0).maxValues)
}
