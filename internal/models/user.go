package models

import (
	"fmt"
	"time"
)

// UserConfig holds the per-user settings consulted by the ledger engine.
// The first currency and the first credit account are the defaults for new postings.
type UserConfig struct {
	Timezone       string   `json:"timezone" validate:"required"`
	Currencies     []string `json:"currencies" validate:"required,min=1,dive,required"`
	CreditAccounts []string `json:"credit_accounts" validate:"required,min=1,dive,required"`
}

// DefaultUserConfig returns the settings a brand new user starts with.
func DefaultUserConfig() UserConfig {
	return UserConfig{
		Timezone:       "UTC",
		Currencies:     []string{"USD", "EUR"},
		CreditAccounts: []string{"Cash", "CC", "Other"},
	}
}

// Location resolves the configured IANA timezone.
func (c UserConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DefaultCurrency is the currency assigned to new postings, or "" when none is configured.
func (c UserConfig) DefaultCurrency() string {
	if len(c.Currencies) == 0 {
		return ""
	}
	return c.Currencies[0]
}

// Clone returns a copy that shares no slices with c.
func (c UserConfig) Clone() UserConfig {
	return UserConfig{
		Timezone:       c.Timezone,
		Currencies:     append([]string(nil), c.Currencies...),
		CreditAccounts: append([]string(nil), c.CreditAccounts...),
	}
}
