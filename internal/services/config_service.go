package services

import (
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/beanbot/backend/internal/models"
)

const configUsage = `/config timezone <tz>
/config currencies <cur 1> [<currencies>]
/config accounts <acc 1> [<accounts>]`

// ConfigService applies the /config command to a user's settings.
type ConfigService struct {
	validator *ValidationHelper
	maxValues int
}

func NewConfigService(maxValues int) *ConfigService {
	if maxValues <= 0 {
		maxValues = 4
	}
	return &ConfigService{
		validator: NewValidationHelper(),
		maxValues: maxValues,
	}
}

// Apply runs "/config <key> [values...]" against current and returns the reply text
// together with the config to store. current is never modified; when err is non-nil
// the returned config must be ignored.
func (s *ConfigService) Apply(current models.UserConfig, args []string) (string, models.UserConfig, error) {
	if len(args) == 0 {
		return configUsage, current, nil
	}

	key, values := args[0], args[1:]
	switch key {
	case "timezone", "currencies", "accounts":
	default:
		return "", current, userError(ErrInvalidInput, "Unknown key %s", key)
	}

	if len(values) == 0 {
		switch key {
		case "timezone":
			return current.Timezone, current, nil
		case "currencies":
			return strings.Join(current.Currencies, "\n"), current, nil
		default:
			return strings.Join(current.CreditAccounts, "\n"), current, nil
		}
	}

	updated := current.Clone()
	switch key {
	case "timezone":
		tz := values[0]
		if _, err := time.LoadLocation(tz); err != nil || tz == "" || strings.EqualFold(tz, "local") {
			return "", current, userError(ErrInvalidInput, "Invalid IANA timezone: %s", tz)
		}
		updated.Timezone = tz
	case "currencies":
		list, err := s.checkList(values)
		if err != nil {
			return "", current, err
		}
		for i, code := range list {
			code = strings.ToUpper(code)
			if money.GetCurrency(code) == nil {
				return "", current, userError(ErrInvalidInput, "Unknown currency: %s", list[i])
			}
			list[i] = code
		}
		updated.Currencies = list
	case "accounts":
		list, err := s.checkList(values)
		if err != nil {
			return "", current, err
		}
		updated.CreditAccounts = list
	}

	if err := s.validator.ValidateStruct(&updated); err != nil {
		return "", current, userError(ErrInvalidInput, "Invalid configuration: %v", err)
	}
	return "Updated!", updated, nil
}

func (s *ConfigService) checkList(values []string) ([]string, error) {
	if len(values) > s.maxValues {
		return nil, userError(ErrInvalidInput, "Max values allowed are %d", s.maxValues)
	}
	list := make([]string, len(values))
	for i, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, userError(ErrInvalidInput, "There are invalid values")
		}
		list[i] = v
	}
	return list, nil
}
