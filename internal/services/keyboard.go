package services

import (
	"fmt"

	"github.com/beanbot/backend/internal/models"
)

// Button is one inline keyboard button.
type Button struct {
	Text string `json:"text"`
	Data string `json:"callback_data"`
}

// ActionsKeyboard builds the buttons shown under a rendered transaction. The
// account and currency rows offer every configured option except the current one.
// Info-only messages (posting == nil) only get Delete and Done.
func ActionsKeyboard(config models.UserConfig, posting *models.Posting) [][]Button {
	var rows [][]Button

	if posting != nil {
		var accounts []Button
		for i, acc := range config.CreditAccounts {
			if acc != posting.CreditAccount {
				accounts = append(accounts, Button{Text: acc, Data: fmt.Sprintf("%s_%d", accountPrefix, i)})
			}
		}
		if len(accounts) > 0 {
			rows = append(rows, accounts)
		}

		var currencies []Button
		for i, cur := range config.Currencies {
			if cur != posting.Currency {
				currencies = append(currencies, Button{Text: cur, Data: fmt.Sprintf("%s_%d", currencyPrefix, i)})
			}
		}
		if len(currencies) > 0 {
			rows = append(rows, currencies)
		}
	}

	rows = append(rows, []Button{
		{Text: "Delete", Data: KeyboardDelete},
		{Text: "Done", Data: KeyboardCommit},
	})
	return rows
}
