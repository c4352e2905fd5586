package services

import (
	"fmt"
	"strings"

	"github.com/beanbot/backend/internal/models"
	"github.com/shopspring/decimal"
)

// markdownSpecials is the MarkdownV2 reserved set; any of these in user text must be escaped.
const markdownSpecials = "_*[]()~`>#+-=|{}.!\\"

// EscapeMarkdown makes user text safe to embed in a MarkdownV2 message.
func EscapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markdownSpecials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeCode escapes text placed inside a code span, where only ` and \ are special.
func escapeCode(s string) string {
	return strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(s)
}

type creditTotals struct {
	account    string
	currencies []string // first-appearance order
	totals     map[string]decimal.Decimal
}

// FormatTransaction renders tx as a balanced double-entry block: one line per posting,
// a separator, then what each credit account paid per currency.
//
// Currency codes are left out when every posting uses defaultCurrency. An empty
// defaultCurrency means there is nothing to compare against and codes are always shown.
func FormatTransaction(tx *models.Transaction, defaultCurrency string) string {
	var credits []*creditTotals
	byAccount := make(map[string]*creditTotals)
	currencies := make(map[string]struct{})
	width := 0

	for _, p := range tx.Postings {
		currencies[p.Currency] = struct{}{}

		acc, ok := byAccount[p.CreditAccount]
		if !ok {
			acc = &creditTotals{account: p.CreditAccount, totals: make(map[string]decimal.Decimal)}
			byAccount[p.CreditAccount] = acc
			credits = append(credits, acc)
		}
		if _, seen := acc.totals[p.Currency]; !seen {
			acc.currencies = append(acc.currencies, p.Currency)
		}
		acc.totals[p.Currency] = acc.totals[p.Currency].Sub(p.Amount)

		width = max(width, len(p.Amount.StringFixedBank(2)))
	}
	for _, acc := range credits {
		for _, cur := range acc.currencies {
			width = max(width, len(acc.totals[cur].StringFixedBank(2)))
		}
	}
	width++

	showCurrency := func(cur string) bool {
		return len(currencies) > 1 || defaultCurrency == "" || cur != defaultCurrency
	}
	label := func(cur string) string {
		if !showCurrency(cur) {
			return ""
		}
		return " " + escapeCode(cur)
	}

	lines := make([]string, 0, 2+2*len(tx.Postings))
	if tx.Info != "" {
		lines = append(lines, EscapeMarkdown(tx.Info))
	}
	for _, p := range tx.Postings {
		lines = append(lines, fmt.Sprintf("`%s%s `_%s_", padAmount(p.Amount, width), label(p.Currency), EscapeMarkdown(p.DebitAccount)))
	}
	lines = append(lines, "`"+strings.Repeat("=", width)+"`")
	for _, acc := range credits {
		for i, cur := range acc.currencies {
			name := ""
			if i == 0 {
				name = EscapeMarkdown(acc.account)
			}
			lines = append(lines, fmt.Sprintf("`%s%s `%s", padAmount(acc.totals[cur], width), label(cur), name))
		}
	}
	return strings.Join(lines, "\n")
}

// FormatDeleted renders the struck-through notice that replaces a deleted posting's message.
func FormatDeleted(tx *models.Transaction, posting *models.Posting) string {
	text := ""
	switch {
	case posting != nil:
		text = posting.DebitAccount + " " + posting.Amount.StringFixedBank(2)
	case tx != nil:
		text = tx.Info
	}
	return "~" + EscapeMarkdown(text) + "~"
}

// padAmount writes the sign first and pads between sign and digits, so that
// amounts line up on the decimal point: "  10.00", "- 10.00".
func padAmount(amount decimal.Decimal, width int) string {
	sign := " "
	if amount.IsNegative() {
		sign = "-"
	}
	digits := amount.Abs().StringFixedBank(2)
	pad := width - len(sign) - len(digits)
	if pad < 0 {
		pad = 0
	}
	return sign + strings.Repeat(" ", pad) + digits
}
