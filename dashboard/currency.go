package dashboard

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// currencySymbols are stripped from the front of an amount before parsing
var currencySymbols = []string{"$", "€", "£"}

// amountPattern accepts plain digits or comma grouping in threes, with an
// optional dot fraction. Comma decimals and exponents do not match.
var amountPattern = regexp.MustCompile(`^(\d+|\d{1,3}(,\d{3})+)(\.\d+)?$`)

// ParseCurrency converts an amount such as "$1,234.50" into a decimal.
// Surrounding whitespace, one leading currency symbol and thousands
// separators are removed. Empty, negative or non-numeric input, and any
// other use of commas, returns an INVALID_CURRENCY error.
func ParseCurrency(s string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(s)
	for _, symbol := range currencySymbols {
		if strings.HasPrefix(raw, symbol) {
			raw = strings.TrimSpace(strings.TrimPrefix(raw, symbol))
			break
		}
	}
	if strings.HasPrefix(raw, "-") {
		return decimal.Zero, invalidCurrency(s, fmt.Errorf("amount is negative"))
	}
	if !amountPattern.MatchString(raw) {
		return decimal.Zero, invalidCurrency(s, nil)
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return decimal.Zero, invalidCurrency(s, err)
	}

	return amount, nil
}

// FormatEuro renders an amount the way the metric cards show it, e.g. €12.50
func FormatEuro(amount decimal.Decimal) string {
	return "€" + amount.StringFixed(2)
}

func invalidCurrency(input string, err error) error {
	return &Error{
		Code:    CodeInvalidCurrency,
		Message: fmt.Sprintf("malformed currency amount %q", input),
		Err:     err,
	}
}
