package invoice

import (
	"strings"

	"github.com/shopspring/decimal"
)

// currencyMarks are stripped from amounts before parsing, longest first
var currencyMarks = []string{"INR", "Rs.", "Rs", "rs.", "rs", "₹", "$", "€", "£"}

// ParseAmount converts a currency-like string ("₹1,180.00", "Rs. 1,000/-", "18%") to a decimal.
// It returns false when nothing numeric remains; callers treat that as absent, never as zero.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	for _, mark := range currencyMarks {
		s = strings.ReplaceAll(s, mark, "")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "/-")
	s = strings.NewReplacer(",", "", "%", "", " ", "").Replace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseNullAmount is ParseAmount wrapped as a NullDecimal
func ParseNullAmount(s string) decimal.NullDecimal {
	d, ok := ParseAmount(s)
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}

// AmountOrZero parses s with the same cleaning rules, coercing anything non-numeric to zero
func AmountOrZero(s string) decimal.Decimal {
	d, ok := ParseAmount(s)
	if !ok {
		return decimal.Zero
	}
	return d
}
