package invoice

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// TaxPercent returns round(tax / subtotal * 100, 2), or zero when either operand
// is absent or the subtotal is zero. Zero therefore means undetermined unless both are present.
func TaxPercent(subtotal, tax decimal.NullDecimal) decimal.Decimal {
	if !subtotal.Valid || !tax.Valid || subtotal.Decimal.IsZero() {
		return decimal.Zero
	}
	return tax.Decimal.Div(subtotal.Decimal).Mul(hundred).Round(2)
}

// Derive returns a copy of c with its derived fields filled in
func Derive(c Candidate) Candidate {
	c.TaxPercent = TaxPercent(c.Subtotal, c.TaxAmount)
	return c
}

// TaxCheck is the advisory result of comparing recorded tax with the tax implied by the rate
type TaxCheck struct {
	ExpectedTax decimal.Decimal `json:"expected_tax"`
	Mismatch    bool            `json:"mismatch"`
}

// CheckTax computes expected_tax = round(subtotal * percent / 100, 2) and flags a mismatch
// with the recorded tax. Absent operands count as zero. It never blocks anything.
func CheckTax(subtotal, tax decimal.NullDecimal, percent decimal.Decimal) TaxCheck {
	sub := decimal.Zero
	if subtotal.Valid {
		sub = subtotal.Decimal
	}
	recorded := decimal.Zero
	if tax.Valid {
		recorded = tax.Decimal
	}

	expected := sub.Mul(percent).Div(hundred).Round(2)
	return TaxCheck{
		ExpectedTax: expected,
		Mismatch:    !expected.Equal(recorded),
	}
}

// CheckTaxStrings is CheckTax over unnormalized values such as spreadsheet cells or form input
func CheckTaxStrings(subtotal, tax, percent string) TaxCheck {
	return CheckTax(
		decimal.NewNullDecimal(AmountOrZero(subtotal)),
		decimal.NewNullDecimal(AmountOrZero(tax)),
		AmountOrZero(percent),
	)
}
