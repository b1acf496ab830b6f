package invoice

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

var _ = Describe("Derive", func() {
	var (
		input   Candidate
		derived Candidate
	)

	JustBeforeEach(func() {
		derived = Derive(input)
	})

	When("subtotal and tax are present", func() {
		BeforeEach(func() {
			input = Candidate{InvoiceNumber: "INV-1", Subtotal: amount("1000"), TaxAmount: amount("180")}
		})

		It("computes the tax percent", func() {
			Expect(derived.TaxPercent.Equal(decimal.NewFromInt(18))).To(BeTrue())
		})

		It("does not mutate the input", func() {
			Expect(input.TaxPercent.IsZero()).To(BeTrue())
		})

		It("keeps the other fields", func() {
			Expect(derived.InvoiceNumber).To(Equal("INV-1"))
		})
	})

	DescribeTable("rounding to two places",
		func(subtotal, tax, expected string) {
			got := TaxPercent(amount(subtotal), amount(tax))
			Expect(got.Equal(decimal.RequireFromString(expected))).To(BeTrue(), "got %s", got)
		},
		Entry("exact rate", "1000", "180", "18"),
		Entry("repeating fraction", "333", "50", "15.02"),
		Entry("small rate", "2500", "125", "5"),
		Entry("fractional amounts", "99.99", "11.99", "11.99"),
	)

	DescribeTable("undetermined rates default to zero",
		func(subtotal, tax decimal.NullDecimal) {
			Expect(TaxPercent(subtotal, tax).IsZero()).To(BeTrue())
		},
		Entry("zero subtotal", amount("0"), amount("18")),
		Entry("absent subtotal", decimal.NullDecimal{}, amount("18")),
		Entry("absent tax", amount("100"), decimal.NullDecimal{}),
		Entry("both absent", decimal.NullDecimal{}, decimal.NullDecimal{}),
	)
})

var _ = Describe("CheckTax", func() {
	It("accepts tax consistent with the rate", func() {
		check := CheckTax(amount("1000"), amount("180"), decimal.NewFromInt(18))
		Expect(check.ExpectedTax.Equal(decimal.NewFromInt(180))).To(BeTrue())
		Expect(check.Mismatch).To(BeFalse())
	})

	It("flags tax inconsistent with the rate", func() {
		check := CheckTax(amount("1000"), amount("200"), decimal.NewFromInt(18))
		Expect(check.Mismatch).To(BeTrue())
	})

	It("treats absent operands as zero", func() {
		check := CheckTax(decimal.NullDecimal{}, decimal.NullDecimal{}, decimal.NewFromInt(18))
		Expect(check.ExpectedTax.IsZero()).To(BeTrue())
		Expect(check.Mismatch).To(BeFalse())
	})

	It("makes a missing tax visible", func() {
		check := CheckTax(amount("1000"), decimal.NullDecimal{}, decimal.NewFromInt(18))
		Expect(check.Mismatch).To(BeTrue())
	})

	Describe("CheckTaxStrings", func() {
		It("cleans separators and percent signs", func() {
			check := CheckTaxStrings("1,000", "180", "18%")
			Expect(check.Mismatch).To(BeFalse())
		})

		It("coerces non-numeric values to zero", func() {
			check := CheckTaxStrings("abc", "", "18")
			Expect(check.ExpectedTax.IsZero()).To(BeTrue())
			Expect(check.Mismatch).To(BeFalse())
		})
	})
})
