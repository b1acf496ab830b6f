package invoice

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

const sampleInvoice = `ACME Software Pvt Ltd
Tax Invoice
Invoice No: INV-2024-001
Invoice Date: 15 Jan 2024
Vendor Name:
ACME Software Pvt Ltd
Subtotal: ₹1,000
GST: ₹180
Total Amount: ₹1,180
`

var _ = Describe("Extractor", func() {
	var (
		extractor *Extractor
		text      string
		candidate Candidate
	)

	BeforeEach(func() {
		extractor = NewExtractor()
	})

	JustBeforeEach(func() {
		candidate = extractor.Extract(text, "invoice.png")
	})

	When("the text carries every label", func() {
		BeforeEach(func() {
			text = sampleInvoice
		})

		It("extracts the invoice number", func() {
			Expect(candidate.InvoiceNumber).To(Equal("INV-2024-001"))
			Expect(candidate.Confidence.InvoiceNumber).To(Equal(ConfidenceHigh))
		})

		It("extracts the vendor from the line after the label", func() {
			Expect(candidate.Vendor).To(Equal("ACME Software Pvt Ltd"))
			Expect(candidate.Confidence.Vendor).To(Equal(ConfidenceHigh))
		})

		It("normalizes the date", func() {
			Expect(candidate.Date).To(Equal("2024-01-15"))
			Expect(candidate.Confidence.Date).To(Equal(ConfidenceHigh))
		})

		It("parses the amounts without separators and currency glyphs", func() {
			Expect(candidate.Subtotal.Valid).To(BeTrue())
			Expect(candidate.Subtotal.Decimal.Equal(decimal.NewFromInt(1000))).To(BeTrue())
			Expect(candidate.TaxAmount.Decimal.Equal(decimal.NewFromInt(180))).To(BeTrue())
			Expect(candidate.TotalAmount.Decimal.Equal(decimal.NewFromInt(1180))).To(BeTrue())
		})

		It("assigns the category by keyword", func() {
			Expect(candidate.Category).To(Equal(CategorySoftware))
			Expect(candidate.Confidence.Category).To(Equal(ConfidenceHigh))
		})

		It("keeps the source file", func() {
			Expect(candidate.SourceFile).To(Equal("invoice.png"))
		})

		It("leaves the derived tax percent unset", func() {
			Expect(candidate.TaxPercent.IsZero()).To(BeTrue())
		})
	})

	When("the text has no recognizable labels", func() {
		BeforeEach(func() {
			text = "smudged receipt\nrandom noise 123\n\n"
		})

		It("leaves every field absent", func() {
			Expect(candidate.InvoiceNumber).To(BeEmpty())
			Expect(candidate.Vendor).To(BeEmpty())
			Expect(candidate.Date).To(BeEmpty())
			Expect(candidate.Subtotal.Valid).To(BeFalse())
			Expect(candidate.TaxAmount.Valid).To(BeFalse())
			Expect(candidate.TotalAmount.Valid).To(BeFalse())
			Expect(candidate.Category).To(Equal(CategoryOther))
		})

		It("sets every confidence to the low sentinel", func() {
			Expect(candidate.Confidence).To(Equal(Confidence{
				InvoiceNumber: ConfidenceLow,
				Vendor:        ConfidenceLow,
				Date:          ConfidenceLow,
				Subtotal:      ConfidenceLow,
				TaxAmount:     ConfidenceLow,
				TotalAmount:   ConfidenceLow,
				Category:      ConfidenceLow,
			}))
		})
	})

	When("the text is empty", func() {
		BeforeEach(func() {
			text = ""
		})

		It("does not panic and returns an empty candidate", func() {
			Expect(candidate.InvoiceNumber).To(BeEmpty())
			Expect(candidate.Category).To(Equal(CategoryOther))
		})
	})

	When("a labeled amount is not numeric", func() {
		BeforeEach(func() {
			text = "Subtotal: TBD\nTotal: 500"
		})

		It("treats the amount as absent rather than zero", func() {
			Expect(candidate.Subtotal.Valid).To(BeFalse())
			Expect(candidate.Confidence.Subtotal).To(Equal(ConfidenceLow))
		})

		It("still extracts the other amounts", func() {
			Expect(candidate.TotalAmount.Decimal.Equal(decimal.NewFromInt(500))).To(BeTrue())
		})
	})

	When("the invoice date cannot be normalized", func() {
		BeforeEach(func() {
			text = "Invoice Date: end of quarter\r\nInvoice No: A-1"
		})

		It("keeps the raw value", func() {
			Expect(candidate.Date).To(Equal("end of quarter"))
		})

		It("reports low confidence", func() {
			Expect(candidate.Confidence.Date).To(Equal(ConfidenceLow))
		})
	})

	When("the vendor sits on the label line", func() {
		BeforeEach(func() {
			text = "Supplier: Blue Dart Travels\nGrand Total: Rs. 4,500.00"
		})

		It("takes the rest of the line", func() {
			Expect(candidate.Vendor).To(Equal("Blue Dart Travels"))
		})

		It("reads the grand total", func() {
			Expect(candidate.TotalAmount.Decimal.Equal(decimal.NewFromInt(4500))).To(BeTrue())
		})

		It("categorizes as travel", func() {
			Expect(candidate.Category).To(Equal(CategoryTravel))
		})
	})

	When("the tax line carries its rate", func() {
		BeforeEach(func() {
			text = "Taxable Value: 2,000\nIGST (18%): 360"
		})

		It("reads the amount after the rate", func() {
			Expect(candidate.TaxAmount.Decimal.Equal(decimal.NewFromInt(360))).To(BeTrue())
		})

		It("falls back to the taxable value for the subtotal", func() {
			Expect(candidate.Subtotal.Decimal.Equal(decimal.NewFromInt(2000))).To(BeTrue())
		})
	})

	When("the subtotal label ends in Amount", func() {
		BeforeEach(func() {
			text = "Sub Total Amount: 1,000\nGST: 180\nTotal Amount: 1,180"
		})

		It("reads the subtotal from the sub total line", func() {
			Expect(candidate.Subtotal.Valid).To(BeTrue())
			Expect(candidate.Subtotal.Decimal.Equal(decimal.NewFromInt(1000))).To(BeTrue())
		})

		It("reads the total from the total line only", func() {
			Expect(candidate.TotalAmount.Decimal.Equal(decimal.NewFromInt(1180))).To(BeTrue())
		})

		It("derives the tax percent from the right pair", func() {
			Expect(Derive(candidate).TaxPercent.Equal(decimal.NewFromInt(18))).To(BeTrue())
		})
	})

	When("a rate line precedes the tax amount line", func() {
		BeforeEach(func() {
			text = "Subtotal: 1,000\nGST: 18%\nGST Amount: 180"
		})

		It("skips the rate and reads the amount", func() {
			Expect(candidate.TaxAmount.Decimal.Equal(decimal.NewFromInt(180))).To(BeTrue())
			Expect(candidate.Confidence.TaxAmount).To(Equal(ConfidenceHigh))
		})

		It("derives the tax percent from the amount", func() {
			Expect(Derive(candidate).TaxPercent.Equal(decimal.NewFromInt(18))).To(BeTrue())
		})
	})

	DescribeTable("a labeled amount that is cut short",
		func(input string) {
			c := extractor.Extract(input, "")
			Expect(c.TaxAmount.Valid).To(BeFalse())
			Expect(c.Confidence.TaxAmount).To(Equal(ConfidenceLow))
		},
		Entry("a second decimal point", "Tax: 1.2.3"),
		Entry("trailing letters", "Tax: 12abc"),
		Entry("a bare rate", "GST: 18 %"),
	)

	It("accepts an amount followed by a currency word or the /- mark", func() {
		c := extractor.Extract("Total: 1,180 INR\nGST: 180/-", "")
		Expect(c.TotalAmount.Decimal.Equal(decimal.NewFromInt(1180))).To(BeTrue())
		Expect(c.TaxAmount.Decimal.Equal(decimal.NewFromInt(180))).To(BeTrue())
	})

	DescribeTable("ordinal dates",
		func(input, want string) {
			c := extractor.Extract(input, "")
			Expect(c.Date).To(Equal(want))
			Expect(c.Confidence.Date).To(Equal(ConfidenceHigh))
		},
		Entry("day first", "Invoice Date: 15th March 2024", "2024-03-15"),
		Entry("month first", "Invoice Date: March 1st, 2024", "2024-03-01"),
		Entry("short month", "Date: 22nd Feb 2024", "2024-02-22"),
	)

	When("the positional vendor fallback is enabled", func() {
		BeforeEach(func() {
			extractor = NewExtractor(WithFirstLineVendor())
			text = "\n  Corner Hardware Store  \nTotal: 120"
		})

		It("uses the first non-empty line", func() {
			Expect(candidate.Vendor).To(Equal("Corner Hardware Store"))
		})

		It("does not claim a pattern match", func() {
			Expect(candidate.Confidence.Vendor).To(Equal(ConfidenceLow))
		})
	})

	Describe("Apply", func() {
		It("stops at the first matching rule", func() {
			match, rule, ok := extractor.Apply(FieldInvoiceNumber, "Bill No: B-7\nInvoice Number: X-1")
			Expect(ok).To(BeTrue())
			Expect(rule).To(Equal("invoice_no"))
			Expect(match.Value).To(Equal("X-1"))
		})

		It("reports no match when every rule misses", func() {
			_, _, ok := extractor.Apply(FieldTaxAmount, "nothing here")
			Expect(ok).To(BeFalse())
		})

		It("honours replaced rules", func() {
			custom := NewExtractor(WithRules(FieldVendor, Rule{
				Name:  "fixed",
				Apply: func(string) *Match { return &Match{Value: "Fixed Vendor", Matched: true} },
			}))
			match, rule, ok := custom.Apply(FieldVendor, "")
			Expect(ok).To(BeTrue())
			Expect(rule).To(Equal("fixed"))
			Expect(match.Value).To(Equal("Fixed Vendor"))
		})
	})
})

var _ = Describe("FromStructured", func() {
	var (
		fields    Fields
		candidate Candidate
	)

	JustBeforeEach(func() {
		candidate = FromStructured(fields, "scan.pdf")
	})

	When("every field is present", func() {
		BeforeEach(func() {
			fields = Fields{
				InvoiceNumber: " INV-9 ",
				Vendor:        "Cloud Co",
				Date:          "05/03/2024",
				Subtotal:      "₹2,000",
				Tax:           "360",
				TotalAmount:   "2360",
				Category:      "software",
			}
		})

		It("normalizes values", func() {
			Expect(candidate.InvoiceNumber).To(Equal("INV-9"))
			Expect(candidate.Date).To(Equal("2024-03-05"))
			Expect(candidate.Subtotal.Decimal.Equal(decimal.NewFromInt(2000))).To(BeTrue())
			Expect(candidate.Category).To(Equal(CategorySoftware))
		})

		It("sets high confidence", func() {
			Expect(candidate.Confidence.InvoiceNumber).To(Equal(ConfidenceHigh))
			Expect(candidate.Confidence.Date).To(Equal(ConfidenceHigh))
			Expect(candidate.Confidence.Category).To(Equal(ConfidenceHigh))
		})
	})

	When("fields are missing or malformed", func() {
		BeforeEach(func() {
			fields = Fields{Date: "soon", TotalAmount: "unknown", Category: "Office"}
		})

		It("keeps the raw date with low confidence", func() {
			Expect(candidate.Date).To(Equal("soon"))
			Expect(candidate.Confidence.Date).To(Equal(ConfidenceLow))
		})

		It("treats malformed amounts as absent", func() {
			Expect(candidate.TotalAmount.Valid).To(BeFalse())
			Expect(candidate.Confidence.TotalAmount).To(Equal(ConfidenceLow))
		})

		It("falls back to Other", func() {
			Expect(candidate.Category).To(Equal(CategoryOther))
			Expect(candidate.Confidence.Category).To(Equal(ConfidenceLow))
		})
	})
})
