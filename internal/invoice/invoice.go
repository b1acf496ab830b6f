package invoice

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Confidence sentinels. They signal whether a field's pattern matched,
// they are not probability estimates.
const (
	ConfidenceHigh = 0.95
	ConfidenceLow  = 0.3
)

// Category is the coarse expense bucket assigned to an invoice
type Category string

const (
	CategorySoftware    Category = "Software"
	CategoryMaintenance Category = "Maintenance"
	CategoryTravel      Category = "Travel"
	CategoryOther       Category = "Other"
)

// Categories lists every category in display order
var Categories = []Category{CategorySoftware, CategoryMaintenance, CategoryTravel, CategoryOther}

// ParseCategory matches a category name case-insensitively. Unknown names map to Other.
func ParseCategory(name string) (Category, bool) {
	name = strings.TrimSpace(name)
	for _, c := range Categories {
		if strings.EqualFold(name, string(c)) {
			return c, true
		}
	}
	return CategoryOther, false
}

// Confidence holds one match-success signal per extracted field
type Confidence struct {
	InvoiceNumber float64 `json:"invoice_number_confidence"`
	Vendor        float64 `json:"vendor_confidence"`
	Date          float64 `json:"date_confidence"`
	Subtotal      float64 `json:"subtotal_confidence"`
	TaxAmount     float64 `json:"tax_amount_confidence"`
	TotalAmount   float64 `json:"total_amount_confidence"`
	Category      float64 `json:"category_confidence"`
}

// Candidate is an invoice as extracted from recognized text, before it reaches the ledger.
// Every field is optional: empty strings and invalid NullDecimals mean "absent".
type Candidate struct {
	InvoiceNumber string              `json:"invoice_number"`
	Vendor        string              `json:"vendor"`
	Date          string              `json:"date"` // YYYY-MM-DD when recognized, otherwise raw or empty
	Subtotal      decimal.NullDecimal `json:"subtotal"`
	TaxAmount     decimal.NullDecimal `json:"tax_amount"`
	TaxPercent    decimal.Decimal     `json:"tax_percent"` // derived; zero means undetermined
	TotalAmount   decimal.NullDecimal `json:"total_amount"`
	Category      Category            `json:"category"`
	SourceFile    string              `json:"source_file"`
	Confidence    Confidence          `json:"confidence"`
}

// Fields is an invoice as returned by a structured recognizer: raw strings, not yet normalized
type Fields struct {
	InvoiceNumber string `json:"invoice_number"`
	Vendor        string `json:"vendor"`
	Date          string `json:"date"`
	Subtotal      string `json:"subtotal"`
	Tax           string `json:"tax"`
	TotalAmount   string `json:"total_amount"`
	Category      string `json:"category"`
}

func confidenceOf(present bool) float64 {
	if present {
		return ConfidenceHigh
	}
	return ConfidenceLow
}
